//go:build !linux && !darwin

package symbolize

// Symbolize has no backend on this platform and always reports failure.
func Symbolize(pc uintptr, buf []byte) (int, bool) {
	return 0, false
}
