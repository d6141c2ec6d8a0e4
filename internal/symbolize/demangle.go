package symbolize

// Demangle is declared as Symbolize's sibling for API symmetry, but
// Itanium C++ ABI name demangling is not implemented. It always reports
// failure; callers must not assume a demangled name comes back, and should
// render whatever Symbolize returned as-is.
func Demangle(mangled string, buf []byte) (int, bool) {
	return 0, false
}
