//go:build darwin

package symbolize

/*
#include <dlfcn.h>
*/
import "C"
import "unsafe"

// Symbolize resolves pc via a single dynamic-linker address-to-symbol
// query. There is no /proc filesystem to parse on this platform, and no
// fallback: dladdr either names a symbol or it doesn't.
func Symbolize(pc uintptr, buf []byte) (int, bool) {
	if len(buf) == 0 {
		return 0, false
	}
	var info C.Dl_info
	if C.dladdr(unsafe.Pointer(pc), &info) == 0 || info.dli_sname == nil {
		return 0, false
	}
	name := C.GoString(info.dli_sname)
	n := copy(buf, name)
	return n, true
}
