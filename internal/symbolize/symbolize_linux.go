//go:build linux

package symbolize

// Symbolize resolves pc to the name of the function that contains it,
// writing the name — or an "<object>+0xOFFSET" fallback when the object
// was located but the symbol could not be — into buf. It requires
// len(buf) >= 5, the shortest possible fallback ("+0x0") plus one byte of
// slack. One call opens at most three files (/proc/self/maps,
// /proc/self/mem, and the object file) and releases every one of them
// before returning, on every path.
func Symbolize(pc uintptr, buf []byte) (int, bool) {
	if len(buf) < 5 {
		return 0, false
	}

	loc := findObject(uint64(pc))
	switch loc.result {
	case locateIOError, locateMiss:
		return 0, false
	case locateUnopenable:
		n := appendBounded(buf, 0, loc.objName)
		n = appendAddressSuffix(buf, n, uint64(pc)-loc.base)
		return n, true
	}
	fd := newScopedFD(loc.file)
	defer fd.release()

	hdr, ok := readELFHeader(loc.file, 0)
	if !ok {
		return 0, false
	}

	n, found, truncated := resolveSymbol(loc.file, hdr, uint64(pc), loc.base, buf)
	if found {
		return n, true
	}
	if truncated {
		// A candidate symbol matched but its name couldn't be read in
		// full from the string table; scanSymbols already zeroed buf.
		// §7 requires this to fail outright, not fall back to an
		// address suffix.
		return 0, false
	}

	// Object opened and readable, but neither SYMTAB nor DYNSYM had a
	// match — typically a stripped binary.
	n = appendBounded(buf, 0, loc.objName)
	n = appendAddressSuffix(buf, n, uint64(pc)-loc.base)
	return n, true
}
