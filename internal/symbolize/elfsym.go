package symbolize

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
)

// Chunk sizes match the spec this resolver follows: enough symbols per
// read to amortize syscall cost while keeping the working buffer under
// about 1KiB regardless of the object's total symbol count.
const (
	sym64ChunkLen = 32
	sym32ChunkLen = 64
	shdrChunkLen  = 16
	maxChunkBytes = 1024
)

type shdrInfo struct {
	typ     uint32
	offset  uint64
	size    uint64
	link    uint32
	entsize uint64
}

type symInfo struct {
	name  uint32
	value uint64
	size  uint64
	shndx uint16
}

// findSymbol reads f's ELF header and walks its section headers looking
// first for SHT_SYMTAB then SHT_DYNSYM, returning the name of the symbol
// whose range covers pc. It exists mainly for tests and standalone callers;
// the façade calls resolveSymbol directly once it has already validated
// the header, so it can tell "not an ELF object" apart from "no symbol
// matched".
func findSymbol(f *os.File, pc uint64, base uint64, buf []byte) (int, bool) {
	hdr, ok := readELFHeader(f, 0)
	if !ok {
		return 0, false
	}
	n, found, _ := resolveSymbol(f, hdr, pc, base, buf)
	return n, found
}

// resolveSymbol is findSymbol's body given an already-read header. SYMTAB
// is exhausted before DYNSYM is attempted at all. The third return value
// reports that a matching candidate was found in at least one table but its
// name couldn't be read in full — the caller must treat that as a hard
// failure (§7's "truncated name read"), not as grounds for an address-suffix
// fallback, even though the other table was still given its own chance to
// produce a clean match first.
func resolveSymbol(f *os.File, hdr elfHeader, pc uint64, base uint64, buf []byte) (n int, found bool, truncated bool) {
	anyTruncated := false
	for _, want := range [...]elf.SectionType{elf.SHT_SYMTAB, elf.SHT_DYNSYM} {
		symtab, ok := findSection(f, hdr, want)
		if !ok {
			continue
		}
		strtab, ok := readSectionHeaderAt(f, hdr, int(symtab.link))
		if !ok {
			continue
		}
		n, found, trunc := scanSymbols(f, hdr, symtab, strtab, pc, base, buf)
		if found {
			return n, true, false
		}
		if trunc {
			anyTruncated = true
		}
	}
	return 0, false, anyTruncated
}

func findSection(f *os.File, hdr elfHeader, want elf.SectionType) (shdrInfo, bool) {
	if hdr.shentsize <= 0 || hdr.shnum <= 0 {
		return shdrInfo{}, false
	}
	var raw [shdrChunkLen * 64]byte
	for i := 0; i < hdr.shnum; i += shdrChunkLen {
		n := shdrChunkLen
		if i+n > hdr.shnum {
			n = hdr.shnum - i
		}
		window := raw[:n*hdr.shentsize]
		off := int64(hdr.shoff) + int64(i)*int64(hdr.shentsize)
		if !readAtExact(f, window, off) {
			return shdrInfo{}, false
		}
		for j := 0; j < n; j++ {
			rec := window[j*hdr.shentsize : (j+1)*hdr.shentsize]
			info := decodeShdr(hdr.class, rec)
			if elf.SectionType(info.typ) == want {
				return info, true
			}
		}
	}
	return shdrInfo{}, false
}

func readSectionHeaderAt(f *os.File, hdr elfHeader, index int) (shdrInfo, bool) {
	if index < 0 || hdr.shentsize <= 0 {
		return shdrInfo{}, false
	}
	var rec [64]byte
	off := int64(hdr.shoff) + int64(index)*int64(hdr.shentsize)
	if !readAtExact(f, rec[:hdr.shentsize], off) {
		return shdrInfo{}, false
	}
	return decodeShdr(hdr.class, rec[:hdr.shentsize]), true
}

func scanSymbols(f *os.File, hdr elfHeader, symtab, strtab shdrInfo, pc, base uint64, buf []byte) (n int, found bool, truncated bool) {
	if symtab.entsize == 0 {
		return 0, false, false
	}
	count := int(symtab.size / symtab.entsize)
	chunkLen := sym64ChunkLen
	if hdr.class == elf.ELFCLASS32 {
		chunkLen = sym32ChunkLen
	}
	var raw [maxChunkBytes]byte
	entsz := int(symtab.entsize)
	for i := 0; i < count; i += chunkLen {
		n := chunkLen
		if i+n > count {
			n = count - i
		}
		window := raw[:n*entsz]
		off := int64(symtab.offset) + int64(i)*int64(entsz)
		if !readAtExact(f, window, off) {
			return 0, false, false
		}
		for j := 0; j < n; j++ {
			rec := window[j*entsz : (j+1)*entsz]
			sym := decodeSym(hdr.class, rec)
			if sym.value == 0 || sym.shndx == uint16(elf.SHN_UNDEF) {
				continue
			}
			if pc < sym.value+base || pc >= sym.value+base+sym.size {
				continue
			}
			if wn, ok := readSymbolName(f, strtab, sym.name, buf); ok {
				return wn, true, false
			}
			for k := range buf {
				buf[k] = 0
			}
			return 0, false, true
		}
	}
	return 0, false, false
}

// readSymbolName copies a symbol's name from the string table into buf,
// requiring at least one byte to be delivered and a NUL terminator to
// appear within buf.
func readSymbolName(f *os.File, strtab shdrInfo, nameOff uint32, buf []byte) (int, bool) {
	off := int64(strtab.offset) + int64(nameOff)
	n, err := readAt(f, buf, off)
	if err != nil || n == 0 {
		return 0, false
	}
	idx := bytes.IndexByte(buf[:n], 0)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

func decodeShdr(class elf.Class, rec []byte) shdrInfo {
	if class == elf.ELFCLASS64 {
		return shdrInfo{
			typ:     binary.LittleEndian.Uint32(rec[4:8]),
			offset:  binary.LittleEndian.Uint64(rec[24:32]),
			size:    binary.LittleEndian.Uint64(rec[32:40]),
			link:    binary.LittleEndian.Uint32(rec[40:44]),
			entsize: binary.LittleEndian.Uint64(rec[56:64]),
		}
	}
	return shdrInfo{
		typ:     binary.LittleEndian.Uint32(rec[4:8]),
		offset:  uint64(binary.LittleEndian.Uint32(rec[16:20])),
		size:    uint64(binary.LittleEndian.Uint32(rec[20:24])),
		link:    binary.LittleEndian.Uint32(rec[24:28]),
		entsize: uint64(binary.LittleEndian.Uint32(rec[36:40])),
	}
}

func decodeSym(class elf.Class, rec []byte) symInfo {
	if class == elf.ELFCLASS64 {
		return symInfo{
			name:  binary.LittleEndian.Uint32(rec[0:4]),
			shndx: binary.LittleEndian.Uint16(rec[6:8]),
			value: binary.LittleEndian.Uint64(rec[8:16]),
			size:  binary.LittleEndian.Uint64(rec[16:24]),
		}
	}
	return symInfo{
		name:  binary.LittleEndian.Uint32(rec[0:4]),
		value: uint64(binary.LittleEndian.Uint32(rec[4:8])),
		size:  uint64(binary.LittleEndian.Uint32(rec[8:12])),
		shndx: binary.LittleEndian.Uint16(rec[14:16]),
	}
}
