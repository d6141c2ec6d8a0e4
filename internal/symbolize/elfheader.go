package symbolize

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
)

// elfHeader holds the handful of ELF header fields the resolver needs.
// Fields are decoded by hand from a fixed-size buffer instead of via
// encoding/binary.Read's reflection path, which allocates per call; the
// field layouts themselves come straight from the ELF32/ELF64 spec that
// debug/elf's own Header32/Header64 types encode.
type elfHeader struct {
	class     elf.Class
	typ       elf.Type
	phoff     uint64
	phentsize int
	phnum     int
	shoff     uint64
	shentsize int
	shnum     int
}

// readELFHeader reads and validates the ELF header located at byte offset
// at within f. f is /proc/self/mem when locating a module's base (at is an
// absolute virtual address) or an already-open object file (at is 0) when
// resolving symbols within it.
func readELFHeader(f *os.File, at int64) (elfHeader, bool) {
	var buf [64]byte
	if !readAtExact(f, buf[:16], at) {
		return elfHeader{}, false
	}
	if !bytes.Equal(buf[:len(elf.ELFMAG)], []byte(elf.ELFMAG)) {
		return elfHeader{}, false
	}
	class := elf.Class(buf[elf.EI_CLASS])
	switch class {
	case elf.ELFCLASS64:
		if !readAtExact(f, buf[:64], at) {
			return elfHeader{}, false
		}
		return elfHeader{
			class:     class,
			typ:       elf.Type(binary.LittleEndian.Uint16(buf[16:18])),
			phoff:     binary.LittleEndian.Uint64(buf[32:40]),
			shoff:     binary.LittleEndian.Uint64(buf[40:48]),
			phentsize: int(binary.LittleEndian.Uint16(buf[54:56])),
			phnum:     int(binary.LittleEndian.Uint16(buf[56:58])),
			shentsize: int(binary.LittleEndian.Uint16(buf[58:60])),
			shnum:     int(binary.LittleEndian.Uint16(buf[60:62])),
		}, true
	case elf.ELFCLASS32:
		if !readAtExact(f, buf[:52], at) {
			return elfHeader{}, false
		}
		return elfHeader{
			class:     class,
			typ:       elf.Type(binary.LittleEndian.Uint16(buf[16:18])),
			phoff:     uint64(binary.LittleEndian.Uint32(buf[28:32])),
			shoff:     uint64(binary.LittleEndian.Uint32(buf[32:36])),
			phentsize: int(binary.LittleEndian.Uint16(buf[42:44])),
			phnum:     int(binary.LittleEndian.Uint16(buf[44:46])),
			shentsize: int(binary.LittleEndian.Uint16(buf[46:48])),
			shnum:     int(binary.LittleEndian.Uint16(buf[48:50])),
		}, true
	default:
		return elfHeader{}, false
	}
}
