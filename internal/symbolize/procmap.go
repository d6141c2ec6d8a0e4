package symbolize

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
)

// locateResult distinguishes why findObject stopped, matching the error
// taxonomy of the caller-facing façade.
type locateResult int

const (
	locateIOError locateResult = iota
	locateMiss
	locateUnopenable
	locateOpened
)

type located struct {
	file    *os.File
	start   uint64
	base    uint64
	objName string
	result  locateResult
}

type mapEntry struct {
	start, end uint64
	perms      []byte
	path       string
}

// findObject scans /proc/self/maps for the mapping covering pc, computes
// its module base from the ELF header at the mapping's start address in
// /proc/self/mem, and attempts to open the backing file. The caller owns
// located.file (and must close it) only when result == locateOpened. The
// first matching line wins.
//
// base is tracked across the whole scan rather than derived only from the
// matching r-xp line: for an ET_DYN object, the ELF header (and the
// PT_LOAD program headers it takes base from) live at the start of the
// object's first, typically r--p, segment, not at the start of the later
// r-xp code segment that actually covers pc. Per §4.4 step 4, a line that
// doesn't itself carry a readable ELF header leaves base untouched, so the
// value computed for the object's header segment survives to its code
// segment.
func findObject(pc uint64) located {
	mapsFile, err := os.Open("/proc/self/maps")
	if err != nil {
		return located{result: locateIOError}
	}
	defer mapsFile.Close()

	memFile, err := os.Open("/proc/self/mem")
	if err != nil {
		return located{result: locateIOError}
	}
	defer memFile.Close()

	var base uint64
	var lineBuf [1024]byte
	r := newLineReader(mapsFile, lineBuf[:])
	for {
		line, ok := r.next()
		if !ok {
			return located{result: locateMiss}
		}
		m, ok := parseMapLine(line)
		if !ok {
			continue
		}
		if len(m.perms) > 0 && m.perms[0] == 'r' {
			if b, ok := elfBaseAt(memFile, m.start); ok {
				base = b
			}
		}
		if pc < m.start || pc >= m.end {
			continue
		}
		if len(m.perms) < 4 || m.perms[0] != 'r' || m.perms[2] != 'x' {
			continue
		}
		f, openErr := os.Open(m.path)
		if openErr != nil {
			return located{base: base, objName: m.path, result: locateUnopenable}
		}
		return located{file: f, start: m.start, base: base, objName: m.path, result: locateOpened}
	}
}

// parseMapLine parses one /proc/self/maps line of the form
// "START-END FLAGS OFFSET DEV INODE PATHNAME", where PATHNAME is optional
// and may itself contain spaces (e.g. "/lib/x.so (deleted)").
func parseMapLine(line []byte) (mapEntry, bool) {
	fields := bytes.Fields(line)
	if len(fields) < 5 {
		return mapEntry{}, false
	}
	addr := fields[0]
	dash := bytes.IndexByte(addr, '-')
	if dash <= 0 {
		return mapEntry{}, false
	}
	start, sn := scanHex(addr[:dash])
	if sn != dash {
		return mapEntry{}, false
	}
	end, en := scanHex(addr[dash+1:])
	if en != len(addr)-dash-1 || en == 0 {
		return mapEntry{}, false
	}
	if start >= end {
		return mapEntry{}, false
	}
	perms := fields[1]

	var path string
	if len(fields) >= 6 {
		path = string(bytes.Join(fields[5:], []byte(" ")))
	}
	return mapEntry{start: start, end: end, perms: perms, path: path}, true
}

// elfBaseAt reports whether a valid ELF header is present at start in mem
// and, if so, the absolute virtual address at which file offset 0 of that
// object would lie: 0 for ET_EXEC, start minus the first PT_LOAD segment's
// p_vaddr for ET_DYN. ok is false for ET_REL, ET_CORE, or any read/magic
// failure, signaling the caller to leave its running base untouched.
func elfBaseAt(mem *os.File, start uint64) (uint64, bool) {
	hdr, ok := readELFHeader(mem, int64(start))
	if !ok {
		return 0, false
	}
	switch hdr.typ {
	case elf.ET_EXEC:
		return 0, true
	case elf.ET_DYN:
		return firstLoadBase(mem, start, hdr), true
	default:
		return 0, false
	}
}

const phdrChunkLen = 8

func firstLoadBase(mem *os.File, start uint64, hdr elfHeader) uint64 {
	if hdr.phentsize <= 0 || hdr.phnum <= 0 {
		return start
	}
	var raw [phdrChunkLen * 56]byte // 56 = size of a 64-bit program header, the wider of the two widths
	for i := 0; i < hdr.phnum; i += phdrChunkLen {
		n := phdrChunkLen
		if i+n > hdr.phnum {
			n = hdr.phnum - i
		}
		window := raw[:n*hdr.phentsize]
		off := int64(start) + int64(hdr.phoff) + int64(i)*int64(hdr.phentsize)
		if !readAtExact(mem, window, off) {
			return start
		}
		for j := 0; j < n; j++ {
			rec := window[j*hdr.phentsize : (j+1)*hdr.phentsize]
			typ, fileOff, vaddr := decodePhdr(hdr.class, rec)
			if elf.ProgType(typ) == elf.PT_LOAD && fileOff == 0 {
				return start - vaddr
			}
		}
	}
	return start
}

func decodePhdr(class elf.Class, rec []byte) (typ uint32, offset uint64, vaddr uint64) {
	if class == elf.ELFCLASS64 {
		return binary.LittleEndian.Uint32(rec[0:4]),
			binary.LittleEndian.Uint64(rec[8:16]),
			binary.LittleEndian.Uint64(rec[16:24])
	}
	return binary.LittleEndian.Uint32(rec[0:4]),
		uint64(binary.LittleEndian.Uint32(rec[4:8])),
		uint64(binary.LittleEndian.Uint32(rec[8:12]))
}
