// Package kernelsym resolves kernel program-counter addresses captured
// alongside a user-space stack, using /proc/kallsyms or, when available, a
// vmlinux image with debug info. Unlike the userspace symbolizer this
// package is used from ordinary goroutine context — the profiler's
// collector loop, never a signal handler — so it is free to allocate,
// use bufio, and hold a mutex.
package kernelsym

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Loader abstracts the source of kallsyms-formatted lines, so tests can
// supply canned data instead of reading /proc/kallsyms.
type Loader interface {
	ReadLines() ([]string, error)
}

type fileLoader struct {
	path string
}

// NewKallsymsLoader returns a Loader reading from the live kernel symbol
// table.
func NewKallsymsLoader() Loader {
	return &fileLoader{path: "/proc/kallsyms"}
}

func (l *fileLoader) ReadLines() ([]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

type kallsymsEntry struct {
	addr uint64
	name string
}

// KallsymsResolver resolves kernel addresses to the nearest symbol at or
// below that address, found by binary search over a sorted address table.
type KallsymsResolver struct {
	entries []kallsymsEntry
}

// NewKallsymsResolver builds a resolver from every "ADDR TYPE NAME [MODULE]"
// line the loader produces, dropping lines it can't parse (weak or absent
// symbols report an address of all zeros in an unprivileged process, which
// ParseUint still accepts but which then sorts before anything useful).
func NewKallsymsResolver(loader Loader) (*KallsymsResolver, error) {
	lines, err := loader.ReadLines()
	if err != nil {
		return nil, err
	}
	entries := make([]kallsymsEntry, 0, len(lines))
	for _, line := range lines {
		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}
		addr, err := strconv.ParseUint(parts[0], 16, 64)
		if err != nil {
			continue
		}
		entries = append(entries, kallsymsEntry{addr: addr, name: parts[2]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].addr < entries[j].addr })
	slog.Debug("loaded kallsyms table", "entries", len(entries))
	return &KallsymsResolver{entries: entries}, nil
}

// Resolve returns the name of the symbol covering pc, or false if the table
// is empty or pc precedes every known symbol.
func (r *KallsymsResolver) Resolve(pc uint64) (string, bool) {
	if len(r.entries) == 0 {
		return "", false
	}
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].addr > pc })
	if i == 0 {
		return "", false
	}
	return r.entries[i-1].name, true
}

func (e kallsymsEntry) String() string {
	return fmt.Sprintf("%016x %s", e.addr, e.name)
}
