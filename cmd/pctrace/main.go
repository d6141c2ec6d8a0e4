// Command pctrace prints the current call stack, symbol by symbol, using
// internal/symbolize directly instead of a full profiling pipeline. It is
// a minimal, dependency-free demonstration of the symbolizer: six nested
// functions, f1 through f6, call into a seventh, f7, that captures and
// prints its own stack.
package main

import (
	"fmt"
	"runtime"

	"github.com/halfvector/symprof/internal/symbolize"
)

func main() {
	f1()
}

//go:noinline
func f1() { f2() }

//go:noinline
func f2() { f3() }

//go:noinline
func f3() { f4() }

//go:noinline
func f4() { f5() }

//go:noinline
func f5() { f6() }

//go:noinline
func f6() { f7() }

//go:noinline
func f7() {
	var pcs [32]uintptr
	n := runtime.Callers(1, pcs[:])
	for i := 0; i < n; i++ {
		pc := pcs[i]
		var buf [256]byte
		symLen, ok := symbolize.Symbolize(pc, buf[:])
		name := "???"
		if ok {
			name = string(buf[:symLen])
		}
		fmt.Printf("[%02d] 0x%016x %s\n", n-i-1, pc, name)
	}
}
