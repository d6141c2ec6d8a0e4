package profiler

import (
	"github.com/halfvector/symprof/internal/kernelsym"
	"github.com/halfvector/symprof/internal/symbolize"
)

// StandardSymbolizer resolves user-space frames with the async-signal-safe
// backend in internal/symbolize and kernel-space frames against
// /proc/kallsyms or a vmlinux image.
type StandardSymbolizer struct {
	kernel *kernelsym.Resolver
}

// NewStandardSymbolizer builds a Symbolizer. vmlinuxPath may be empty, in
// which case kernel frames resolve against /proc/kallsyms only.
func NewStandardSymbolizer(vmlinuxPath string) *StandardSymbolizer {
	return &StandardSymbolizer{kernel: kernelsym.NewResolver(vmlinuxPath)}
}

func (s *StandardSymbolizer) Symbolize(userStack, kernelStack []uint64) ([]Symbol, []Symbol, error) {
	return symbolizeUser(userStack), s.symbolizeKernel(kernelStack), nil
}

func symbolizeUser(pcs []uint64) []Symbol {
	if len(pcs) == 0 {
		return nil
	}
	out := make([]Symbol, len(pcs))
	for i, pc := range pcs {
		name, ok := symbolize.Name(uintptr(pc))
		if !ok {
			name = "<unknown>"
		}
		out[i] = Symbol{Name: name, Addr: pc}
	}
	return out
}

func (s *StandardSymbolizer) symbolizeKernel(pcs []uint64) []Symbol {
	if len(pcs) == 0 {
		return nil
	}
	out := make([]Symbol, len(pcs))
	for i, pc := range pcs {
		name, ok := s.kernel.Resolve(pc)
		if !ok {
			name = "<unknown_kernel>"
		}
		out[i] = Symbol{Name: name, Addr: pc}
	}
	return out
}

// Close releases the kernel resolver's resources, if any were opened.
func (s *StandardSymbolizer) Close() error {
	return s.kernel.Close()
}
