//go:build linux

package profiler

import (
	"reflect"
	"testing"
)

func sampleAdapterTarget() int { return 42 }

func TestSymbolizeUser_ResolvesKnownAddress(t *testing.T) {
	pc := uint64(reflect.ValueOf(sampleAdapterTarget).Pointer())
	got := symbolizeUser([]uint64{pc})
	if len(got) != 1 {
		t.Fatalf("symbolizeUser() returned %d symbols, want 1", len(got))
	}
	if got[0].Addr != pc {
		t.Errorf("symbolizeUser()[0].Addr = %#x, want %#x", got[0].Addr, pc)
	}
	if got[0].Name == "<unknown>" || got[0].Name == "" {
		t.Errorf("symbolizeUser()[0].Name = %q, want a resolved function name", got[0].Name)
	}
}

func TestSymbolizeUser_EmptyStackReturnsNil(t *testing.T) {
	if got := symbolizeUser(nil); got != nil {
		t.Errorf("symbolizeUser(nil) = %v, want nil", got)
	}
}

func TestStandardSymbolizer_KernelStackFallsBackToUnknown(t *testing.T) {
	s := NewStandardSymbolizer("")
	defer s.Close()

	kernel := s.symbolizeKernel([]uint64{0xdeadbeef})
	if len(kernel) != 1 {
		t.Fatalf("symbolizeKernel() returned %d symbols, want 1", len(kernel))
	}
	if kernel[0].Name != "<unknown_kernel>" {
		t.Errorf("symbolizeKernel()[0].Name = %q, want %q for an address with no backing table", kernel[0].Name, "<unknown_kernel>")
	}
}

func TestStandardSymbolizer_KernelStackEmptyReturnsNil(t *testing.T) {
	s := NewStandardSymbolizer("")
	defer s.Close()

	if got := s.symbolizeKernel(nil); got != nil {
		t.Errorf("symbolizeKernel(nil) = %v, want nil", got)
	}
}

func TestStandardSymbolizer_Symbolize_CombinesUserAndKernel(t *testing.T) {
	s := NewStandardSymbolizer("")
	defer s.Close()

	pc := uint64(reflect.ValueOf(sampleAdapterTarget).Pointer())
	user, kernel, err := s.Symbolize([]uint64{pc}, []uint64{0xdeadbeef})
	if err != nil {
		t.Fatalf("Symbolize() error = %v", err)
	}
	if len(user) != 1 || len(kernel) != 1 {
		t.Fatalf("Symbolize() returned (%d user, %d kernel), want (1, 1)", len(user), len(kernel))
	}
}
