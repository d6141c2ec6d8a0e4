package symbolize

import "testing"

func TestDemangle_AlwaysFails(t *testing.T) {
	buf := make([]byte, 64)
	if _, ok := Demangle("_ZN3foo3barEv", buf); ok {
		t.Error("Demangle() ok = true, want false (demangling is not implemented)")
	}
	if _, ok := Demangle("", buf); ok {
		t.Error("Demangle(\"\") ok = true, want false")
	}
}
