package kernelsym

import "testing"

type mockLoader struct {
	lines []string
	err   error
}

func (m *mockLoader) ReadLines() ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.lines, nil
}

func TestNewKallsymsResolver_ParsesAndSorts(t *testing.T) {
	lines := []string{
		"ffffffff81001000 T do_one",
		"ffffffff81000000 T start_kernel [kernel]",
		"ffffffff81002000 T do_two    extra_field",
		"badline",
		"zzzzzzzzzzzz T invalid_addr",
		"ffffffff81003000",
		"\tffffffff81003000\tT\tlast_func",
	}

	resolver, err := NewKallsymsResolver(&mockLoader{lines: lines})
	if err != nil {
		t.Fatalf("NewKallsymsResolver() error = %v", err)
	}

	tests := []struct {
		pc       uint64
		wantName string
		wantOK   bool
	}{
		{pc: 0xffffffff81000000, wantName: "start_kernel", wantOK: true},
		{pc: 0xffffffff81001010, wantName: "do_one", wantOK: true},
		{pc: 0xffffffff81002005, wantName: "do_two", wantOK: true},
		{pc: 0xffffffff81003000, wantName: "last_func", wantOK: true},
		{pc: 0xffffffff80fffeff, wantOK: false},
	}
	for _, tt := range tests {
		name, ok := resolver.Resolve(tt.pc)
		if ok != tt.wantOK {
			t.Errorf("Resolve(0x%x) ok = %v, want %v", tt.pc, ok, tt.wantOK)
			continue
		}
		if ok && name != tt.wantName {
			t.Errorf("Resolve(0x%x) name = %q, want %q", tt.pc, name, tt.wantName)
		}
	}
}

func TestNewKallsymsResolver_LoaderError(t *testing.T) {
	if _, err := NewKallsymsResolver(&mockLoader{err: errPermission}); err == nil {
		t.Error("NewKallsymsResolver() error = nil, want an error propagated from the loader")
	}
}

func TestKallsymsResolver_EmptyTable(t *testing.T) {
	resolver, err := NewKallsymsResolver(&mockLoader{lines: nil})
	if err != nil {
		t.Fatalf("NewKallsymsResolver() error = %v", err)
	}
	if _, ok := resolver.Resolve(0x1000); ok {
		t.Error("Resolve() on an empty table returned ok = true, want false")
	}
}

var errPermission = &permissionError{}

type permissionError struct{}

func (*permissionError) Error() string { return "permission denied" }
