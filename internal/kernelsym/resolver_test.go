package kernelsym

import "testing"

func TestResolver_FallsBackToKallsymsWhenNoVmlinuxPath(t *testing.T) {
	r := NewResolver("")
	r.ensureInit()
	if r.vmlinux != nil {
		t.Error("ensureInit() populated vmlinux with an empty path, want nil")
	}
	// kallsyms may or may not be readable in the test sandbox; either
	// outcome is a valid, already-tried state.
	if !r.tried {
		t.Error("ensureInit() left tried = false")
	}
}

func TestResolver_FallsBackToKallsymsWhenVmlinuxPathInvalid(t *testing.T) {
	r := NewResolver("/nonexistent/vmlinux")
	name, ok := r.Resolve(0x1000)
	if r.vmlinux != nil {
		t.Error("Resolve() populated vmlinux from an invalid path, want nil")
	}
	// With no readable /proc/kallsyms in the sandbox this degrades to
	// (\"\", false), which is the documented behavior, not a test failure.
	_ = name
	_ = ok
}

func TestResolver_EnsureInitIsIdempotent(t *testing.T) {
	r := NewResolver("")
	r.ensureInit()
	firstKallsyms := r.kallsyms
	r.ensureInit()
	if r.kallsyms != firstKallsyms {
		t.Error("ensureInit() re-initialized kallsyms on a second call")
	}
}

func TestResolver_CloseWithoutVmlinuxIsNoop(t *testing.T) {
	r := NewResolver("")
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil when no vmlinux was opened", err)
	}
}

func TestResolver_PrefersVmlinuxWhenLoadable(t *testing.T) {
	data := buildVmlinuxELF(t, []vmSym{{name: "schedule", value: 0x1000, size: 0x10}})
	path := writeVmlinuxTempFile(t, data)

	r := NewResolver(path)
	name, ok := r.Resolve(0x1004)
	if !ok || name != "schedule" {
		t.Errorf("Resolve(0x1004) = (%q, %v), want (%q, true)", name, ok, "schedule")
	}
	if r.vmlinux == nil {
		t.Error("Resolve() did not select the vmlinux backend despite a loadable image")
	}

	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
