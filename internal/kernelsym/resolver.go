package kernelsym

import "log/slog"

// Resolver picks a vmlinux-backed resolver when a path is configured and
// loads successfully, falling back to /proc/kallsyms otherwise. Both
// backends are initialized lazily, on the first Resolve call, so a daemon
// that never captures a kernel-space frame never pays for loading either.
type Resolver struct {
	vmlinuxPath string
	vmlinux     *VmlinuxResolver
	kallsyms    *KallsymsResolver
	tried       bool
}

// NewResolver returns a Resolver that prefers vmlinuxPath when non-empty,
// and always keeps /proc/kallsyms as the fallback.
func NewResolver(vmlinuxPath string) *Resolver {
	return &Resolver{vmlinuxPath: vmlinuxPath}
}

func (r *Resolver) ensureInit() {
	if r.tried {
		return
	}
	r.tried = true
	if r.vmlinuxPath != "" {
		if vr, err := NewVmlinuxResolver(r.vmlinuxPath); err == nil {
			r.vmlinux = vr
		} else {
			slog.Warn("vmlinux image unavailable, falling back to kallsyms", "path", r.vmlinuxPath, "error", err)
		}
	}
	if r.vmlinux == nil {
		kr, err := NewKallsymsResolver(NewKallsymsLoader())
		if err != nil {
			slog.Warn("kallsyms unavailable, kernel frames will be unresolved", "error", err)
			return
		}
		r.kallsyms = kr
	}
}

// Resolve returns the name of the kernel symbol covering pc.
func (r *Resolver) Resolve(pc uint64) (string, bool) {
	r.ensureInit()
	if r.vmlinux != nil {
		return r.vmlinux.Resolve(pc)
	}
	if r.kallsyms != nil {
		return r.kallsyms.Resolve(pc)
	}
	return "", false
}

// Close releases the vmlinux file handle, if one was opened.
func (r *Resolver) Close() error {
	if r.vmlinux != nil {
		return r.vmlinux.Close()
	}
	return nil
}
