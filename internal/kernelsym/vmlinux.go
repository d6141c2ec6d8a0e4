package kernelsym

import (
	"debug/dwarf"
	"debug/elf"
	"os"
)

// VmlinuxResolver resolves kernel addresses against an uncompressed vmlinux
// image, preferring DWARF subprogram ranges (accurate across inlining
// boundaries the ELF symbol table can't express) and falling back to the
// plain ELF symbol table when the image was built without debug info.
type VmlinuxResolver struct {
	ef    *elf.File
	f     *os.File
	slide uint64
}

// NewVmlinuxResolver opens path and keeps it open for the resolver's
// lifetime; callers should call Close when finished.
func NewVmlinuxResolver(path string) (*VmlinuxResolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &VmlinuxResolver{ef: ef, f: f}, nil
}

func (r *VmlinuxResolver) Close() error {
	return r.f.Close()
}

func (r *VmlinuxResolver) Resolve(pc uint64) (string, bool) {
	if name, ok := r.resolveFromDWARF(pc); ok {
		return name, true
	}
	return r.resolveFromELF(pc)
}

func (r *VmlinuxResolver) resolveFromDWARF(pc uint64) (string, bool) {
	d, err := r.ef.DWARF()
	if err != nil {
		return "", false
	}
	target := pc - r.slide
	rdr := d.Reader()
	for {
		ent, err := rdr.Next()
		if err != nil || ent == nil {
			return "", false
		}
		if ent.Tag != dwarf.TagSubprogram {
			continue
		}
		ranges, err := d.Ranges(ent)
		if err != nil || len(ranges) == 0 {
			continue
		}
		for _, rg := range ranges {
			if target >= rg[0] && target < rg[1] {
				if name, ok := ent.Val(dwarf.AttrName).(string); ok {
					return name, true
				}
			}
		}
	}
}

func (r *VmlinuxResolver) resolveFromELF(pc uint64) (string, bool) {
	syms, err := r.ef.Symbols()
	if err != nil {
		return "", false
	}
	target := pc - r.slide
	var best *elf.Symbol
	for i := range syms {
		s := &syms[i]
		if s.Value == 0 || s.Value > target {
			continue
		}
		if s.Size != 0 && target >= s.Value+s.Size {
			continue
		}
		if best == nil || s.Value > best.Value {
			best = s
		}
	}
	if best == nil {
		return "", false
	}
	return best.Name, true
}
