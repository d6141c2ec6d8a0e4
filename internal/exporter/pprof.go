package exporter

import (
	"compress/gzip"
	"io"
	"sort"

	"github.com/halfvector/symprof/internal/profiler"
	"github.com/google/pprof/profile"
)

// BuildPprofProfile converts resolved samples into a pprof Profile, one
// pprof sample per (interval, stack-kind) pair. User and kernel stacks are
// kept as separate samples, distinguished by a "profile_type" label, so a
// consumer can filter either view without re-symbolizing.
func BuildPprofProfile(samples []profiler.Sample, sampleTypeName, sampleTypeUnit string) (*profile.Profile, error) {
	if len(samples) == 0 {
		return &profile.Profile{}, nil
	}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: sampleTypeName, Unit: sampleTypeUnit}},
		PeriodType: &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
	}

	funcs := map[string]*profile.Function{}
	locMap := map[uint64]*profile.Location{}
	nextFuncID := uint64(1)
	nextLocID := uint64(1)

	addFunction := func(name string) *profile.Function {
		if f, ok := funcs[name]; ok {
			return f
		}
		fn := &profile.Function{ID: nextFuncID, Name: name}
		nextFuncID++
		funcs[name] = fn
		p.Function = append(p.Function, fn)
		return fn
	}

	addLocationFor := func(sym profiler.Symbol) *profile.Location {
		if loc, ok := locMap[sym.Addr]; ok {
			return loc
		}
		fn := addFunction(sym.Name)
		loc := &profile.Location{
			ID:      nextLocID,
			Address: sym.Addr,
			Line:    []profile.Line{{Function: fn, Line: 0}},
		}
		nextLocID++
		locMap[sym.Addr] = loc
		p.Location = append(p.Location, loc)
		return loc
	}

	emitStack := func(stack []profiler.Symbol, typ string, count uint64) {
		if len(stack) == 0 {
			return
		}
		// pprof assumes leaf-to-root ordering; stack[0] is already the
		// innermost frame, matching how internal/profiler assembles it.
		locs := make([]*profile.Location, 0, len(stack))
		for _, sym := range stack {
			locs = append(locs, addLocationFor(sym))
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Value:    []int64{int64(count)},
			Location: locs,
			Label:    map[string][]string{"profile_type": {typ}},
			NumLabel: map[string][]int64{},
		})
	}

	for _, s := range samples {
		emitStack(s.UserStack, "user", s.Count)
		emitStack(s.KernelStack, "kernel", s.Count)
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].Timestamp.Before(samples[j].Timestamp) })
	start := samples[0].Timestamp
	end := samples[len(samples)-1].Timestamp
	p.TimeNanos = start.UnixNano()
	p.DurationNanos = end.Sub(start).Nanoseconds()

	sort.Slice(p.Function, func(i, j int) bool { return p.Function[i].ID < p.Function[j].ID })
	sort.Slice(p.Location, func(i, j int) bool { return p.Location[i].ID < p.Location[j].ID })

	return p, nil
}

// WriteProfileGzip writes p in pprof's standard gzip-compressed wire format.
func WriteProfileGzip(p *profile.Profile, w io.Writer) error {
	gw := gzip.NewWriter(w)
	defer gw.Close()
	return p.Write(gw)
}
