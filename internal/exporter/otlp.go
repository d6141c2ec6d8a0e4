package exporter

import (
	"io"

	"github.com/halfvector/symprof/internal/profiler"
	v1 "go.opentelemetry.io/proto/otlp/common/v1"
	profilespb "go.opentelemetry.io/proto/otlp/profiles/v1development"
	resourceV1 "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/protobuf/proto"
)

// NowFunc produces the current time as unix nanoseconds; injected so tests
// don't depend on wall-clock time.
type NowFunc func() uint64

// BuildOltpProfile converts resolved samples into an OTLP ProfilesData
// message, combining each sample's user and kernel frames (user first,
// leaf-to-root) into a single stack.
func BuildOltpProfile(samples []profiler.Sample, now NowFunc) *profilespb.ProfilesData {
	nowNsec := now()
	stringTable := []string{""}
	mappingTable := []*profilespb.Mapping{{}}
	locationTable := []*profilespb.Location{{}}
	functionTable := []*profilespb.Function{{}}
	stackTable := []*profilespb.Stack{{}}

	const defaultMappingIdx = 0
	profileSamples := make([]*profilespb.Sample, 0, len(samples))

	sampleType := &profilespb.ValueType{
		TypeStrindex: strIndex(&stringTable, "samples"),
		UnitStrindex: strIndex(&stringTable, "count"),
	}

	buildStack := func(symbols []profiler.Symbol) int32 {
		locIndices := make([]int32, 0, len(symbols))
		for _, sym := range symbols {
			funcNameIdx := strIndex(&stringTable, sym.Name)
			functionTable = append(functionTable, &profilespb.Function{
				NameStrindex:       funcNameIdx,
				SystemNameStrindex: funcNameIdx,
			})
			fnIdx := int32(len(functionTable) - 1)

			locationTable = append(locationTable, &profilespb.Location{
				Address:      sym.Addr,
				MappingIndex: defaultMappingIdx,
				Lines: []*profilespb.Line{
					{FunctionIndex: fnIdx, Line: 0},
				},
			})
			locIndices = append(locIndices, int32(len(locationTable)-1))
		}

		stackTable = append(stackTable, &profilespb.Stack{LocationIndices: locIndices})
		return int32(len(stackTable) - 1)
	}

	var minTS, maxTS uint64
	for _, s := range samples {
		if len(s.UserStack) == 0 && len(s.KernelStack) == 0 {
			continue
		}

		symStack := make([]profiler.Symbol, 0, len(s.UserStack)+len(s.KernelStack))
		symStack = append(symStack, s.UserStack...)
		symStack = append(symStack, s.KernelStack...)

		ts := uint64(s.Timestamp.UnixNano())
		if minTS == 0 || ts < minTS {
			minTS = ts
		}
		if ts > maxTS {
			maxTS = ts
		}

		profileSamples = append(profileSamples, &profilespb.Sample{
			StackIndex:         buildStack(symStack),
			Values:             []int64{int64(s.Count)},
			AttributeIndices:   []int32{},
			LinkIndex:          0,
			TimestampsUnixNano: []uint64{ts},
		})
	}

	var duration uint64
	if maxTS > minTS {
		duration = maxTS - minTS
	}

	profile := &profilespb.Profile{
		TimeUnixNano: nowNsec,
		DurationNano: duration,
		SampleType:   sampleType,
		Samples:      profileSamples,
	}

	resourceProfiles := &profilespb.ResourceProfiles{
		Resource: &resourceV1.Resource{},
		ScopeProfiles: []*profilespb.ScopeProfiles{
			{
				Scope: &v1.InstrumentationScope{
					Name:    "symprof",
					Version: "v1",
				},
				Profiles: []*profilespb.Profile{profile},
			},
		},
	}

	return &profilespb.ProfilesData{
		ResourceProfiles: []*profilespb.ResourceProfiles{resourceProfiles},
		Dictionary: &profilespb.ProfilesDictionary{
			MappingTable:  mappingTable,
			LocationTable: locationTable,
			FunctionTable: functionTable,
			StackTable:    stackTable,
			StringTable:   stringTable,
		},
	}
}

// WriteOltpProfile marshals data as a length-prefixed-free protobuf message
// and writes it to w, the wire format OTLP file exporters use for a single
// ProfilesData payload.
func WriteOltpProfile(data *profilespb.ProfilesData, w io.Writer) error {
	b, err := proto.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func strIndex(table *[]string, s string) int32 {
	for i, v := range *table {
		if v == s {
			return int32(i)
		}
	}
	*table = append(*table, s)
	return int32(len(*table) - 1)
}
