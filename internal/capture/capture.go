// Package capture attaches a perf-event-triggered eBPF program to the
// current process and reads back the sampled stacks it records, using
// github.com/cilium/ebpf. The BPF object itself is not embedded in this
// binary: it is loaded from a path supplied at startup, built separately
// (bpf2go or clang) from a program exposing the map and program names this
// package expects.
package capture

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cilium/ebpf"
	"golang.org/x/sys/unix"
)

// Expected names inside the loaded BPF object. A program built against a
// different layout will fail fast in Load with a clear error instead
// of silently sampling nothing.
const (
	ProgramName   = "on_sample"
	CountsMapName = "counts"
	StacksMapName = "stacks"
)

const (
	missingStackID = 0xFFFFFFFF
	maxStackFrames = 127
)

// Source attaches ProgramName to a CPU-clock perf event on every CPU,
// scoped to one target PID, and exposes the counts/stacks maps it
// populates.
type Source struct {
	coll    *ebpf.Collection
	perfFDs []int
	mu      sync.Mutex
	started bool
}

// Load parses and verifies the BPF object at objectPath without attaching
// anything yet.
func Load(objectPath string) (*Source, error) {
	spec, err := ebpf.LoadCollectionSpec(objectPath)
	if err != nil {
		return nil, fmt.Errorf("capture: loading collection spec: %w", err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("capture: loading collection: %w", err)
	}
	if coll.Programs[ProgramName] == nil {
		coll.Close()
		return nil, fmt.Errorf("capture: object is missing program %q", ProgramName)
	}
	if coll.Maps[CountsMapName] == nil || coll.Maps[StacksMapName] == nil {
		coll.Close()
		return nil, fmt.Errorf("capture: object is missing map %q or %q", CountsMapName, StacksMapName)
	}
	return &Source{coll: coll}, nil
}

// Start opens one CPU-clock perf event per CPU, scoped to targetPID, and
// attaches ProgramName to each. samplingPeriodNs controls the sampling
// interval requested from the kernel, not this process's own poll rate.
func (s *Source) Start(targetPID int, samplingPeriodNs uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("capture: already started")
	}

	prog := s.coll.Programs[ProgramName]
	progFD := prog.FD()
	if progFD < 0 {
		return errors.New("capture: invalid program fd")
	}

	numCPUs := runtime.NumCPU()
	fds := make([]int, 0, numCPUs)
	cleanup := func() {
		for _, fd := range fds {
			unix.Close(fd)
		}
	}

	for cpu := 0; cpu < numCPUs; cpu++ {
		attr := unix.PerfEventAttr{
			Type:        unix.PERF_TYPE_SOFTWARE,
			Config:      unix.PERF_COUNT_SW_CPU_CLOCK,
			Sample:      samplingPeriodNs,
			Sample_type: unix.PERF_SAMPLE_IP,
		}
		fd, err := unix.PerfEventOpen(&attr, targetPID, cpu, -1, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			cleanup()
			return fmt.Errorf("capture: perf_event_open pid=%d cpu=%d: %w", targetPID, cpu, err)
		}
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_SET_BPF, progFD); err != nil {
			unix.Close(fd)
			cleanup()
			return fmt.Errorf("capture: attach bpf program: %w", err)
		}
		if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
			unix.Close(fd)
			cleanup()
			return fmt.Errorf("capture: enable perf event: %w", err)
		}
		fds = append(fds, fd)
	}

	s.perfFDs = fds
	s.started = true
	return nil
}

// Stop disables and closes every perf event fd and releases the BPF
// collection. It is safe to call once, after Start.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stopErr error
	for _, fd := range s.perfFDs {
		unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_DISABLE, 0)
		if err := unix.Close(fd); err != nil && stopErr == nil {
			stopErr = fmt.Errorf("capture: close perf fd: %w", err)
		}
	}
	s.perfFDs = nil
	s.started = false

	if err := s.coll.Maps[CountsMapName].Close(); err != nil && stopErr == nil {
		stopErr = err
	}
	if err := s.coll.Maps[StacksMapName].Close(); err != nil && stopErr == nil {
		stopErr = err
	}
	s.coll.Programs[ProgramName].Close()
	return stopErr
}

// SnapshotCounts drains and merges the per-CPU stack-key -> sample-count map.
func (s *Source) SnapshotCounts() (map[uint64]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, errors.New("capture: not started")
	}

	countsMap := s.coll.Maps[CountsMapName]
	results := make(map[uint64]uint64)
	numCPUs := runtime.NumCPU()

	var key uint64
	perCPU := make([]uint64, numCPUs)
	iter := countsMap.Iterate()
	for iter.Next(&key, &perCPU) {
		var sum uint64
		for _, v := range perCPU {
			sum += v
		}
		if sum > 0 {
			results[key] = sum
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("capture: iterate counts map: %w", err)
	}
	return results, nil
}

// LookupStacks resolves the user and kernel raw-address stacks recorded
// under the given stack IDs, trimming the trailing zero padding the BPF
// side writes into unused frame slots.
func (s *Source) LookupStacks(userID, kernID uint32) ([]uint64, []uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, nil, errors.New("capture: not started")
	}

	stacksMap := s.coll.Maps[StacksMapName]
	read := func(id uint32) []uint64 {
		if id == missingStackID {
			return nil
		}
		var raw [maxStackFrames]uint64
		if err := stacksMap.Lookup(&id, &raw); err != nil {
			return nil
		}
		n := len(raw)
		for i, a := range raw {
			if a == 0 {
				n = i
				break
			}
		}
		frames := make([]uint64, n)
		copy(frames, raw[:n])
		return frames
	}
	return read(userID), read(kernID), nil
}

// PackKey and UnpackKey convert between the combined 64-bit key this
// package's BPF side is expected to use for the counts map (high 32 bits:
// user stack ID, low 32 bits: kernel stack ID) and its two halves.
func PackKey(userID, kernID uint32) uint64 {
	return uint64(userID)<<32 | uint64(kernID)
}

func UnpackKey(key uint64) (userID, kernID uint32) {
	return uint32(key >> 32), uint32(key & 0xffffffff)
}
