// Package profiler orchestrates a self-profiling loop: an EbpfBackend
// captures raw-address stacks on a fixed interval, a Symbolizer turns those
// addresses into names, and the result is published on a channel of
// Samples for an exporter to consume.
package profiler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/halfvector/symprof/internal/capture"
)

// EbpfBackend is the capture-side dependency a Profiler drives. It is
// satisfied by *capture.Source in production and by a hand-written fake in
// tests.
type EbpfBackend interface {
	Start(targetPID int, samplingPeriodNs uint64) error
	Stop() error
	SnapshotCounts() (map[uint64]uint64, error)
	LookupStacks(userID uint32, kernID uint32) ([]uint64, []uint64, error)
}

// Symbolizer turns raw addresses captured for one sample into named frames.
type Symbolizer interface {
	Symbolize(userStack []uint64, kernelStack []uint64) ([]Symbol, []Symbol, error)
}

// Symbol is one resolved stack frame.
type Symbol struct {
	Name string
	Addr uint64
}

// Sample is one collection interval's worth of resolved stacks for one
// distinct (user stack, kernel stack) pair, with the number of times that
// pair was observed.
type Sample struct {
	Timestamp   time.Time
	UserStack   []Symbol
	KernelStack []Symbol
	Count       uint64
}

// Profiler drives an EbpfBackend on a fixed collection interval and
// publishes resolved samples until Stop is called.
type Profiler struct {
	pid             int
	sampleHz        int
	collectInterval time.Duration
	backend         EbpfBackend
	symbolizer      Symbolizer

	samplesCh chan []Sample

	started bool
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewProfiler builds a Profiler targeting pid, sampling at sampleHz and
// draining the backend's maps every collectInterval.
func NewProfiler(pid int, sampleHz int, collectInterval time.Duration, backend EbpfBackend, symbolizer Symbolizer) (*Profiler, error) {
	if collectInterval <= 1*time.Millisecond {
		return nil, errors.New("invalid collectInterval; must be > 1ms")
	}
	if sampleHz <= 0 {
		return nil, errors.New("invalid sampleHz; must be > 0")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Profiler{
		pid:             pid,
		sampleHz:        sampleHz,
		collectInterval: collectInterval,
		backend:         backend,
		symbolizer:      symbolizer,
		ctx:             ctx,
		cancel:          cancel,
		samplesCh:       make(chan []Sample, 1),
	}, nil
}

// Samples returns the channel of per-interval sample batches. It is closed
// once Stop has drained the collector goroutine.
func (p *Profiler) Samples() <-chan []Sample { return p.samplesCh }

func (p *Profiler) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return errors.New("profiler already started")
	}
	p.started = true
	p.mu.Unlock()

	periodNs := uint64(1_000_000_000 / p.sampleHz)
	if err := p.backend.Start(p.pid, periodNs); err != nil {
		p.mu.Lock()
		p.started = false
		p.mu.Unlock()
		return err
	}

	p.wg.Add(1)
	go p.collector()

	return nil
}

func (p *Profiler) Stop() error {
	var stopErr error
	p.cancel()

	if err := p.backend.Stop(); err != nil {
		stopErr = err
	}

	p.wg.Wait()
	close(p.samplesCh)

	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
	return stopErr
}

func (p *Profiler) collector() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.collectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t := <-ticker.C:
			counts, err := p.backend.SnapshotCounts()
			if err != nil {
				slog.Warn("failed to collect counts from ebpf map", "error", err)
				continue
			}

			var samples []Sample
			for key, cnt := range counts {
				userID, kernID := capture.UnpackKey(key)

				userPCs, kernPCs, err := p.backend.LookupStacks(userID, kernID)
				if err != nil {
					slog.Warn("failed to resolve stack keys", "error", err)
					continue
				}

				userStack, kernStack, err := p.symbolizer.Symbolize(userPCs, kernPCs)
				if err != nil {
					slog.Warn("failed to symbolize stacks", "error", err)
					continue
				}
				samples = append(samples, Sample{
					Timestamp:   t,
					UserStack:   userStack,
					KernelStack: kernStack,
					Count:       cnt,
				})
			}

			select {
			case p.samplesCh <- samples:
			default:
				slog.Warn("consumer wasn't ready, sample batch dropped")
			}
		}
	}
}
