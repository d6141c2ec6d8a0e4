// Command symprofd self-profiles the process it runs in: it attaches an
// eBPF program to a per-CPU perf event, symbolizes the stacks it captures,
// and writes the result as a pprof profile, an OTLP profile, or a
// flamegraph-ready folded-stacks file on exit.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/halfvector/symprof/internal/capture"
	"github.com/halfvector/symprof/internal/exporter"
	"github.com/halfvector/symprof/internal/profiler"
)

func main() {
	var (
		bpfObject  = flag.String("bpf-object", "bpf/profile.o", "path to the compiled eBPF object")
		sampleHz   = flag.Int("sample-hz", 99, "sampling frequency, in Hz")
		interval   = flag.Duration("collect-interval", time.Second, "how often to drain the ebpf maps")
		vmlinux    = flag.String("vmlinux", "", "optional path to a vmlinux image with debug info, for kernel symbolization")
		outFormat  = flag.String("format", "pprof", "output format: pprof, otlp, or folded")
		outputPath = flag.String("output", "cpu-profile.pb.gz", "output file path")
	)
	flag.Parse()

	source, err := capture.Load(*bpfObject)
	if err != nil {
		slog.Error("failed to load ebpf object", "error", err)
		os.Exit(1)
	}

	pid := os.Getpid()
	symbolizer := profiler.NewStandardSymbolizer(*vmlinux)
	defer symbolizer.Close()

	p, err := profiler.NewProfiler(pid, *sampleHz, *interval, source, symbolizer)
	if err != nil {
		slog.Error("failed to initialize profiler", "error", err)
		os.Exit(1)
	}

	if err := p.Start(); err != nil {
		slog.Error("failed to start profiler", "error", err)
		os.Exit(1)
	}
	slog.Info("symprofd started", "pid", pid, "sample_hz", *sampleHz)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var collected []profiler.Sample
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for batch := range p.Samples() {
			collected = append(collected, batch...)
		}
	}()

	<-stop
	if err := p.Stop(); err != nil {
		slog.Warn("error stopping profiler", "error", err)
	}
	wg.Wait()

	if err := writeOutput(collected, *outFormat, *outputPath); err != nil {
		slog.Error("failed to write output", "format", *outFormat, "error", err)
		os.Exit(1)
	}
	slog.Info("wrote profile", "format", *outFormat, "path", *outputPath, "samples", len(collected))
}

func writeOutput(samples []profiler.Sample, format, path string) error {
	switch format {
	case "pprof":
		prof, err := exporter.BuildPprofProfile(samples, "cpu", "nanoseconds")
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return exporter.WriteProfileGzip(prof, f)
	case "otlp":
		data := exporter.BuildOltpProfile(samples, func() uint64 { return uint64(time.Now().UnixNano()) })
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return exporter.WriteOltpProfile(data, f)
	case "folded":
		agg := exporter.BuildFoldedStacks(samples, exporter.Both)
		return exporter.WriteFoldedStacksToFile(agg, path)
	default:
		slog.Warn("unknown output format, defaulting to pprof", "format", format)
		return writeOutput(samples, "pprof", path)
	}
}
