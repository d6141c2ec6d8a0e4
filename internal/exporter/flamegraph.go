// Folded-stack output for flamegraph tooling (e.g. Brendan Gregg's
// flamegraph.pl): one line per distinct stack, "frame;frame;...;frame
// count", root first. No third-party schema applies here, so the format is
// just text.
package exporter

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/halfvector/symprof/internal/profiler"
)

// StackSelection picks which half of a Sample's resolved stacks
// BuildFoldedStacks folds.
type StackSelection int

const (
	User StackSelection = iota + 1
	Kernel
	Both
)

// BuildFoldedStacks sums sample counts into folded-stack keys, one per
// distinct (selected) stack shape across samples.
func BuildFoldedStacks(samples []profiler.Sample, which StackSelection) map[string]uint64 {
	agg := make(map[string]uint64)
	for _, s := range samples {
		if which == User || which == Both {
			foldInto(agg, s.UserStack, s.Count)
		}
		if which == Kernel || which == Both {
			foldInto(agg, s.KernelStack, s.Count)
		}
	}
	return agg
}

// foldInto adds one sample's stack to agg under its folded key.
// internal/profiler builds stacks leaf-first; flamegraph.pl wants
// root-first, so the frames are walked back to front.
func foldInto(agg map[string]uint64, stack []profiler.Symbol, count uint64) {
	if len(stack) == 0 {
		return
	}
	var b strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		if i != len(stack)-1 {
			b.WriteByte(';')
		}
		b.WriteString(frameLabel(stack[i].Name))
	}
	agg[b.String()] += count
}

// frameLabel sanitizes a symbol name for use as one folded-stack frame: the
// format reserves ';' as the frame delimiter and a bare newline would split
// the output line, so both are replaced before the name is trimmed.
func frameLabel(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ';':
			return '_'
		case '\n', '\r':
			return ' '
		default:
			return r
		}
	}, name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "<unknown>"
	}
	return name
}

// WriteFoldedStacksToFile writes agg as one "stack count" line per entry,
// highest count first, ties broken by stack for a stable diff between runs.
func WriteFoldedStacksToFile(agg map[string]uint64, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	stacks := make([]string, 0, len(agg))
	for k := range agg {
		stacks = append(stacks, k)
	}
	sort.Slice(stacks, func(i, j int) bool {
		if agg[stacks[i]] != agg[stacks[j]] {
			return agg[stacks[i]] > agg[stacks[j]]
		}
		return stacks[i] < stacks[j]
	})

	w := bufio.NewWriter(f)
	for _, stack := range stacks {
		if _, err := w.WriteString(stack); err != nil {
			return err
		}
		if err := w.WriteByte(' '); err != nil {
			return err
		}
		if _, err := w.WriteString(strconv.FormatUint(agg[stack], 10)); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}
