package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
	"unsafe"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/markgc/gc"
	"github.com/joshuapare/markgc/internal/logger"
)

var (
	stressWorkers int
	stressObjects int
	stressSlots   int
	stressRoots   int
	stressRounds  int
	stressSeed    uint64
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVar(&stressWorkers, "workers", 0, "Independent collectors run in parallel (default from config)")
	cmd.Flags().IntVar(&stressObjects, "objects", 0, "Objects allocated per round")
	cmd.Flags().IntVar(&stressSlots, "slots", 0, "Pointer-sized slots per object")
	cmd.Flags().IntVar(&stressRoots, "roots", 0, "Shadow stack roots per round")
	cmd.Flags().IntVar(&stressRounds, "rounds", 0, "Allocate/mutate/collect rounds per worker")
	cmd.Flags().Uint64Var(&stressSeed, "seed", 0, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Collect random object graphs and check them against an oracle",
		Long: `The stress command builds random object graphs in off-heap blocks,
roots a random subset on a shadow stack and collects. After every cycle the
result is checked against a reachability computed independently in Go:

  - every block reachable from a root must still be tracked
  - every reclaimed block must have had its finalizer run exactly once

Unreachable blocks may survive (conservative scanning). After the last round
all roots are dropped and every block must be reclaimed.

Each worker owns a separate collector, so workers run in parallel.

Example:
  markgc stress
  markgc stress --workers 8 --rounds 50 --seed 42
  markgc stress --config stress.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context(), stressParams())
		},
	}
	return cmd
}

// stressParams merges flags over the config file.
func stressParams() StressConfig {
	p := cfg.Stress
	if stressWorkers > 0 {
		p.Workers = stressWorkers
	}
	if stressObjects > 0 {
		p.Objects = stressObjects
	}
	if stressSlots > 0 {
		p.Slots = stressSlots
	}
	if stressRoots > 0 {
		p.Roots = stressRoots
	}
	if stressRounds > 0 {
		p.Rounds = stressRounds
	}
	if stressSeed != 0 {
		p.Seed = stressSeed
	}
	return p
}

// WorkerReport summarizes one worker's run.
type WorkerReport struct {
	Worker         int           `json:"worker"`
	Rounds         int           `json:"rounds"`
	Allocations    int           `json:"allocations"`
	BytesAllocated uintptr       `json:"bytes_allocated"`
	Reclaimed      int           `json:"reclaimed"`
	FinalizersRun  int           `json:"finalizers_run"`
	Retained       int           `json:"retained"` // unreachable blocks kept alive, summed over rounds
	MaxLive        int           `json:"max_live"`
	Mapped         uintptr       `json:"mapped"`
	Violations     []string      `json:"violations,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// StressReport is the JSON output of the stress command.
type StressReport struct {
	Params  StressConfig   `json:"params"`
	Workers []WorkerReport `json:"workers"`
	Passed  bool           `json:"passed"`
}

func runStress(ctx context.Context, p StressConfig) error {
	if p.Workers <= 0 || p.Objects <= 0 || p.Slots <= 0 || p.Rounds <= 0 || p.Roots < 0 {
		return fmt.Errorf("stress: workers, objects, slots and rounds must be positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	printVerbose("Stress: %d workers, %d rounds of %d objects\n", p.Workers, p.Rounds, p.Objects)

	reports := make([]WorkerReport, p.Workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := range p.Workers {
		g.Go(func() error {
			r, err := stressWorker(ctx, i, p)
			reports[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := StressReport{Params: p, Workers: reports, Passed: true}
	for _, r := range reports {
		if len(r.Violations) > 0 {
			out.Passed = false
		}
	}

	if jsonOut {
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		printStressReport(out)
	}

	if !out.Passed {
		return fmt.Errorf("stress: oracle violations detected")
	}
	return nil
}

func printStressReport(r StressReport) {
	var total WorkerReport
	for _, w := range r.Workers {
		printInfo("worker %d: %d allocs (%s), %d reclaimed, %d retained, max live %d, %s mapped, %v\n",
			w.Worker, w.Allocations, formatSize(w.BytesAllocated), w.Reclaimed,
			w.Retained, w.MaxLive, formatSize(w.Mapped), w.Duration.Round(time.Microsecond))
		for _, v := range w.Violations {
			printInfo("  VIOLATION: %s\n", v)
		}
		total.Allocations += w.Allocations
		total.BytesAllocated += w.BytesAllocated
		total.Reclaimed += w.Reclaimed
		total.FinalizersRun += w.FinalizersRun
	}
	printInfo("\nTotal: %d allocations, %s, %d reclaimed, %d finalizers run\n",
		total.Allocations, formatSize(total.BytesAllocated), total.Reclaimed, total.FinalizersRun)
	if r.Passed {
		printInfo("Oracle: all cycles sound\n")
	}
}

// object is the Go-side model of one block: its slots mirror the words
// stored in the block.
type object struct {
	addr      unsafe.Pointer
	slots     []uintptr
	finalized int
}

func stressWorker(ctx context.Context, id int, p StressConfig) (rep WorkerReport, err error) {
	rep.Worker = id
	start := time.Now()
	defer func() { rep.Duration = time.Since(start) }()

	col, ss, err := cfg.newCollector()
	if err != nil {
		return rep, err
	}
	defer ss.Close()
	defer col.Close()

	rng := rand.New(rand.NewPCG(p.Seed, uint64(id)))
	size := uintptr(p.Slots) * gc.WordSize
	pool := make(map[uintptr]*object)
	var all, live []*object
	violate := func(format string, args ...any) {
		rep.Violations = append(rep.Violations, fmt.Sprintf(format, args...))
	}

	for round := range p.Rounds {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		// Allocate this round's objects.
		for range p.Objects {
			o := &object{slots: make([]uintptr, p.Slots)}
			ptr, err := col.Allocate(size, func(unsafe.Pointer, uintptr) { o.finalized++ })
			if err != nil {
				return rep, fmt.Errorf("worker %d round %d: %w", id, round, err)
			}
			o.addr = ptr
			pool[uintptr(ptr)] = o
			all = append(all, o)
			live = append(live, o)
		}

		// Mutate: random slots across the whole pool point at random objects
		// or are cleared.
		for range p.Objects * p.Slots / 2 {
			src := live[rng.IntN(len(live))]
			i := rng.IntN(p.Slots)
			var v uintptr
			if rng.IntN(4) != 0 {
				v = uintptr(live[rng.IntN(len(live))].addr)
			}
			src.slots[i] = v
			gc.StoreWord(src.addr, i, v)
		}

		// Replace the roots.
		if err := ss.PopN(ss.Depth()); err != nil {
			return rep, err
		}
		roots := make([]uintptr, 0, p.Roots)
		for range p.Roots {
			r := uintptr(live[rng.IntN(len(live))].addr)
			if _, err := ss.Push(r); err != nil {
				return rep, err
			}
			roots = append(roots, r)
		}

		reachable := oracle(pool, roots)
		if _, err := col.Collect(); err != nil {
			return rep, fmt.Errorf("worker %d round %d: %w", id, round, err)
		}

		kept := live[:0]
		for _, o := range live {
			addr := uintptr(o.addr)
			tracked := col.Tracked(o.addr)
			switch {
			case reachable[addr] && !tracked:
				violate("round %d: reachable block %#x reclaimed", round, addr)
			case tracked && o.finalized != 0:
				violate("round %d: live block %#x finalized", round, addr)
			case !tracked && o.finalized != 1:
				violate("round %d: block %#x finalized %d times", round, addr, o.finalized)
			}
			if !tracked {
				delete(pool, addr)
				continue
			}
			if !reachable[addr] {
				rep.Retained++
			}
			kept = append(kept, o)
		}
		live = kept
		rep.MaxLive = max(rep.MaxLive, col.Len())
		logger.Debug("stress round", "worker", id, "round", round,
			"live", col.Len(), "reachable", len(reachable))
	}

	// Drop every root: nothing may survive.
	if err := ss.PopN(ss.Depth()); err != nil {
		return rep, err
	}
	if _, err := col.Collect(); err != nil {
		return rep, err
	}
	if n := col.Len(); n != 0 {
		violate("final: %d blocks survived with no roots", n)
	}
	for _, o := range all {
		if o.finalized != 1 {
			violate("final: block %p finalized %d times", o.addr, o.finalized)
		}
	}

	st := col.Stats()
	rep.Rounds = p.Rounds
	rep.Allocations = st.Allocations
	rep.BytesAllocated = st.BytesAllocated
	rep.Reclaimed = st.Reclaimed
	rep.FinalizersRun = st.FinalizersRun
	rep.Mapped = st.Heap.Mapped
	logger.Info("stress worker done", "worker", id, "allocations", st.Allocations,
		"reclaimed", st.Reclaimed, "violations", len(rep.Violations))
	return rep, nil
}

// oracle returns the addresses reachable from roots by following the model's
// slots. Only exact block starts are stored, so no interior lookup is needed.
func oracle(pool map[uintptr]*object, roots []uintptr) map[uintptr]bool {
	seen := make(map[uintptr]bool)
	work := append([]uintptr(nil), roots...)
	for len(work) > 0 {
		a := work[len(work)-1]
		work = work[:len(work)-1]
		o, ok := pool[a]
		if !ok || seen[a] {
			continue
		}
		seen[a] = true
		for _, s := range o.slots {
			if s != 0 {
				work = append(work, s)
			}
		}
	}
	return seen
}
