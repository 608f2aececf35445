package main

import (
	"fmt"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/joshuapare/markgc/gc"
	"github.com/joshuapare/markgc/gc/stack"
)

func init() {
	rootCmd.AddCommand(newDemoCmd())
}

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Replay two small collection scenarios",
		Long: `The demo command replays two small scenarios on a fresh collector each:

  A  a rooted 64-byte block survives a collection, then is reclaimed
     (finalizer runs once) after its root is cleared
  B  block b is reachable only through a word stored inside block a;
     both survive while a is rooted and both are reclaimed after

Example:
  markgc demo
  markgc demo --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
	return cmd
}

// DemoStep is one collection in a scenario and whether it matched expectations.
type DemoStep struct {
	Action    string `json:"action"`
	Live      int    `json:"live"`
	Reclaimed int    `json:"reclaimed"`
	Finalized int    `json:"finalized"`
	OK        bool   `json:"ok"`
}

// DemoScenario is the outcome of one scenario.
type DemoScenario struct {
	Name   string     `json:"name"`
	Title  string     `json:"title"`
	Steps  []DemoStep `json:"steps"`
	Passed bool       `json:"passed"`
}

func runDemo() error {
	scenarios := []struct {
		name, title string
		run         func(*gc.Collector, *stack.ShadowStack) ([]DemoStep, error)
	}{
		{"A", "rooted block survives, then is reclaimed", scenarioA},
		{"B", "block reachable through another block", scenarioB},
	}

	var results []DemoScenario
	failed := 0
	for _, s := range scenarios {
		printVerbose("Running scenario %s\n", s.name)
		col, ss, err := cfg.newCollector()
		if err != nil {
			return err
		}
		steps, err := s.run(col, ss)
		_ = col.Close()
		_ = ss.Close()
		if err != nil {
			return fmt.Errorf("scenario %s: %w", s.name, err)
		}

		res := DemoScenario{Name: s.name, Title: s.title, Steps: steps, Passed: true}
		for _, st := range steps {
			res.Passed = res.Passed && st.OK
		}
		if !res.Passed {
			failed++
		}
		results = append(results, res)
	}

	if jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printInfo("Scenario %s: %s\n", r.Name, r.Title)
			for _, st := range r.Steps {
				mark := "ok"
				if !st.OK {
					mark = "FAIL"
				}
				printInfo("  %-28s live=%d reclaimed=%d finalized=%d [%s]\n",
					st.Action, st.Live, st.Reclaimed, st.Finalized, mark)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}

func step(action string, cs gc.CycleStats, finalized int, ok bool) DemoStep {
	return DemoStep{
		Action:    action,
		Live:      cs.After,
		Reclaimed: cs.Sweep.Reclaimed,
		Finalized: finalized,
		OK:        ok,
	}
}

func scenarioA(col *gc.Collector, ss *stack.ShadowStack) ([]DemoStep, error) {
	calls := 0
	p, err := col.Allocate(64, func(unsafe.Pointer, uintptr) { calls++ })
	if err != nil {
		return nil, err
	}
	slot, err := ss.Push(uintptr(p))
	if err != nil {
		return nil, err
	}

	cs, err := col.Collect()
	if err != nil {
		return nil, err
	}
	steps := []DemoStep{step("collect with p rooted", cs, calls, col.Tracked(p) && calls == 0)}

	if err := ss.Set(slot, 0); err != nil {
		return nil, err
	}
	cs, err = col.Collect()
	if err != nil {
		return nil, err
	}
	steps = append(steps, step("collect after clearing root", cs, calls, !col.Tracked(p) && calls == 1))
	return steps, nil
}

func scenarioB(col *gc.Collector, ss *stack.ShadowStack) ([]DemoStep, error) {
	var fa, fb int
	a, err := col.Allocate(16, func(unsafe.Pointer, uintptr) { fa++ })
	if err != nil {
		return nil, err
	}
	b, err := col.Allocate(16, func(unsafe.Pointer, uintptr) { fb++ })
	if err != nil {
		return nil, err
	}
	gc.StoreWord(a, 0, uintptr(b))
	slot, err := ss.Push(uintptr(a))
	if err != nil {
		return nil, err
	}

	cs, err := col.Collect()
	if err != nil {
		return nil, err
	}
	steps := []DemoStep{step("collect with a rooted", cs, fa+fb,
		col.Tracked(a) && col.Tracked(b) && fa+fb == 0)}

	if err := ss.Set(slot, 0); err != nil {
		return nil, err
	}
	cs, err = col.Collect()
	if err != nil {
		return nil, err
	}
	steps = append(steps, step("collect after clearing root", cs, fa+fb,
		!col.Tracked(a) && !col.Tracked(b) && fa == 1 && fb == 1))
	return steps, nil
}
