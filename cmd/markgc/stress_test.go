package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallStress() StressConfig {
	return StressConfig{Workers: 3, Objects: 60, Slots: 3, Roots: 4, Rounds: 5, Seed: 7}
}

func TestStressCommand(t *testing.T) {
	resetGlobals(t)

	output, err := captureOutput(t, func() error {
		return runStress(context.Background(), smallStress())
	})
	require.NoError(t, err)
	assertContains(t, output, []string{"worker 0:", "worker 2:", "Total:", "Oracle: all cycles sound"})
}

func TestStressCommand_JSON(t *testing.T) {
	resetGlobals(t)
	jsonOut = true

	p := smallStress()
	output, err := captureOutput(t, func() error {
		return runStress(context.Background(), p)
	})
	require.NoError(t, err)
	assertJSON(t, output)

	var rep StressReport
	require.NoError(t, json.Unmarshal([]byte(output), &rep))
	assert.True(t, rep.Passed)
	require.Len(t, rep.Workers, p.Workers)
	for _, w := range rep.Workers {
		assert.Empty(t, w.Violations)
		assert.Equal(t, p.Objects*p.Rounds, w.Allocations)
		assert.Equal(t, w.Allocations, w.Reclaimed, "every block is reclaimed once roots are dropped")
		assert.Equal(t, w.Allocations, w.FinalizersRun)
	}
}

func TestStressCommand_NoRoots(t *testing.T) {
	resetGlobals(t)
	quiet = true

	p := smallStress()
	p.Roots = 0
	p.Workers = 1
	_, err := captureOutput(t, func() error {
		return runStress(context.Background(), p)
	})
	require.NoError(t, err)
}

func TestStressCommand_InvalidParams(t *testing.T) {
	resetGlobals(t)

	p := smallStress()
	p.Workers = 0
	err := runStress(context.Background(), p)
	require.Error(t, err)
}

func TestStressCommand_Cancelled(t *testing.T) {
	resetGlobals(t)
	quiet = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runStress(ctx, smallStress())
	require.ErrorIs(t, err, context.Canceled)
}

func TestStressParams_FlagsOverrideConfig(t *testing.T) {
	resetGlobals(t)
	cfg.Stress.Workers = 2
	cfg.Stress.Rounds = 3
	stressRounds = 9
	stressSeed = 99

	p := stressParams()
	assert.Equal(t, 2, p.Workers)
	assert.Equal(t, 9, p.Rounds)
	assert.Equal(t, uint64(99), p.Seed)
}
