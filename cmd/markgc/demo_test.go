package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoCommand(t *testing.T) {
	tests := []struct {
		name        string
		json        bool
		quiet       bool
		wantContain []string
	}{
		{
			name: "text output",
			wantContain: []string{
				"Scenario A:", "Scenario B:",
				"collect with p rooted", "collect after clearing root",
				"[ok]",
			},
		},
		{
			name:        "json output",
			json:        true,
			wantContain: []string{`"name": "A"`, `"passed": true`},
		},
		{
			name:  "quiet",
			quiet: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobals(t)
			jsonOut = tt.json
			quiet = tt.quiet

			output, err := captureOutput(t, runDemo)
			require.NoError(t, err)

			if tt.json {
				assertJSON(t, output)
			}
			if tt.quiet {
				assert.Empty(t, output)
			}
			assertContains(t, output, tt.wantContain)
			assert.NotContains(t, output, "FAIL")
		})
	}
}

func TestDemoCommand_StepCounts(t *testing.T) {
	resetGlobals(t)
	jsonOut = true

	output, err := captureOutput(t, runDemo)
	require.NoError(t, err)

	var got []DemoScenario
	require.NoError(t, json.Unmarshal([]byte(output), &got))
	require.Len(t, got, 2)

	a := got[0]
	require.Len(t, a.Steps, 2)
	assert.Equal(t, 1, a.Steps[0].Live)
	assert.Equal(t, 0, a.Steps[1].Live)
	assert.Equal(t, 1, a.Steps[1].Reclaimed)
	assert.Equal(t, 1, a.Steps[1].Finalized)

	b := got[1]
	require.Len(t, b.Steps, 2)
	assert.Equal(t, 2, b.Steps[0].Live)
	assert.Equal(t, 2, b.Steps[1].Reclaimed)
	assert.Equal(t, 2, b.Steps[1].Finalized)
}

func TestDemoCommand_CoarseClasses(t *testing.T) {
	resetGlobals(t)
	cfg.Heap.Classes = "coarse"

	_, err := captureOutput(t, runDemo)
	require.NoError(t, err)
}
