package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func writeScenarioFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestScenarioSpecValidate(t *testing.T) {
	cases := []struct {
		name string
		spec ScenarioSpec
		ok   bool
	}{
		{"defaults", ScenarioSpec{}, true},
		{"full", ScenarioSpec{Seed: 1, Scenario: "morning_rush", Vehicles: 50, EVFraction: 0.6, HorizonTicks: 100}, true},
		{"negative vehicles", ScenarioSpec{Vehicles: -1}, false},
		{"ev fraction above one", ScenarioSpec{EVFraction: 1.2}, false},
		{"ev fraction negative", ScenarioSpec{EVFraction: -0.1}, false},
		{"unknown scenario", ScenarioSpec{Scenario: "rush_hour"}, false},
		{"negative horizon", ScenarioSpec{HorizonTicks: -5}, false},
		{"negative history", ScenarioSpec{History: -1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadScenarioSpec_ParsesYAML(t *testing.T) {
	// GIVEN a scenario file on disk
	path := writeScenarioFile(t, `
seed: 42
scenario: evening_rush
vehicles: 120
ev_fraction: 0.7
horizon_ticks: 600
tick_interval_ms: 250
history: 50
intent_queue: 8
`)

	// WHEN loaded
	spec, err := LoadScenarioSpec(path)

	// THEN every field round-trips and the derived config matches
	assert.NoError(t, err)
	assert.Equal(t, int64(42), spec.Seed)
	assert.Equal(t, "evening_rush", spec.Scenario)
	assert.Equal(t, 120, spec.Vehicles)
	assert.InDelta(t, 0.7, spec.EVFraction, 1e-9)

	cfg := spec.OrchestratorConfig()
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, int64(600), cfg.MaxTicks)
	assert.Equal(t, 50, cfg.HistorySize)
	assert.Equal(t, 8, cfg.IntentQueueSize)
	assert.Equal(t, 1.0, cfg.StepLengthSec)
}

func TestLoadScenarioSpec_RejectsInvalidContent(t *testing.T) {
	// GIVEN a file that parses but fails validation
	path := writeScenarioFile(t, "scenario: teatime\n")
	_, err := LoadScenarioSpec(path)
	assert.Error(t, err)
}

func TestLoadScenarioSpec_RejectsMalformedYAML(t *testing.T) {
	path := writeScenarioFile(t, "vehicles: [not a number\n")
	_, err := LoadScenarioSpec(path)
	assert.Error(t, err)
}

func TestLoadScenarioSpec_MissingFile(t *testing.T) {
	_, err := LoadScenarioSpec(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
