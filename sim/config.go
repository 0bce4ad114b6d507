package sim

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// OrchestratorConfig groups the tick loop parameters.
type OrchestratorConfig struct {
	TickInterval    time.Duration // wall-clock pacing between cycles; 0 = free-running
	MaxTicks        int64         // halt after this many ticks; 0 = unbounded
	HistorySize     int           // snapshot ring capacity (default 100)
	IntentQueueSize int           // bounded intent queue capacity (default 16)
	StepLengthSec   float64       // simulated seconds per tick (default 1.0)
}

// NewOrchestratorConfig builds an OrchestratorConfig from explicit values.
func NewOrchestratorConfig(tickInterval time.Duration, maxTicks int64, historySize, intentQueueSize int, stepLengthSec float64) OrchestratorConfig {
	return OrchestratorConfig{
		TickInterval:    tickInterval,
		MaxTicks:        maxTicks,
		HistorySize:     historySize,
		IntentQueueSize: intentQueueSize,
		StepLengthSec:   stepLengthSec,
	}
}

// ScenarioSpec is the top-level scenario configuration, loaded from YAML via
// LoadScenarioSpec(path). It covers the fleet and pacing; grid topology lives
// in its own file.
type ScenarioSpec struct {
	Seed           int64   `yaml:"seed"`
	Scenario       string  `yaml:"scenario"` // night, morning_rush, midday, evening_rush, evening
	Vehicles       int     `yaml:"vehicles"`
	EVFraction     float64 `yaml:"ev_fraction"`
	HorizonTicks   int64   `yaml:"horizon_ticks,omitempty"` // 0 = unbounded
	TickIntervalMS int     `yaml:"tick_interval_ms,omitempty"`
	History        int     `yaml:"history,omitempty"`
	IntentQueue    int     `yaml:"intent_queue,omitempty"`
}

var validScenarios = map[string]bool{
	"":             true, // empty defaults to midday
	"night":        true,
	"morning_rush": true,
	"midday":       true,
	"evening_rush": true,
	"evening":      true,
}

// Validate rejects malformed scenario specs before the loop starts.
func (s *ScenarioSpec) Validate() error {
	if s.Vehicles < 0 {
		return fmt.Errorf("scenario: vehicles must be >= 0, got %d", s.Vehicles)
	}
	if s.EVFraction < 0 || s.EVFraction > 1 {
		return fmt.Errorf("scenario: ev_fraction must be in [0,1], got %g", s.EVFraction)
	}
	if !validScenarios[s.Scenario] {
		return fmt.Errorf("scenario: unknown scenario %q", s.Scenario)
	}
	if s.HorizonTicks < 0 || s.TickIntervalMS < 0 || s.History < 0 || s.IntentQueue < 0 {
		return fmt.Errorf("scenario: negative values not allowed")
	}
	return nil
}

// LoadScenarioSpec reads and validates a YAML scenario file.
func LoadScenarioSpec(path string) (*ScenarioSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var spec ScenarioSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// OrchestratorConfig derives loop parameters from the spec.
func (s *ScenarioSpec) OrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		TickInterval:    time.Duration(s.TickIntervalMS) * time.Millisecond,
		MaxTicks:        s.HorizonTicks,
		HistorySize:     s.History,
		IntentQueueSize: s.IntentQueue,
		StepLengthSec:   1.0,
	}
}
