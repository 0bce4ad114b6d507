package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// CLI flags shared by the run and serve subcommands
	logLevel     string // Log verbosity level
	topologyPath string // Grid topology YAML (empty = built-in midtown network)
	scenarioPath string // Scenario YAML (empty = flag-driven scenario)

	seed           int64   // Seed for fleet generation
	scenario       string  // Time-of-day scenario
	vehicles       int     // Initial fleet size
	evFraction     float64 // Share of battery-electric vehicles
	horizonTicks   int64   // Halt after this many ticks (0 = unbounded)
	tickIntervalMS int     // Wall-clock pacing per tick in ms (0 = free-running)
	historySize    int     // Snapshot history ring capacity
	intentQueue    int     // Bounded intent queue capacity
	remoteAddr     string  // External traffic simulator bridge address (empty = virtual fleet)
	remoteTimeout  int     // Remote round-trip timeout in ms
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "citygrid-sim",
	Short: "Lockstep co-simulator for urban traffic and the power grid",
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging applies the --log flag before any subcommand work.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// init sets up the shared CLI flags
func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	pf.StringVar(&topologyPath, "topology", "", "Grid topology YAML file (default: built-in midtown network)")
	pf.StringVar(&scenarioPath, "scenario-file", "", "Scenario YAML file (overrides scenario flags)")

	pf.Int64Var(&seed, "seed", 42, "Seed for fleet generation")
	pf.StringVar(&scenario, "scenario", "midday", "Time-of-day scenario (night, morning_rush, midday, evening_rush, evening)")
	pf.IntVar(&vehicles, "vehicles", 50, "Initial fleet size")
	pf.Float64Var(&evFraction, "ev-fraction", 0.7, "Share of battery-electric vehicles (0..1)")
	pf.Int64Var(&horizonTicks, "horizon", 0, "Halt after this many ticks (0 = unbounded)")
	pf.IntVar(&tickIntervalMS, "tick-interval-ms", 0, "Wall-clock pacing per tick in milliseconds (0 = free-running)")
	pf.IntVar(&historySize, "history", 100, "Snapshot history capacity")
	pf.IntVar(&intentQueue, "intent-queue", 16, "Intent queue capacity")
	pf.StringVar(&remoteAddr, "remote", "", "External traffic simulator bridge address (empty = in-process virtual fleet)")
	pf.IntVar(&remoteTimeout, "remote-timeout-ms", 5000, "Remote simulator round-trip timeout in milliseconds")
}
