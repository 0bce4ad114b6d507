package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// runCmd executes a headless co-simulation run and prints metrics at the end.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the co-simulation headless",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		spec := loadScenario()
		if spec.HorizonTicks <= 0 {
			logrus.Fatalf("run requires --horizon > 0 (or horizon_ticks in the scenario file)")
		}

		logrus.Infof("Starting co-simulation: horizon=%d ticks, %d vehicles, seed=%d",
			spec.HorizonTicks, spec.Vehicles, spec.Seed)

		startTime := time.Now()
		orch := buildEngine(spec)
		if err := orch.Start(); err != nil {
			logrus.Fatalf("unable to start orchestrator: %v", err)
		}
		orch.Wait()

		if cause := orch.HaltCause(); cause != nil {
			logrus.Errorf("run halted: %v", cause)
		}
		orch.Metrics().Print(startTime)
		logrus.Info("Co-simulation complete.")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
