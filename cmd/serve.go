package cmd

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/citygrid-sim/citygrid-sim/api"
	"github.com/citygrid-sim/citygrid-sim/sim/advice"
)

var serveAddr string // HTTP listen address

// serveCmd runs the co-simulation with the dashboard API on top.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the co-simulation and serve the dashboard API",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		// .env is optional; real deployments set the environment directly.
		if err := godotenv.Load(); err == nil {
			logrus.Debug("loaded environment from .env")
		}

		spec := loadScenario()
		if spec.TickIntervalMS == 0 {
			// A live dashboard wants wall-clock pacing, not a free-running loop.
			spec.TickIntervalMS = 1000
		}

		startTime := time.Now()
		orch := buildEngine(spec)
		if err := orch.Start(); err != nil {
			logrus.Fatalf("unable to start orchestrator: %v", err)
		}

		server := &api.Server{Orch: orch, Advisor: buildAdvisor()}
		httpServer := &http.Server{
			Addr:         serveAddr,
			Handler:      server.Router(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}

		go func() {
			logrus.Infof("dashboard API listening on %s", serveAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.Fatalf("http server: %v", err)
			}
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logrus.Info("shutting down")
		orch.Stop()
		_ = httpServer.Close()
		orch.Metrics().Print(startTime)
	},
}

// buildAdvisor picks the advisory backend: external service when configured
// through the environment, threshold rules otherwise.
func buildAdvisor() advice.Advisor {
	endpoint := os.Getenv("ADVISORY_ENDPOINT")
	if endpoint == "" {
		logrus.Info("no ADVISORY_ENDPOINT set, using rule-based advisor")
		return advice.RuleAdvisor{}
	}
	return advice.NewHTTPAdvisor(
		endpoint,
		os.Getenv("ADVISORY_API_KEY"),
		os.Getenv("ADVISORY_MODEL"),
		10*time.Second,
	)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	rootCmd.AddCommand(serveCmd)
}
