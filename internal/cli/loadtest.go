package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"quiz-portal/internal/monitor"
)

// NewLoadTestCmd runs the production load test against a running portal.
func NewLoadTestCmd() *cobra.Command {
	var cfg monitor.LoadTestConfig
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Load test an endpoint and grade the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			prod := monitor.DefaultProductionConfig()
			prod.Environment = "production"
			prod.ConcurrentUsers = cfg.ConcurrentUsers
			prod.TestDuration = max(1, int(cfg.Duration/time.Minute))
			if errs := monitor.ValidateProductionConfig(prod); len(errs) > 0 {
				return fmt.Errorf("invalid load test: %s", errs[0])
			}

			report, err := monitor.NewLoadTester(nil, nil).Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.URL, "url", "http://localhost:8080/health", "target URL")
	cmd.Flags().StringVar(&cfg.Method, "method", "GET", "HTTP method")
	cmd.Flags().IntVar(&cfg.ConcurrentUsers, "users", 10, "concurrent users")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().DurationVar(&cfg.RampUp, "ramp-up", 5*time.Second, "time to start all users")
	cmd.Flags().DurationVar(&cfg.Pause, "pause", 100*time.Millisecond, "pause between requests of one user")
	return cmd
}

func printReport(w io.Writer, r monitor.LoadTestReport) {
	fmt.Fprintln(w, titleStyle.Render("Load test"))
	fmt.Fprintf(w, "requests    %d ok, %d failed (%.1f%% errors)\n", r.Requests, r.Errors, r.ErrorRate())
	fmt.Fprintf(w, "duration    %s\n", monitor.FormatDuration(r.Duration))
	fmt.Fprintf(w, "throughput  %.1f req/s\n", r.Throughput)
	fmt.Fprintf(w, "latency     p50 %s  p95 %s  p99 %s  max %s\n",
		monitor.FormatDuration(r.Latency.P50), monitor.FormatDuration(r.Latency.P95),
		monitor.FormatDuration(r.Latency.P99), monitor.FormatDuration(r.Latency.Max))
	fmt.Fprintf(w, "performance %d/100\n", monitor.CalculateTestPerformance(r.Stats()))
	for _, rec := range monitor.ProductionRecommendations(monitor.ProductionMetrics{
		BuildSuccessRate: 100,
		AvgResponseTime:  r.Latency.Mean,
		ErrorRate:        r.ErrorRate(),
	}) {
		fmt.Fprintln(w, mutedStyle.Render("- "+rec))
	}
}
