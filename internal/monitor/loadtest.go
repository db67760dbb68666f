package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// LoadTestConfig configures a LoadTester run against one URL.
type LoadTestConfig struct {
	URL             string
	Method          string
	ConcurrentUsers int
	Duration        time.Duration
	RampUp          time.Duration
	Pause           time.Duration // between requests of one worker
}

// LatencySummary holds latency percentiles of successful requests.
type LatencySummary struct {
	Count  int           `json:"count"`
	Min    time.Duration `json:"min"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stddev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Max    time.Duration `json:"max"`
}

// LoadTestReport is the outcome of a run.
type LoadTestReport struct {
	Requests   uint64         `json:"requests"`
	Errors     uint64         `json:"errors"`
	Duration   time.Duration  `json:"duration"`
	Throughput float64        `json:"throughput"` // successful requests per second
	Latency    LatencySummary `json:"latency"`
}

// ErrorRate is the failed share of all requests in percent.
func (r LoadTestReport) ErrorRate() float64 {
	total := r.Requests + r.Errors
	if total == 0 {
		return 0
	}
	return float64(r.Errors) / float64(total) * 100
}

// Stats converts the report for CalculateTestPerformance.
func (r LoadTestReport) Stats() TestStats {
	return TestStats{
		TotalTests:        int(r.Requests + r.Errors),
		SuccessfulTests:   int(r.Requests),
		TotalResponseTime: r.Latency.Mean * time.Duration(r.Latency.Count),
	}
}

// LoadTester drives concurrent HTTP workers against a target.
type LoadTester struct {
	client *http.Client
	logger *slog.Logger
}

func NewLoadTester(client *http.Client, logger *slog.Logger) *LoadTester {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadTester{client: client, logger: logger}
}

// Run starts ConcurrentUsers workers, staggered across RampUp, and stops
// them after Duration. Request failures are counted, not returned.
func (t *LoadTester) Run(ctx context.Context, cfg LoadTestConfig) (LoadTestReport, error) {
	if cfg.URL == "" {
		return LoadTestReport{}, errors.New("load test url is required")
	}
	if cfg.ConcurrentUsers < 1 || cfg.ConcurrentUsers > 1000 {
		return LoadTestReport{}, errors.New("concurrent users must be between 1 and 1000")
	}
	if cfg.Duration <= 0 {
		return LoadTestReport{}, errors.New("load test duration must be positive")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		ok, failed atomic.Uint64
		mu         sync.Mutex
		samples    []time.Duration
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(runCtx)
	for i := range cfg.ConcurrentUsers {
		delay := time.Duration(float64(cfg.RampUp) * float64(i) / float64(cfg.ConcurrentUsers))
		g.Go(func() error {
			if !sleep(gctx, delay) {
				return nil
			}
			for {
				latency, err := t.hit(gctx, cfg)
				if gctx.Err() != nil {
					return nil
				}
				if err != nil {
					failed.Add(1)
				} else {
					ok.Add(1)
					mu.Lock()
					samples = append(samples, latency)
					mu.Unlock()
				}
				if !sleep(gctx, cfg.Pause) {
					return nil
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return LoadTestReport{}, err
	}

	report := LoadTestReport{
		Requests: ok.Load(),
		Errors:   failed.Load(),
		Duration: time.Since(start),
		Latency:  summarize(samples),
	}
	if secs := report.Duration.Seconds(); secs > 0 {
		report.Throughput = float64(report.Requests) / secs
	}
	t.logger.InfoContext(ctx, "load test finished",
		"url", cfg.URL,
		"requests", report.Requests,
		"errors", report.Errors,
		"p99", report.Latency.P99,
	)
	return report, ctx.Err()
}

func (t *LoadTester) hit(ctx context.Context, cfg LoadTestConfig) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	latency := time.Since(start)
	if resp.StatusCode >= http.StatusBadRequest {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}
	return latency, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func summarize(samples []time.Duration) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	n := len(sorted)
	at := func(p float64) time.Duration { return sorted[min(n-1, int(float64(n)*p))] }

	var sum time.Duration
	for _, s := range sorted {
		sum += s
	}
	mean := sum / time.Duration(n)
	var variance float64
	for _, s := range sorted {
		diff := float64(s - mean)
		variance += diff * diff
	}
	return LatencySummary{
		Count:  n,
		Min:    sorted[0],
		Mean:   mean,
		StdDev: time.Duration(math.Sqrt(variance / float64(n))),
		P50:    at(0.50),
		P90:    at(0.90),
		P95:    at(0.95),
		P99:    at(0.99),
		Max:    sorted[n-1],
	}
}
