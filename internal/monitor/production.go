package monitor

import (
	"math"
	"slices"
	"strings"
	"time"
)

var (
	Environments       = []string{"development", "staging", "production"}
	BuildModes         = []string{"development", "production", "testing"}
	OptimizationLevels = []string{"low", "medium", "high"}
)

// BuildStats aggregates build runs.
type BuildStats struct {
	TotalBuilds      int           `json:"totalBuilds"`
	SuccessfulBuilds int           `json:"successfulBuilds"`
	TotalDuration    time.Duration `json:"totalDuration"`
}

// TestStats aggregates load test requests.
type TestStats struct {
	TotalTests        int           `json:"totalTests"`
	SuccessfulTests   int           `json:"successfulTests"`
	TotalResponseTime time.Duration `json:"totalResponseTime"`
}

// CalculateBuildEfficiency is the success rate less 10 points for builds
// averaging over a minute, or 20 over five minutes.
func CalculateBuildEfficiency(s BuildStats) int {
	if s.TotalBuilds == 0 {
		return 0
	}
	efficiency := float64(s.SuccessfulBuilds) / float64(s.TotalBuilds) * 100
	avg := s.TotalDuration / time.Duration(s.TotalBuilds)
	switch {
	case avg > 5*time.Minute:
		efficiency -= 20
	case avg > time.Minute:
		efficiency -= 10
	}
	return max(0, roundHalfUp(efficiency))
}

// CalculateTestPerformance is the success rate less 15 points for an
// average response over a second, or 30 over two seconds.
func CalculateTestPerformance(s TestStats) int {
	if s.TotalTests == 0 {
		return 0
	}
	performance := float64(s.SuccessfulTests) / float64(s.TotalTests) * 100
	avg := s.TotalResponseTime / time.Duration(s.TotalTests)
	switch {
	case avg > 2*time.Second:
		performance -= 30
	case avg > time.Second:
		performance -= 15
	}
	return max(0, roundHalfUp(performance))
}

// ProductionMetrics feed ProductionRecommendations; rates are percentages.
type ProductionMetrics struct {
	BuildSuccessRate float64       `json:"buildSuccessRate"`
	AvgBuildDuration time.Duration `json:"avgBuildDuration"`
	BundleSize       int64         `json:"bundleSize"`
	AvgResponseTime  time.Duration `json:"avgResponseTime"`
	ErrorRate        float64       `json:"errorRate"`
	CPUUsage         float64       `json:"cpuUsage"`
}

func ProductionRecommendations(m ProductionMetrics) []string {
	var out []string
	if m.BuildSuccessRate < 90 {
		out = append(out, "Improve build reliability by reviewing build scripts and dependencies")
	}
	if m.AvgBuildDuration > 5*time.Minute {
		out = append(out, "Optimize build process by implementing parallel builds and caching")
	}
	if m.BundleSize > 2*mib {
		out = append(out, "Reduce bundle size through code splitting and tree shaking")
	}
	if m.AvgResponseTime > time.Second {
		out = append(out, "Optimize application performance and implement caching strategies")
	}
	if m.ErrorRate > 5 {
		out = append(out, "Investigate and fix error patterns to improve system stability")
	}
	if m.CPUUsage > 80 {
		out = append(out, "Consider horizontal scaling or performance optimization")
	}
	return out
}

// ProductionConfig is the build and load-test setup of the admin panel.
// Zero ConcurrentUsers or TestDuration means unset.
type ProductionConfig struct {
	Environment       string `json:"environment"`
	BuildMode         string `json:"buildMode"`
	OptimizationLevel string `json:"optimizationLevel"`
	ConcurrentUsers   int    `json:"concurrentUsers"`
	TestDuration      int    `json:"testDuration"` // minutes
}

func DefaultProductionConfig() ProductionConfig {
	return ProductionConfig{
		Environment:       "development",
		BuildMode:         "development",
		OptimizationLevel: "medium",
		ConcurrentUsers:   10,
		TestDuration:      5,
	}
}

// ValidateProductionConfig returns one message per invalid field.
func ValidateProductionConfig(c ProductionConfig) []string {
	var errs []string
	if !slices.Contains(Environments, strings.ToLower(c.Environment)) {
		errs = append(errs, "Invalid environment specified")
	}
	if !slices.Contains(BuildModes, strings.ToLower(c.BuildMode)) {
		errs = append(errs, "Invalid build mode specified")
	}
	if !slices.Contains(OptimizationLevels, strings.ToLower(c.OptimizationLevel)) {
		errs = append(errs, "Invalid optimization level specified")
	}
	if c.ConcurrentUsers != 0 && (c.ConcurrentUsers < 1 || c.ConcurrentUsers > 1000) {
		errs = append(errs, "Concurrent users must be between 1 and 1000")
	}
	if c.TestDuration != 0 && (c.TestDuration < 1 || c.TestDuration > 120) {
		errs = append(errs, "Test duration must be between 1 and 120 minutes")
	}
	return errs
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
