package monitor

// Level grades a measurement against its thresholds.
type Level string

const (
	LevelExcellent Level = "excellent"
	LevelGood      Level = "good"
	LevelFair      Level = "fair"
	LevelPoor      Level = "poor"
)

const (
	kib = 1024
	mib = 1024 * kib
)

// Thresholds are upper bounds for excellent, good and fair; anything above
// Fair is poor.
type Thresholds struct {
	Excellent int64
	Good      int64
	Fair      int64
}

var (
	BundleSizeThresholds = Thresholds{Excellent: 500 * kib, Good: mib, Fair: 2 * mib}
	CacheSizeThresholds  = Thresholds{Excellent: 50 * mib, Good: 100 * mib, Fair: 200 * mib}
)

// Grade returns the level for size.
func (t Thresholds) Grade(size int64) Level {
	switch {
	case size <= t.Excellent:
		return LevelExcellent
	case size <= t.Good:
		return LevelGood
	case size <= t.Fair:
		return LevelFair
	default:
		return LevelPoor
	}
}

// PageMetrics are browser paint timings in milliseconds.
type PageMetrics struct {
	FirstPaint             float64 `json:"firstPaint"`
	FirstContentfulPaint   float64 `json:"firstContentfulPaint"`
	LargestContentfulPaint float64 `json:"largestContentfulPaint"`
	TimeToInteractive      float64 `json:"timeToInteractive"`
	FirstInputDelay        float64 `json:"firstInputDelay"`
	CumulativeLayoutShift  float64 `json:"cumulativeLayoutShift"`
}

// CalculatePerformanceScore starts at 100 and deducts for each slow paint.
func CalculatePerformanceScore(m PageMetrics) int {
	score := 100
	if m.FirstPaint > 200 {
		score -= 10
	}
	if m.FirstContentfulPaint > 300 {
		score -= 15
	}
	if m.LargestContentfulPaint > 800 {
		score -= 20
	}
	if m.TimeToInteractive > 1000 {
		score -= 25
	}
	return max(0, score)
}

func PerformanceRecommendations(m PageMetrics, bundleSize int64) []string {
	var out []string
	if m.FirstPaint > 200 {
		out = append(out, "Optimize critical rendering path to reduce first paint time")
	}
	if m.FirstContentfulPaint > 300 {
		out = append(out, "Implement resource prioritization and preloading")
	}
	if m.LargestContentfulPaint > 800 {
		out = append(out, "Optimize images and reduce layout shifts")
	}
	if m.TimeToInteractive > 1000 {
		out = append(out, "Reduce JavaScript bundle size and optimize execution")
	}
	if bundleSize > mib {
		out = append(out, "Implement code splitting and lazy loading")
	}
	return out
}

type LazyLoaderConfig struct {
	Threshold       float64 `json:"threshold" yaml:"threshold"`
	RootMargin      string  `json:"rootMargin" yaml:"root_margin"`
	Delay           int     `json:"delay" yaml:"delay"`
	PlaceholderType string  `json:"placeholderType" yaml:"placeholder_type"`
	ShowProgress    bool    `json:"showProgress" yaml:"show_progress"`
	Preload         bool    `json:"preload" yaml:"preload"`
	MaxConcurrent   int     `json:"maxConcurrent" yaml:"max_concurrent"`
	RetryAttempts   int     `json:"retryAttempts" yaml:"retry_attempts"`
	RetryDelay      int     `json:"retryDelay" yaml:"retry_delay"`
}

type VirtualScrollerConfig struct {
	ItemHeight             int  `json:"itemHeight" yaml:"item_height"`
	BufferSize             int  `json:"bufferSize" yaml:"buffer_size"`
	Overscan               int  `json:"overscan" yaml:"overscan"`
	MaxConcurrent          int  `json:"maxConcurrent" yaml:"max_concurrent"`
	SmoothScrolling        bool `json:"smoothScrolling" yaml:"smooth_scrolling"`
	ShowPerformanceMonitor bool `json:"showPerformanceMonitor" yaml:"show_performance_monitor"`
}

type CacheManagerConfig struct {
	MaxMemory      int    `json:"maxMemory" yaml:"max_memory"`     // MB
	DefaultTTL     int    `json:"defaultTTL" yaml:"default_ttl"`   // seconds
	MaxItems       int    `json:"maxItems" yaml:"max_items"`
	EvictionPolicy string `json:"evictionPolicy" yaml:"eviction_policy"`
	Compression    bool   `json:"compression" yaml:"compression"`
	Persistence    bool   `json:"persistence" yaml:"persistence"`
}

type BundleOptimizerConfig struct {
	ChunkStrategy     string `json:"chunkStrategy" yaml:"chunk_strategy"`
	PreloadStrategy   string `json:"preloadStrategy" yaml:"preload_strategy"`
	EnableCompression bool   `json:"enableCompression" yaml:"enable_compression"`
	EnableAnalysis    bool   `json:"enableAnalysis" yaml:"enable_analysis"`
	AnalysisInterval  int    `json:"analysisInterval" yaml:"analysis_interval"` // ms
}

// PerformanceConfig is what the admin performance panel edits.
type PerformanceConfig struct {
	LazyLoader      LazyLoaderConfig      `json:"lazyLoader" yaml:"lazy_loader"`
	VirtualScroller VirtualScrollerConfig `json:"virtualScroller" yaml:"virtual_scroller"`
	CacheManager    CacheManagerConfig    `json:"cacheManager" yaml:"cache_manager"`
	BundleOptimizer BundleOptimizerConfig `json:"bundleOptimizer" yaml:"bundle_optimizer"`
}

func DefaultPerformanceConfig() PerformanceConfig {
	return PerformanceConfig{
		LazyLoader: LazyLoaderConfig{
			Threshold:       0.1,
			RootMargin:      "50px",
			PlaceholderType: "skeleton",
			MaxConcurrent:   3,
			RetryAttempts:   3,
			RetryDelay:      1000,
		},
		VirtualScroller: VirtualScrollerConfig{
			ItemHeight:      50,
			BufferSize:      5,
			Overscan:        2,
			MaxConcurrent:   10,
			SmoothScrolling: true,
		},
		CacheManager: CacheManagerConfig{
			MaxMemory:      100,
			DefaultTTL:     300,
			MaxItems:       1000,
			EvictionPolicy: "lru",
			Compression:    true,
		},
		BundleOptimizer: BundleOptimizerConfig{
			ChunkStrategy:     "route",
			PreloadStrategy:   "visible",
			EnableCompression: true,
			EnableAnalysis:    true,
			AnalysisInterval:  30000,
		},
	}
}

// PerformancePreset returns the defaults adjusted for a named environment:
// development, production or performance-testing.
func PerformancePreset(name string) (PerformanceConfig, bool) {
	cfg := DefaultPerformanceConfig()
	switch name {
	case "development":
		cfg.LazyLoader.Threshold, cfg.LazyLoader.ShowProgress, cfg.LazyLoader.Preload = 0.5, true, true
		cfg.VirtualScroller.ShowPerformanceMonitor, cfg.VirtualScroller.BufferSize = true, 10
		cfg.CacheManager.MaxMemory, cfg.CacheManager.DefaultTTL = 50, 60
		cfg.BundleOptimizer.EnableAnalysis, cfg.BundleOptimizer.AnalysisInterval = true, 10000
	case "production":
		cfg.LazyLoader.Threshold, cfg.LazyLoader.ShowProgress, cfg.LazyLoader.Preload = 0.1, false, false
		cfg.VirtualScroller.ShowPerformanceMonitor, cfg.VirtualScroller.BufferSize = false, 3
		cfg.CacheManager.MaxMemory, cfg.CacheManager.DefaultTTL = 200, 600
		cfg.BundleOptimizer.EnableAnalysis, cfg.BundleOptimizer.AnalysisInterval = false, 60000
	case "performance-testing":
		cfg.LazyLoader.Threshold, cfg.LazyLoader.ShowProgress, cfg.LazyLoader.Preload = 0.05, true, true
		cfg.VirtualScroller.ShowPerformanceMonitor, cfg.VirtualScroller.BufferSize = true, 2
		cfg.CacheManager.MaxMemory, cfg.CacheManager.DefaultTTL = 50, 30
		cfg.BundleOptimizer.EnableAnalysis, cfg.BundleOptimizer.AnalysisInterval = true, 5000
	default:
		return PerformanceConfig{}, false
	}
	return cfg, true
}
