package security

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusWarning  Status = "warning"
	StatusError    Status = "error"
	StatusInactive Status = "inactive"
)

type AntiCheatingConfig struct {
	Enabled      bool `json:"enabled"`
	QuizDuration int  `json:"quizDuration"` // minutes
	StrictMode   bool `json:"strictMode"`
	ShowControls bool `json:"showControls"`
}

type SessionConfig struct {
	Enabled          bool `json:"enabled"`
	Timeout          int  `json:"timeout"`          // minutes
	WarningThreshold int  `json:"warningThreshold"` // minutes
	AutoExtend       bool `json:"autoExtend"`
	MaxExtensions    int  `json:"maxExtensions"`
}

type ValidationConfig struct {
	Enabled      bool `json:"enabled"`
	StrictMode   bool `json:"strictMode"`
	AutoValidate bool `json:"autoValidate"`
	MaxErrors    int  `json:"maxErrors"`
}

type RateLimitConfig struct {
	Enabled          bool          `json:"enabled"`
	MaxRequests      int           `json:"maxRequests"`
	TimeWindow       time.Duration `json:"timeWindow"`
	WarningThreshold float64       `json:"warningThreshold"`
	StrictMode       bool          `json:"strictMode"`
	RetryDelay       time.Duration `json:"retryDelay"`
}

// Config is the security posture of one interface.
type Config struct {
	AntiCheating AntiCheatingConfig `json:"antiCheating"`
	Session      SessionConfig      `json:"session"`
	Validation   ValidationConfig   `json:"validation"`
	RateLimit    RateLimitConfig    `json:"rateLimit"`
}

func DefaultConfig() Config {
	return Config{
		AntiCheating: AntiCheatingConfig{Enabled: true, QuizDuration: 60, ShowControls: true},
		Session: SessionConfig{
			Enabled:          true,
			Timeout:          30,
			WarningThreshold: 5,
			AutoExtend:       true,
			MaxExtensions:    3,
		},
		Validation: ValidationConfig{Enabled: true, AutoValidate: true, MaxErrors: 10},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			MaxRequests:      100,
			TimeWindow:       time.Hour,
			WarningThreshold: 0.8,
			RetryDelay:       5 * time.Second,
		},
	}
}

// Preset returns the defaults adjusted for quiz, admin or public mode.
func Preset(name string) (Config, error) {
	c := DefaultConfig()
	switch name {
	case "quiz":
		c.AntiCheating.Enabled, c.AntiCheating.StrictMode, c.AntiCheating.ShowControls = true, true, true
		c.Session.Enabled, c.Session.Timeout, c.Session.AutoExtend = true, 60, false
		c.Validation.Enabled, c.Validation.StrictMode, c.Validation.AutoValidate = true, true, true
		c.RateLimit.Enabled, c.RateLimit.MaxRequests, c.RateLimit.StrictMode = true, 50, true
	case "admin":
		c.AntiCheating.Enabled, c.AntiCheating.StrictMode, c.AntiCheating.ShowControls = false, false, false
		c.Session.Enabled, c.Session.Timeout, c.Session.AutoExtend = true, 120, true
		c.Validation.Enabled, c.Validation.StrictMode, c.Validation.AutoValidate = true, false, false
		c.RateLimit.Enabled, c.RateLimit.MaxRequests, c.RateLimit.StrictMode = true, 500, false
	case "public":
		c.AntiCheating.Enabled, c.AntiCheating.StrictMode, c.AntiCheating.ShowControls = false, false, false
		c.Session.Enabled, c.Session.Timeout, c.Session.AutoExtend = false, 0, false
		c.Validation.Enabled, c.Validation.StrictMode, c.Validation.AutoValidate = true, false, true
		c.RateLimit.Enabled, c.RateLimit.MaxRequests, c.RateLimit.StrictMode = true, 20, true
	default:
		return Config{}, fmt.Errorf("unknown security preset %q", name)
	}
	return c, nil
}

// Statuses reports which protections are switched on.
func (c Config) Statuses() map[string]Status {
	status := func(on bool) Status {
		if on {
			return StatusActive
		}
		return StatusInactive
	}
	return map[string]Status{
		"antiCheating": status(c.AntiCheating.Enabled),
		"session":      status(c.Session.Enabled),
		"validation":   status(c.Validation.Enabled),
		"rateLimit":    status(c.RateLimit.Enabled),
	}
}

// Limit spreads MaxRequests evenly over TimeWindow and allows the whole
// budget as a burst. Strict mode halves the burst.
func (r RateLimitConfig) Limit() (rate.Limit, int) {
	if !r.Enabled || r.MaxRequests <= 0 || r.TimeWindow <= 0 {
		return rate.Inf, 0
	}
	burst := r.MaxRequests
	if r.StrictMode {
		burst = max(1, burst/2)
	}
	return rate.Limit(float64(r.MaxRequests) / r.TimeWindow.Seconds()), burst
}

// Duration is the idle (or absolute, without AutoExtend) session lifetime.
func (s SessionConfig) Duration() time.Duration {
	if !s.Enabled || s.Timeout <= 0 {
		return 0
	}
	return time.Duration(s.Timeout) * time.Minute
}

// Expired reports whether a session started at start with its last
// activity at last has run out at now.
func (s SessionConfig) Expired(start, last, now time.Time) bool {
	d := s.Duration()
	if d == 0 {
		return false
	}
	from := start
	if s.AutoExtend {
		from = last
	}
	return !now.Before(from.Add(d))
}

// Remaining is the time left before the session expires, never negative.
func (s SessionConfig) Remaining(start, last, now time.Time) time.Duration {
	d := s.Duration()
	if d == 0 {
		return 0
	}
	from := start
	if s.AutoExtend {
		from = last
	}
	return max(0, from.Add(d).Sub(now))
}

// ShouldWarn is true inside the warning window before expiry.
func (s SessionConfig) ShouldWarn(start, last, now time.Time) bool {
	if s.Duration() == 0 || s.Expired(start, last, now) {
		return false
	}
	return s.Remaining(start, last, now) <= time.Duration(s.WarningThreshold)*time.Minute
}
