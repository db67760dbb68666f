package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestPresets(t *testing.T) {
	quiz, err := Preset("quiz")
	require.NoError(t, err)
	assert.True(t, quiz.AntiCheating.StrictMode)
	assert.Equal(t, 60, quiz.Session.Timeout)
	assert.False(t, quiz.Session.AutoExtend)
	assert.Equal(t, 50, quiz.RateLimit.MaxRequests)
	assert.Equal(t, 5, quiz.Session.WarningThreshold, "unset fields keep defaults")

	admin, err := Preset("admin")
	require.NoError(t, err)
	assert.Equal(t, 500, admin.RateLimit.MaxRequests)
	assert.Equal(t, StatusInactive, admin.Statuses()["antiCheating"])

	public, err := Preset("public")
	require.NoError(t, err)
	assert.Zero(t, public.Session.Duration())
	assert.Equal(t, StatusActive, public.Statuses()["rateLimit"])

	_, err = Preset("kiosk")
	assert.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	limit, burst := DefaultConfig().RateLimit.Limit()
	assert.InDelta(t, 100.0/3600, float64(limit), 1e-9)
	assert.Equal(t, 100, burst)

	strict := RateLimitConfig{Enabled: true, MaxRequests: 50, TimeWindow: time.Minute, StrictMode: true}
	_, burst = strict.Limit()
	assert.Equal(t, 25, burst)

	limit, _ = RateLimitConfig{}.Limit()
	assert.Equal(t, rate.Inf, limit)
}

func TestSessionExpiry(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	last := start.Add(50 * time.Minute)

	extend := SessionConfig{Enabled: true, Timeout: 30, WarningThreshold: 5, AutoExtend: true}
	assert.False(t, extend.Expired(start, last, start.Add(70*time.Minute)))
	assert.True(t, extend.Expired(start, last, start.Add(80*time.Minute)))
	assert.True(t, extend.ShouldWarn(start, last, start.Add(76*time.Minute)))
	assert.False(t, extend.ShouldWarn(start, last, start.Add(60*time.Minute)))

	fixed := SessionConfig{Enabled: true, Timeout: 30}
	assert.True(t, fixed.Expired(start, last, start.Add(31*time.Minute)))
	assert.Zero(t, fixed.Remaining(start, last, start.Add(time.Hour)))

	off := SessionConfig{}
	assert.False(t, off.Expired(start, last, start.Add(24*time.Hour)))
}
