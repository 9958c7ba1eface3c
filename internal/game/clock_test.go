package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/race/pixelcar/config"
)

func TestFrameClock_Tick(t *testing.T) {
	c := NewFrameClock(config.MaxFrameDelta)
	start := time.Unix(1000, 0)

	assert.Zero(t, c.Tick(start), "first tick has no delta")
	assert.InDelta(t, 0.016, c.Tick(start.Add(16*time.Millisecond)), 1e-9)
	assert.Equal(t, config.MaxFrameDelta, c.Tick(start.Add(5*time.Second)), "stall is capped")
	assert.Zero(t, c.Tick(start), "clock going backwards yields zero")
}

func TestMaxDeltaFor(t *testing.T) {
	assert.Equal(t, config.MaxFrameDelta, MaxDeltaFor(false))
	assert.Equal(t, config.MaxFrameDeltaMobile, MaxDeltaFor(true))
	assert.Equal(t, 0.05, NewFrameClock(MaxDeltaFor(true)).MaxDelta())
}

func TestIsMobileUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want bool
	}{
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Mobile Safari/537.36", true},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15", true},
		{"Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X)", true},
		{"Opera/9.80 (J2ME/MIDP; Opera Mini/9.80)", true},
		{"mozilla/5.0 (linux; android 13) opera mini", true},
		{"MOZILLA/5.0 (IPHONE; CPU IPHONE OS 17_0)", true},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/126.0 Safari/537.36", false},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) Gecko/20100101 Firefox/127.0", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsMobileUserAgent(tt.ua), tt.ua)
	}
}
