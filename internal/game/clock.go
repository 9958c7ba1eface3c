package game

import (
	"regexp"
	"time"

	"github.com/race/pixelcar/config"
)

var mobileUserAgent = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// IsMobileUserAgent reports whether a browser User-Agent belongs to a
// phone or tablet
func IsMobileUserAgent(ua string) bool {
	return mobileUserAgent.MatchString(ua)
}

// MaxDeltaFor returns the frame delta cap for a client class
func MaxDeltaFor(mobile bool) float64 {
	if mobile {
		return config.MaxFrameDeltaMobile
	}
	return config.MaxFrameDelta
}

// FrameClock measures wall-clock frame deltas, capped so a stall does not
// turn into one huge step
type FrameClock struct {
	maxDelta float64
	last     time.Time
	started  bool
}

// NewFrameClock creates a clock with the given cap in seconds
func NewFrameClock(maxDelta float64) *FrameClock {
	return &FrameClock{maxDelta: maxDelta}
}

// Tick returns seconds since the previous tick, clamped to [0, maxDelta].
// The first tick returns 0.
func (c *FrameClock) Tick(now time.Time) float64 {
	if !c.started {
		c.started = true
		c.last = now
		return 0
	}
	dt := now.Sub(c.last).Seconds()
	c.last = now
	return clamp(dt, 0, c.maxDelta)
}

// MaxDelta returns the cap
func (c *FrameClock) MaxDelta() float64 {
	return c.maxDelta
}
