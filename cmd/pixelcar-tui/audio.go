package main

import (
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const (
	cueSampleRate = beep.SampleRate(44100)
	cueFrequency  = 660
	cueDuration   = 40 * time.Millisecond
)

// FireCue plays a short tone per shot. A cue that failed to open the
// speaker stays silent.
type FireCue struct {
	enabled bool
}

// NewFireCue opens the speaker. The returned cue is usable even when err is
// non-nil.
func NewFireCue() (*FireCue, error) {
	err := speaker.Init(cueSampleRate, cueSampleRate.N(time.Second/10))
	return &FireCue{enabled: err == nil}, err
}

// Play queues one tone
func (c *FireCue) Play() {
	if c == nil || !c.enabled {
		return
	}
	sine, err := generators.SineTone(cueSampleRate, cueFrequency)
	if err != nil {
		return
	}
	speaker.Play(beep.Take(cueSampleRate.N(cueDuration), sine))
}

// Close releases the speaker
func (c *FireCue) Close() {
	if c == nil || !c.enabled {
		return
	}
	speaker.Close()
	c.enabled = false
}
