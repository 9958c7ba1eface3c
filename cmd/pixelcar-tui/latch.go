package main

import (
	"time"

	"github.com/race/pixelcar/internal/game"
)

// defaultHold outlasts the usual terminal auto-repeat delay
const defaultHold = 400 * time.Millisecond

// KeyLatch turns key-press events into held keys. Terminals report presses
// and auto-repeats but never releases, so a key counts as held until hold
// has passed since its last press. Pressing a key releases its opposite.
type KeyLatch struct {
	hold    time.Duration
	pressed map[string]time.Time
}

// NewKeyLatch creates a latch; hold <= 0 uses the default
func NewKeyLatch(hold time.Duration) *KeyLatch {
	if hold <= 0 {
		hold = defaultHold
	}
	return &KeyLatch{hold: hold, pressed: make(map[string]time.Time)}
}

var opposite = map[string]string{
	"forward":  "backward",
	"backward": "forward",
	"left":     "right",
	"right":    "left",
}

// Press records a key press. Returns false for unbound keys.
func (l *KeyLatch) Press(code string, now time.Time) bool {
	name, ok := canonical(code)
	if !ok {
		return false
	}
	l.pressed[name] = now
	if other, ok := opposite[name]; ok {
		delete(l.pressed, other)
	}
	return true
}

// State returns the keys held at now and forgets expired presses
func (l *KeyLatch) State(now time.Time) game.KeyState {
	var ks game.KeyState
	for name, at := range l.pressed {
		if now.Sub(at) >= l.hold {
			delete(l.pressed, name)
			continue
		}
		ks.Press(name, true)
	}
	return ks
}

// Release drops every held key
func (l *KeyLatch) Release() {
	clear(l.pressed)
}

// canonical maps any bound key code onto one name per action
func canonical(code string) (string, bool) {
	var ks game.KeyState
	if !ks.Press(code, true) {
		return "", false
	}
	switch {
	case ks.Forward:
		return "forward", true
	case ks.Backward:
		return "backward", true
	case ks.Left:
		return "left", true
	case ks.Right:
		return "right", true
	}
	return "fire", true
}
