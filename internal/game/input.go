package game

import (
	"math"
	"strings"

	"github.com/race/pixelcar/internal/network"
)

// analogDeadzone is the magnitude above which an analog axis overrides keys
const analogDeadzone = 0.1

// InputState is one frame of driver intent
type InputState struct {
	Steer    float64 // -1 right .. 1 left
	Throttle float64 // -1 brake/reverse .. 1 forward
	Fire     bool
}

// Apply feeds the intent to the vehicle in frame order: throttle, steering,
// then fire. Returns whether a shot went out.
func (in InputState) Apply(v *Vehicle) bool {
	v.SetThrottleIntent(in.Throttle)
	v.SetSteeringIntent(in.Steer)
	if in.Fire {
		return v.FireProjectile()
	}
	return false
}

// KeyState tracks held driving keys
type KeyState struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
	Fire     bool
}

// Press updates the key state for a key code (KeyboardEvent.code or key
// name). Returns false for keys that are not bound.
func (k *KeyState) Press(code string, down bool) bool {
	switch strings.ToLower(code) {
	case "keyw", "arrowup", "w", "up":
		k.Forward = down
	case "keys", "arrowdown", "s", "down":
		k.Backward = down
	case "keya", "arrowleft", "a", "left":
		k.Left = down
	case "keyd", "arrowright", "d", "right":
		k.Right = down
	case "space", " ", "fire":
		k.Fire = down
	default:
		return false
	}
	return true
}

// Reset releases every key
func (k *KeyState) Reset() {
	*k = KeyState{}
}

// Input maps held keys to intent. Opposite keys cancel.
func (k KeyState) Input() InputState {
	var in InputState
	if k.Forward {
		in.Throttle += 1
	}
	if k.Backward {
		in.Throttle -= 1
	}
	if k.Left {
		in.Steer += 1
	}
	if k.Right {
		in.Steer -= 1
	}
	in.Fire = k.Fire
	return in
}

// Bits packs the key state into the wire key field
func (k KeyState) Bits() uint8 {
	var keys uint8
	if k.Forward {
		keys |= network.KeyUp
	}
	if k.Backward {
		keys |= network.KeyDown
	}
	if k.Left {
		keys |= network.KeyLeft
	}
	if k.Right {
		keys |= network.KeyRight
	}
	if k.Fire {
		keys |= network.KeyFire
	}
	return keys
}

// InputFromMessage converts a decoded wire input. Analog values override the
// key bits when outside the deadzone.
func InputFromMessage(msg *network.InputMessage) InputState {
	ks := KeyState{
		Forward:  msg.Keys&network.KeyUp != 0,
		Backward: msg.Keys&network.KeyDown != 0,
		Left:     msg.Keys&network.KeyLeft != 0,
		Right:    msg.Keys&network.KeyRight != 0,
		Fire:     msg.Keys&network.KeyFire != 0,
	}
	in := ks.Input()

	steering, throttle := network.DecodeSteeringThrottle(msg.Steering, msg.Throttle)
	if math.Abs(steering) > analogDeadzone {
		in.Steer = steering
	}
	if math.Abs(throttle) > analogDeadzone {
		in.Throttle = throttle
	}
	if msg.Flags&network.InputFlagFireButton != 0 {
		in.Fire = true
	}
	return in
}
