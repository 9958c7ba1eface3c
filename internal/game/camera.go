package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/race/pixelcar/config"
)

// CameraState is a snapshot of the orbit camera
type CameraState struct {
	Theta       float64 // horizontal orbit angle
	Phi         float64 // vertical orbit angle, negative places the eye behind the target
	TargetTheta float64
	TargetPhi   float64
	Radius      float64
	Eye         mgl64.Vec3
	LookAt      mgl64.Vec3
	Dragging    bool
}

// OrbitCamera follows the vehicle from behind on a sphere.
//
// Two smoothing stages run every update: the orbit angles ease toward targets
// derived from the vehicle, then the eye eases toward the point on the sphere.
// Both factors apply once per call regardless of dt, so the feel depends on
// frame rate.
type OrbitCamera struct {
	tuning config.CameraTuning

	theta, phi             float64
	targetTheta, targetPhi float64
	radius                 float64

	eye      mgl64.Vec3
	lookAt   mgl64.Vec3
	dragging bool
}

// NewOrbitCamera creates a camera at the configured initial eye position
func NewOrbitCamera(tuning config.CameraTuning) *OrbitCamera {
	c := &OrbitCamera{
		tuning:    tuning,
		phi:       tuning.PhiLow,
		targetPhi: tuning.PhiLow,
		radius:    clamp(tuning.Radius, tuning.MinRadius, tuning.MaxRadius),
	}
	c.phi = clamp(c.phi, tuning.PhiMin, tuning.PhiMax)
	if len(tuning.InitialEye) == 3 {
		c.eye = mgl64.Vec3{tuning.InitialEye[0], tuning.InitialEye[1], tuning.InitialEye[2]}
	}
	return c
}

// State returns a copy of the camera state
func (c *OrbitCamera) State() CameraState {
	return CameraState{
		Theta:       c.theta,
		Phi:         c.phi,
		TargetTheta: c.targetTheta,
		TargetPhi:   c.targetPhi,
		Radius:      c.radius,
		Eye:         c.eye,
		LookAt:      c.lookAt,
		Dragging:    c.dragging,
	}
}

// Update recomputes the camera pose for the vehicle's current state and
// returns the eye position and look-at point. dt is accepted for the frame
// contract; smoothing is per call.
func (c *OrbitCamera) Update(position mgl64.Vec3, heading, speed, maxSpeed, dt float64) (eye, lookAt mgl64.Vec3) {
	t := c.tuning

	if math.Abs(speed) > t.FollowThreshold {
		c.targetTheta = heading
		if speed < -t.FollowThreshold {
			c.targetTheta += math.Pi
		}

		speedFactor := 1.0
		if maxSpeed > 0 {
			speedFactor = math.Min(math.Abs(speed)/maxSpeed, 1)
		}
		c.targetPhi = t.PhiLow + (t.PhiHigh-t.PhiLow)*speedFactor
	}

	// A held drag owns the angles until it ends
	if !c.dragging {
		c.theta += (c.targetTheta - c.theta) * t.LerpFactor
		c.phi += (c.targetPhi - c.phi) * t.LerpFactor
	}
	c.phi = clamp(c.phi, t.PhiMin, t.PhiMax)

	sinPhi := math.Sin(c.phi)
	desired := position.Add(mgl64.Vec3{
		c.radius * sinPhi * math.Sin(c.theta),
		c.radius * math.Cos(c.phi),
		c.radius * sinPhi * math.Cos(c.theta),
	})
	c.eye = c.eye.Add(desired.Sub(c.eye).Mul(t.PositionLerp))
	c.lookAt = position.Add(mgl64.Vec3{0, t.LookAtHeight, 0})

	return c.eye, c.lookAt
}

// Follow is Update driven by a vehicle snapshot
func (c *OrbitCamera) Follow(s VehicleState, maxSpeed, dt float64) (eye, lookAt mgl64.Vec3) {
	return c.Update(s.Position, s.Heading, s.Speed, maxSpeed, dt)
}

// BeginDrag starts a manual orbit
func (c *OrbitCamera) BeginDrag() {
	c.dragging = true
}

// Drag rotates the orbit by a pointer delta in pixels
func (c *OrbitCamera) Drag(dx, dy float64) {
	if !c.dragging {
		return
	}
	t := c.tuning
	c.theta -= dx * t.DragSensitivity
	c.phi = clamp(c.phi-dy*t.DragSensitivity, t.PhiMin, t.PhiMax)
}

// EndDrag hands the angles back to auto-follow
func (c *OrbitCamera) EndDrag() {
	c.dragging = false
}

// Zoom scales the radius by a wheel delta. Positive deltaY moves the camera
// closer.
func (c *OrbitCamera) Zoom(deltaY float64) {
	t := c.tuning
	scale := 1 - deltaY*t.ZoomSpeed
	c.radius = clamp(c.radius*scale, t.MinRadius, t.MaxRadius)
}
