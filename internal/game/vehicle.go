package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/race/pixelcar/config"
)

// fireTolerance absorbs float drift in the accumulated simulation clock
const fireTolerance = 1e-9

// VehicleState is a snapshot of the vehicle's motion state
type VehicleState struct {
	Position            mgl64.Vec3
	Heading             float64 // yaw about +y, 0 faces +z
	Speed               float64 // m/s, negative while reversing
	SteeringAngle       float64
	TargetSteeringAngle float64
	WheelSpinRate       float64 // mirrors throttle intent, cosmetic only
	WheelSpin           float64 // accumulated wheel rotation
	IsReversing         bool
	IsBraking           bool
}

// SpeedKmh returns the absolute speed in km/h
func (s VehicleState) SpeedKmh() float64 {
	return math.Abs(s.Speed) * 3.6
}

// Forward returns the unit vector the vehicle faces
func (s VehicleState) Forward() mgl64.Vec3 {
	return headingVector(s.Heading)
}

// Vehicle is the kinematic player car. All motion state is private and only
// changes through the intent setters, Update and FireProjectile. Not safe for
// concurrent use: one goroutine owns a vehicle.
type Vehicle struct {
	tuning     config.Tuning
	kinematics config.Kinematics
	state      VehicleState

	clock    float64 // simulated seconds since spawn
	lastFire float64
	hasFired bool

	nextProjectileID uint32
	projectiles      []*Projectile
	onProjectile     func(ProjectileEvent)
}

// NewVehicle creates a vehicle at rest at the origin, facing +z
func NewVehicle(tuning config.Tuning, kinematics config.Kinematics) *Vehicle {
	return &Vehicle{
		tuning:           tuning,
		kinematics:       kinematics,
		nextProjectileID: 1,
		projectiles:      make([]*Projectile, 0, 16),
	}
}

// State returns a copy of the current motion state
func (v *Vehicle) State() VehicleState {
	return v.state
}

// Tuning returns the motion parameters the vehicle runs with
func (v *Vehicle) Tuning() config.Tuning {
	return v.tuning
}

// Clock returns the simulated time in seconds
func (v *Vehicle) Clock() float64 {
	return v.clock
}

// MaxSteering returns the steering bound in radians
func (v *Vehicle) MaxSteering() float64 {
	return v.kinematics.MaxSteering
}

// SetProjectileListener registers a callback for projectile spawn/expire events.
// Passing nil removes it.
func (v *Vehicle) SetProjectileListener(fn func(ProjectileEvent)) {
	v.onProjectile = fn
}

// Reconfigure swaps the geometry-derived parameters without resetting motion.
// Steering angles are re-clamped into the new bound.
func (v *Vehicle) Reconfigure(kinematics config.Kinematics) {
	v.kinematics = kinematics
	limit := kinematics.MaxSteering
	v.state.SteeringAngle = clamp(v.state.SteeringAngle, -limit, limit)
	v.state.TargetSteeringAngle = clamp(v.state.TargetSteeringAngle, -limit, limit)
}

// SetSteeringIntent sets the commanded wheel angle from a value in [-1, 1].
// The actual angle moves toward it in Update.
func (v *Vehicle) SetSteeringIntent(value float64) {
	limit := v.kinematics.MaxSteering
	v.state.TargetSteeringAngle = clamp(clamp(value, -1, 1)*limit, -limit, limit)
}

// SetThrottleIntent applies forward (>0) or brake/reverse (<=0) intent.
//
// The speed change here always uses the fixed ThrottleSubstep, not the frame
// delta: input response is evaluated at a constant assumed tick while drag in
// Update uses the real delta. Both halves are intentional.
func (v *Vehicle) SetThrottleIntent(value float64) {
	value = clamp(value, -1, 1)
	s := &v.state
	t := v.tuning

	s.WheelSpinRate = value

	rate := t.BrakeDeceleration
	if s.IsBraking {
		rate = t.BrakingDeceleration
	}

	if value > 0 {
		if s.Speed < -config.MotionEpsilon {
			// Still rolling backwards: brake toward zero first
			s.Speed = math.Min(0, s.Speed+rate*config.ThrottleSubstep)
		} else {
			s.IsReversing = false
			s.Speed = math.Min(t.MaxSpeed, s.Speed+math.Abs(value)*t.Acceleration*config.ThrottleSubstep)
		}
	} else {
		if s.Speed > config.MotionEpsilon {
			s.Speed = math.Max(0, s.Speed-rate*config.ThrottleSubstep)
		} else {
			s.IsReversing = true
			s.Speed = math.Max(-t.MaxReverseSpeed(), s.Speed-math.Abs(value)*t.Acceleration*config.ThrottleSubstep)
		}
	}

	s.IsBraking = math.Abs(s.Speed) > config.MotionEpsilon && sign(s.Speed)*sign(value) < 0
}

// Update advances the vehicle by dt seconds of wall-clock time
func (v *Vehicle) Update(dt float64) {
	if dt < 0 {
		dt = 0
	}
	s := &v.state
	t := v.tuning
	v.clock += dt

	// Steering relaxes toward the target without overshooting
	step := t.SteeringSpeed * dt
	if s.SteeringAngle < s.TargetSteeringAngle {
		s.SteeringAngle = math.Min(s.SteeringAngle+step, s.TargetSteeringAngle)
	} else if s.SteeringAngle > s.TargetSteeringAngle {
		s.SteeringAngle = math.Max(s.SteeringAngle-step, s.TargetSteeringAngle)
	}

	// Bicycle model: yaw rate from steering angle and wheelbase
	if math.Abs(s.Speed) > config.MotionEpsilon {
		beta := math.Tan(s.SteeringAngle) * s.Speed / v.kinematics.WheelBase
		s.Heading += beta * dt

		next := s.Position.Add(headingVector(s.Heading).Mul(s.Speed * dt))
		if v.insideGround(next) {
			s.Position = next
		} else {
			// Hard stop at the boundary, the move is discarded
			s.Speed = 0
		}
	}

	s.WheelSpin += s.WheelSpinRate * dt

	// Passive drag only when no throttle intent is held
	if s.WheelSpinRate == 0 {
		if s.IsReversing {
			if s.Speed < -config.MotionEpsilon {
				s.Speed = math.Min(0, s.Speed+t.BrakeDeceleration*dt)
			}
		} else if s.Speed > config.MotionEpsilon {
			s.Speed = math.Max(0, s.Speed-t.Deceleration*dt)
		} else if s.Speed < -config.MotionEpsilon {
			s.Speed = math.Min(0, s.Speed+t.Deceleration*dt)
		}
	}

	v.advanceProjectiles()
}

// FireProjectile spawns one projectile per emission point. Calls within
// FireInterval of simulated time since the last shot are ignored; the return
// value reports whether anything was spawned. A vehicle without emission
// points still starts the cooldown.
func (v *Vehicle) FireProjectile() bool {
	// simulated time is a float sum of frame deltas, so six 1/60 frames
	// land just short of 0.1
	if v.hasFired && v.clock-v.lastFire < v.tuning.FireInterval-fireTolerance {
		return false
	}
	v.lastFire = v.clock
	v.hasFired = true
	if len(v.kinematics.EmissionPoints) == 0 {
		return false
	}

	s := v.state
	rot := mgl64.Rotate3DY(s.Heading)
	velocity := headingVector(s.Heading).Mul(v.tuning.LaunchSpeed)

	for _, local := range v.kinematics.EmissionPoints {
		origin := s.Position.Add(rot.Mul3x1(local))
		p := &Projectile{
			ID:        v.nextProjectileID,
			Position:  origin,
			Initial:   origin,
			Velocity:  velocity,
			SpawnTime: v.clock,
		}
		v.nextProjectileID++
		v.projectiles = append(v.projectiles, p)
		v.emit(ProjectileEvent{Kind: ProjectileSpawned, Projectile: *p})
	}
	return true
}

// Projectiles returns copies of the live projectiles
func (v *Vehicle) Projectiles() []Projectile {
	out := make([]Projectile, len(v.projectiles))
	for i, p := range v.projectiles {
		out[i] = *p
	}
	return out
}

// advanceProjectiles recomputes every projectile in closed form and drops
// those below the floor. Iterates in reverse so removal is safe.
func (v *Vehicle) advanceProjectiles() {
	for i := len(v.projectiles) - 1; i >= 0; i-- {
		p := v.projectiles[i]
		p.Position = p.PositionAt(v.clock, v.tuning.Gravity)
		if p.Position.Y() < v.tuning.ProjectileFloor {
			v.projectiles = append(v.projectiles[:i], v.projectiles[i+1:]...)
			v.emit(ProjectileEvent{Kind: ProjectileExpired, Projectile: *p})
		}
	}
}

func (v *Vehicle) emit(e ProjectileEvent) {
	if v.onProjectile != nil {
		v.onProjectile(e)
	}
}

func (v *Vehicle) insideGround(p mgl64.Vec3) bool {
	limit := v.tuning.GroundLimit
	return math.Abs(p.X()) <= limit && math.Abs(p.Z()) <= limit
}

func headingVector(heading float64) mgl64.Vec3 {
	return mgl64.Vec3{math.Sin(heading), 0, math.Cos(heading)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
