package game

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race/pixelcar/config"
)

const frame = 1.0 / 60

func newTestVehicle() *Vehicle {
	return NewVehicle(config.DefaultTuning(), config.DefaultVehicleSpec().Kinematics())
}

func drive(v *Vehicle, in InputState, frames int) {
	for i := 0; i < frames; i++ {
		in.Apply(v)
		v.Update(frame)
	}
}

func TestVehicle_StartsAtRest(t *testing.T) {
	v := newTestVehicle()
	assert.Equal(t, VehicleState{}, v.State())
	assert.Empty(t, v.Projectiles())
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, v.State().Forward())
}

func TestVehicle_FullThrottleOneSecond(t *testing.T) {
	v := newTestVehicle()
	drive(v, InputState{Throttle: 1}, 60)

	s := v.State()
	// 60 fixed throttle substeps of 4 m/s^2 * 0.016 s
	assert.InDelta(t, 3.84, s.Speed, 1e-9)
	// sum over k of 0.064k/60
	assert.InDelta(t, 1.952, s.Position.Z(), 1e-9)
	assert.InDelta(t, 0, s.Position.X(), 1e-12)
	assert.Zero(t, s.Heading)
	assert.False(t, s.IsReversing)
	assert.False(t, s.IsBraking)
	assert.InDelta(t, 1.0, s.WheelSpin, 1e-9)
	assert.InDelta(t, 3.84*3.6, s.SpeedKmh(), 1e-9)
}

func TestVehicle_SteeringBound(t *testing.T) {
	for _, intent := range []float64{-10, -1, -0.5, 0, 0.5, 1, 10} {
		v := newTestVehicle()
		v.SetSteeringIntent(intent)
		limit := v.MaxSteering()
		assert.LessOrEqual(t, math.Abs(v.State().TargetSteeringAngle), limit+1e-12, "intent %v", intent)

		for i := 0; i < 30; i++ {
			v.Update(frame)
			assert.LessOrEqual(t, math.Abs(v.State().SteeringAngle), limit+1e-12, "intent %v", intent)
		}
		assert.InDelta(t, clamp(intent, -1, 1)*limit, v.State().SteeringAngle, 1e-12)
	}
}

func TestVehicle_SteeringRelaxationIsMonotonic(t *testing.T) {
	v := newTestVehicle()
	v.SetSteeringIntent(1)
	target := v.State().TargetSteeringAngle

	prev := v.State().SteeringAngle
	for i := 0; i < 20; i++ {
		v.Update(frame)
		cur := v.State().SteeringAngle
		assert.GreaterOrEqual(t, cur, prev)
		assert.LessOrEqual(t, cur, target)
		prev = cur
	}
	assert.Equal(t, target, prev)

	v.SetSteeringIntent(-1)
	target = v.State().TargetSteeringAngle
	for i := 0; i < 20; i++ {
		v.Update(frame)
		cur := v.State().SteeringAngle
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, target)
		prev = cur
	}
	assert.Equal(t, target, prev)
}

func TestVehicle_SteeringStepPerUpdate(t *testing.T) {
	v := newTestVehicle()
	v.SetSteeringIntent(1)
	v.Update(frame)
	assert.InDelta(t, config.SteeringSpeed*frame, v.State().SteeringAngle, 1e-12)
}

func TestVehicle_SpeedBounds(t *testing.T) {
	t.Run("forward", func(t *testing.T) {
		v := newTestVehicle()
		for i := 0; i < 200; i++ {
			drive(v, InputState{Throttle: 1}, 1)
			assert.LessOrEqual(t, v.State().Speed, config.MaxSpeed)
		}
		assert.Equal(t, config.MaxSpeed, v.State().Speed)
	})

	t.Run("reverse", func(t *testing.T) {
		v := newTestVehicle()
		for i := 0; i < 120; i++ {
			drive(v, InputState{Throttle: -1}, 1)
			assert.GreaterOrEqual(t, v.State().Speed, -config.MaxSpeed/config.ReverseFactor)
		}
		s := v.State()
		assert.Equal(t, -config.MaxSpeed/config.ReverseFactor, s.Speed)
		assert.True(t, s.IsReversing)
		assert.Less(t, s.Position.Z(), 0.0)
	})

	t.Run("intent above one is clamped", func(t *testing.T) {
		a, b := newTestVehicle(), newTestVehicle()
		a.SetThrottleIntent(5)
		b.SetThrottleIntent(1)
		assert.Equal(t, b.State(), a.State())
	})
}

func TestVehicle_BoundaryContainment(t *testing.T) {
	v := newTestVehicle()
	reset := false
	for i := 0; i < 1200; i++ {
		drive(v, InputState{Throttle: 1, Steer: 0.05}, 1)
		s := v.State()
		require.LessOrEqual(t, math.Abs(s.Position.X()), config.GroundLimit)
		require.LessOrEqual(t, math.Abs(s.Position.Z()), config.GroundLimit)
		if s.Speed == 0 {
			reset = true
		}
	}
	assert.True(t, reset, "vehicle never reached the boundary")
}

func TestVehicle_BoundaryRejectsMove(t *testing.T) {
	tuning := config.DefaultTuning()
	tuning.GroundLimit = 0.05
	v := NewVehicle(tuning, config.DefaultVehicleSpec().Kinematics())

	for i := 0; i < 100; i++ {
		v.SetThrottleIntent(1)
	}
	require.InDelta(t, 6.4, v.State().Speed, 1e-9)

	v.Update(0.1)
	s := v.State()
	assert.Zero(t, s.Speed)
	assert.Equal(t, mgl64.Vec3{}, s.Position)
}

func TestVehicle_BrakingEscalates(t *testing.T) {
	v := newTestVehicle()
	for i := 0; i < 100; i++ {
		v.SetThrottleIntent(1)
	}

	v.SetThrottleIntent(-1)
	s := v.State()
	assert.InDelta(t, 6.4-config.BrakeDeceleration*config.ThrottleSubstep, s.Speed, 1e-9)
	assert.True(t, s.IsBraking)
	assert.False(t, s.IsReversing)

	v.SetThrottleIntent(-1)
	assert.InDelta(t, 6.24-config.BrakingDeceleration*config.ThrottleSubstep, v.State().Speed, 1e-9)
}

func TestVehicle_ForwardWhileRollingBack(t *testing.T) {
	v := newTestVehicle()
	for i := 0; i < 50; i++ {
		v.SetThrottleIntent(-1)
	}
	require.InDelta(t, -3.2, v.State().Speed, 1e-9)
	require.True(t, v.State().IsReversing)

	v.SetThrottleIntent(1)
	s := v.State()
	assert.InDelta(t, -3.2+config.BrakeDeceleration*config.ThrottleSubstep, s.Speed, 1e-9)
	assert.True(t, s.IsBraking)
	assert.True(t, s.IsReversing)
}

func TestVehicle_PassiveDrag(t *testing.T) {
	t.Run("coasting forward never crosses zero", func(t *testing.T) {
		tuning := config.DefaultTuning()
		tuning.Deceleration = 5
		v := NewVehicle(tuning, config.DefaultVehicleSpec().Kinematics())
		for i := 0; i < 10; i++ {
			v.SetThrottleIntent(1)
		}
		v.state.WheelSpinRate = 0

		v.Update(0.1)
		assert.InDelta(t, 0.64-0.5, v.State().Speed, 1e-9)
		v.Update(0.1)
		assert.Zero(t, v.State().Speed)
	})

	t.Run("reversing decays at brake rate", func(t *testing.T) {
		v := newTestVehicle()
		for i := 0; i < 50; i++ {
			v.SetThrottleIntent(-1)
		}
		v.state.WheelSpinRate = 0

		v.Update(0.1)
		assert.InDelta(t, -3.2+config.BrakeDeceleration*0.1, v.State().Speed, 1e-9)
	})

	t.Run("held throttle suppresses drag", func(t *testing.T) {
		v := newTestVehicle()
		v.SetThrottleIntent(1)
		before := v.State().Speed
		v.Update(0.1)
		assert.Equal(t, before, v.State().Speed)
	})
}

func TestVehicle_TurnsTowardSteering(t *testing.T) {
	v := newTestVehicle()
	drive(v, InputState{Throttle: 1, Steer: 1}, 60)

	s := v.State()
	assert.Greater(t, s.Heading, 0.0)
	assert.Greater(t, s.Position.X(), 0.0, "left steering turns toward +x")
}

func TestVehicle_FireRateLimit(t *testing.T) {
	v := newTestVehicle()
	var events []ProjectileEvent
	v.SetProjectileListener(func(e ProjectileEvent) { events = append(events, e) })

	assert.True(t, v.FireProjectile())
	assert.False(t, v.FireProjectile())
	v.Update(0.06)
	assert.False(t, v.FireProjectile())
	v.Update(0.06)
	assert.True(t, v.FireProjectile())

	require.Len(t, events, 4)
	for _, e := range events {
		assert.Equal(t, ProjectileSpawned, e.Kind)
	}
	assert.Len(t, v.Projectiles(), 4)
}

func TestVehicle_FireEverySixFramesAt60Hz(t *testing.T) {
	v := newTestVehicle()

	shots := 0
	for i := 0; i < 60; i++ {
		if v.FireProjectile() {
			shots++
		}
		v.Update(frame)
	}
	assert.Equal(t, 10, shots)

	v = newTestVehicle()
	require.True(t, v.FireProjectile())
	for i := 0; i < 6; i++ {
		v.Update(frame)
	}
	assert.True(t, v.FireProjectile(), "six frames is a full interval")
}

func TestVehicle_FireWithoutEmissionPoints(t *testing.T) {
	v := NewVehicle(config.DefaultTuning(), config.Kinematics{WheelBase: 2.5, MaxSteering: math.Pi / 3})
	assert.False(t, v.FireProjectile())
	assert.Empty(t, v.Projectiles())

	// the cooldown still runs, so headlights added mid-interval wait for it
	v.Reconfigure(config.DefaultVehicleSpec().Kinematics())
	assert.False(t, v.FireProjectile())
	v.Update(config.FireInterval)
	assert.True(t, v.FireProjectile())
}

func TestVehicle_EmissionPointsFollowHeading(t *testing.T) {
	v := newTestVehicle()
	v.state.Heading = math.Pi / 2
	v.state.Position = mgl64.Vec3{10, 0, -5}
	require.True(t, v.FireProjectile())

	got := v.Projectiles()
	require.Len(t, got, 2)

	// Local (x, y, z) maps to (z, y, -x) at a quarter turn
	want := []mgl64.Vec3{
		{10 + 2.18, 0.65, -5 + 0.5},
		{10 + 2.18, 0.65, -5 - 0.5},
	}
	for i, p := range got {
		assert.InDeltaSlice(t, want[i][:], p.Position[:], 1e-9)
		assert.InDeltaSlice(t, []float64{config.LaunchSpeed, 0, 0}, p.Velocity[:], 1e-9)
		assert.Equal(t, p.Initial, p.Position)
	}
	assert.Equal(t, uint32(1), got[0].ID)
	assert.Equal(t, uint32(2), got[1].ID)
}

func TestVehicle_ProjectileTrajectoryIsDeterministic(t *testing.T) {
	fine, coarse := newTestVehicle(), newTestVehicle()
	require.True(t, fine.FireProjectile())
	require.True(t, coarse.FireProjectile())

	for i := 0; i < 4; i++ {
		fine.Update(0.05)
	}
	for i := 0; i < 2; i++ {
		coarse.Update(0.1)
	}

	opt := cmpopts.EquateApprox(0, 1e-12)
	if diff := cmp.Diff(coarse.Projectiles(), fine.Projectiles(), opt); diff != "" {
		t.Errorf("projectiles differ by step size (-coarse +fine):\n%s", diff)
	}

	p := fine.Projectiles()[0]
	assert.InDelta(t, 0.65-0.5*config.Gravity*0.2*0.2, p.Position.Y(), 1e-9)
	assert.InDelta(t, 2.18+config.LaunchSpeed*0.2, p.Position.Z(), 1e-9)
}

func TestVehicle_ProjectilesExpireBelowFloor(t *testing.T) {
	v := newTestVehicle()
	var expired []uint32
	v.SetProjectileListener(func(e ProjectileEvent) {
		if e.Kind == ProjectileExpired {
			expired = append(expired, e.Projectile.ID)
		}
	})
	require.True(t, v.FireProjectile())

	// Drop time from 0.65 m is about 0.364 s
	v.Update(0.3)
	assert.Len(t, v.Projectiles(), 2)
	assert.Empty(t, expired)

	v.Update(0.1)
	assert.Empty(t, v.Projectiles())
	assert.ElementsMatch(t, []uint32{1, 2}, expired)
}

func TestVehicle_Reconfigure(t *testing.T) {
	v := newTestVehicle()
	v.SetSteeringIntent(1)
	drive(v, InputState{Throttle: 1, Steer: 1}, 30)
	before := v.State()

	v.Reconfigure(config.Kinematics{WheelBase: 3, MaxSteering: math.Pi / 6})
	after := v.State()

	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.Speed, after.Speed)
	assert.Equal(t, math.Pi/6, after.SteeringAngle)
	assert.Equal(t, math.Pi/6, after.TargetSteeringAngle)
	assert.False(t, v.FireProjectile(), "new geometry has no headlights")
}

func TestVehicle_NegativeDeltaIsIgnored(t *testing.T) {
	v := newTestVehicle()
	v.SetThrottleIntent(1)
	before := v.State()
	v.Update(-1)
	assert.Equal(t, before, v.State())
	assert.Zero(t, v.Clock())
}
