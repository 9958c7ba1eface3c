package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/race/pixelcar/config"
	"github.com/race/pixelcar/internal/network"
)

// FrameData converts a frame to its wire form
func (f Frame) FrameData() network.FrameData {
	s := f.Vehicle
	var flags uint8
	if s.IsReversing {
		flags |= network.FrameFlagReversing
	}
	if s.IsBraking {
		flags |= network.FrameFlagBraking
	}
	if f.Camera.Dragging {
		flags |= network.FrameFlagDragging
	}

	projectiles := make([]network.ProjectileData, len(f.Projectiles))
	for i, p := range f.Projectiles {
		projectiles[i] = network.ProjectileData{ID: p.ID, Position: vec3(p.Position)}
	}

	return network.FrameData{
		Tick:          uint32(f.Tick),
		Flags:         flags,
		Position:      vec3(s.Position),
		Heading:       float32(s.Heading),
		Speed:         float32(s.Speed),
		SteeringAngle: float32(s.SteeringAngle),
		WheelSpin:     float32(s.WheelSpin),
		SpeedKmh:      float32(s.SpeedKmh()),
		Eye:           vec3(f.Camera.Eye),
		LookAt:        vec3(f.Camera.LookAt),
		Projectiles:   projectiles,
	}
}

// SpawnData converts a spawn event to its wire form
func (e ProjectileEvent) SpawnData() network.ProjectileSpawnData {
	return network.ProjectileSpawnData{
		ID:       e.Projectile.ID,
		Position: vec3(e.Projectile.Position),
		Velocity: vec3(e.Projectile.Velocity),
	}
}

// SpecData converts a validated vehicle spec to its wire form. Colors that
// fail to parse encode as black.
func SpecData(spec *config.VehicleSpec) network.VehicleSpecData {
	wheelColor, _ := config.ParseColor(spec.Wheel.Color)
	data := network.VehicleSpecData{
		Name: spec.Name,
		Wheel: network.WheelData{
			Radius:     float32(spec.Wheel.Radius),
			Width:      float32(spec.Wheel.Width),
			Track:      float32(spec.Wheel.Track),
			AxleOffset: float32(spec.Wheel.AxleOffset),
			Color:      wheelColor,
		},
		Parts: make([]network.PartData, 0, len(spec.Parts)),
	}

	for _, part := range spec.Parts {
		color, _ := config.ParseColor(part.Color)
		pd := network.PartData{
			Role:     part.Role,
			Radius:   float32(part.Radius),
			Height:   float32(part.Height),
			Position: slice3(part.Position),
			Color:    color,
			Opacity:  uint8(math.Round(clamp(part.Opacity, 0, 1) * 255)),
		}
		switch part.Kind {
		case config.ShapeBox:
			pd.Kind = network.ShapeBox
			pd.Size = slice3(part.Size)
		case config.ShapeCylinder:
			pd.Kind = network.ShapeCylinder
		}
		data.Parts = append(data.Parts, pd)
	}

	return data
}

func vec3(v mgl64.Vec3) [3]float32 {
	return network.ToVec3(v.X(), v.Y(), v.Z())
}

func slice3(v []float64) [3]float32 {
	var out [3]float32
	for i := 0; i < len(v) && i < 3; i++ {
		out[i] = float32(v[i])
	}
	return out
}
