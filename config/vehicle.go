package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"
)

// ShapeKind tags a part descriptor.
type ShapeKind string

const (
	ShapeBox      ShapeKind = "box"
	ShapeCylinder ShapeKind = "cylinder"
)

// RoleHeadlight parts double as projectile emission points.
const RoleHeadlight = "headlight"

// Part is one primitive shape of the vehicle body, in vehicle-local space.
// Boxes use Size; cylinders use Radius and Height.
type Part struct {
	Kind     ShapeKind `mapstructure:"kind"`
	Role     string    `mapstructure:"role"`
	Size     []float64 `mapstructure:"size"`
	Radius   float64   `mapstructure:"radius"`
	Height   float64   `mapstructure:"height"`
	Position []float64 `mapstructure:"position"`
	Color    string    `mapstructure:"color"`
	Opacity  float64   `mapstructure:"opacity"` // 0 = opaque
}

// WheelSpec describes the four wheels and the steering geometry.
type WheelSpec struct {
	Radius      float64 `mapstructure:"radius"`
	Width       float64 `mapstructure:"width"`
	Color       string  `mapstructure:"color"`
	Track       float64 `mapstructure:"track"`      // lateral offset of each wheel from the centre line
	AxleOffset  float64 `mapstructure:"axleOffset"` // longitudinal offset of each axle from the centre
	WheelBase   float64 `mapstructure:"wheelBase"`
	MaxSteering float64 `mapstructure:"maxSteering"`
}

// VehicleSpec is the data-driven vehicle description consumed by renderers.
type VehicleSpec struct {
	Name  string    `mapstructure:"name"`
	Wheel WheelSpec `mapstructure:"wheel"`
	Parts []Part    `mapstructure:"parts"`
}

// Kinematics is the subset of a VehicleSpec the motion model needs.
type Kinematics struct {
	WheelBase      float64
	MaxSteering    float64
	EmissionPoints []mgl64.Vec3
}

// ValidationError reports a missing or malformed field in a VehicleSpec.
type ValidationError struct {
	Part   int // -1 for fields outside the part list
	Role   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Part < 0 {
		return fmt.Sprintf("vehicle spec: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("vehicle spec: part %d (%s): %s: %s", e.Part, e.Role, e.Field, e.Reason)
}

// Validate fails on the first descriptor that would produce undefined geometry.
func (s *VehicleSpec) Validate() error {
	w := s.Wheel
	switch {
	case w.Radius <= 0:
		return &ValidationError{Part: -1, Field: "wheel.radius", Reason: "missing or not positive"}
	case w.Width <= 0:
		return &ValidationError{Part: -1, Field: "wheel.width", Reason: "missing or not positive"}
	case w.WheelBase <= 0:
		return &ValidationError{Part: -1, Field: "wheel.wheelBase", Reason: "missing or not positive"}
	case w.MaxSteering <= 0 || w.MaxSteering >= math.Pi/2:
		return &ValidationError{Part: -1, Field: "wheel.maxSteering", Reason: "must be in (0, pi/2)"}
	}
	if _, err := ParseColor(w.Color); err != nil {
		return &ValidationError{Part: -1, Field: "wheel.color", Reason: err.Error()}
	}

	for i, p := range s.Parts {
		fail := func(field, reason string) error {
			return &ValidationError{Part: i, Role: p.Role, Field: field, Reason: reason}
		}
		switch p.Kind {
		case ShapeBox:
			if len(p.Size) != 3 {
				return fail("size", "box needs 3 components")
			}
			for _, d := range p.Size {
				if d <= 0 {
					return fail("size", "dimensions must be positive")
				}
			}
		case ShapeCylinder:
			if p.Radius <= 0 {
				return fail("radius", "missing or not positive")
			}
			if p.Height <= 0 {
				return fail("height", "missing or not positive")
			}
		case "":
			return fail("kind", "missing")
		default:
			return fail("kind", fmt.Sprintf("unknown shape %q", p.Kind))
		}
		if len(p.Position) != 3 {
			return fail("position", "needs 3 components")
		}
		if _, err := ParseColor(p.Color); err != nil {
			return fail("color", err.Error())
		}
		if p.Opacity < 0 || p.Opacity > 1 {
			return fail("opacity", "must be in [0, 1]")
		}
	}
	return nil
}

// Kinematics extracts the motion-relevant geometry. Emission points are the
// headlight positions in vehicle-local space.
func (s *VehicleSpec) Kinematics() Kinematics {
	k := Kinematics{
		WheelBase:   s.Wheel.WheelBase,
		MaxSteering: s.Wheel.MaxSteering,
	}
	for _, p := range s.Parts {
		if p.Role == RoleHeadlight && len(p.Position) == 3 {
			k.EmissionPoints = append(k.EmissionPoints, mgl64.Vec3{p.Position[0], p.Position[1], p.Position[2]})
		}
	}
	return k
}

// ParseColor converts "#rrggbb" to 0xRRGGBB.
func ParseColor(s string) (uint32, error) {
	hex := strings.TrimPrefix(s, "#")
	if s == "" {
		return 0, fmt.Errorf("missing")
	}
	if len(hex) != 6 {
		return 0, fmt.Errorf("color %q is not #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q is not #rrggbb", s)
	}
	return uint32(v), nil
}

// LoadVehicleSpec reads a geometry file (JSON, YAML or TOML by extension).
// An empty path returns the built-in PixelCar.
func LoadVehicleSpec(path string) (*VehicleSpec, error) {
	if path == "" {
		return DefaultVehicleSpec(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading vehicle spec: %w", err)
	}

	var spec VehicleSpec
	if err := v.Unmarshal(&spec); err != nil {
		return nil, fmt.Errorf("decoding vehicle spec %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// DefaultVehicleSpec returns the PixelCar geometry.
func DefaultVehicleSpec() *VehicleSpec {
	const (
		paint  = "#3ec6f3"
		chrome = "#e0e0e0"
		glass  = "#222a3a"
	)
	box := func(role string, size, pos [3]float64, color string) Part {
		return Part{Kind: ShapeBox, Role: role, Size: size[:], Position: pos[:], Color: color}
	}
	window := func(size, pos [3]float64) Part {
		p := box("window", size, pos, glass)
		p.Opacity = 0.7
		return p
	}
	headlight := func(x float64) Part {
		return Part{Kind: ShapeCylinder, Role: RoleHeadlight, Radius: 0.15, Height: 0.08,
			Position: []float64{x, 0.65, 2.18}, Color: "#ffe066"}
	}

	return &VehicleSpec{
		Name: "PixelCar",
		Wheel: WheelSpec{
			Radius:      0.4,
			Width:       0.3,
			Color:       "#222222",
			Track:       1,
			AxleOffset:  1.5,
			WheelBase:   WheelBase,
			MaxSteering: MaxSteering,
		},
		Parts: []Part{
			box("body", [3]float64{1.5, 0.7, 4}, [3]float64{0, 0.75, 0}, paint),
			box("chassis", [3]float64{2.2, 0.5, 2}, [3]float64{0, 0.6, 0}, paint),
			box("arch", [3]float64{0.7, 0.1, 0.9}, [3]float64{-0.75, 0.85, 1.5}, paint),
			box("arch", [3]float64{0.7, 0.1, 0.9}, [3]float64{0.75, 0.85, 1.5}, paint),
			box("arch", [3]float64{0.7, 0.1, 0.9}, [3]float64{-0.75, 0.85, -1.5}, paint),
			box("arch", [3]float64{0.7, 0.1, 0.9}, [3]float64{0.75, 0.85, -1.5}, paint),
			box("roof", [3]float64{1.6, 0.6, 3}, [3]float64{0, 1.3, -0.5}, paint),
			box("hood", [3]float64{1, 0.4, 0.2}, [3]float64{0, 0.55, 1.55}, paint),
			box("trunk", [3]float64{2.2, 0.4, 0.2}, [3]float64{0, 0.6, -2}, paint),
			box("bumper", [3]float64{2.3, 0.25, 0.3}, [3]float64{0, 0.38, 2.1}, chrome),
			box("bumper", [3]float64{2.3, 0.25, 0.3}, [3]float64{0, 0.38, -2.15}, chrome),
			headlight(-0.5),
			headlight(0.5),
			box("taillight", [3]float64{0.18, 0.18, 0.08}, [3]float64{-0.5, 0.65, -2.18}, "#ffa500"),
			box("taillight", [3]float64{0.18, 0.18, 0.08}, [3]float64{0.5, 0.65, -2.18}, "#ffa500"),
			window([3]float64{0.04, 0.45, 0.8}, [3]float64{-0.81, 1.25, 0.3}),
			window([3]float64{0.04, 0.45, 1.2}, [3]float64{-0.81, 1.25, -1}),
			window([3]float64{0.04, 0.45, 0.8}, [3]float64{0.81, 1.25, 0.3}),
			window([3]float64{0.04, 0.45, 1.2}, [3]float64{0.81, 1.25, -1}),
			window([3]float64{1.4, 0.45, 0.04}, [3]float64{0, 1.25, 1}),
			window([3]float64{1.4, 0.3, 0.04}, [3]float64{0, 1.35, -2}),
			box("mirror", [3]float64{0.12, 0.2, 0.12}, [3]float64{-0.86, 1.2, 1}, "#888888"),
			box("mirror", [3]float64{0.12, 0.2, 0.12}, [3]float64{0.86, 1.2, 1}, "#888888"),
		},
	}
}
