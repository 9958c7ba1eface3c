package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// Vehicle constants - canonical tuning set used by every frontend
const (
	// Motion
	MaxSpeed            = 12.0 // m/s
	Acceleration        = 4.0
	Deceleration        = 0.001 // coasting drag with no throttle
	BrakeDeceleration   = 10.0  // reverse release / soft braking
	BrakingDeceleration = 20.0  // throttle held against the direction of travel
	ReverseFactor       = 2.0   // reverse top speed = MaxSpeed / ReverseFactor

	// Steering
	SteeringSpeed = math.Pi * 5 // rad/s
	MaxSteering   = math.Pi / 3
	WheelBase     = 2.5

	// Ground square is [-GroundLimit, GroundLimit] on x and z
	GroundLimit = 49.0

	// Throttle input is integrated with this fixed step, not the frame delta
	ThrottleSubstep = 0.016
	// Speeds at or below this magnitude count as stopped
	MotionEpsilon = 0.01

	// Projectiles
	FireInterval    = 0.1 // seconds of simulated time between shots
	LaunchSpeed     = 30.0
	Gravity         = 9.8
	ProjectileFloor = 0.0

	// Frame timing
	PhysicsTickRate     = 60 // Hz
	FrameBroadcastRate  = 30 // Hz
	MaxFrameDelta       = 0.1
	MaxFrameDeltaMobile = 0.05

	// Server limits
	MaxSessions      = 64
	MaxInputsPerTick = 3 // extra inputs within one tick are dropped
	InputBufferSize  = 8
)

// Camera constants
const (
	CameraRadius          = 12.0
	CameraZoomBase        = 15.0
	CameraMinRadius       = CameraZoomBase * 0.3
	CameraMaxRadius       = CameraZoomBase * 2
	CameraLerpFactor      = 0.05
	CameraPositionLerp    = 0.15
	CameraPhiLow          = -60 * math.Pi / 180 // target phi at rest
	CameraPhiHigh         = -40 * math.Pi / 180 // target phi at top speed
	CameraPhiMin          = -80 * math.Pi / 180
	CameraPhiMax          = -60 * math.Pi / 180
	CameraDragSensitivity = 0.01
	CameraZoomSpeed       = 0.001
	CameraFollowThreshold = 0.1
)

// Tuning holds the vehicle motion parameters.
type Tuning struct {
	MaxSpeed            float64 `mapstructure:"maxSpeed"`
	Acceleration        float64 `mapstructure:"acceleration"`
	Deceleration        float64 `mapstructure:"deceleration"`
	BrakeDeceleration   float64 `mapstructure:"brakeDeceleration"`
	BrakingDeceleration float64 `mapstructure:"brakingDeceleration"`
	ReverseFactor       float64 `mapstructure:"reverseFactor"`
	SteeringSpeed       float64 `mapstructure:"steeringSpeed"`
	GroundLimit         float64 `mapstructure:"groundLimit"`
	FireInterval        float64 `mapstructure:"fireInterval"`
	LaunchSpeed         float64 `mapstructure:"launchSpeed"`
	Gravity             float64 `mapstructure:"gravity"`
	ProjectileFloor     float64 `mapstructure:"projectileFloor"`
}

// DefaultTuning returns the canonical parameter set.
func DefaultTuning() Tuning {
	return Tuning{
		MaxSpeed:            MaxSpeed,
		Acceleration:        Acceleration,
		Deceleration:        Deceleration,
		BrakeDeceleration:   BrakeDeceleration,
		BrakingDeceleration: BrakingDeceleration,
		ReverseFactor:       ReverseFactor,
		SteeringSpeed:       SteeringSpeed,
		GroundLimit:         GroundLimit,
		FireInterval:        FireInterval,
		LaunchSpeed:         LaunchSpeed,
		Gravity:             Gravity,
		ProjectileFloor:     ProjectileFloor,
	}
}

// MaxReverseSpeed is the magnitude cap while reversing.
func (t Tuning) MaxReverseSpeed() float64 {
	return t.MaxSpeed / t.ReverseFactor
}

// Validate rejects parameter sets the kinematics cannot run with.
func (t Tuning) Validate() error {
	positive := map[string]float64{
		"maxSpeed":      t.MaxSpeed,
		"acceleration":  t.Acceleration,
		"steeringSpeed": t.SteeringSpeed,
		"groundLimit":   t.GroundLimit,
		"launchSpeed":   t.LaunchSpeed,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("tuning.%s must be positive, got %v", name, v)
		}
	}
	if t.ReverseFactor < 1 {
		return fmt.Errorf("tuning.reverseFactor must be at least 1, got %v", t.ReverseFactor)
	}
	if t.Deceleration < 0 || t.BrakeDeceleration < 0 || t.BrakingDeceleration < 0 {
		return fmt.Errorf("tuning decelerations must not be negative")
	}
	if t.FireInterval < 0 || t.Gravity < 0 {
		return fmt.Errorf("tuning.fireInterval and tuning.gravity must not be negative")
	}
	return nil
}

// CameraTuning holds the orbit camera parameters.
type CameraTuning struct {
	Radius          float64   `mapstructure:"radius"`
	MinRadius       float64   `mapstructure:"minRadius"`
	MaxRadius       float64   `mapstructure:"maxRadius"`
	LerpFactor      float64   `mapstructure:"lerpFactor"`
	PositionLerp    float64   `mapstructure:"positionLerp"`
	PhiLow          float64   `mapstructure:"phiLow"`
	PhiHigh         float64   `mapstructure:"phiHigh"`
	PhiMin          float64   `mapstructure:"phiMin"`
	PhiMax          float64   `mapstructure:"phiMax"`
	DragSensitivity float64   `mapstructure:"dragSensitivity"`
	ZoomSpeed       float64   `mapstructure:"zoomSpeed"`
	LookAtHeight    float64   `mapstructure:"lookAtHeight"`
	FollowThreshold float64   `mapstructure:"followThreshold"`
	InitialEye      []float64 `mapstructure:"initialEye"`
}

// DefaultCameraTuning returns the canonical camera parameters.
func DefaultCameraTuning() CameraTuning {
	return CameraTuning{
		Radius:          CameraRadius,
		MinRadius:       CameraMinRadius,
		MaxRadius:       CameraMaxRadius,
		LerpFactor:      CameraLerpFactor,
		PositionLerp:    CameraPositionLerp,
		PhiLow:          CameraPhiLow,
		PhiHigh:         CameraPhiHigh,
		PhiMin:          CameraPhiMin,
		PhiMax:          CameraPhiMax,
		DragSensitivity: CameraDragSensitivity,
		ZoomSpeed:       CameraZoomSpeed,
		LookAtHeight:    0,
		FollowThreshold: CameraFollowThreshold,
		InitialEye:      []float64{0, 10, 20},
	}
}

// Validate checks the camera band and smoothing factors.
func (c CameraTuning) Validate() error {
	if c.PhiMin > c.PhiMax {
		return fmt.Errorf("camera.phiMin (%v) above camera.phiMax (%v)", c.PhiMin, c.PhiMax)
	}
	if c.MinRadius <= 0 || c.MinRadius > c.MaxRadius {
		return fmt.Errorf("camera radius bounds invalid: [%v, %v]", c.MinRadius, c.MaxRadius)
	}
	if c.LerpFactor <= 0 || c.LerpFactor > 1 || c.PositionLerp <= 0 || c.PositionLerp > 1 {
		return fmt.Errorf("camera smoothing factors must be in (0, 1]")
	}
	if len(c.InitialEye) != 3 {
		return fmt.Errorf("camera.initialEye needs 3 components, got %d", len(c.InitialEye))
	}
	return nil
}

// ServerConfig holds the render bridge server settings.
type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	EnableCORS    bool   `mapstructure:"enableCORS"`
	MaxSessions   int    `mapstructure:"maxSessions"`
	TickRate      int    `mapstructure:"tickRate"`
	BroadcastRate int    `mapstructure:"broadcastRate"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:          "0.0.0.0",
		Port:          8080,
		EnableCORS:    true,
		MaxSessions:   MaxSessions,
		TickRate:      PhysicsTickRate,
		BroadcastRate: FrameBroadcastRate,
	}
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// VehicleConfig points at an optional geometry file.
type VehicleConfig struct {
	Spec string `mapstructure:"spec"`
}

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Vehicle VehicleConfig `mapstructure:"vehicle"`
	Tuning  Tuning        `mapstructure:"tuning"`
	Camera  CameraTuning  `mapstructure:"camera"`
}

// EnvPrefix is prepended to environment overrides, e.g. PIXELCAR_SERVER_PORT.
const EnvPrefix = "PIXELCAR"

func setDefaults(v *viper.Viper) {
	srv := DefaultServerConfig()
	v.SetDefault("server.host", srv.Host)
	v.SetDefault("server.port", srv.Port)
	v.SetDefault("server.enableCORS", srv.EnableCORS)
	v.SetDefault("server.maxSessions", srv.MaxSessions)
	v.SetDefault("server.tickRate", srv.TickRate)
	v.SetDefault("server.broadcastRate", srv.BroadcastRate)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("vehicle.spec", "")

	t := DefaultTuning()
	v.SetDefault("tuning.maxSpeed", t.MaxSpeed)
	v.SetDefault("tuning.acceleration", t.Acceleration)
	v.SetDefault("tuning.deceleration", t.Deceleration)
	v.SetDefault("tuning.brakeDeceleration", t.BrakeDeceleration)
	v.SetDefault("tuning.brakingDeceleration", t.BrakingDeceleration)
	v.SetDefault("tuning.reverseFactor", t.ReverseFactor)
	v.SetDefault("tuning.steeringSpeed", t.SteeringSpeed)
	v.SetDefault("tuning.groundLimit", t.GroundLimit)
	v.SetDefault("tuning.fireInterval", t.FireInterval)
	v.SetDefault("tuning.launchSpeed", t.LaunchSpeed)
	v.SetDefault("tuning.gravity", t.Gravity)
	v.SetDefault("tuning.projectileFloor", t.ProjectileFloor)

	c := DefaultCameraTuning()
	v.SetDefault("camera.radius", c.Radius)
	v.SetDefault("camera.minRadius", c.MinRadius)
	v.SetDefault("camera.maxRadius", c.MaxRadius)
	v.SetDefault("camera.lerpFactor", c.LerpFactor)
	v.SetDefault("camera.positionLerp", c.PositionLerp)
	v.SetDefault("camera.phiLow", c.PhiLow)
	v.SetDefault("camera.phiHigh", c.PhiHigh)
	v.SetDefault("camera.phiMin", c.PhiMin)
	v.SetDefault("camera.phiMax", c.PhiMax)
	v.SetDefault("camera.dragSensitivity", c.DragSensitivity)
	v.SetDefault("camera.zoomSpeed", c.ZoomSpeed)
	v.SetDefault("camera.lookAtHeight", c.LookAtHeight)
	v.SetDefault("camera.followThreshold", c.FollowThreshold)
	v.SetDefault("camera.initialEye", c.InitialEye)
}

// Load reads configuration from an optional file plus PIXELCAR_* environment
// overrides. An empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Camera.Validate(); err != nil {
		return nil, err
	}
	if cfg.Server.TickRate <= 0 || cfg.Server.BroadcastRate <= 0 {
		return nil, fmt.Errorf("server tick and broadcast rates must be positive")
	}

	return &cfg, nil
}
