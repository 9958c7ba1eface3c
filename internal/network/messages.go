package network

// Message types
const (
	// Client -> Server
	MsgTypeInput      uint8 = 0x01
	MsgTypeJoin       uint8 = 0x02
	MsgTypeLeave      uint8 = 0x03
	MsgTypePing       uint8 = 0x04
	MsgTypeCameraDrag uint8 = 0x05
	MsgTypeCameraZoom uint8 = 0x06

	// Server -> Client
	MsgTypeFrame            uint8 = 0x10
	MsgTypeProjectileSpawn  uint8 = 0x11
	MsgTypeProjectileRemove uint8 = 0x12
	MsgTypeSessionInfo      uint8 = 0x14
	MsgTypePong             uint8 = 0x15
	MsgTypeVehicleSpec      uint8 = 0x16
	MsgTypeError            uint8 = 0xFF
)

// Key flags (bit field)
const (
	KeyUp    uint8 = 1 << 0
	KeyDown  uint8 = 1 << 1
	KeyLeft  uint8 = 1 << 2
	KeyRight uint8 = 1 << 3
	KeyFire  uint8 = 1 << 4
)

// Input flags
const (
	InputFlagFireButton uint8 = 1 << 0 // on-screen touch button held
)

// Join flags
const (
	JoinFlagMobile uint8 = 1 << 0
)

// Frame flags
const (
	FrameFlagReversing uint8 = 1 << 0
	FrameFlagBraking   uint8 = 1 << 1
	FrameFlagDragging  uint8 = 1 << 2
)

// Camera drag phases
const (
	DragBegin uint8 = 1
	DragMove  uint8 = 2
	DragEnd   uint8 = 3
)

// Shape kinds on the wire
const (
	ShapeBox      uint8 = 1
	ShapeCylinder uint8 = 2
)

// InputMessage from client (6 bytes)
type InputMessage struct {
	MsgType  uint8
	Sequence uint8
	Keys     uint8
	Steering int8 // -127 to 127 -> -1.0 to 1.0
	Throttle int8 // -127 to 127 -> -1.0 to 1.0
	Flags    uint8
}

// JoinMessage from client
type JoinMessage struct {
	MsgType uint8
	Name    string
	Flags   uint8
}

// CameraDragMessage from client (6 bytes)
type CameraDragMessage struct {
	MsgType uint8
	Phase   uint8
	DX      int16 // pixels
	DY      int16
}

// CameraZoomMessage from client (3 bytes)
type CameraZoomMessage struct {
	MsgType uint8
	DeltaY  int16 // wheel delta
}

// ProjectileData is one live projectile inside a frame (16 bytes)
type ProjectileData struct {
	ID       uint32
	Position [3]float32
}

// FrameData is the per-frame render state (63 bytes + 16 per projectile)
type FrameData struct {
	Tick          uint32
	Flags         uint8
	Position      [3]float32
	Heading       float32
	Speed         float32
	SteeringAngle float32
	WheelSpin     float32
	SpeedKmh      float32
	Eye           [3]float32
	LookAt        [3]float32
	Projectiles   []ProjectileData
}

// ProjectileSpawnData announces a new projectile (29 bytes with header)
type ProjectileSpawnData struct {
	ID       uint32
	Position [3]float32
	Velocity [3]float32
}

// PartData is one shape descriptor in a vehicle spec message
type PartData struct {
	Kind     uint8
	Role     string
	Size     [3]float32 // boxes
	Radius   float32    // cylinders
	Height   float32
	Position [3]float32
	Color    uint32
	Opacity  uint8 // 0 = opaque, otherwise alpha * 255
}

// WheelData carries the wheel geometry
type WheelData struct {
	Radius     float32
	Width      float32
	Track      float32
	AxleOffset float32
	Color      uint32
}

// VehicleSpecData is the geometry a renderer builds meshes from
type VehicleSpecData struct {
	Name  string
	Wheel WheelData
	Parts []PartData
}

// SessionInfoMessage to client
type SessionInfoMessage struct {
	MsgType       uint8
	SessionID     string
	TickRate      uint8
	BroadcastRate uint8
}

// PongMessage to client
type PongMessage struct {
	MsgType   uint8
	Timestamp uint64
}

// ErrorMessage to client
type ErrorMessage struct {
	MsgType uint8
	Code    uint8
	Message string
}

// Error codes
const (
	ErrorCodeInvalidMessage uint8 = 1
	ErrorCodeServerFull     uint8 = 2
	ErrorCodeNotJoined      uint8 = 3
	ErrorCodeServerError    uint8 = 4
)
