package network

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrBufferTooSmall = errors.New("buffer too small")
)

const (
	frameHeaderSize      = 63
	frameProjectileSize  = 16
	projectileSpawnSize  = 29
	projectileRemoveSize = 5
	maxListLen           = 255
)

// Protocol handles binary encoding/decoding. All multi-byte values are
// little-endian; floats are IEEE-754 float32.
type Protocol struct{}

// NewProtocol creates a new protocol handler
func NewProtocol() *Protocol {
	return &Protocol{}
}

// DecodeInput decodes a client input message (6 bytes)
func (p *Protocol) DecodeInput(data []byte) (*InputMessage, error) {
	if len(data) < 6 {
		return nil, ErrBufferTooSmall
	}

	if data[0] != MsgTypeInput {
		return nil, ErrInvalidMessage
	}

	return &InputMessage{
		MsgType:  data[0],
		Sequence: data[1],
		Keys:     data[2],
		Steering: int8(data[3]),
		Throttle: int8(data[4]),
		Flags:    data[5],
	}, nil
}

// EncodeInput encodes a client input message; used by Go clients and tests
func (p *Protocol) EncodeInput(msg InputMessage) []byte {
	return []byte{
		MsgTypeInput,
		msg.Sequence,
		msg.Keys,
		uint8(msg.Steering),
		uint8(msg.Throttle),
		msg.Flags,
	}
}

// DecodeJoin decodes a join message: [type][nameLen][name][flags]
func (p *Protocol) DecodeJoin(data []byte) (*JoinMessage, error) {
	if len(data) < 3 {
		return nil, ErrBufferTooSmall
	}

	if data[0] != MsgTypeJoin {
		return nil, ErrInvalidMessage
	}

	nameLen := int(data[1])
	if len(data) < 3+nameLen {
		return nil, ErrBufferTooSmall
	}

	return &JoinMessage{
		MsgType: data[0],
		Name:    string(data[2 : 2+nameLen]),
		Flags:   data[2+nameLen],
	}, nil
}

// EncodeJoin encodes a join message
func (p *Protocol) EncodeJoin(name string, flags uint8) []byte {
	nameBytes := truncate(name)
	buf := make([]byte, 3+len(nameBytes))
	buf[0] = MsgTypeJoin
	buf[1] = uint8(len(nameBytes))
	copy(buf[2:], nameBytes)
	buf[2+len(nameBytes)] = flags
	return buf
}

// DecodeCameraDrag decodes a camera drag message (6 bytes)
func (p *Protocol) DecodeCameraDrag(data []byte) (*CameraDragMessage, error) {
	if len(data) < 6 {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypeCameraDrag {
		return nil, ErrInvalidMessage
	}
	phase := data[1]
	if phase < DragBegin || phase > DragEnd {
		return nil, ErrInvalidMessage
	}

	return &CameraDragMessage{
		MsgType: data[0],
		Phase:   phase,
		DX:      int16(binary.LittleEndian.Uint16(data[2:4])),
		DY:      int16(binary.LittleEndian.Uint16(data[4:6])),
	}, nil
}

// EncodeCameraDrag encodes a camera drag message
func (p *Protocol) EncodeCameraDrag(phase uint8, dx, dy int16) []byte {
	buf := make([]byte, 6)
	buf[0] = MsgTypeCameraDrag
	buf[1] = phase
	binary.LittleEndian.PutUint16(buf[2:4], uint16(dx))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(dy))
	return buf
}

// DecodeCameraZoom decodes a camera zoom message (3 bytes)
func (p *Protocol) DecodeCameraZoom(data []byte) (*CameraZoomMessage, error) {
	if len(data) < 3 {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypeCameraZoom {
		return nil, ErrInvalidMessage
	}

	return &CameraZoomMessage{
		MsgType: data[0],
		DeltaY:  int16(binary.LittleEndian.Uint16(data[1:3])),
	}, nil
}

// EncodeCameraZoom encodes a camera zoom message
func (p *Protocol) EncodeCameraZoom(deltaY int16) []byte {
	buf := make([]byte, 3)
	buf[0] = MsgTypeCameraZoom
	binary.LittleEndian.PutUint16(buf[1:3], uint16(deltaY))
	return buf
}

// DecodePing extracts the client timestamp from [type][timestamp:8]
func (p *Protocol) DecodePing(data []byte) (uint64, error) {
	if len(data) < 9 {
		return 0, ErrBufferTooSmall
	}
	if data[0] != MsgTypePing {
		return 0, ErrInvalidMessage
	}
	return binary.LittleEndian.Uint64(data[1:9]), nil
}

// EncodeFrame encodes a frame message
func (p *Protocol) EncodeFrame(frame FrameData) []byte {
	count := len(frame.Projectiles)
	if count > maxListLen {
		count = maxListLen
	}

	buf := make([]byte, frameHeaderSize+count*frameProjectileSize)
	buf[0] = MsgTypeFrame
	binary.LittleEndian.PutUint32(buf[1:5], frame.Tick)
	buf[5] = frame.Flags

	off := 6
	off = putVec3(buf, off, frame.Position)
	off = putFloat32(buf, off, frame.Heading)
	off = putFloat32(buf, off, frame.Speed)
	off = putFloat32(buf, off, frame.SteeringAngle)
	off = putFloat32(buf, off, frame.WheelSpin)
	off = putFloat32(buf, off, frame.SpeedKmh)
	off = putVec3(buf, off, frame.Eye)
	off = putVec3(buf, off, frame.LookAt)
	buf[off] = uint8(count)
	off++

	for i := 0; i < count; i++ {
		proj := frame.Projectiles[i]
		binary.LittleEndian.PutUint32(buf[off:], proj.ID)
		off = putVec3(buf, off+4, proj.Position)
	}

	return buf
}

// DecodeFrame decodes a frame message; the inverse of EncodeFrame
func (p *Protocol) DecodeFrame(data []byte) (*FrameData, error) {
	if len(data) < frameHeaderSize {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypeFrame {
		return nil, ErrInvalidMessage
	}

	f := &FrameData{
		Tick:  binary.LittleEndian.Uint32(data[1:5]),
		Flags: data[5],
	}
	off := 6
	f.Position, off = readVec3(data, off)
	f.Heading, off = readFloat32(data, off)
	f.Speed, off = readFloat32(data, off)
	f.SteeringAngle, off = readFloat32(data, off)
	f.WheelSpin, off = readFloat32(data, off)
	f.SpeedKmh, off = readFloat32(data, off)
	f.Eye, off = readVec3(data, off)
	f.LookAt, off = readVec3(data, off)
	count := int(data[off])
	off++

	if len(data) < off+count*frameProjectileSize {
		return nil, ErrBufferTooSmall
	}
	f.Projectiles = make([]ProjectileData, count)
	for i := range f.Projectiles {
		f.Projectiles[i].ID = binary.LittleEndian.Uint32(data[off:])
		f.Projectiles[i].Position, off = readVec3(data, off+4)
	}

	return f, nil
}

// EncodeProjectileSpawn encodes a projectile spawn event
func (p *Protocol) EncodeProjectileSpawn(spawn ProjectileSpawnData) []byte {
	buf := make([]byte, projectileSpawnSize)
	buf[0] = MsgTypeProjectileSpawn
	binary.LittleEndian.PutUint32(buf[1:5], spawn.ID)
	off := putVec3(buf, 5, spawn.Position)
	putVec3(buf, off, spawn.Velocity)
	return buf
}

// EncodeProjectileRemove encodes a projectile removal event
func (p *Protocol) EncodeProjectileRemove(id uint32) []byte {
	buf := make([]byte, projectileRemoveSize)
	buf[0] = MsgTypeProjectileRemove
	binary.LittleEndian.PutUint32(buf[1:5], id)
	return buf
}

// EncodeVehicleSpec encodes the vehicle geometry:
// [type][nameLen][name][wheel:20][partCount] then per part
// [kind][roleLen][role][size:12][radius:4][height:4][position:12][color:4][opacity:1]
func (p *Protocol) EncodeVehicleSpec(spec VehicleSpecData) []byte {
	name := truncate(spec.Name)
	parts := spec.Parts
	if len(parts) > maxListLen {
		parts = parts[:maxListLen]
	}

	size := 2 + len(name) + 20 + 1
	for _, part := range parts {
		size += 2 + len(truncate(part.Role)) + 37
	}

	buf := make([]byte, size)
	buf[0] = MsgTypeVehicleSpec
	buf[1] = uint8(len(name))
	copy(buf[2:], name)
	off := 2 + len(name)

	off = putFloat32(buf, off, spec.Wheel.Radius)
	off = putFloat32(buf, off, spec.Wheel.Width)
	off = putFloat32(buf, off, spec.Wheel.Track)
	off = putFloat32(buf, off, spec.Wheel.AxleOffset)
	binary.LittleEndian.PutUint32(buf[off:], spec.Wheel.Color)
	off += 4

	buf[off] = uint8(len(parts))
	off++

	for _, part := range parts {
		role := truncate(part.Role)
		buf[off] = part.Kind
		buf[off+1] = uint8(len(role))
		copy(buf[off+2:], role)
		off += 2 + len(role)
		off = putVec3(buf, off, part.Size)
		off = putFloat32(buf, off, part.Radius)
		off = putFloat32(buf, off, part.Height)
		off = putVec3(buf, off, part.Position)
		binary.LittleEndian.PutUint32(buf[off:], part.Color)
		off += 4
		buf[off] = part.Opacity
		off++
	}

	return buf
}

// DecodeVehicleSpec decodes a vehicle spec message
func (p *Protocol) DecodeVehicleSpec(data []byte) (*VehicleSpecData, error) {
	if len(data) < 2 {
		return nil, ErrBufferTooSmall
	}
	if data[0] != MsgTypeVehicleSpec {
		return nil, ErrInvalidMessage
	}

	nameLen := int(data[1])
	off := 2 + nameLen
	if len(data) < off+21 {
		return nil, ErrBufferTooSmall
	}

	spec := &VehicleSpecData{Name: string(data[2:off])}
	spec.Wheel.Radius, off = readFloat32(data, off)
	spec.Wheel.Width, off = readFloat32(data, off)
	spec.Wheel.Track, off = readFloat32(data, off)
	spec.Wheel.AxleOffset, off = readFloat32(data, off)
	spec.Wheel.Color = binary.LittleEndian.Uint32(data[off:])
	off += 4

	count := int(data[off])
	off++
	spec.Parts = make([]PartData, 0, count)

	for i := 0; i < count; i++ {
		if len(data) < off+2 {
			return nil, ErrBufferTooSmall
		}
		var part PartData
		part.Kind = data[off]
		roleLen := int(data[off+1])
		off += 2
		if len(data) < off+roleLen+37 {
			return nil, ErrBufferTooSmall
		}
		part.Role = string(data[off : off+roleLen])
		off += roleLen
		part.Size, off = readVec3(data, off)
		part.Radius, off = readFloat32(data, off)
		part.Height, off = readFloat32(data, off)
		part.Position, off = readVec3(data, off)
		part.Color = binary.LittleEndian.Uint32(data[off:])
		off += 4
		part.Opacity = data[off]
		off++
		spec.Parts = append(spec.Parts, part)
	}

	return spec, nil
}

// EncodeSessionInfo encodes session info message
func (p *Protocol) EncodeSessionInfo(sessionID string, tickRate, broadcastRate uint8) []byte {
	idBytes := truncate(sessionID)

	buf := make([]byte, 4+len(idBytes))
	buf[0] = MsgTypeSessionInfo
	buf[1] = uint8(len(idBytes))
	copy(buf[2:], idBytes)
	offset := 2 + len(idBytes)
	buf[offset] = tickRate
	buf[offset+1] = broadcastRate

	return buf
}

// EncodePong encodes a pong message
func (p *Protocol) EncodePong(timestamp uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = MsgTypePong
	binary.LittleEndian.PutUint64(buf[1:9], timestamp)
	return buf
}

// EncodeError encodes an error message
func (p *Protocol) EncodeError(code uint8, message string) []byte {
	msgBytes := truncate(message)

	buf := make([]byte, 3+len(msgBytes))
	buf[0] = MsgTypeError
	buf[1] = code
	buf[2] = uint8(len(msgBytes))
	copy(buf[3:], msgBytes)

	return buf
}

// DecodeSteeringThrottle converts int8 values to float64
func DecodeSteeringThrottle(steering, throttle int8) (float64, float64) {
	return float64(steering) / 127.0, float64(throttle) / 127.0
}

// EncodeAxis converts a [-1, 1] value to the int8 wire form
func EncodeAxis(v float64) int8 {
	return int8(math.Round(math.Max(-1, math.Min(1, v)) * 127))
}

// ToVec3 narrows a float64 triple for the wire
func ToVec3(x, y, z float64) [3]float32 {
	return [3]float32{float32(x), float32(y), float32(z)}
}

func truncate(s string) []byte {
	b := []byte(s)
	if len(b) > maxListLen {
		b = b[:maxListLen]
	}
	return b
}

func putFloat32(buf []byte, off int, v float32) int {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
	return off + 4
}

func putVec3(buf []byte, off int, v [3]float32) int {
	for _, c := range v {
		off = putFloat32(buf, off, c)
	}
	return off
}

func readFloat32(data []byte, off int) (float32, int) {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off:])), off + 4
}

func readVec3(data []byte, off int) ([3]float32, int) {
	var v [3]float32
	for i := range v {
		v[i], off = readFloat32(data, off)
	}
	return v, off
}
