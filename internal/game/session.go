// Package game implements the driving core: vehicle kinematics, projectiles,
// the orbit camera, and the session loop that ties them to a renderer.
package game

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/race/pixelcar/config"
	"github.com/race/pixelcar/internal/logging"
	"github.com/race/pixelcar/internal/network"
	"github.com/race/pixelcar/internal/telemetry"
)

// Connection is the renderer end of a session
type Connection interface {
	Send(data []byte) error
	Close() error
	RemoteAddr() string
}

// SessionOptions configures a session. Zero rates fall back to the defaults;
// a nil Spec uses the built-in vehicle.
type SessionOptions struct {
	Tuning        config.Tuning
	Camera        config.CameraTuning
	Spec          *config.VehicleSpec
	TickRate      int
	BroadcastRate int
	Mobile        bool
	Logger        zerolog.Logger
	Metrics       *telemetry.Metrics

	// OnProjectile receives spawn/expire events after each step, on the
	// session goroutine
	OnProjectile func(ProjectileEvent)
}

// Frame is what a renderer needs to draw one frame
type Frame struct {
	Tick        uint64
	Vehicle     VehicleState
	Camera      CameraState
	Projectiles []Projectile
}

// SessionStats is reported by the stats endpoint
type SessionStats struct {
	ID            string       `json:"id"`
	RemoteAddr    string       `json:"remoteAddr,omitempty"`
	Mobile        bool         `json:"mobile"`
	Uptime        float64      `json:"uptimeSeconds"`
	Tick          uint64       `json:"tick"`
	SpeedKmh      float64      `json:"speedKmh"`
	Projectiles   int          `json:"projectiles"`
	DroppedInputs uint64       `json:"droppedInputs"`
	Frames        FrameSummary `json:"frames"`
}

type cameraCommand struct {
	phase  uint8 // network.Drag* or 0 for zoom
	dx, dy float64
}

// Session drives one vehicle and its camera for one renderer.
//
// The vehicle and camera belong to whichever goroutine calls Step: the loop
// started by Start, or the caller directly when the session is stepped by
// hand. Input and camera commands cross over through buffered channels and
// are applied at the start of the next step.
type Session struct {
	ID        string
	CreatedAt time.Time

	conn     Connection
	opts     SessionOptions
	logger   zerolog.Logger
	sendLog  zerolog.Logger // sampled, send failures repeat every frame
	metrics  *telemetry.Metrics
	protocol *network.Protocol

	vehicle *Vehicle
	camera  *OrbitCamera
	clock   *FrameClock
	stats   *FrameStats

	inputs   chan InputState
	commands chan cameraCommand
	current  InputState
	pending  []ProjectileEvent

	tick    atomic.Uint64
	dropped atomic.Uint64

	mu        sync.RWMutex // protects lastFrame
	lastFrame Frame

	running  atomic.Bool
	stopped  atomic.Bool
	stopChan chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

// NewSession creates a session. The loop is not started; call Start or
// drive it with Step.
func NewSession(id string, conn Connection, opts SessionOptions) *Session {
	if opts.Spec == nil {
		opts.Spec = config.DefaultVehicleSpec()
	}
	if opts.TickRate <= 0 {
		opts.TickRate = config.PhysicsTickRate
	}
	if opts.BroadcastRate <= 0 {
		opts.BroadcastRate = config.FrameBroadcastRate
	}

	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		conn:      conn,
		opts:      opts,
		logger:    opts.Logger.With().Str("session", id).Logger(),
		metrics:   opts.Metrics,
		protocol:  network.NewProtocol(),
		vehicle:   NewVehicle(opts.Tuning, opts.Spec.Kinematics()),
		camera:    NewOrbitCamera(opts.Camera),
		clock:     NewFrameClock(MaxDeltaFor(opts.Mobile)),
		stats:     NewFrameStats(DefaultStatsWindow),
		inputs:    make(chan InputState, config.InputBufferSize),
		commands:  make(chan cameraCommand, config.InputBufferSize),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.sendLog = logging.Sampled(s.logger)
	s.vehicle.SetProjectileListener(func(e ProjectileEvent) {
		s.pending = append(s.pending, e)
	})
	s.lastFrame = s.frame()
	return s
}

// Start sends the session info and vehicle geometry, then runs the loop in
// its own goroutine. Safe to call multiple times.
func (s *Session) Start() {
	if s.stopped.Load() || s.running.Swap(true) {
		return
	}

	s.send(s.protocol.EncodeSessionInfo(s.ID, rate(s.opts.TickRate), rate(s.opts.BroadcastRate)))
	s.send(s.protocol.EncodeVehicleSpec(SpecData(s.opts.Spec)))

	s.metrics.SessionStarted(context.Background())
	go s.loop()
	s.logger.Info().Bool("mobile", s.opts.Mobile).Msg("session started")
}

// Stop ends the loop and closes the connection. Safe to call multiple times.
func (s *Session) Stop() {
	s.stop(true)
}

// Detach ends the loop but leaves the connection open, so the renderer can
// join again on it
func (s *Session) Detach() {
	s.stop(false)
}

func (s *Session) stop(closeConn bool) {
	if s.stopped.Swap(true) {
		return
	}
	close(s.stopChan)

	if s.running.Load() {
		s.metrics.SessionEnded(context.Background())
	} else {
		s.doneOnce.Do(func() { close(s.done) })
	}
	if closeConn && s.conn != nil {
		s.conn.Close()
	}
	s.logger.Info().Uint64("ticks", s.tick.Load()).Msg("session stopped")
}

// Done is closed once the loop has exited
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// IsStopped reports whether Stop has been called
func (s *Session) IsStopped() bool {
	return s.stopped.Load()
}

// Mobile reports whether the session runs with the mobile frame cap
func (s *Session) Mobile() bool {
	return s.opts.Mobile
}

// HandleInput queues driver intent for the next step. Each input is a full
// snapshot, so when the buffer is full the oldest queued one is discarded
// to make room.
func (s *Session) HandleInput(in InputState) {
	for {
		select {
		case s.inputs <- in:
			return
		default:
		}
		select {
		case <-s.inputs:
			s.dropped.Add(1)
		default:
		}
	}
}

// HandleCameraDrag queues a drag phase with a pixel delta
func (s *Session) HandleCameraDrag(phase uint8, dx, dy float64) {
	s.queueCamera(cameraCommand{phase: phase, dx: dx, dy: dy})
}

// HandleCameraZoom queues a wheel zoom
func (s *Session) HandleCameraZoom(deltaY float64) {
	s.queueCamera(cameraCommand{dy: deltaY})
}

func (s *Session) queueCamera(cmd cameraCommand) {
	select {
	case s.commands <- cmd:
	default:
		s.dropped.Add(1)
	}
}

// Step runs one frame: queued commands, input, vehicle update, camera
// follow, then projectile events go out. dt is clamped to the session's
// frame cap. Returns the new frame.
func (s *Session) Step(dt float64) Frame {
	dt = clamp(dt, 0, MaxDeltaFor(s.opts.Mobile))

	s.drainInputs()
	s.drainCamera()

	s.current.Apply(s.vehicle)
	s.vehicle.Update(dt)
	s.camera.Follow(s.vehicle.State(), s.vehicle.Tuning().MaxSpeed, dt)

	s.stats.Add(dt)
	s.metrics.FrameDelta(context.Background(), dt)
	s.tick.Add(1)

	s.flushEvents()

	f := s.frame()
	s.mu.Lock()
	s.lastFrame = f
	s.mu.Unlock()
	return f
}

// Snapshot returns the most recent frame. Safe from any goroutine.
func (s *Session) Snapshot() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFrame
}

// Reconfigure swaps the vehicle geometry without resetting motion and
// resends it to the renderer. Must be called from the goroutine that steps
// the session.
func (s *Session) Reconfigure(spec *config.VehicleSpec) {
	s.opts.Spec = spec
	s.vehicle.Reconfigure(spec.Kinematics())
	s.send(s.protocol.EncodeVehicleSpec(SpecData(spec)))
}

// Stats returns timing and state counters
func (s *Session) Stats() SessionStats {
	f := s.Snapshot()
	st := SessionStats{
		ID:            s.ID,
		Mobile:        s.opts.Mobile,
		Uptime:        time.Since(s.CreatedAt).Seconds(),
		Tick:          s.tick.Load(),
		SpeedKmh:      f.Vehicle.SpeedKmh(),
		Projectiles:   len(f.Projectiles),
		DroppedInputs: s.dropped.Load(),
		Frames:        s.stats.Summary(),
	}
	if s.conn != nil {
		st.RemoteAddr = s.conn.RemoteAddr()
	}
	return st
}

// loop runs the physics ticker and the frame publisher
func (s *Session) loop() {
	defer s.doneOnce.Do(func() { close(s.done) })

	physicsTicker := time.NewTicker(time.Second / time.Duration(s.opts.TickRate))
	broadcastTicker := time.NewTicker(time.Second / time.Duration(s.opts.BroadcastRate))
	defer physicsTicker.Stop()
	defer broadcastTicker.Stop()

	s.clock.Tick(time.Now())

	for {
		select {
		case <-s.stopChan:
			return

		case now := <-physicsTicker.C:
			s.Step(s.clock.Tick(now))

		case <-broadcastTicker.C:
			s.publish()
		}
	}
}

// drainInputs takes what arrived since the last step. The newest input
// always becomes the held intent; inputs past MaxInputsPerTick in one tick
// are counted as dropped.
func (s *Session) drainInputs() {
	received := 0
	for {
		select {
		case in := <-s.inputs:
			received++
			if received > config.MaxInputsPerTick {
				s.dropped.Add(1)
			}
			s.current = in
		default:
			return
		}
	}
}

func (s *Session) drainCamera() {
	for {
		select {
		case cmd := <-s.commands:
			switch cmd.phase {
			case network.DragBegin:
				s.camera.BeginDrag()
			case network.DragMove:
				s.camera.Drag(cmd.dx, cmd.dy)
			case network.DragEnd:
				s.camera.EndDrag()
			default:
				s.camera.Zoom(cmd.dy)
			}
		default:
			return
		}
	}
}

func (s *Session) flushEvents() {
	if len(s.pending) == 0 {
		return
	}

	spawned := 0
	for _, e := range s.pending {
		switch e.Kind {
		case ProjectileSpawned:
			spawned++
			s.send(s.protocol.EncodeProjectileSpawn(e.SpawnData()))
		case ProjectileExpired:
			s.send(s.protocol.EncodeProjectileRemove(e.Projectile.ID))
		}
		if s.opts.OnProjectile != nil {
			s.opts.OnProjectile(e)
		}
	}
	s.metrics.ProjectilesFired(context.Background(), spawned)
	s.pending = s.pending[:0]
}

func (s *Session) publish() {
	if s.conn == nil {
		return
	}
	s.send(s.protocol.EncodeFrame(s.Snapshot().FrameData()))
}

func (s *Session) send(data []byte) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Send(data); err != nil {
		// Connection cleanup handles disconnects
		s.sendLog.Debug().Err(err).Msg("send failed")
	}
}

func (s *Session) frame() Frame {
	return Frame{
		Tick:        s.tick.Load(),
		Vehicle:     s.vehicle.State(),
		Camera:      s.camera.State(),
		Projectiles: s.vehicle.Projectiles(),
	}
}

func rate(hz int) uint8 {
	if hz > 255 {
		return 255
	}
	return uint8(hz)
}
