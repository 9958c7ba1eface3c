// Command pixelcar-tui drives a local session in the terminal with a
// top-down view of the ground square.
//
// Keys: W/A/S/D or arrows to drive, Space to fire, [ and ] to zoom the
// chase camera, Esc or Ctrl-C to quit.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/race/pixelcar/config"
	"github.com/race/pixelcar/internal/game"
	"github.com/race/pixelcar/internal/logging"
	"github.com/race/pixelcar/internal/telemetry"
)

const (
	frameInterval = 16 * time.Millisecond
	zoomStep      = 100.0
)

var headingGlyphs = []rune{'↑', '↖', '←', '↙', '↓', '↘', '→', '↗'}

var (
	styleGround     = tcell.StyleDefault.Foreground(tcell.ColorDarkGreen)
	styleBorder     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleCar        = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleProjectile = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleHUD        = tcell.StyleDefault.Foreground(tcell.ColorWhite)
)

// Driver is the terminal frontend
type Driver struct {
	screen  tcell.Screen
	session *game.Session
	latch   *KeyLatch
	clock   *game.FrameClock
	cue     *FireCue
	limit   float64
	logger  zerolog.Logger

	width, height int
}

func main() {
	configPath := flag.String("config", "", "path to a config file (json, yaml or toml)")
	logPath := flag.String("log", "", "write logs to this file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the renderer; logs go to a file or nowhere
	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.Setup(logOut, cfg.Log.Level, false)

	spec, err := config.LoadVehicleSpec(cfg.Vehicle.Spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vehicle spec: %v\n", err)
		os.Exit(1)
	}

	d, err := NewDriver(cfg, spec, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer d.cleanup()

	d.run()
}

// NewDriver opens the terminal and creates the local session
func NewDriver(cfg *config.Config, spec *config.VehicleSpec, logger zerolog.Logger) (*Driver, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	screen.EnableFocus()

	d := &Driver{
		screen: screen,
		latch:  NewKeyLatch(0),
		clock:  game.NewFrameClock(config.MaxFrameDelta),
		limit:  cfg.Tuning.GroundLimit,
		logger: logger,
	}
	d.width, d.height = screen.Size()

	cue, err := NewFireCue()
	if err != nil {
		// Non-fatal, the demo runs without sound
		logger.Warn().Err(err).Msg("audio initialization failed")
	}
	d.cue = cue

	d.session = game.NewSession("local", nil, game.SessionOptions{
		Tuning:  cfg.Tuning,
		Camera:  cfg.Camera,
		Spec:    spec,
		Logger:  logger,
		Metrics: telemetry.Global(),
		OnProjectile: func(e game.ProjectileEvent) {
			if e.Kind == game.ProjectileSpawned {
				d.cue.Play()
			}
		},
	})

	return d, nil
}

func (d *Driver) run() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := d.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	d.clock.Tick(time.Now())
	for {
		select {
		case ev := <-events:
			if !d.handleEvent(ev) {
				return
			}

		case now := <-ticker.C:
			d.session.HandleInput(d.latch.State(now).Input())
			frame := d.session.Step(d.clock.Tick(now))
			d.draw(frame)
		}
	}
}

func (d *Driver) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		now := time.Now()
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			d.latch.Press("ArrowUp", now)
		case tcell.KeyDown:
			d.latch.Press("ArrowDown", now)
		case tcell.KeyLeft:
			d.latch.Press("ArrowLeft", now)
		case tcell.KeyRight:
			d.latch.Press("ArrowRight", now)
		case tcell.KeyRune:
			switch r := ev.Rune(); r {
			case '[':
				d.session.HandleCameraZoom(-zoomStep)
			case ']':
				d.session.HandleCameraZoom(zoomStep)
			default:
				d.latch.Press(string(r), now)
			}
		}

	case *tcell.EventFocus:
		// key releases are not reported while unfocused
		if !ev.Focused {
			d.latch.Release()
		}

	case *tcell.EventResize:
		d.width, d.height = d.screen.Size()
		d.screen.Sync()
	}
	return true
}

// project maps ground coordinates to a cell. +z is up the screen and +x is
// to the left, matching a chase camera behind a car facing +z.
func (d *Driver) project(x, z float64) (int, int, bool) {
	w, h := d.width-2, d.height-3
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	col := 1 + int(math.Round((d.limit-x)/(2*d.limit)*float64(w-1)))
	row := 1 + int(math.Round((d.limit-z)/(2*d.limit)*float64(h-1)))
	return col, row, col >= 1 && col <= w && row >= 1 && row <= h
}

func (d *Driver) draw(f game.Frame) {
	d.screen.Clear()

	right, bottom := d.width-1, d.height-2
	for x := 0; x <= right; x++ {
		d.screen.SetContent(x, 0, '─', nil, styleBorder)
		d.screen.SetContent(x, bottom, '─', nil, styleBorder)
	}
	for y := 1; y < bottom; y++ {
		d.screen.SetContent(0, y, '│', nil, styleBorder)
		d.screen.SetContent(right, y, '│', nil, styleBorder)
		for x := 1; x < right; x++ {
			if x%8 == 0 && y%4 == 0 {
				d.screen.SetContent(x, y, '·', nil, styleGround)
			}
		}
	}

	for _, p := range f.Projectiles {
		if col, row, ok := d.project(p.Position.X(), p.Position.Z()); ok {
			d.screen.SetContent(col, row, '•', nil, styleProjectile)
		}
	}

	v := f.Vehicle
	if col, row, ok := d.project(v.Position.X(), v.Position.Z()); ok {
		d.screen.SetContent(col, row, headingGlyph(v.Heading), nil, styleCar)
	}

	gear := "D"
	if v.IsReversing {
		gear = "R"
	}
	if v.IsBraking {
		gear += " BRAKE"
	}
	hud := fmt.Sprintf(" %5.1f km/h  %-8s  steer %+5.1f°  cam θ %+6.1f° φ %+5.1f° r %4.1f  shots %d ",
		v.SpeedKmh(), gear, v.SteeringAngle*180/math.Pi,
		f.Camera.Theta*180/math.Pi, f.Camera.Phi*180/math.Pi, f.Camera.Radius, len(f.Projectiles))
	col := 0
	for _, r := range hud {
		if col >= d.width {
			break
		}
		d.screen.SetContent(col, d.height-1, r, nil, styleHUD)
		col++
	}

	d.screen.Show()
}

// headingGlyph picks the arrow closest to the facing direction on screen
func headingGlyph(heading float64) rune {
	sector := int(math.Round(heading/(math.Pi/4))) % len(headingGlyphs)
	if sector < 0 {
		sector += len(headingGlyphs)
	}
	return headingGlyphs[sector]
}

func (d *Driver) cleanup() {
	d.session.Stop()
	d.cue.Close()
	d.screen.Fini()
	d.logger.Info().Msg("terminal session closed")
}
