//go:build js && wasm

// Command wasm runs the driving core inside the page. After loading, it
// registers global JavaScript functions:
//
//	pixelcarStep(steer, throttle, fire, dt) -> frame object
//	pixelcarCamera(phase, dx, dy)            phase: "begin" | "move" | "end" | "zoom"
//	pixelcarIsMobile(userAgent) -> bool
//
// The page owns the render loop and measures dt itself; Step caps it at
// 0.1s, or 0.05s when navigator.userAgent looks like a phone or tablet.
package main

import (
	"syscall/js"

	"github.com/rs/zerolog"

	"github.com/race/pixelcar/config"
	"github.com/race/pixelcar/internal/game"
	"github.com/race/pixelcar/internal/network"
)

var session *game.Session

func main() {
	ua := js.Global().Get("navigator").Get("userAgent")
	mobile := ua.Type() == js.TypeString && game.IsMobileUserAgent(ua.String())

	session = game.NewSession("page", nil, game.SessionOptions{
		Tuning: config.DefaultTuning(),
		Camera: config.DefaultCameraTuning(),
		Mobile: mobile,
		Logger: zerolog.Nop(),
	})

	js.Global().Set("pixelcarStep", js.FuncOf(step))
	js.Global().Set("pixelcarCamera", js.FuncOf(camera))
	js.Global().Set("pixelcarIsMobile", js.FuncOf(isMobile))
	select {} // keep the WASM module alive until the page is closed
}

func step(_ js.Value, args []js.Value) any {
	if len(args) < 4 {
		return map[string]any{"error": "expected steer, throttle, fire, dt"}
	}

	session.HandleInput(game.InputState{
		Steer:    args[0].Float(),
		Throttle: args[1].Float(),
		Fire:     args[2].Truthy(),
	})
	f := session.Step(args[3].Float())

	v := f.Vehicle
	projectiles := make([]any, len(f.Projectiles))
	for i, p := range f.Projectiles {
		projectiles[i] = map[string]any{
			"id": p.ID,
			"x":  p.Position.X(),
			"y":  p.Position.Y(),
			"z":  p.Position.Z(),
		}
	}

	return map[string]any{
		"x":             v.Position.X(),
		"y":             v.Position.Y(),
		"z":             v.Position.Z(),
		"heading":       v.Heading,
		"speed":         v.Speed,
		"speedKmh":      v.SpeedKmh(),
		"steeringAngle": v.SteeringAngle,
		"wheelSpin":     v.WheelSpin,
		"reversing":     v.IsReversing,
		"braking":       v.IsBraking,
		"eye":           []any{f.Camera.Eye.X(), f.Camera.Eye.Y(), f.Camera.Eye.Z()},
		"lookAt":        []any{f.Camera.LookAt.X(), f.Camera.LookAt.Y(), f.Camera.LookAt.Z()},
		"projectiles":   projectiles,
	}
}

func camera(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return nil
	}
	var dx, dy float64
	if len(args) >= 3 {
		dx, dy = args[1].Float(), args[2].Float()
	}

	switch args[0].String() {
	case "begin":
		session.HandleCameraDrag(network.DragBegin, 0, 0)
	case "move":
		session.HandleCameraDrag(network.DragMove, dx, dy)
	case "end":
		session.HandleCameraDrag(network.DragEnd, 0, 0)
	case "zoom":
		session.HandleCameraZoom(dy)
	}
	return nil
}

func isMobile(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return false
	}
	return game.IsMobileUserAgent(args[0].String())
}
