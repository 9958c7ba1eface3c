// Package telemetry holds the OpenTelemetry instruments for the driving
// sessions. Instruments record against the global meter provider, which is a
// no-op until an SDK provider is installed.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ScopeName identifies this module's instruments.
const ScopeName = "github.com/race/pixelcar"

// Metrics groups the session instruments. A nil *Metrics records nothing.
type Metrics struct {
	sessionsActive   metric.Int64UpDownCounter
	projectilesFired metric.Int64Counter
	frameDelta       metric.Float64Histogram
}

// New creates the instruments on the given meter.
func New(meter metric.Meter) (*Metrics, error) {
	sessions, err := meter.Int64UpDownCounter("pixelcar.sessions.active",
		metric.WithDescription("Driving sessions currently running"))
	if err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}

	fired, err := meter.Int64Counter("pixelcar.projectiles.fired",
		metric.WithDescription("Projectiles spawned"))
	if err != nil {
		return nil, fmt.Errorf("creating projectile counter: %w", err)
	}

	dt, err := meter.Float64Histogram("pixelcar.frame.dt",
		metric.WithDescription("Clamped frame delta fed to the simulation"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating frame delta histogram: %w", err)
	}

	return &Metrics{
		sessionsActive:   sessions,
		projectilesFired: fired,
		frameDelta:       dt,
	}, nil
}

// Global creates the instruments on the global meter provider, falling back
// to no-op instruments if registration fails.
func Global() *Metrics {
	m, err := New(otel.Meter(ScopeName))
	if err != nil {
		return Noop()
	}
	return m
}

// Noop returns instruments that discard everything.
func Noop() *Metrics {
	m, _ := New(noop.NewMeterProvider().Meter(ScopeName))
	return m
}

func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1)
}

func (m *Metrics) SessionEnded(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, -1)
}

func (m *Metrics) ProjectilesFired(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.projectilesFired.Add(ctx, int64(n))
}

func (m *Metrics) FrameDelta(ctx context.Context, dt float64) {
	if m == nil {
		return
	}
	m.frameDelta.Record(ctx, dt)
}
