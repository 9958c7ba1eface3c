// Package main implements the pixelcar render bridge server.
//
// Architecture Overview:
// - A browser renderer connects over WebSocket and owns exactly one session
// - Each session runs its own kinematics loop at 60Hz
// - Frames (vehicle pose, camera, projectiles) are pushed at 30Hz
// - Projectile spawn/remove events are pushed as soon as they happen
//
// Connection Flow:
// 1. Client connects via WebSocket to /ws
// 2. Client sends Join (name + mobile flag)
// 3. Server creates a session and replies with SessionInfo and VehicleSpec
// 4. Client streams Input and camera messages, server streams Frame messages
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/race/pixelcar/config"
	"github.com/race/pixelcar/internal/game"
	"github.com/race/pixelcar/internal/logging"
	"github.com/race/pixelcar/internal/network"
	"github.com/race/pixelcar/internal/sessions"
	"github.com/race/pixelcar/internal/telemetry"
)

// BridgeServer accepts renderer connections and maps each to a session
type BridgeServer struct {
	cfg      *config.Config
	spec     *config.VehicleSpec
	registry *sessions.Registry
	protocol *network.Protocol
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	connections map[*ClientConnection]struct{}
}

func main() {
	configPath := flag.String("config", "", "path to a config file (json, yaml or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)

	// Geometry problems fail here, before any session runs
	spec, err := config.LoadVehicleSpec(cfg.Vehicle.Spec)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Vehicle.Spec).Msg("vehicle spec rejected")
	}

	server := NewBridgeServer(cfg, spec, logger)

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Int("tickRate", cfg.Server.TickRate).
		Int("broadcastRate", cfg.Server.BroadcastRate).
		Int("maxSessions", cfg.Server.MaxSessions).
		Str("vehicle", spec.Name).
		Msg("pixelcar render bridge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("shutdown complete")
}

// NewBridgeServer creates the server
func NewBridgeServer(cfg *config.Config, spec *config.VehicleSpec, logger zerolog.Logger) *BridgeServer {
	return &BridgeServer{
		cfg:      cfg,
		spec:     spec,
		registry: sessions.NewRegistry(cfg.Server.MaxSessions, logger),
		protocol: network.NewProtocol(),
		metrics:  telemetry.Global(),
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.Server.EnableCORS
			},
		},
		connections: make(map[*ClientConnection]struct{}),
	}
}

// Handler returns the HTTP routes
func (s *BridgeServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Run serves until ctx is cancelled, then stops every session
func (s *BridgeServer) Run(ctx context.Context) error {
	go s.housekeeping(ctx)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("HTTP server shutdown")
	}

	// Shutdown does not touch hijacked websockets
	s.registry.StopAll()
	s.closeConnections()
	return nil
}

// closeConnections closes every socket still open, joined or not
func (s *BridgeServer) closeConnections() {
	s.mu.Lock()
	open := make([]*ClientConnection, 0, len(s.connections))
	for c := range s.connections {
		open = append(open, c)
	}
	s.mu.Unlock()

	for _, c := range open {
		c.Close()
	}
	if len(open) > 0 {
		s.logger.Info().Int("connections", len(open)).Msg("closed open connections")
	}
}

// housekeeping drops stopped sessions and logs activity
func (s *BridgeServer) housekeeping(ctx context.Context) {
	cleanup := time.NewTicker(30 * time.Second)
	report := time.NewTicker(5 * time.Minute)
	defer cleanup.Stop()
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			if removed := s.registry.CleanupStopped(); removed > 0 {
				s.logger.Info().Int("removed", removed).Msg("cleaned up stopped sessions")
			}
		case <-report.C:
			stats := s.registry.Stats()
			if stats.TotalSessions > 0 {
				s.logger.Info().
					Int("sessions", stats.TotalSessions).
					Int("mobile", stats.MobileSessions).
					Msg("stats")
			}
		}
	}
}

func (s *BridgeServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleStats returns registry statistics including per-session frame timing
func (s *BridgeServer) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.registry.Stats()); err != nil {
		s.logger.Warn().Err(err).Msg("encoding stats")
	}
}

// handleWebSocket upgrades the connection and starts its pumps
func (s *BridgeServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := &ClientConnection{
		ws:       ws,
		server:   s,
		mobileUA: game.IsMobileUserAgent(r.UserAgent()),
		sendChan: make(chan []byte, 256),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.connections[conn] = struct{}{}
	s.mu.Unlock()

	s.logger.Info().Str("remote", conn.RemoteAddr()).Bool("mobile", conn.mobileUA).Msg("connection opened")

	go conn.writePump()
	go conn.readPump()
}

func (s *BridgeServer) forget(c *ClientConnection) {
	s.mu.Lock()
	delete(s.connections, c)
	s.mu.Unlock()
}

func (s *BridgeServer) sessionOptions(mobile bool) game.SessionOptions {
	return game.SessionOptions{
		Tuning:        s.cfg.Tuning,
		Camera:        s.cfg.Camera,
		Spec:          s.spec,
		TickRate:      s.cfg.Server.TickRate,
		BroadcastRate: s.cfg.Server.BroadcastRate,
		Mobile:        mobile,
		Metrics:       s.metrics,
	}
}
