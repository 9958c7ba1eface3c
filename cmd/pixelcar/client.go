package main

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/race/pixelcar/internal/game"
	"github.com/race/pixelcar/internal/network"
	"github.com/race/pixelcar/internal/sessions"
)

var errConnectionClosed = errors.New("connection closed")

// ClientConnection is one renderer. It has a read goroutine and a write
// goroutine; the session sends through the buffered channel.
type ClientConnection struct {
	ws       *websocket.Conn
	server   *BridgeServer
	mobileUA bool

	mu      sync.Mutex // protects session
	session *game.Session

	sendChan    chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	cleanupOnce sync.Once
}

// Send queues data for the client. Drops the message when the buffer is
// full; the next frame supersedes it.
func (c *ClientConnection) Send(data []byte) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}

	select {
	case c.sendChan <- data:
	default:
	}
	return nil
}

// Close shuts the connection down. Safe to call multiple times.
func (c *ClientConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// RemoteAddr returns the client's address for logging
func (c *ClientConnection) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *ClientConnection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.cleanup()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.sendChan:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *ClientConnection) readPump() {
	defer c.cleanup()

	c.ws.SetReadLimit(512)
	c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Debug().Err(err).Str("remote", c.RemoteAddr()).Msg("read error")
			}
			return
		}

		c.handleMessage(message)
	}
}

// handleMessage dispatches on the first byte
func (c *ClientConnection) handleMessage(data []byte) {
	if len(data) == 0 {
		return
	}

	switch data[0] {
	case network.MsgTypeJoin:
		c.handleJoin(data)
	case network.MsgTypeInput:
		c.handleInput(data)
	case network.MsgTypeCameraDrag:
		c.handleCameraDrag(data)
	case network.MsgTypeCameraZoom:
		c.handleCameraZoom(data)
	case network.MsgTypePing:
		c.handlePing(data)
	case network.MsgTypeLeave:
		c.handleLeave()
	default:
		c.Send(c.server.protocol.EncodeError(network.ErrorCodeInvalidMessage, "unknown message type"))
	}
}

func (c *ClientConnection) handleJoin(data []byte) {
	msg, err := c.server.protocol.DecodeJoin(data)
	if err != nil {
		c.server.logger.Debug().Err(err).Str("remote", c.RemoteAddr()).Msg("invalid join")
		c.Send(c.server.protocol.EncodeError(network.ErrorCodeInvalidMessage, err.Error()))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return
	}

	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = "driver"
	}
	mobile := c.mobileUA || msg.Flags&network.JoinFlagMobile != 0

	session, err := c.server.registry.Create(c, c.server.sessionOptions(mobile))
	if err != nil {
		code := network.ErrorCodeServerError
		if errors.Is(err, sessions.ErrRegistryFull) {
			code = network.ErrorCodeServerFull
		}
		c.Send(c.server.protocol.EncodeError(code, err.Error()))
		return
	}
	c.session = session

	c.server.logger.Info().
		Str("session", session.ID).
		Str("name", name).
		Str("remote", c.RemoteAddr()).
		Msg("joined")
}

func (c *ClientConnection) current() *game.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *ClientConnection) handleInput(data []byte) {
	session := c.current()
	if session == nil {
		c.Send(c.server.protocol.EncodeError(network.ErrorCodeNotJoined, "join first"))
		return
	}

	msg, err := c.server.protocol.DecodeInput(data)
	if err != nil {
		return
	}
	session.HandleInput(game.InputFromMessage(msg))
}

func (c *ClientConnection) handleCameraDrag(data []byte) {
	session := c.current()
	if session == nil {
		return
	}
	msg, err := c.server.protocol.DecodeCameraDrag(data)
	if err != nil {
		return
	}
	session.HandleCameraDrag(msg.Phase, float64(msg.DX), float64(msg.DY))
}

func (c *ClientConnection) handleCameraZoom(data []byte) {
	session := c.current()
	if session == nil {
		return
	}
	msg, err := c.server.protocol.DecodeCameraZoom(data)
	if err != nil {
		return
	}
	session.HandleCameraZoom(float64(msg.DeltaY))
}

// handlePing echoes the client timestamp for latency measurement
func (c *ClientConnection) handlePing(data []byte) {
	ts, err := c.server.protocol.DecodePing(data)
	if err != nil {
		return
	}
	c.Send(c.server.protocol.EncodePong(ts))
}

// handleLeave ends the session but keeps the socket, so the client can join
// again
func (c *ClientConnection) handleLeave() {
	if session := c.takeSession(); session != nil {
		c.server.registry.Detach(session.ID)
		c.server.logger.Info().Str("session", session.ID).Str("remote", c.RemoteAddr()).Msg("left")
	}
}

func (c *ClientConnection) takeSession() *game.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	session := c.session
	c.session = nil
	return session
}

// cleanup runs when either pump exits
func (c *ClientConnection) cleanup() {
	c.cleanupOnce.Do(func() {
		c.server.forget(c)
		if session := c.takeSession(); session != nil {
			c.server.registry.Remove(session.ID)
		}
		c.Close()
		c.server.logger.Info().Str("remote", c.RemoteAddr()).Msg("connection closed")
	})
}
