package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race/pixelcar/config"
	"github.com/race/pixelcar/internal/network"
)

func newTestBridge(t *testing.T) (*BridgeServer, *websocket.Conn) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	server := NewBridgeServer(cfg, config.DefaultVehicleSpec(), zerolog.Nop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		server.registry.StopAll()
		server.closeConnections()
		ts.Close()
	})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return server, ws
}

// readUntil skips frames and events until a message of msgType arrives
func readUntil(t *testing.T, ws *websocket.Conn, msgType uint8) []byte {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		if len(data) > 0 && data[0] == msgType {
			return data
		}
	}
}

func send(t *testing.T, ws *websocket.Conn, data []byte) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, data))
}

func TestBridge_InputBeforeJoin(t *testing.T) {
	_, ws := newTestBridge(t)
	p := network.NewProtocol()

	send(t, ws, p.EncodeInput(network.InputMessage{Keys: network.KeyUp}))
	msg := readUntil(t, ws, network.MsgTypeError)
	assert.Equal(t, network.ErrorCodeNotJoined, msg[1])
}

func TestBridge_LeaveThenJoinAgain(t *testing.T) {
	server, ws := newTestBridge(t)
	p := network.NewProtocol()

	send(t, ws, p.EncodeJoin("racer", 0))
	readUntil(t, ws, network.MsgTypeSessionInfo)
	readUntil(t, ws, network.MsgTypeVehicleSpec)
	assert.Equal(t, 1, server.registry.Count())

	send(t, ws, []byte{network.MsgTypeLeave})
	require.Eventually(t, func() bool {
		return server.registry.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)

	send(t, ws, p.EncodeJoin("racer", 0))
	readUntil(t, ws, network.MsgTypeSessionInfo)
	assert.Equal(t, 1, server.registry.Count())
}

func TestBridge_ShutdownClosesSockets(t *testing.T) {
	server, ws := newTestBridge(t)

	ping := make([]byte, 9)
	ping[0] = network.MsgTypePing
	send(t, ws, ping)
	readUntil(t, ws, network.MsgTypePong)

	server.registry.StopAll()
	server.closeConnections()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			assert.NotContains(t, err.Error(), "timeout")
			break
		}
	}
	require.Eventually(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.connections) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
