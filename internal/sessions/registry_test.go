package sessions

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race/pixelcar/config"
	"github.com/race/pixelcar/internal/game"
	"github.com/race/pixelcar/internal/telemetry"
)

type nopConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *nopConn) Send([]byte) error { return nil }

func (c *nopConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *nopConn) RemoteAddr() string { return "10.0.0.1:5000" }

func options(mobile bool) game.SessionOptions {
	return game.SessionOptions{
		Tuning:  config.DefaultTuning(),
		Camera:  config.DefaultCameraTuning(),
		Mobile:  mobile,
		Metrics: telemetry.Noop(),
	}
}

func TestRegistry_CreateGetRemove(t *testing.T) {
	r := NewRegistry(4, zerolog.Nop())
	conn := &nopConn{}

	s, err := r.Create(conn, options(false))
	require.NoError(t, err)
	defer r.StopAll()

	_, err = uuid.Parse(s.ID)
	assert.NoError(t, err, "session IDs are UUIDs")
	assert.Same(t, s, r.Get(s.ID))
	assert.Equal(t, 1, r.Count())

	r.Remove(s.ID)
	assert.Nil(t, r.Get(s.ID))
	assert.True(t, s.IsStopped())
	<-s.Done()

	conn.mu.Lock()
	assert.True(t, conn.closed)
	conn.mu.Unlock()

	r.Remove("missing")
	assert.Zero(t, r.Count())
}

func TestRegistry_DetachKeepsConnection(t *testing.T) {
	r := NewRegistry(1, zerolog.Nop())
	defer r.StopAll()
	conn := &nopConn{}

	s, err := r.Create(conn, options(false))
	require.NoError(t, err)
	r.Detach(s.ID)
	<-s.Done()

	assert.True(t, s.IsStopped())
	assert.Nil(t, r.Get(s.ID))
	conn.mu.Lock()
	assert.False(t, conn.closed)
	conn.mu.Unlock()

	again, err := r.Create(conn, options(false))
	require.NoError(t, err, "the slot is free again")
	assert.NotEqual(t, s.ID, again.ID)
}

func TestRegistry_Full(t *testing.T) {
	r := NewRegistry(2, zerolog.Nop())
	defer r.StopAll()

	for i := 0; i < 2; i++ {
		_, err := r.Create(&nopConn{}, options(false))
		require.NoError(t, err)
	}

	_, err := r.Create(&nopConn{}, options(false))
	assert.ErrorIs(t, err, ErrRegistryFull)
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_CleanupStopped(t *testing.T) {
	r := NewRegistry(0, zerolog.Nop())
	defer r.StopAll()

	a, err := r.Create(&nopConn{}, options(false))
	require.NoError(t, err)
	_, err = r.Create(&nopConn{}, options(false))
	require.NoError(t, err)

	a.Stop()
	assert.Equal(t, 1, r.CleanupStopped())
	assert.Equal(t, 0, r.CleanupStopped())
	assert.Nil(t, r.Get(a.ID))
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry(8, zerolog.Nop())
	defer r.StopAll()

	first, err := r.Create(&nopConn{}, options(true))
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = r.Create(&nopConn{}, options(false))
	require.NoError(t, err)

	stats := r.Stats()
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.MobileSessions)
	assert.Equal(t, 8, stats.MaxSessions)
	require.Len(t, stats.Sessions, 2)
	assert.Equal(t, first.ID, stats.Sessions[0].ID)
	assert.Equal(t, "10.0.0.1:5000", stats.Sessions[0].RemoteAddr)
}

func TestRegistry_StopAll(t *testing.T) {
	r := NewRegistry(8, zerolog.Nop())
	var all []*game.Session
	for i := 0; i < 3; i++ {
		s, err := r.Create(&nopConn{}, options(false))
		require.NoError(t, err)
		all = append(all, s)
	}

	r.StopAll()
	assert.Zero(t, r.Count())
	for _, s := range all {
		<-s.Done()
		assert.True(t, s.IsStopped())
	}
}
