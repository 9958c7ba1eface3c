package main

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race/pixelcar/internal/game"
)

func TestDriver_FocusLossReleasesKeys(t *testing.T) {
	d := &Driver{latch: NewKeyLatch(time.Minute)}
	now := time.Now()

	require.True(t, d.handleEvent(tcell.NewEventKey(tcell.KeyRune, 'w', tcell.ModNone)))
	assert.True(t, d.latch.State(now).Forward)

	require.True(t, d.handleEvent(tcell.NewEventFocus(true)))
	assert.True(t, d.latch.State(now).Forward, "gaining focus keeps held keys")

	require.True(t, d.handleEvent(tcell.NewEventFocus(false)))
	assert.Equal(t, game.KeyState{}, d.latch.State(now))
}

func TestDriver_EscapeQuits(t *testing.T) {
	d := &Driver{latch: NewKeyLatch(0)}
	assert.False(t, d.handleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
}

func TestHeadingGlyph(t *testing.T) {
	assert.Equal(t, '↑', headingGlyph(0))
	assert.Equal(t, '←', headingGlyph(1.5707963267948966))
	assert.Equal(t, '→', headingGlyph(-1.5707963267948966))
}
