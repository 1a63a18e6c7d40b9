//go:build linux

package platform

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHotkey_WithoutDisplay(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")
	require.NoError(t, os.Unsetenv("DISPLAY"))
	require.NoError(t, os.Unsetenv("WAYLAND_DISPLAY"))

	hk := NewHotkey()
	require.NotNil(t, hk)

	_, err := hk.Listen(context.Background(), KeyCombo{Ctrl: true, Key: "nope"})
	assert.ErrorContains(t, err, "unsupported hotkey key")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := hk.Listen(ctx, KeyCombo{Ctrl: true, Alt: true, Key: "e"})
	if err != nil {
		t.Skipf("no readable keyboard devices: %v", err)
	}
	cancel()
	for range events {
	}
}

func TestEvdevKeyCode(t *testing.T) {
	tests := []struct {
		name string
		code uint16
		ok   bool
	}{
		{"e", 18, true},
		{"E", 18, true},
		{"1", 2, true},
		{"0", 11, true},
		{"space", 57, true},
		{"f12", 88, true},
		{"/", 0, false},
		{"pageup", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := evdevKeyCode(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestComboMatcher(t *testing.T) {
	m, err := newComboMatcher(KeyCombo{Ctrl: true, Alt: true, Key: "e"})
	require.NoError(t, err)

	// e alone does not fire
	assert.False(t, m.feed(18, keyPress))
	assert.False(t, m.feed(18, keyRelease))

	assert.False(t, m.feed(keyLeftCtrl, keyPress))
	assert.False(t, m.feed(18, keyPress), "alt is still missing")
	assert.False(t, m.feed(18, keyRelease))

	assert.False(t, m.feed(keyRightAlt, keyPress))
	assert.True(t, m.feed(18, keyPress))
	assert.False(t, m.feed(18, keyAutoRepeat), "auto repeat does not refire")
	assert.False(t, m.feed(18, keyRelease))

	// An extra modifier changes the combo
	assert.False(t, m.feed(keyLeftShift, keyPress))
	assert.False(t, m.feed(18, keyPress))
	assert.False(t, m.feed(18, keyRelease))
	assert.False(t, m.feed(keyLeftShift, keyRelease))

	assert.False(t, m.feed(keyLeftCtrl, keyRelease))
	assert.False(t, m.feed(18, keyPress))
}
