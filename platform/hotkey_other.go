//go:build !windows && !linux

package platform

import "context"

type unsupportedHotkey struct{}

// NewHotkey returns a listener that cannot register hotkeys. On macOS the
// hotkey package needs the main thread, which the tray already owns.
func NewHotkey() Hotkey {
	return unsupportedHotkey{}
}

func (unsupportedHotkey) Listen(ctx context.Context, combo KeyCombo) (<-chan struct{}, error) {
	return nil, ErrNotAvailable
}
