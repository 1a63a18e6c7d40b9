//go:build !darwin && !linux && !windows

package platform

import "context"

type stubCapture struct{}

type stubKeyboard struct{}

// NewCapture returns an adapter that always fails to install
func NewCapture() Capture {
	return stubCapture{}
}

// NewKeyboard returns a keyboard that cannot emit input
func NewKeyboard() Keyboard {
	return stubKeyboard{}
}

func (stubCapture) Listen(ctx context.Context, handle func(KeyEvent)) (<-chan error, error) {
	return nil, ErrNotAvailable
}

func (stubKeyboard) Backspace(n int) error { return ErrNotAvailable }
func (stubKeyboard) Paste() error          { return ErrNotAvailable }
func (stubKeyboard) Left(n int) error      { return ErrNotAvailable }
