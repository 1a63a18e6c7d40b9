package platform

import (
	"context"
	"errors"
)

// ErrNotAvailable is returned when a capability has no implementation on
// this platform or lacks the permissions it needs.
var ErrNotAvailable = errors.New("not available on this platform")

// KeyKind distinguishes typed characters from structural signals
type KeyKind int

const (
	KeyChar KeyKind = iota
	KeyBackspace
)

// KeyEvent is one logical keystroke delivered by a capture adapter
type KeyEvent struct {
	Kind KeyKind
	Char rune
}

// Char returns a KeyEvent for a typed character
func Char(r rune) KeyEvent {
	return KeyEvent{Kind: KeyChar, Char: r}
}

// Backspace returns a KeyEvent for a backspace/delete signal
func Backspace() KeyEvent {
	return KeyEvent{Kind: KeyBackspace}
}

// Capture delivers system-wide keystrokes.
//
// Listen installs the OS hook and returns once it is active. The handler is
// called synchronously on the adapter's event thread and must return quickly.
// The returned channel receives the loop's terminal error (nil when ctx was
// cancelled) and is then closed.
type Capture interface {
	Listen(ctx context.Context, handle func(KeyEvent)) (<-chan error, error)
}

// Keyboard emits synthetic input to the foreground application
type Keyboard interface {
	Backspace(n int) error
	Paste() error
	Left(n int) error
}

// Clipboard provides clipboard access
type Clipboard interface {
	Get() (string, error)
	Set(text string) error
}

// AppFocus reports the executable name of the foreground application
type AppFocus interface {
	Foreground() (string, error)
}

// KeyCombo represents a keyboard key combination
type KeyCombo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Win   bool
	Key   string
}

// Hotkey provides global hotkey detection. The returned channel receives a
// value each time the combo is pressed and is closed when ctx is done.
type Hotkey interface {
	Listen(ctx context.Context, combo KeyCombo) (<-chan struct{}, error)
}
