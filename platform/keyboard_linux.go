//go:build linux

package platform

import (
	"fmt"
	"os/exec"
	"strconv"
)

// XdotoolKeyboard emits synthetic input through xdotool (XTest). XTest
// events do not pass through /dev/input, so the capture adapter never sees
// them.
type XdotoolKeyboard struct {
	path string
}

// NewKeyboard creates a new xdotool-backed keyboard
func NewKeyboard() Keyboard {
	path, err := exec.LookPath("xdotool")
	if err != nil {
		path = ""
	}
	return &XdotoolKeyboard{path: path}
}

// Backspace taps the backspace key n times
func (k *XdotoolKeyboard) Backspace(n int) error {
	return k.repeat("BackSpace", n)
}

// Left taps the left arrow key n times
func (k *XdotoolKeyboard) Left(n int) error {
	return k.repeat("Left", n)
}

// Paste sends Ctrl+V
func (k *XdotoolKeyboard) Paste() error {
	return k.run("key", "--clearmodifiers", "ctrl+v")
}

func (k *XdotoolKeyboard) repeat(key string, n int) error {
	if n <= 0 {
		return nil
	}
	return k.run("key", "--clearmodifiers", "--delay", "2", "--repeat", strconv.Itoa(n), key)
}

func (k *XdotoolKeyboard) run(args ...string) error {
	if k.path == "" {
		return fmt.Errorf("xdotool not found in PATH: %w", ErrNotAvailable)
	}
	out, err := exec.Command(k.path, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("xdotool %v: %w: %s", args, err, out)
	}
	return nil
}
