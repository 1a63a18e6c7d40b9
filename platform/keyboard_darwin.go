//go:build darwin

package platform

/*
int sparkPostKey(int keycode, int count, int command);
*/
import "C"

import "fmt"

const (
	macKeyV      = 9
	macKeyDelete = 51
	macKeyLeft   = 123
)

// DarwinKeyboard posts synthetic events tagged so our own tap ignores them
type DarwinKeyboard struct{}

// NewKeyboard creates a new macOS synthetic keyboard
func NewKeyboard() Keyboard {
	return &DarwinKeyboard{}
}

// Backspace taps delete n times
func (k *DarwinKeyboard) Backspace(n int) error {
	return post(macKeyDelete, n, false)
}

// Left taps the left arrow n times
func (k *DarwinKeyboard) Left(n int) error {
	return post(macKeyLeft, n, false)
}

// Paste sends Cmd+V
func (k *DarwinKeyboard) Paste() error {
	return post(macKeyV, 1, true)
}

func post(keycode, n int, command bool) error {
	if n <= 0 {
		return nil
	}
	cmd := 0
	if command {
		cmd = 1
	}
	if rc := C.sparkPostKey(C.int(keycode), C.int(n), C.int(cmd)); rc != 0 {
		return fmt.Errorf("CGEventPost failed (code %d)", int(rc))
	}
	return nil
}
