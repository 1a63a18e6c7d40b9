//go:build linux

package platform

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// evdev key codes for hotkey names. Letters and digits come from usLayout.
var evdevNamedKeys = map[string]uint16{
	"esc": 1, "tab": 15, "enter": 28, "space": 57,
	"f1": 59, "f2": 60, "f3": 61, "f4": 62, "f5": 63, "f6": 64,
	"f7": 65, "f8": 66, "f9": 67, "f10": 68, "f11": 87, "f12": 88,
}

// EvdevHotkey watches /dev/input keyboards for a key combo. It needs no
// display server, so it works on Wayland and headless sessions alike.
type EvdevHotkey struct{}

// NewHotkey creates a new global hotkey listener
func NewHotkey() Hotkey {
	return &EvdevHotkey{}
}

// evdevKeyCode resolves a hotkey key name to its evdev code
func evdevKeyCode(name string) (uint16, bool) {
	name = strings.ToLower(name)
	if code, ok := evdevNamedKeys[name]; ok {
		return code, true
	}
	if len(name) != 1 {
		return 0, false
	}
	r := rune(name[0])
	if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
		return 0, false
	}
	// Codes up to 53 cover the main block, skipping the keypad duplicates
	for code, ch := range usLayout {
		if ch == r && code <= 53 {
			return code, true
		}
	}
	return 0, false
}

// comboMatcher tracks modifier state and reports when combo is pressed
type comboMatcher struct {
	combo KeyCombo
	key   uint16

	shift, ctrl, alt, meta int
}

func newComboMatcher(combo KeyCombo) (*comboMatcher, error) {
	key, ok := evdevKeyCode(combo.Key)
	if !ok {
		return nil, fmt.Errorf("unsupported hotkey key: %q", combo.Key)
	}
	return &comboMatcher{combo: combo, key: key}, nil
}

// feed consumes one key event and reports whether it completes the combo
func (m *comboMatcher) feed(code uint16, value int32) bool {
	delta := 0
	switch value {
	case keyPress:
		delta = 1
	case keyRelease:
		delta = -1
	}

	switch code {
	case keyLeftShift, keyRightShift:
		m.shift = max(0, m.shift+delta)
		return false
	case keyLeftCtrl, keyRightCtrl:
		m.ctrl = max(0, m.ctrl+delta)
		return false
	case keyLeftAlt, keyRightAlt:
		m.alt = max(0, m.alt+delta)
		return false
	case keyLeftMeta, keyRightMeta:
		m.meta = max(0, m.meta+delta)
		return false
	}

	if value != keyPress || code != m.key {
		return false
	}
	return m.combo.Ctrl == (m.ctrl > 0) &&
		m.combo.Shift == (m.shift > 0) &&
		m.combo.Alt == (m.alt > 0) &&
		m.combo.Win == (m.meta > 0)
}

// Listen opens the keyboards and reports each combo press until ctx is done
func (h *EvdevHotkey) Listen(ctx context.Context, combo KeyCombo) (<-chan struct{}, error) {
	matcher, err := newComboMatcher(combo)
	if err != nil {
		return nil, err
	}
	files, err := openKeyboards()
	if err != nil {
		return nil, fmt.Errorf("register hotkey: %w", err)
	}

	events := make(chan struct{}, 1)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(f *os.File) {
			defer wg.Done()
			readKeyEvents(f, func(code uint16, value int32) {
				mu.Lock()
				hit := matcher.feed(code, value)
				mu.Unlock()
				if !hit {
					return
				}
				select {
				case events <- struct{}{}:
				default:
				}
			})
		}(f)
	}

	go func() {
		<-ctx.Done()
		for _, f := range files {
			f.Close()
		}
	}()
	go func() {
		wg.Wait()
		close(events)
	}()

	return events, nil
}
