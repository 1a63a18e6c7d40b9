//go:build linux

package platform

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

// LinuxCapture reads keystrokes from /dev/input keyboards. It needs the user
// to be in the input group (or root). Characters are decoded with a US
// layout.
type LinuxCapture struct {
	mu       sync.Mutex
	shift    int
	ctrl     int
	alt      int
	meta     int
	capsLock bool
}

// NewCapture creates a new evdev capture adapter
func NewCapture() Capture {
	return &LinuxCapture{}
}

// inputEvent matches the Linux input_event struct
type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

const (
	evKey         = 1
	keyRelease    = 0
	keyPress      = 1
	keyAutoRepeat = 2
)

const (
	keyBackspace  = 14
	keyLeftCtrl   = 29
	keyLeftShift  = 42
	keyRightShift = 54
	keyLeftAlt    = 56
	keyCapsLock   = 58
	keyRightCtrl  = 97
	keyRightAlt   = 100
	keyLeftMeta   = 125
	keyRightMeta  = 126
)

// Listen opens every readable keyboard device and decodes events until ctx
// is done
func (c *LinuxCapture) Listen(ctx context.Context, handle func(KeyEvent)) (<-chan error, error) {
	files, err := openKeyboards()
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	var wg sync.WaitGroup
	for _, f := range files {
		wg.Add(1)
		go func(f *os.File) {
			defer wg.Done()
			c.readLoop(f, handle)
		}(f)
	}

	// Closing the files unblocks the pending reads
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		for _, f := range files {
			f.Close()
		}
	}()

	go func() {
		wg.Wait()
		close(stop)
		if ctx.Err() == nil {
			done <- errors.New("all keyboard devices closed")
		} else {
			done <- nil
		}
		close(done)
	}()

	return done, nil
}

func (c *LinuxCapture) readLoop(f *os.File, handle func(KeyEvent)) {
	readKeyEvents(f, func(code uint16, value int32) {
		// One lock across devices keeps the handler's stream ordered
		c.mu.Lock()
		if ev, ok := c.decode(code, value); ok {
			handle(ev)
		}
		c.mu.Unlock()
	})
}

// openKeyboards opens every readable keyboard event device
func openKeyboards() ([]*os.File, error) {
	devices, err := findKeyboardDevices()
	if err != nil {
		return nil, fmt.Errorf("find keyboard devices: %w", err)
	}

	var files []*os.File
	for _, dev := range devices {
		f, err := os.OpenFile(dev, os.O_RDONLY, 0)
		if err != nil {
			slog.Debug("Skipping keyboard device", "device", dev, "error", err)
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no readable keyboard device (join the 'input' group): %w", ErrNotAvailable)
	}
	return files, nil
}

// readKeyEvents calls fn for each EV_KEY event until f is closed
func readKeyEvents(f *os.File, fn func(code uint16, value int32)) {
	eventSize := binary.Size(inputEvent{})
	typeOff := eventSize - 8
	buf := make([]byte, eventSize)

	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		if n < eventSize {
			continue
		}

		typ := binary.LittleEndian.Uint16(buf[typeOff : typeOff+2])
		code := binary.LittleEndian.Uint16(buf[typeOff+2 : typeOff+4])
		value := int32(binary.LittleEndian.Uint32(buf[typeOff+4 : typeOff+8]))
		if typ == evKey {
			fn(code, value)
		}
	}
}

// decode updates modifier state and translates a key press. Callers hold mu.
func (c *LinuxCapture) decode(code uint16, value int32) (KeyEvent, bool) {
	delta := 0
	switch value {
	case keyPress:
		delta = 1
	case keyRelease:
		delta = -1
	}

	switch code {
	case keyLeftShift, keyRightShift:
		c.shift = max(0, c.shift+delta)
		return KeyEvent{}, false
	case keyLeftCtrl, keyRightCtrl:
		c.ctrl = max(0, c.ctrl+delta)
		return KeyEvent{}, false
	case keyLeftAlt, keyRightAlt:
		c.alt = max(0, c.alt+delta)
		return KeyEvent{}, false
	case keyLeftMeta, keyRightMeta:
		c.meta = max(0, c.meta+delta)
		return KeyEvent{}, false
	case keyCapsLock:
		if value == keyPress {
			c.capsLock = !c.capsLock
		}
		return KeyEvent{}, false
	}

	if value != keyPress && value != keyAutoRepeat {
		return KeyEvent{}, false
	}
	if c.ctrl > 0 || c.alt > 0 || c.meta > 0 {
		return KeyEvent{}, false
	}
	if code == keyBackspace {
		return Backspace(), true
	}

	r, ok := usLayout[code]
	if !ok {
		return KeyEvent{}, false
	}
	shifted := c.shift > 0
	if r >= 'a' && r <= 'z' {
		if shifted != c.capsLock {
			r -= 'a' - 'A'
		}
		return Char(r), true
	}
	if shifted {
		if s, ok := usShifted[r]; ok {
			r = s
		}
	}
	return Char(r), true
}

var usLayout = map[uint16]rune{
	2: '1', 3: '2', 4: '3', 5: '4', 6: '5', 7: '6', 8: '7', 9: '8', 10: '9', 11: '0',
	12: '-', 13: '=', 15: '\t',
	16: 'q', 17: 'w', 18: 'e', 19: 'r', 20: 't', 21: 'y', 22: 'u', 23: 'i', 24: 'o', 25: 'p',
	26: '[', 27: ']', 28: '\n',
	30: 'a', 31: 's', 32: 'd', 33: 'f', 34: 'g', 35: 'h', 36: 'j', 37: 'k', 38: 'l',
	39: ';', 40: '\'', 41: '`', 43: '\\',
	44: 'z', 45: 'x', 46: 'c', 47: 'v', 48: 'b', 49: 'n', 50: 'm',
	51: ',', 52: '.', 53: '/', 57: ' ',
	// keypad
	55: '*', 71: '7', 72: '8', 73: '9', 74: '-', 75: '4', 76: '5', 77: '6', 78: '+',
	79: '1', 80: '2', 81: '3', 82: '0', 83: '.', 96: '\n', 98: '/',
}

var usShifted = map[rune]rune{
	'1': '!', '2': '@', '3': '#', '4': '$', '5': '%', '6': '^', '7': '&', '8': '*', '9': '(', '0': ')',
	'-': '_', '=': '+', '[': '{', ']': '}', ';': ':', '\'': '"', '`': '~', '\\': '|',
	',': '<', '.': '>', '/': '?',
}

// findKeyboardDevices lists /dev/input event nodes whose handlers include kbd
func findKeyboardDevices() ([]string, error) {
	seen := make(map[string]bool)
	var devices []string
	add := func(path string) {
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			path = resolved
		}
		if !seen[path] {
			seen[path] = true
			devices = append(devices, path)
		}
	}

	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "H: Handlers=") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "H: Handlers="))
		isKbd := false
		event := ""
		for _, field := range fields {
			if field == "kbd" {
				isKbd = true
			}
			if strings.HasPrefix(field, "event") {
				event = field
			}
		}
		if isKbd && event != "" {
			add("/dev/input/" + event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	matches, _ := filepath.Glob("/dev/input/by-id/*-event-kbd")
	for _, m := range matches {
		add(m)
	}

	return devices, nil
}
