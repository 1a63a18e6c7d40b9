//go:build darwin

package platform

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation

int sparkTapInstall(void);
void sparkTapRun(void);
void sparkTapStop(void);
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// The event tap is process-global on the C side, so only one session may
// own it at a time.
var (
	darwinMu      sync.Mutex
	darwinHandler func(KeyEvent)
)

//export sparkKeyTyped
func sparkKeyTyped(ch C.int, backspace C.int) {
	darwinMu.Lock()
	handle := darwinHandler
	darwinMu.Unlock()
	if handle == nil {
		return
	}
	if backspace != 0 {
		handle(Backspace())
		return
	}
	r := rune(ch)
	if r == '\r' {
		r = '\n'
	}
	if r < 0x20 && r != '\t' && r != '\n' {
		return
	}
	handle(Char(r))
}

// DarwinCapture streams typed characters from a CGEventTap. The process needs
// the Accessibility permission.
type DarwinCapture struct{}

// NewCapture creates a new macOS capture adapter
func NewCapture() Capture {
	return &DarwinCapture{}
}

// Listen installs the event tap on a dedicated OS thread
func (c *DarwinCapture) Listen(ctx context.Context, handle func(KeyEvent)) (<-chan error, error) {
	installed := make(chan error, 1)
	done := make(chan error, 1)

	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if rc := C.sparkTapInstall(); rc != 0 {
			installed <- fmt.Errorf("CGEventTapCreate failed (code %d, grant Accessibility access): %w", int(rc), ErrNotAvailable)
			return
		}

		darwinMu.Lock()
		darwinHandler = handle
		darwinMu.Unlock()

		installed <- nil
		C.sparkTapRun()

		darwinMu.Lock()
		darwinHandler = nil
		darwinMu.Unlock()
		done <- nil
	}()

	select {
	case err := <-installed:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		C.sparkTapStop()
		return nil, ctx.Err()
	}

	go func() {
		<-ctx.Done()
		C.sparkTapStop()
	}()

	return done, nil
}
