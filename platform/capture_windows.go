//go:build windows

package platform

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	setWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	callNextHookEx      = user32.NewProc("CallNextHookEx")
	unhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	getMessage          = user32.NewProc("GetMessageW")
	postThreadMessage   = user32.NewProc("PostThreadMessageW")
	getAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
	getKeyState         = user32.NewProc("GetKeyState")
	toUnicode           = user32.NewProc("ToUnicode")
)

const (
	whKeyboardLL    = 13
	wmQuit          = 0x0012
	wmKeydown       = 0x0100
	wmSyskeydown    = 0x0104
	llkhfInjected   = 0x10
	toUnicodeNoSync = 0x4
)

const (
	vkBack    = 0x08
	vkShift   = 0x10
	vkCtrl    = 0x11
	vkAlt     = 0x12
	vkCapital = 0x14
	vkLwin    = 0x5B
	vkRwin    = 0x5C
)

type kbdllhookstruct struct {
	vkCode      uint32
	scanCode    uint32
	flags       uint32
	time        uint32
	dwExtraInfo uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// The hook procedure is created once per process: windows.NewCallback slots
// are never released, so every session shares it and dispatches through
// currentCapture.
var (
	hookProcOnce   sync.Once
	hookProc       uintptr
	currentCapture atomic.Pointer[WindowsCapture]
)

// WindowsCapture streams typed characters from a low-level keyboard hook
type WindowsCapture struct {
	mu       sync.Mutex
	handle   func(KeyEvent)
	hook     uintptr
	threadID uint32
}

// NewCapture creates a new Windows keystroke capture adapter
func NewCapture() Capture {
	return &WindowsCapture{}
}

// Listen installs the keyboard hook and pumps messages until ctx is done
func (c *WindowsCapture) Listen(ctx context.Context, handle func(KeyEvent)) (<-chan error, error) {
	hookProcOnce.Do(func() {
		hookProc = windows.NewCallback(lowLevelKeyboardProc)
	})

	c.mu.Lock()
	c.handle = handle
	c.mu.Unlock()

	installed := make(chan error, 1)
	done := make(chan error, 1)
	go c.runHook(installed, done)

	select {
	case err := <-installed:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		tid := c.threadID
		c.mu.Unlock()
		postThreadMessage.Call(uintptr(tid), wmQuit, 0, 0)
	}()

	return done, nil
}

func (c *WindowsCapture) runHook(installed chan<- error, done chan<- error) {
	defer close(done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !currentCapture.CompareAndSwap(nil, c) {
		installed <- fmt.Errorf("keyboard hook already installed")
		return
	}
	defer currentCapture.CompareAndSwap(c, nil)

	hook, _, err := setWindowsHookEx.Call(whKeyboardLL, hookProc, 0, 0)
	if hook == 0 {
		installed <- fmt.Errorf("SetWindowsHookEx failed: %w", err)
		return
	}
	defer unhookWindowsHookEx.Call(hook)

	c.mu.Lock()
	c.hook = hook
	c.threadID = windows.GetCurrentThreadId()
	c.mu.Unlock()

	installed <- nil

	// GetMessage returns 0 on WM_QUIT and -1 on failure
	var m msg
	for {
		r, _, err := getMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		switch int32(r) {
		case 0:
			done <- nil
			return
		case -1:
			done <- fmt.Errorf("GetMessage failed: %w", err)
			return
		}
	}
}

func lowLevelKeyboardProc(nCode int32, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 && (wParam == wmKeydown || wParam == wmSyskeydown) {
		if c := currentCapture.Load(); c != nil {
			kbInfo := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			c.handleKeyDown(kbInfo)
		}
	}
	r, _, _ := callNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return r
}

func (c *WindowsCapture) handleKeyDown(kbInfo *kbdllhookstruct) {
	// Our own SendInput deletions and pastes come back through the hook
	if kbInfo.flags&llkhfInjected != 0 {
		return
	}

	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()
	if handle == nil {
		return
	}

	if kbInfo.vkCode == vkBack {
		handle(Backspace())
		return
	}

	// Ctrl or Alt alone means a shortcut; both together is AltGr
	ctrl := isKeyPressed(vkCtrl)
	alt := isKeyPressed(vkAlt)
	if ctrl != alt || isKeyPressed(vkLwin) || isKeyPressed(vkRwin) {
		return
	}

	if r, ok := translateKey(kbInfo, ctrl && alt); ok {
		handle(Char(r))
	}
}

func translateKey(kbInfo *kbdllhookstruct, altGr bool) (rune, bool) {
	var state [256]byte
	if isKeyPressed(vkShift) {
		state[vkShift] = 0x80
	}
	if r, _, _ := getKeyState.Call(vkCapital); r&0x0001 != 0 {
		state[vkCapital] = 0x01
	}
	if altGr {
		state[vkCtrl] = 0x80
		state[vkAlt] = 0x80
	}

	var buf [4]uint16
	n, _, _ := toUnicode.Call(
		uintptr(kbInfo.vkCode),
		uintptr(kbInfo.scanCode),
		uintptr(unsafe.Pointer(&state[0])),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		toUnicodeNoSync,
	)
	if int32(n) != 1 {
		return 0, false
	}
	r := rune(buf[0])
	if r < 0x20 && r != '\t' && r != '\r' {
		return 0, false
	}
	if r == '\r' {
		r = '\n'
	}
	return r, true
}

func isKeyPressed(vk int) bool {
	r, _, _ := getAsyncKeyState.Call(uintptr(vk))
	return r&0x8000 != 0
}
