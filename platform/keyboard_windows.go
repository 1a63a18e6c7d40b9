//go:build windows

package platform

import (
	"fmt"
	"time"
	"unsafe"
)

var (
	sendInput      = user32.NewProc("SendInput")
	mapVirtualKeyW = user32.NewProc("MapVirtualKeyW")
)

const (
	inputKeyboard  = 1
	keyeventfKeyup = 0x0002
	mapvkVkToVsc   = 0
	vkControl      = 0x11
	vkLeft         = 0x25
	vkV            = 0x56
)

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type input struct {
	inputType uint32
	ki        keyboardInput
	padding   [8]byte // Padding to match C struct size
}

// WindowsKeyboard implements the Keyboard interface with SendInput
type WindowsKeyboard struct{}

// NewKeyboard creates a new Windows synthetic keyboard
func NewKeyboard() Keyboard {
	return &WindowsKeyboard{}
}

// Backspace taps the backspace key n times
func (k *WindowsKeyboard) Backspace(n int) error {
	return k.tap(vkBack, n)
}

// Left taps the left arrow key n times
func (k *WindowsKeyboard) Left(n int) error {
	return k.tap(vkLeft, n)
}

// Paste simulates Ctrl+V with scan codes for better compatibility
func (k *WindowsKeyboard) Paste() error {
	inputs := []input{
		keyInput(vkControl, 0),
		keyInput(vkV, 0),
		keyInput(vkV, keyeventfKeyup),
		keyInput(vkControl, keyeventfKeyup),
	}
	if err := send(inputs); err != nil {
		return err
	}

	// Small delay to ensure input is processed
	time.Sleep(20 * time.Millisecond)
	return nil
}

func (k *WindowsKeyboard) tap(vk uint16, n int) error {
	if n <= 0 {
		return nil
	}
	inputs := make([]input, 0, n*2)
	for i := 0; i < n; i++ {
		inputs = append(inputs, keyInput(vk, 0), keyInput(vk, keyeventfKeyup))
	}
	return send(inputs)
}

func keyInput(vk uint16, flags uint32) input {
	scan, _, _ := mapVirtualKeyW.Call(uintptr(vk), mapvkVkToVsc)
	return input{
		inputType: inputKeyboard,
		ki: keyboardInput{
			wVk:     vk,
			wScan:   uint16(scan),
			dwFlags: flags,
		},
	}
}

// send delivers all inputs in one SendInput call so they are not interleaved
// with user typing
func send(inputs []input) error {
	ret, _, err := sendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(ret) != len(inputs) {
		return fmt.Errorf("SendInput inserted %d of %d events: %w", ret, len(inputs), err)
	}
	return nil
}
