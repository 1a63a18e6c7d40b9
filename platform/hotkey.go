//go:build windows

package platform

import (
	"context"
	"fmt"
	"strings"

	"golang.design/x/hotkey"
)

var hotkeyKeys = map[string]hotkey.Key{
	"space": hotkey.KeySpace, "enter": hotkey.KeyReturn, "esc": hotkey.KeyEscape, "tab": hotkey.KeyTab,
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD, "e": hotkey.KeyE,
	"f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH, "i": hotkey.KeyI, "j": hotkey.KeyJ,
	"k": hotkey.KeyK, "l": hotkey.KeyL, "m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO,
	"p": hotkey.KeyP, "q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX, "y": hotkey.KeyY,
	"z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3, "4": hotkey.Key4,
	"5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// GlobalHotkey registers a system hotkey through golang.design/x/hotkey
type GlobalHotkey struct{}

// NewHotkey creates a new global hotkey listener
func NewHotkey() Hotkey {
	return &GlobalHotkey{}
}

// Listen registers combo and reports each key-down until ctx is done
func (g *GlobalHotkey) Listen(ctx context.Context, combo KeyCombo) (<-chan struct{}, error) {
	key, ok := hotkeyKeys[strings.ToLower(combo.Key)]
	if !ok {
		return nil, fmt.Errorf("unsupported hotkey key: %q", combo.Key)
	}

	var mods []hotkey.Modifier
	if combo.Ctrl {
		mods = append(mods, modCtrl)
	}
	if combo.Shift {
		mods = append(mods, modShift)
	}
	if combo.Alt {
		mods = append(mods, modAlt)
	}
	if combo.Win {
		mods = append(mods, modSuper)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return nil, fmt.Errorf("register hotkey: %w", err)
	}

	events := make(chan struct{}, 1)
	go func() {
		defer close(events)
		defer hk.Unregister()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-hk.Keydown():
				if !ok {
					return
				}
				select {
				case events <- struct{}{}:
				default:
				}
			}
		}
	}()

	return events, nil
}
