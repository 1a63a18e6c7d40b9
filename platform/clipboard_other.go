//go:build !windows

package platform

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// SystemClipboard implements Clipboard with github.com/atotto/clipboard
// (pbcopy/pbpaste on macOS, xclip/xsel/wl-clipboard on Linux)
type SystemClipboard struct{}

// NewClipboard creates a new clipboard instance
func NewClipboard() Clipboard {
	return &SystemClipboard{}
}

// Get retrieves text from the clipboard
func (c *SystemClipboard) Get() (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("clipboard: %w", ErrNotAvailable)
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// Set sets text to the clipboard
func (c *SystemClipboard) Set(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard: %w", ErrNotAvailable)
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}
