//go:build !windows && !linux

package platform

type unsupportedFocus struct{}

// NewAppFocus returns a lookup that always reports ErrNotAvailable
func NewAppFocus() AppFocus {
	return unsupportedFocus{}
}

func (unsupportedFocus) Foreground() (string, error) {
	return "", ErrNotAvailable
}
