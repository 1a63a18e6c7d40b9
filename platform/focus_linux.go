//go:build linux

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// XdotoolFocus asks xdotool for the active window's process and reads its
// name from /proc. It needs an X display (or Xwayland).
type XdotoolFocus struct {
	path string
	proc string
}

// NewAppFocus creates a new foreground application lookup
func NewAppFocus() AppFocus {
	path, err := exec.LookPath("xdotool")
	if err != nil {
		path = ""
	}
	return &XdotoolFocus{path: path, proc: "/proc"}
}

// Foreground returns the process name of the focused window
func (f *XdotoolFocus) Foreground() (string, error) {
	if f.path == "" {
		return "", fmt.Errorf("xdotool not found in PATH: %w", ErrNotAvailable)
	}
	out, err := exec.Command(f.path, "getactivewindow", "getwindowpid").Output()
	if err != nil {
		return "", fmt.Errorf("xdotool getactivewindow: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return "", fmt.Errorf("parse window pid %q: %w", out, err)
	}
	return procName(f.proc, pid)
}

// procName reads /proc/<pid>/comm
func procName(procRoot string, pid int) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("%s/%d/comm", procRoot, pid))
	if err != nil {
		return "", fmt.Errorf("read process name: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
