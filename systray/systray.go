// Package systray shows the expander state in the system tray and exposes
// the pause, reload and quit controls.
package systray

import (
	_ "embed"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"

	"github.com/getlantern/systray"
)

//go:embed icon.png
var iconPNG []byte

//go:embed icon.ico
var iconICO []byte

// Actions are invoked from the tray menu
type Actions struct {
	Toggle func()
	Reload func()
}

// SystrayManager manages the system tray icon and menu
type SystrayManager struct {
	webURL  string
	actions Actions
	quit    chan struct{}
	once    sync.Once

	mu         sync.Mutex
	active     bool
	statusItem *systray.MenuItem
	toggleItem *systray.MenuItem
}

// NewSystrayManager creates a new systray manager. An empty webURL hides the
// Open Web UI entry.
func NewSystrayManager(webURL string, actions Actions) *SystrayManager {
	return &SystrayManager{
		webURL:  webURL,
		actions: actions,
		quit:    make(chan struct{}),
	}
}

// Run starts the system tray (blocking call). On macOS it must be called
// from the main goroutine.
func (m *SystrayManager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *SystrayManager) Stop() {
	systray.Quit()
}

// WaitForQuit returns a channel that will be closed when user clicks Quit
func (m *SystrayManager) WaitForQuit() <-chan struct{} {
	return m.quit
}

// SetActive updates the menu to reflect the expander state. It may be
// called before the tray is ready.
func (m *SystrayManager) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
	m.refresh()
}

func (m *SystrayManager) refresh() {
	if m.statusItem == nil {
		return
	}
	status, toggle := menuLabels(m.active)
	m.statusItem.SetTitle(status)
	m.toggleItem.SetTitle(toggle)
	systray.SetTooltip("Spark - " + status)
}

func menuLabels(active bool) (status, toggle string) {
	if active {
		return "Expansion active", "Pause"
	}
	return "Expansion paused", "Resume"
}

func icon() []byte {
	if runtime.GOOS == "windows" {
		return iconICO
	}
	return iconPNG
}

// onReady is called when the systray is ready
func (m *SystrayManager) onReady() {
	systray.SetIcon(icon())
	systray.SetTooltip("Spark")

	mStatus := systray.AddMenuItem("", "Expander state")
	mStatus.Disable()
	mToggle := systray.AddMenuItem("", "Pause or resume text expansion")
	mReload := systray.AddMenuItem("Reload", "Restart keyboard capture")
	systray.AddSeparator()

	var webClicks chan struct{}
	if m.webURL != "" {
		mOpenWebUI := systray.AddMenuItem("Open Web UI", "Open the Spark dashboard")
		webClicks = mOpenWebUI.ClickedCh
	}
	mQuit := systray.AddMenuItem("Quit", "Exit Spark")

	m.mu.Lock()
	m.statusItem = mStatus
	m.toggleItem = mToggle
	m.refresh()
	m.mu.Unlock()

	// Handle menu clicks
	go func() {
		for {
			select {
			case <-mToggle.ClickedCh:
				if m.actions.Toggle != nil {
					m.actions.Toggle()
				}
			case <-mReload.ClickedCh:
				if m.actions.Reload != nil {
					m.actions.Reload()
				}
			case <-webClicks:
				m.openWebUI()
			case <-mQuit.ClickedCh:
				slog.Info("User requested quit from system tray")
				m.once.Do(func() { close(m.quit) })
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the systray is exiting
func (m *SystrayManager) onExit() {
	slog.Info("System tray exited")
}

// openWebUI opens the web UI in the default browser
func (m *SystrayManager) openWebUI() {
	slog.Info("Opening web UI", "url", m.webURL)

	cmd := browserCommand(runtime.GOOS, m.webURL)
	if cmd == nil {
		slog.Error("Unsupported platform for opening browser", "platform", runtime.GOOS)
		return
	}

	if err := cmd.Start(); err != nil {
		slog.Error("Failed to open web UI", "error", err)
	}
}

func browserCommand(goos, url string) *exec.Cmd {
	switch goos {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		return exec.Command("open", url)
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", url)
	default:
		return nil
	}
}
