package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"markestedt/spark/config"
	"markestedt/spark/engine"
	"markestedt/spark/expander"
	"markestedt/spark/inject"
	"markestedt/spark/notify"
	"markestedt/spark/platform"
	"markestedt/spark/render"
	"markestedt/spark/storage"
	"markestedt/spark/systray"
	"markestedt/spark/watch"
	"markestedt/spark/web"
)

// Agent wires keystroke capture, the expansion engine and the control
// surfaces together
type Agent struct {
	cfg        *config.Config
	configPath string
	db         *storage.DB

	renderer   *render.Renderer
	injector   *inject.Injector
	engine     *engine.Engine
	controller *expander.Controller
	hotkey     platform.Hotkey
	web        *web.Server
	tray       *systray.SystrayManager
}

// AgentOptions selects the optional surfaces
type AgentOptions struct {
	Tray bool
}

// NewAgent creates a new agent instance
func NewAgent(cfg *config.Config, configPath string, db *storage.DB, opts AgentOptions) (*Agent, error) {
	interactive, ok := render.ParseInteractive(cfg.Render.Interactive)
	if !ok {
		return nil, fmt.Errorf("unknown interactive mode %q", cfg.Render.Interactive)
	}

	clipboard := platform.NewClipboard()
	renderer := render.New(
		render.WithClipboard(clipboard),
		render.WithInteractive(interactive),
	)

	injector := inject.New(inject.Options{
		Keyboard:     platform.NewKeyboard(),
		Clipboard:    clipboard,
		RestoreDelay: time.Duration(cfg.Expander.RestoreDelayMs) * time.Millisecond,
		PasteSettle:  time.Duration(cfg.Expander.PasteSettleMs) * time.Millisecond,
	})

	eng := engine.New(engine.Options{
		BufferSize:   cfg.Expander.BufferSize,
		QueueSize:    cfg.Expander.QueueSize,
		Directory:    db,
		Renderer:     renderer,
		Injector:     injector,
		Focus:        platform.NewAppFocus(),
		ExcludedApps: cfg.Expander.ExcludedApps,
	})

	a := &Agent{
		cfg:        cfg,
		configPath: configPath,
		db:         db,
		renderer:   renderer,
		injector:   injector,
		engine:     eng,
		controller: expander.New(platform.NewCapture(), eng, notify.New()),
		hotkey:     platform.NewHotkey(),
	}

	if cfg.Web.Enabled {
		a.web = web.NewServer(web.Options{
			DB:         db,
			Expander:   a.controller,
			Previewer:  renderer,
			Config:     cfg,
			ConfigPath: configPath,
			Port:       cfg.Web.Port,
		})
	}

	if opts.Tray {
		webURL := ""
		if a.web != nil {
			webURL = a.web.URL()
		}
		a.tray = systray.NewSystrayManager(webURL, systray.Actions{
			Toggle: func() { a.toggle(context.Background()) },
			Reload: func() { a.reload(context.Background()) },
		})
	}

	eng.SetObserver(a.recordExpansion)
	a.controller.OnChange(a.stateChanged)

	return a, nil
}

// Run starts the agent and blocks until ctx is done or the user quits from
// the tray
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.engine.Run(ctx)

	if a.web != nil {
		go func() {
			if err := a.web.Start(ctx); err != nil {
				slog.Error("Web server stopped", "error", err)
			}
		}()
	}

	go func() {
		w := watch.New([]string{a.configPath}, watch.DefaultDebounce, a.configChanged)
		if err := w.Run(ctx); err != nil {
			slog.Warn("Config watcher stopped", "error", err)
		}
	}()

	a.listenHotkey(ctx)

	if a.cfg.Expander.Enabled {
		if err := a.controller.Start(ctx); err != nil {
			slog.Warn("Expander not started, use the tray or web UI to retry", "error", err)
		}
	} else {
		slog.Info("Expander disabled in config, starting paused")
	}

	slog.Info("Spark started", "hotkey", a.cfg.Hotkey.Toggle, "web", a.cfg.Web.Enabled)

	if a.tray != nil {
		go func() {
			select {
			case <-ctx.Done():
			case <-a.tray.WaitForQuit():
			}
			cancel()
			a.tray.Stop()
		}()
		a.tray.Run()
		cancel()
	} else {
		<-ctx.Done()
	}

	a.controller.Stop()
	a.injector.Wait()
	return nil
}

// listenHotkey toggles the expander on the configured combo
func (a *Agent) listenHotkey(ctx context.Context) {
	if a.cfg.Hotkey.Toggle == "" {
		return
	}

	combo, err := config.ParseHotkey(a.cfg.Hotkey.Toggle)
	if err != nil {
		slog.Warn("Invalid toggle hotkey", "hotkey", a.cfg.Hotkey.Toggle, "error", err)
		return
	}

	events, err := a.hotkey.Listen(ctx, combo)
	if err != nil {
		if errors.Is(err, platform.ErrNotAvailable) {
			slog.Info("Toggle hotkey not supported on this platform")
		} else {
			slog.Warn("Failed to register toggle hotkey", "hotkey", a.cfg.Hotkey.Toggle, "error", err)
		}
		return
	}

	go func() {
		for range events {
			a.toggle(ctx)
		}
	}()
}

func (a *Agent) toggle(ctx context.Context) {
	if err := a.controller.Toggle(ctx); err != nil {
		slog.Error("Failed to toggle expander", "error", err)
	}
}

func (a *Agent) reload(ctx context.Context) {
	if err := a.controller.Reload(ctx); err != nil {
		slog.Error("Failed to reload expander", "error", err)
	}
}

// stateChanged fans the expander state out to the tray and web clients
func (a *Agent) stateChanged(active bool) {
	if a.tray != nil {
		a.tray.SetActive(active)
	}
	if a.web != nil {
		a.web.BroadcastStatus(active)
	}
}

// recordExpansion stores an expansion outcome in the history
func (a *Agent) recordExpansion(e engine.Expansion) {
	rec := &storage.Expansion{
		Timestamp:    e.Timestamp,
		Shortcut:     e.Shortcut,
		DeletedCount: e.Deleted,
		CharCount:    e.Chars,
		LatencyMs:    e.Latency.Milliseconds(),
		Success:      e.Err == nil,
	}
	if e.SnippetID != 0 {
		id := e.SnippetID
		rec.SnippetID = &id
	}
	if e.Err != nil {
		rec.ErrorMessage = e.Err.Error()
	}

	if err := a.db.SaveExpansion(rec); err != nil {
		slog.Error("Failed to save expansion", "shortcut", e.Shortcut, "error", err)
		return
	}

	if a.web != nil {
		a.web.BroadcastExpansion(rec)
	}
}

// configChanged applies an edited config file. Timing and log level take
// effect immediately; the capture session is restarted so a stuck hook is
// replaced. Storage, port and hotkey changes need a restart.
func (a *Agent) configChanged(path string) {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		slog.Warn("Ignoring invalid config change", "path", path, "error", err)
		return
	}
	slog.Info("Configuration reloaded", "path", path)

	setLogLevel(cfg.Logging.Level)
	a.injector.SetDelays(
		time.Duration(cfg.Expander.RestoreDelayMs)*time.Millisecond,
		time.Duration(cfg.Expander.PasteSettleMs)*time.Millisecond,
	)
	a.engine.SetExcludedApps(cfg.Expander.ExcludedApps)
	if a.web != nil {
		a.web.UpdateConfig(cfg)
	}

	if a.controller.IsActive() {
		a.reload(context.Background())
	}
}
