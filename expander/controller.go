// Package expander owns the expansion lifecycle: it starts and stops the
// keystroke capture session and keeps the engine's active flag in step.
package expander

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"markestedt/spark/engine"
	"markestedt/spark/platform"
)

// stopTimeout bounds how long Stop waits for the capture loop to exit
const stopTimeout = 2 * time.Second

// Notifier shows a desktop message to the user
type Notifier interface {
	Notify(title, body string) error
}

// Controller is the Inactive/Active state machine. Start, Stop and Reload
// are serialized; a session that ends on its own is reconciled to Inactive.
type Controller struct {
	capture  platform.Capture
	engine   *engine.Engine
	notifier Notifier

	opMu sync.Mutex

	mu        sync.Mutex
	active    bool
	session   uint64
	cancel    context.CancelFunc
	done      chan struct{}
	listeners []func(bool)
}

// New creates an inactive controller
func New(capture platform.Capture, eng *engine.Engine, notifier Notifier) *Controller {
	return &Controller{
		capture:  capture,
		engine:   eng,
		notifier: notifier,
	}
}

// OnChange registers a callback for active-state transitions
func (c *Controller) OnChange(fn func(active bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// IsActive reports whether a capture session is running
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Start installs the capture hook. It is a no-op when already active. ctx
// carries values into the session but does not bound its lifetime; use Stop.
func (c *Controller) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.start(ctx)
}

// Stop ends the capture session. It is a no-op when inactive.
func (c *Controller) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stop()
}

// Reload restarts the session so new configuration takes effect
func (c *Controller) Reload(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.stop()
	return c.start(ctx)
}

// Toggle stops an active session or starts an inactive one
func (c *Controller) Toggle(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.IsActive() {
		c.stop()
		return nil
	}
	return c.start(ctx)
}

func (c *Controller) start(ctx context.Context) error {
	if c.IsActive() {
		return nil
	}

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	errs, err := c.capture.Listen(sessCtx, c.engine.HandleKey)
	if err != nil {
		cancel()
		slog.Error("Failed to start keystroke capture", "error", err)
		c.notify("Spark is paused", fmt.Sprintf("Keyboard capture could not start: %v", err))
		return fmt.Errorf("start capture: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.session++
	id := c.session
	c.active = true
	c.cancel = cancel
	c.done = done
	c.engine.SetActive(true)
	c.mu.Unlock()

	go c.watch(id, errs, done)

	slog.Info("Expander started")
	c.emit(true)
	return nil
}

func (c *Controller) stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	c.engine.SetActive(false)
	cancel()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		slog.Warn("Capture loop did not exit in time")
	}

	slog.Info("Expander stopped")
	c.emit(false)
}

// watch waits for the capture loop of session id to end
func (c *Controller) watch(id uint64, errs <-chan error, done chan struct{}) {
	err := <-errs
	close(done)

	c.mu.Lock()
	current := c.session == id && c.active
	var cancel context.CancelFunc
	if current {
		c.active = false
		cancel = c.cancel
		c.cancel, c.done = nil, nil
		c.engine.SetActive(false)
	}
	c.mu.Unlock()

	if !current {
		return
	}
	cancel()

	if err != nil {
		slog.Error("Keystroke capture stopped", "error", err)
		c.notify("Spark is paused", fmt.Sprintf("Keyboard capture stopped: %v", err))
	} else {
		slog.Warn("Keystroke capture exited")
	}
	c.emit(false)
}

func (c *Controller) emit(active bool) {
	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(active)
	}
}

func (c *Controller) notify(title, body string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(title, body); err != nil {
		slog.Debug("Failed to show notification", "error", err)
	}
}
