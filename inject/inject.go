// Package inject replaces a typed shortcut with rendered text: it erases the
// shortcut with synthetic backspaces, pastes the text through the clipboard
// and puts the user's clipboard back afterwards.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"markestedt/spark/platform"
	"markestedt/spark/render"
)

const (
	// DefaultRestoreDelay gives the target app time to read the clipboard
	DefaultRestoreDelay = 100 * time.Millisecond
	// DefaultPasteSettle lets clipboard owners publish before we paste
	DefaultPasteSettle = 30 * time.Millisecond
)

// ErrInjection marks a failed synthetic input step
var ErrInjection = errors.New("injection failed")

// Options configures an Injector
type Options struct {
	Keyboard     platform.Keyboard
	Clipboard    platform.Clipboard
	Clock        Clock
	RestoreDelay time.Duration
	PasteSettle  time.Duration
}

// Injector performs one expansion at a time. A clipboard cycle stays in
// flight from the first backspace until the snapshot is restored, and the
// next Expand waits for it.
type Injector struct {
	keyboard  platform.Keyboard
	clipboard platform.Clipboard
	clock     Clock

	mu           sync.Mutex
	restoreDelay time.Duration
	pasteSettle  time.Duration

	inflight chan struct{}
	pending  sync.WaitGroup
}

// New creates an injector
func New(opts Options) *Injector {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	i := &Injector{
		keyboard:  opts.Keyboard,
		clipboard: opts.Clipboard,
		clock:     opts.Clock,
		inflight:  make(chan struct{}, 1),
	}
	i.SetDelays(opts.RestoreDelay, opts.PasteSettle)
	return i
}

// SetDelays changes the restore and paste settle delays for later
// expansions. A non-positive restore delay selects the default.
func (i *Injector) SetDelays(restore, settle time.Duration) {
	if restore <= 0 {
		restore = DefaultRestoreDelay
	}
	if settle < 0 {
		settle = 0
	}
	i.mu.Lock()
	i.restoreDelay = restore
	i.pasteSettle = settle
	i.mu.Unlock()
}

// Delays returns the current restore and paste settle delays
func (i *Injector) Delays() (restore, settle time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.restoreDelay, i.pasteSettle
}

// Expand erases token and pastes out.Text in its place
func (i *Injector) Expand(ctx context.Context, token string, out render.Result) error {
	_, err := i.ExpandFunc(ctx, token, func() render.Result { return out })
	return err
}

// ExpandFunc erases token and pastes the text produce returns. produce runs
// once the previous clipboard cycle has ended, so it sees the user's
// clipboard rather than an earlier expansion. It makes a single attempt.
// Once the backspaces have been sent the clipboard restore is always
// scheduled, whatever happens afterwards.
func (i *Injector) ExpandFunc(ctx context.Context, token string, produce func() render.Result) (render.Result, error) {
	select {
	case i.inflight <- struct{}{}:
	case <-ctx.Done():
		return render.Result{}, fmt.Errorf("wait for previous expansion: %w", ctx.Err())
	}

	restore, settle := i.Delays()
	out := produce()

	n := utf8.RuneCountInString(token)
	if err := i.keyboard.Backspace(n); err != nil {
		<-i.inflight
		return out, fmt.Errorf("%w: delete %d characters: %w", ErrInjection, n, err)
	}

	snapshot, err := i.clipboard.Get()
	if err != nil {
		slog.Warn("Failed to read clipboard, restoring empty", "error", err)
		snapshot = ""
	}
	defer i.scheduleRestore(snapshot, restore)

	if err := i.clipboard.Set(out.Text); err != nil {
		return out, fmt.Errorf("%w: set clipboard: %w", ErrInjection, err)
	}

	if settle > 0 {
		i.clock.Sleep(settle)
	}

	if err := i.keyboard.Paste(); err != nil {
		return out, fmt.Errorf("%w: paste: %w", ErrInjection, err)
	}

	if out.Cursor >= 0 {
		if back := utf8.RuneCountInString(out.Text) - out.Cursor; back > 0 {
			if err := i.keyboard.Left(back); err != nil {
				slog.Warn("Failed to move caret", "error", err)
			}
		}
	}

	return out, nil
}

// scheduleRestore puts snapshot back after the restore delay and ends the
// clipboard cycle
func (i *Injector) scheduleRestore(snapshot string, delay time.Duration) {
	i.pending.Add(1)
	i.clock.AfterFunc(delay, func() {
		defer i.pending.Done()
		defer func() { <-i.inflight }()

		if err := i.clipboard.Set(snapshot); err != nil {
			slog.Warn("Failed to restore clipboard", "error", err)
		}
	})
}

// Wait blocks until every scheduled restore has run
func (i *Injector) Wait() {
	i.pending.Wait()
}
