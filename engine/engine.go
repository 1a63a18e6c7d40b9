// Package engine turns a stream of keystrokes into expansions: it keeps the
// recent-character window, detects shortcut tokens and hands matches to a
// worker that looks up, renders and injects the snippet.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"markestedt/spark/platform"
	"markestedt/spark/render"
	"markestedt/spark/snippet"
)

// DefaultQueueSize bounds pending expansion requests
const DefaultQueueSize = 16

// ErrInactiveSnippet is reported when the directory returns a disabled snippet
var ErrInactiveSnippet = errors.New("snippet is inactive")

// Renderer produces the replacement text for a snippet body
type Renderer interface {
	RenderResult(ctx context.Context, body string) render.Result
}

// Injector replaces the typed token with rendered text in the focused app.
// produce is called inside the injector's clipboard cycle.
type Injector interface {
	ExpandFunc(ctx context.Context, token string, produce func() render.Result) (render.Result, error)
}

// ExpansionRequested is emitted when a token is typed
type ExpansionRequested struct {
	Token string
	At    time.Time
}

// Expansion is the outcome of one injection attempt
type Expansion struct {
	Shortcut  string
	SnippetID int64
	Deleted   int
	Chars     int
	Latency   time.Duration
	Err       error
	Timestamp time.Time
}

// Observer receives expansion outcomes. It is called on the worker goroutine.
type Observer func(Expansion)

// Options configures an Engine
type Options struct {
	BufferSize int
	QueueSize  int
	Directory  snippet.Directory
	Renderer   Renderer
	Injector   Injector
	Observer   Observer
	// Focus reports the foreground app checked against the excluded list
	Focus        platform.AppFocus
	ExcludedApps []string
}

// Engine owns the keystroke buffer and the active flag. HandleKey is called
// from the capture thread; Run drains matches on its own goroutine.
type Engine struct {
	mu     sync.Mutex
	buf    *Buffer
	active bool

	queue    chan ExpansionRequested
	dir      snippet.Directory
	renderer Renderer
	injector Injector
	focus    platform.AppFocus

	exclMu   sync.RWMutex
	excluded excludedSet

	obsMu    sync.RWMutex
	observer Observer
}

// New creates an inactive engine
func New(opts Options) *Engine {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Engine{
		buf:      NewBuffer(opts.BufferSize),
		queue:    make(chan ExpansionRequested, opts.QueueSize),
		dir:      opts.Directory,
		renderer: opts.Renderer,
		injector: opts.Injector,
		focus:    opts.Focus,
		excluded: newExcludedSet(opts.ExcludedApps),
		observer: opts.Observer,
	}
}

// SetExcludedApps replaces the applications in which nothing expands
func (e *Engine) SetExcludedApps(apps []string) {
	set := newExcludedSet(apps)
	e.exclMu.Lock()
	e.excluded = set
	e.exclMu.Unlock()
}

// inExcludedApp reports whether the foreground app is excluded. A failed
// lookup does not block expansion.
func (e *Engine) inExcludedApp() (string, bool) {
	e.exclMu.RLock()
	excluded := e.excluded
	e.exclMu.RUnlock()
	if len(excluded) == 0 || e.focus == nil {
		return "", false
	}

	app, err := e.focus.Foreground()
	if err != nil {
		slog.Debug("Failed to read foreground app", "error", err)
		return "", false
	}
	return app, excluded.contains(app)
}

// SetObserver replaces the expansion observer
func (e *Engine) SetObserver(obs Observer) {
	e.obsMu.Lock()
	e.observer = obs
	e.obsMu.Unlock()
}

// SetActive toggles expansion. The buffer is cleared on every transition so
// text typed while paused cannot complete a token later.
func (e *Engine) SetActive(active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != active {
		e.buf.Reset()
	}
	e.active = active
}

// IsActive reports whether keystrokes are being matched
func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Buffered returns a copy of the current window
func (e *Engine) Buffered() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.String()
}

// HandleKey records one keystroke and queues an expansion request when a
// token now ends the buffer. It never blocks.
func (e *Engine) HandleKey(ev platform.KeyEvent) {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	if ev.Kind == platform.KeyBackspace {
		e.buf.Pop()
		e.mu.Unlock()
		return
	}
	e.buf.Push(ev.Char)
	token, ok := MatchToken(e.buf.Runes())
	e.mu.Unlock()

	if !ok {
		return
	}

	select {
	case e.queue <- ExpansionRequested{Token: token, At: time.Now()}:
	default:
		slog.Warn("Expansion queue full, dropping token", "shortcut", token)
	}
}

// Run processes queued requests until ctx is done. Errors from a single
// expansion are logged and never stop the loop.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-e.queue:
			e.process(ctx, req)
		}
	}
}

func (e *Engine) process(ctx context.Context, req ExpansionRequested) {
	if !e.IsActive() {
		return
	}

	s, err := e.dir.Lookup(ctx, req.Token)
	if err != nil {
		slog.Warn("Snippet lookup failed", "shortcut", req.Token, "error", err)
		return
	}
	if s == nil || !s.Matches(req.Token) {
		return
	}
	if !s.IsActive {
		slog.Debug("Skipping snippet", "shortcut", req.Token, "error", ErrInactiveSnippet)
		return
	}
	if app, ok := e.inExcludedApp(); ok {
		slog.Debug("Skipping snippet in excluded app", "shortcut", req.Token, "app", app)
		return
	}

	// The deletions below erase the token on screen, so drop it from the
	// window now. Adapters ignore our synthetic backspaces.
	e.mu.Lock()
	e.buf.TrimSuffix(req.Token)
	e.mu.Unlock()

	out, err := e.injector.ExpandFunc(ctx, req.Token, func() render.Result {
		return e.renderer.RenderResult(ctx, s.Body)
	})
	if err != nil {
		slog.Error("Expansion failed", "shortcut", req.Token, "error", err)
	} else {
		slog.Debug("Expanded snippet", "shortcut", req.Token, "chars", utf8.RuneCountInString(out.Text))
	}

	e.notify(Expansion{
		Shortcut:  req.Token,
		SnippetID: s.ID,
		Deleted:   utf8.RuneCountInString(req.Token),
		Chars:     utf8.RuneCountInString(out.Text),
		Latency:   time.Since(req.At),
		Err:       err,
		Timestamp: time.Now(),
	})
}

func (e *Engine) notify(exp Expansion) {
	e.obsMu.RLock()
	obs := e.observer
	e.obsMu.RUnlock()
	if obs != nil {
		obs(exp)
	}
}
