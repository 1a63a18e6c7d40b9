// Package render expands the variable tokens in a snippet body.
package render

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ncruces/go-strftime"
)

// Result is rendered snippet text plus the caret position
type Result struct {
	Text string
	// Cursor is the rune offset in Text where the caret belongs, or -1
	Cursor int
}

// CursorMarker marks the caret position in a snippet body
const CursorMarker = "{{cursor}}"

// caretSentinel stands in for the first cursor marker while the other passes
// run. U+FDD0 is a noncharacter and never appears in typed text.
const caretSentinel = "\ufdd0"

var (
	cursorPattern    = regexp.MustCompile(`\{\{cursor\}\}`)
	datePattern      = regexp.MustCompile(`\{\{date:([^}]+)\}\}`)
	timePattern      = regexp.MustCompile(`\{\{time:([^}]+)\}\}`)
	clipboardPattern = regexp.MustCompile(`\{\{clipboard\}\}`)
	calcPattern      = regexp.MustCompile(`\{\{calc:\s*([^}]+)\}\}`)
	envPattern       = regexp.MustCompile(`\{\{env:([^}]+)\}\}`)
	inputPattern     = regexp.MustCompile(`\{\{input:([^:}]+):([^}]*)\}\}`)
	selectPattern    = regexp.MustCompile(`\{\{select:([^:}]+):([^}]+)\}\}`)
)

// ClipboardReader is the read half of the system clipboard
type ClipboardReader interface {
	Get() (string, error)
}

// Renderer substitutes date, time, clipboard, cursor, calc, env and
// interactive tokens. It holds no per-render state and is safe for
// concurrent use.
type Renderer struct {
	now         func() time.Time
	lookupEnv   func(string) (string, bool)
	clipboard   ClipboardReader
	interactive Interactive
	calc        *Calculator
	pipeline    *Pipeline
}

// Option configures a Renderer
type Option func(*Renderer)

// WithClock sets the time source for date and time tokens
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithEnv sets the environment lookup for env tokens
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(r *Renderer) { r.lookupEnv = lookup }
}

// WithClipboard sets the clipboard read by clipboard tokens
func WithClipboard(c ClipboardReader) Option {
	return func(r *Renderer) { r.clipboard = c }
}

// WithInteractive sets the resolver for input and select tokens
func WithInteractive(i Interactive) Option {
	return func(r *Renderer) { r.interactive = i }
}

// WithCalculator sets the calc evaluator
func WithCalculator(c *Calculator) Option {
	return func(r *Renderer) { r.calc = c }
}

// New creates a renderer. Without options it uses the local clock, the
// process environment, no clipboard and the passthrough resolver.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		now:         time.Now,
		lookupEnv:   os.LookupEnv,
		interactive: Passthrough{},
		calc:        NewCalculator(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.pipeline = NewPipeline(
		Pass{Name: "cursor", Pattern: cursorPattern, Replace: r.cursor},
		Pass{Name: "date", Pattern: datePattern, Replace: r.datetime},
		Pass{Name: "time", Pattern: timePattern, Replace: r.datetime},
		Pass{Name: "clipboard", Pattern: clipboardPattern, Replace: r.clipboardText},
		Pass{Name: "calc", Pattern: calcPattern, Replace: r.calculate},
		Pass{Name: "env", Pattern: envPattern, Replace: r.env},
		Pass{Name: "input", Pattern: inputPattern, Replace: r.input},
		Pass{Name: "select", Pattern: selectPattern, Replace: r.choose},
	)
	return r
}

// Render returns the body with every recognized token substituted
func (r *Renderer) Render(body string) string {
	return r.RenderResult(context.Background(), body).Text
}

// RenderResult renders body and reports where the caret should end up
func (r *Renderer) RenderResult(ctx context.Context, body string) Result {
	text := r.pipeline.Process(ctx, body)

	cursor := -1
	if i := strings.Index(text, caretSentinel); i >= 0 {
		cursor = utf8.RuneCountInString(text[:i])
		text = strings.ReplaceAll(text, caretSentinel, "")
	}
	return Result{Text: text, Cursor: cursor}
}

// CursorPosition returns the rune offset of the first cursor marker in the
// unrendered body
func CursorPosition(body string) (int, bool) {
	i := strings.Index(body, CursorMarker)
	if i < 0 {
		return 0, false
	}
	return utf8.RuneCountInString(body[:i]), true
}

// HasCursor reports whether body contains a cursor marker
func HasCursor(body string) bool {
	return strings.Contains(body, CursorMarker)
}

func (r *Renderer) cursor(ctx context.Context, m []string) (string, bool) {
	return caretSentinel, true
}

func (r *Renderer) datetime(ctx context.Context, m []string) (string, bool) {
	return strftime.Format(m[1], r.now()), true
}

func (r *Renderer) clipboardText(ctx context.Context, m []string) (string, bool) {
	if r.clipboard == nil {
		return "", true
	}
	text, err := r.clipboard.Get()
	if err != nil {
		slog.Debug("Clipboard unavailable for template", "error", err)
		return "", true
	}
	return text, true
}

func (r *Renderer) calculate(ctx context.Context, m []string) (string, bool) {
	v, err := r.calc.Eval(ctx, m[1])
	if err != nil {
		slog.Debug("Calc failed", "expression", m[1], "error", err)
		return "", false
	}
	return FormatNumber(v), true
}

func (r *Renderer) env(ctx context.Context, m []string) (string, bool) {
	v, _ := r.lookupEnv(strings.TrimSpace(m[1]))
	return v, true
}

func (r *Renderer) input(ctx context.Context, m []string) (string, bool) {
	return r.interactive.Input(m[1], m[2])
}

func (r *Renderer) choose(ctx context.Context, m []string) (string, bool) {
	return r.interactive.Select(m[1], splitOptions(m[2]))
}
