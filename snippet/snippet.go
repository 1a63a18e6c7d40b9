// Package snippet defines the snippet value the expansion engine consumes
// and the directory it looks snippets up in.
package snippet

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MatchExact expands when the typed token equals the shortcut
const MatchExact = "exact"

// Snippet is a stored template keyed by its shortcut
type Snippet struct {
	ID        int64     `json:"id" yaml:"-"`
	UserID    int64     `json:"userId" yaml:"-"`
	FolderID  *int64    `json:"folderId,omitempty" yaml:"-"`
	Name      string    `json:"name" yaml:"name"`
	Shortcut  string    `json:"shortcut" yaml:"shortcut"`
	Body      string    `json:"body" yaml:"body"`
	MatchType string    `json:"matchType" yaml:"match_type,omitempty"`
	IsActive  bool      `json:"isActive" yaml:"active"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Matches reports whether token triggers the snippet
func (s *Snippet) Matches(token string) bool {
	switch s.MatchType {
	case "", MatchExact:
		return s.Shortcut == token
	default:
		return false
	}
}

// Directory maps a shortcut to its snippet. Lookup returns nil, nil for
// unknown or inactive snippets.
type Directory interface {
	Lookup(ctx context.Context, shortcut string) (*Snippet, error)
}

// NormalizeShortcut trims whitespace and ensures the leading slash
func NormalizeShortcut(s string) string {
	s = strings.TrimSpace(s)
	if s != "" && !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return s
}

// IsShortcutRune reports whether r may follow the leading slash of a shortcut
func IsShortcutRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	}
	return false
}

// ValidShortcut reports whether s is a slash followed by one or more
// shortcut characters
func ValidShortcut(s string) bool {
	if len(s) < 2 || s[0] != '/' {
		return false
	}
	for _, r := range s[1:] {
		if !IsShortcutRune(r) {
			return false
		}
	}
	return true
}

// MapDirectory is an in-memory Directory
type MapDirectory struct {
	mu       sync.RWMutex
	snippets map[string]Snippet
}

// NewMapDirectory creates a directory holding the given snippets
func NewMapDirectory(snippets ...Snippet) *MapDirectory {
	d := &MapDirectory{snippets: make(map[string]Snippet)}
	for _, s := range snippets {
		d.Put(s)
	}
	return d
}

// Put adds or replaces a snippet
func (d *MapDirectory) Put(s Snippet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snippets[s.Shortcut] = s
}

// Lookup returns a copy of the active snippet for shortcut
func (d *MapDirectory) Lookup(ctx context.Context, shortcut string) (*Snippet, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.snippets[shortcut]
	if !ok || !s.IsActive {
		return nil, nil
	}
	return &s, nil
}
