package snippetio

import (
	"errors"
	"fmt"
	"log/slog"

	"markestedt/spark/snippet"
	"markestedt/spark/storage"
)

// Store is the part of the snippet database an import writes to
type Store interface {
	FindFolder(name string) (*storage.Folder, error)
	CreateFolder(f *storage.Folder) error
	FindByShortcut(shortcut string) (*snippet.Snippet, error)
	CreateSnippet(s *snippet.Snippet) error
	UpdateSnippet(id int64, u storage.SnippetUpdate) (*snippet.Snippet, error)
}

// Summary counts what an import did
type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Apply writes items to st, creating folders by name. Existing shortcuts
// are skipped unless overwrite is set.
func Apply(st Store, items []Item, overwrite bool) (Summary, error) {
	var sum Summary
	folders := make(map[string]int64)

	for _, it := range items {
		s := it.Snippet
		s.Shortcut = snippet.NormalizeShortcut(s.Shortcut)

		if it.Folder != "" {
			id, err := folderID(st, folders, it.Folder)
			if err != nil {
				return sum, err
			}
			s.FolderID = &id
		}

		existing, err := st.FindByShortcut(s.Shortcut)
		switch {
		case err == nil && !overwrite:
			slog.Debug("Skipping existing shortcut", "shortcut", s.Shortcut)
			sum.Skipped++
			continue
		case err == nil:
			u := storage.SnippetUpdate{Body: &s.Body, IsActive: &s.IsActive}
			if s.Name != "" {
				u.Name = &s.Name
			}
			if s.FolderID != nil {
				u.FolderID = s.FolderID
			}
			if _, err := st.UpdateSnippet(existing.ID, u); err != nil {
				return sum, fmt.Errorf("update %s: %w", s.Shortcut, err)
			}
			sum.Updated++
			continue
		case !errors.Is(err, storage.ErrNotFound):
			return sum, err
		}

		if err := st.CreateSnippet(&s); err != nil {
			return sum, fmt.Errorf("create %s: %w", s.Shortcut, err)
		}
		sum.Created++
	}

	return sum, nil
}

func folderID(st Store, cache map[string]int64, name string) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}

	f, err := st.FindFolder(name)
	if errors.Is(err, storage.ErrNotFound) {
		f = &storage.Folder{Name: name}
		err = st.CreateFolder(f)
	}
	if err != nil {
		return 0, fmt.Errorf("folder %q: %w", name, err)
	}

	cache[name] = f.ID
	return f.ID, nil
}

// Collect pairs snippets with their folder names for export
func Collect(snippets []snippet.Snippet, folders []storage.Folder) []Item {
	names := make(map[int64]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}

	items := make([]Item, 0, len(snippets))
	for _, s := range snippets {
		it := Item{Snippet: s}
		if s.FolderID != nil {
			it.Folder = names[*s.FolderID]
		}
		items = append(items, it)
	}
	return items
}
