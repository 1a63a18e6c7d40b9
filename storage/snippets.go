package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"markestedt/spark/snippet"
)

const snippetColumns = `id, user_id, folder_id, name, shortcut, body, created_at, updated_at, is_active, match_type`

// SnippetUpdate holds the fields to change; nil fields are left alone
type SnippetUpdate struct {
	FolderID  *int64  `json:"folderId,omitempty"`
	Name      *string `json:"name,omitempty"`
	Shortcut  *string `json:"shortcut,omitempty"`
	Body      *string `json:"body,omitempty"`
	MatchType *string `json:"matchType,omitempty"`
	IsActive  *bool   `json:"isActive,omitempty"`
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row scanner) (*snippet.Snippet, error) {
	var s snippet.Snippet
	var folderID sql.NullInt64

	err := row.Scan(&s.ID, &s.UserID, &folderID, &s.Name, &s.Shortcut, &s.Body,
		&s.CreatedAt, &s.UpdatedAt, &s.IsActive, &s.MatchType)
	if err != nil {
		return nil, err
	}
	if folderID.Valid {
		id := folderID.Int64
		s.FolderID = &id
	}
	return &s, nil
}

func validateSnippet(s *snippet.Snippet) error {
	if !snippet.ValidShortcut(s.Shortcut) {
		return fmt.Errorf("invalid shortcut %q", s.Shortcut)
	}
	if s.MatchType != "" && s.MatchType != snippet.MatchExact {
		return fmt.Errorf("unsupported match type %q", s.MatchType)
	}
	if s.Body == "" {
		return fmt.Errorf("snippet %s has an empty body", s.Shortcut)
	}
	return nil
}

// CreateSnippet saves a new snippet and fills in its ID
func (db *DB) CreateSnippet(s *snippet.Snippet) error {
	s.Shortcut = snippet.NormalizeShortcut(s.Shortcut)
	if err := validateSnippet(s); err != nil {
		return err
	}
	if s.UserID == 0 {
		s.UserID = 1
	}
	if s.MatchType == "" {
		s.MatchType = snippet.MatchExact
	}
	if s.Name == "" {
		s.Name = strings.TrimPrefix(s.Shortcut, "/")
	}

	query := `
		INSERT INTO snippets (user_id, folder_id, name, shortcut, body, is_active, match_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.Exec(query, s.UserID, s.FolderID, s.Name, s.Shortcut, s.Body, s.IsActive, s.MatchType)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", s.Shortcut, ErrShortcutExists)
		}
		return fmt.Errorf("failed to save snippet: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	saved, err := db.GetSnippet(id)
	if err != nil {
		return err
	}
	*s = *saved
	return nil
}

// GetSnippet retrieves a snippet by ID
func (db *DB) GetSnippet(id int64) (*snippet.Snippet, error) {
	row := db.conn.QueryRow(`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id)
	s, err := scanSnippet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snippet %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snippet: %w", err)
	}
	return s, nil
}

// SnippetFilter narrows ListSnippets. Zero values match everything.
type SnippetFilter struct {
	FolderID *int64
	// Search matches name or shortcut, ignoring case
	Search string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListSnippets returns the snippets matching f ordered by shortcut
func (db *DB) ListSnippets(f SnippetFilter) ([]snippet.Snippet, error) {
	query := `SELECT ` + snippetColumns + ` FROM snippets`
	var where []string
	var args []any
	if f.FolderID != nil {
		where = append(where, `folder_id = ?`)
		args = append(args, *f.FolderID)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(shortcut) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY shortcut`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snippets: %w", err)
	}
	defer rows.Close()

	var snippets []snippet.Snippet
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		snippets = append(snippets, *s)
	}

	return snippets, rows.Err()
}

// UpdateSnippet applies a partial update and returns the stored snippet
func (db *DB) UpdateSnippet(id int64, u SnippetUpdate) (*snippet.Snippet, error) {
	s, err := db.GetSnippet(id)
	if err != nil {
		return nil, err
	}

	if u.FolderID != nil {
		s.FolderID = u.FolderID
		if *u.FolderID == 0 {
			s.FolderID = nil
		}
	}
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Shortcut != nil {
		s.Shortcut = snippet.NormalizeShortcut(*u.Shortcut)
	}
	if u.Body != nil {
		s.Body = *u.Body
	}
	if u.MatchType != nil {
		s.MatchType = *u.MatchType
	}
	if u.IsActive != nil {
		s.IsActive = *u.IsActive
	}
	if err := validateSnippet(s); err != nil {
		return nil, err
	}

	query := `
		UPDATE snippets
		SET folder_id = ?, name = ?, shortcut = ?, body = ?, match_type = ?, is_active = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	if _, err := db.conn.Exec(query, s.FolderID, s.Name, s.Shortcut, s.Body, s.MatchType, s.IsActive, id); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", s.Shortcut, ErrShortcutExists)
		}
		return nil, fmt.Errorf("failed to update snippet: %w", err)
	}

	return db.GetSnippet(id)
}

// SetSnippetActive enables or disables a snippet
func (db *DB) SetSnippetActive(id int64, active bool) error {
	_, err := db.UpdateSnippet(id, SnippetUpdate{IsActive: &active})
	return err
}

// DeleteSnippet deletes a snippet by ID
func (db *DB) DeleteSnippet(id int64) error {
	query := `DELETE FROM snippets WHERE id = ?`

	result, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete snippet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("snippet %d: %w", id, ErrNotFound)
	}

	return nil
}

// FindByShortcut returns the snippet for shortcut whether or not it is
// active
func (db *DB) FindByShortcut(shortcut string) (*snippet.Snippet, error) {
	row := db.conn.QueryRow(`SELECT `+snippetColumns+` FROM snippets WHERE shortcut = ?`, shortcut)
	s, err := scanSnippet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snippet %s: %w", shortcut, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snippet: %w", err)
	}
	return s, nil
}

// Lookup returns the active snippet for shortcut, or nil when there is none
func (db *DB) Lookup(ctx context.Context, shortcut string) (*snippet.Snippet, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE shortcut = ? AND is_active = 1`, shortcut)
	s, err := scanSnippet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up snippet: %w", err)
	}
	return s, nil
}

// GetSnippetCount returns the number of snippets
func (db *DB) GetSnippetCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM snippets").Scan(&count)
	return count, err
}
