package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Folder groups snippets
type Folder struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"userId"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId,omitempty"`
}

// CreateFolder saves a new folder and fills in its ID
func (db *DB) CreateFolder(f *Folder) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return fmt.Errorf("folder name is empty")
	}
	if f.UserID == 0 {
		f.UserID = 1
	}

	result, err := db.conn.Exec(`INSERT INTO folders (user_id, name, parent_id) VALUES (?, ?, ?)`,
		f.UserID, f.Name, f.ParentID)
	if err != nil {
		return fmt.Errorf("failed to save folder: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	f.ID = id
	return nil
}

// FindFolder returns the top-level folder with name
func (db *DB) FindFolder(name string) (*Folder, error) {
	var f Folder
	var parentID sql.NullInt64
	err := db.conn.QueryRow(`SELECT id, user_id, name, parent_id FROM folders WHERE name = ? AND parent_id IS NULL`, name).
		Scan(&f.ID, &f.UserID, &f.Name, &parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("folder %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &f, nil
}

// ListFolders returns every folder ordered by name
func (db *DB) ListFolders() ([]Folder, error) {
	rows, err := db.conn.Query(`SELECT id, user_id, name, parent_id FROM folders ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var f Folder
		var parentID sql.NullInt64
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &parentID); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		if parentID.Valid {
			id := parentID.Int64
			f.ParentID = &id
		}
		folders = append(folders, f)
	}

	return folders, rows.Err()
}

// DeleteFolder deletes a folder. Its snippets stay, without a folder.
func (db *DB) DeleteFolder(id int64) error {
	result, err := db.conn.Exec(`DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("folder %d: %w", id, ErrNotFound)
	}

	return nil
}
