package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// sqliteTime matches CURRENT_TIMESTAMP so datetime() comparisons work
const sqliteTime = "2006-01-02 15:04:05"

// Expansion is one recorded expansion attempt
type Expansion struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Shortcut     string    `json:"shortcut"`
	SnippetID    *int64    `json:"snippetId,omitempty"`
	DeletedCount int       `json:"deletedCount"`
	CharCount    int       `json:"charCount"`
	LatencyMs    int64     `json:"latencyMs"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// SaveExpansion records an expansion, assigning a ULID when ID is empty
func (db *DB) SaveExpansion(e *Expansion) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.Timestamp), ulid.DefaultEntropy()).String()
	}

	query := `
		INSERT INTO expansions (
			id, timestamp, shortcut, snippet_id, deleted_count, character_count,
			latency_ms, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errorMessage sql.NullString
	if e.ErrorMessage != "" {
		errorMessage = sql.NullString{String: e.ErrorMessage, Valid: true}
	}

	_, err := db.conn.Exec(query,
		e.ID, e.Timestamp.UTC().Format(sqliteTime), e.Shortcut, e.SnippetID,
		e.DeletedCount, e.CharCount, e.LatencyMs, e.Success, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save expansion: %w", err)
	}

	return nil
}

// GetExpansions retrieves expansions with pagination, newest first
func (db *DB) GetExpansions(limit, offset int) ([]Expansion, error) {
	query := `
		SELECT
			id, timestamp, shortcut, snippet_id, deleted_count, character_count,
			latency_ms, success, error_message
		FROM expansions
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query expansions: %w", err)
	}
	defer rows.Close()

	var expansions []Expansion
	for rows.Next() {
		var e Expansion
		var snippetID sql.NullInt64
		var errorMessage sql.NullString

		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.Shortcut, &snippetID, &e.DeletedCount, &e.CharCount,
			&e.LatencyMs, &e.Success, &errorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expansion: %w", err)
		}

		if snippetID.Valid {
			id := snippetID.Int64
			e.SnippetID = &id
		}
		if errorMessage.Valid {
			e.ErrorMessage = errorMessage.String
		}

		expansions = append(expansions, e)
	}

	return expansions, rows.Err()
}

// GetExpansionCount returns the total number of expansions
func (db *DB) GetExpansionCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM expansions").Scan(&count)
	return count, err
}
