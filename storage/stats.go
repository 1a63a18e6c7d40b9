package storage

import (
	"fmt"
	"time"
)

// DailyStats represents statistics for a single day
type DailyStats struct {
	Date            string `json:"date"`
	TotalExpansions int    `json:"totalExpansions"`
	TotalCharacters int    `json:"totalCharacters"`
	SuccessCount    int    `json:"successCount"`
	FailureCount    int    `json:"failureCount"`
}

// ShortcutStats represents usage of one shortcut
type ShortcutStats struct {
	Shortcut        string  `json:"shortcut"`
	TotalExpansions int     `json:"totalExpansions"`
	TotalCharacters int     `json:"totalCharacters"`
	AvgLatencyMs    float64 `json:"avgLatencyMs"`
}

// OverallStats represents overall statistics
type OverallStats struct {
	TotalExpansions int     `json:"totalExpansions"`
	TotalCharacters int     `json:"totalCharacters"`
	TotalDeleted    int     `json:"totalDeleted"`
	SuccessCount    int     `json:"successCount"`
	FailureCount    int     `json:"failureCount"`
	AvgLatencyMs    float64 `json:"avgLatencyMs"`
	// KeystrokesSaved is characters produced minus shortcut characters typed
	KeystrokesSaved int `json:"keystrokesSaved"`
}

const overallStatsColumns = `
	COUNT(*) as total_expansions,
	COALESCE(SUM(character_count), 0) as total_characters,
	COALESCE(SUM(deleted_count), 0) as total_deleted,
	COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0) as success_count,
	COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) as failure_count,
	COALESCE(AVG(latency_ms), 0) as avg_latency_ms
`

// GetDailyStats retrieves statistics grouped by date for the last N days
func (db *DB) GetDailyStats(days int) ([]DailyStats, error) {
	query := `
		SELECT
			DATE(timestamp) as date,
			COUNT(*) as total_expansions,
			SUM(character_count) as total_characters,
			SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END) as success_count,
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) as failure_count
		FROM expansions
		WHERE timestamp >= datetime('now', '-' || ? || ' days')
		GROUP BY DATE(timestamp)
		ORDER BY date DESC
	`

	rows, err := db.conn.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStats
	for rows.Next() {
		var s DailyStats
		err := rows.Scan(&s.Date, &s.TotalExpansions, &s.TotalCharacters, &s.SuccessCount, &s.FailureCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetTopShortcuts retrieves the most used shortcuts for the last N days
func (db *DB) GetTopShortcuts(days, limit int) ([]ShortcutStats, error) {
	query := `
		SELECT
			shortcut,
			COUNT(*) as total_expansions,
			SUM(character_count) as total_characters,
			AVG(latency_ms) as avg_latency_ms
		FROM expansions
		WHERE timestamp >= datetime('now', '-' || ? || ' days') AND success = 1
		GROUP BY shortcut
		ORDER BY total_expansions DESC, shortcut
		LIMIT ?
	`

	rows, err := db.conn.Query(query, days, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query shortcut stats: %w", err)
	}
	defer rows.Close()

	var stats []ShortcutStats
	for rows.Next() {
		var s ShortcutStats
		err := rows.Scan(&s.Shortcut, &s.TotalExpansions, &s.TotalCharacters, &s.AvgLatencyMs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shortcut stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// GetOverallStats retrieves overall statistics for the last N days
func (db *DB) GetOverallStats(days int) (*OverallStats, error) {
	query := `SELECT ` + overallStatsColumns + `
		FROM expansions
		WHERE timestamp >= datetime('now', '-' || ? || ' days')
	`

	stats, err := db.scanOverall(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}
	return stats, nil
}

// GetStatsForDateRange retrieves overall stats for a custom date range
func (db *DB) GetStatsForDateRange(startTime, endTime time.Time) (*OverallStats, error) {
	query := `SELECT ` + overallStatsColumns + `
		FROM expansions
		WHERE timestamp >= ? AND timestamp <= ?
	`

	stats, err := db.scanOverall(query, startTime.UTC().Format(sqliteTime), endTime.UTC().Format(sqliteTime))
	if err != nil {
		return nil, fmt.Errorf("failed to query date range stats: %w", err)
	}
	return stats, nil
}

func (db *DB) scanOverall(query string, args ...any) (*OverallStats, error) {
	var stats OverallStats
	err := db.conn.QueryRow(query, args...).Scan(
		&stats.TotalExpansions,
		&stats.TotalCharacters,
		&stats.TotalDeleted,
		&stats.SuccessCount,
		&stats.FailureCount,
		&stats.AvgLatencyMs,
	)
	if err != nil {
		return nil, err
	}
	stats.KeystrokesSaved = stats.TotalCharacters - stats.TotalDeleted
	return &stats, nil
}
