package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/spark/snippet"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", DefaultFileName))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreate(t *testing.T, db *DB, shortcut, body string, active bool) *snippet.Snippet {
	t.Helper()
	s := &snippet.Snippet{Shortcut: shortcut, Body: body, IsActive: active}
	require.NoError(t, db.CreateSnippet(s))
	return s
}

func TestSnippets_CreateAndGet(t *testing.T) {
	db := openTestDB(t)

	s := mustCreate(t, db, "sig", "Best regards", true)
	assert.NotZero(t, s.ID)
	assert.Equal(t, "/sig", s.Shortcut, "leading slash is added")
	assert.Equal(t, "sig", s.Name)
	assert.Equal(t, snippet.MatchExact, s.MatchType)
	assert.Equal(t, int64(1), s.UserID)
	assert.False(t, s.CreatedAt.IsZero())

	got, err := db.GetSnippet(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Best regards", got.Body)
	assert.True(t, got.IsActive)

	_, err = db.GetSnippet(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnippets_DuplicateShortcut(t *testing.T) {
	db := openTestDB(t)
	mustCreate(t, db, "/dup", "one", true)

	err := db.CreateSnippet(&snippet.Snippet{Shortcut: "/dup", Body: "two", IsActive: true})
	assert.ErrorIs(t, err, ErrShortcutExists)
}

func TestSnippets_Validation(t *testing.T) {
	db := openTestDB(t)

	assert.Error(t, db.CreateSnippet(&snippet.Snippet{Shortcut: "", Body: "x"}))
	assert.Error(t, db.CreateSnippet(&snippet.Snippet{Shortcut: "/ok", Body: ""}))
}

func TestSnippets_LookupOnlyActive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	mustCreate(t, db, "/on", "on", true)
	off := mustCreate(t, db, "/off", "off", false)

	s, err := db.Lookup(ctx, "/on")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "on", s.Body)

	s, err = db.Lookup(ctx, "/off")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = db.Lookup(ctx, "/missing")
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, db.SetSnippetActive(off.ID, true))
	s, err = db.Lookup(ctx, "/off")
	require.NoError(t, err)
	assert.NotNil(t, s)

	var _ snippet.Directory = db
}

func TestSnippets_UpdatePartial(t *testing.T) {
	db := openTestDB(t)
	s := mustCreate(t, db, "/a", "alpha", true)
	mustCreate(t, db, "/b", "beta", true)

	body := "ALPHA"
	got, err := db.UpdateSnippet(s.ID, SnippetUpdate{Body: &body})
	require.NoError(t, err)
	assert.Equal(t, "ALPHA", got.Body)
	assert.Equal(t, "/a", got.Shortcut)
	assert.True(t, got.IsActive)

	taken := "/b"
	_, err = db.UpdateSnippet(s.ID, SnippetUpdate{Shortcut: &taken})
	assert.ErrorIs(t, err, ErrShortcutExists)

	_, err = db.UpdateSnippet(4242, SnippetUpdate{Body: &body})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnippets_ListAndDelete(t *testing.T) {
	db := openTestDB(t)

	folder := &Folder{Name: "Work"}
	require.NoError(t, db.CreateFolder(folder))

	c := &snippet.Snippet{Shortcut: "/c", Body: "c", IsActive: true, FolderID: &folder.ID}
	require.NoError(t, db.CreateSnippet(c))
	a := mustCreate(t, db, "/a", "a", true)

	all, err := db.ListSnippets(SnippetFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "/a", all[0].Shortcut)

	inFolder, err := db.ListSnippets(SnippetFilter{FolderID: &folder.ID})
	require.NoError(t, err)
	require.Len(t, inFolder, 1)
	assert.Equal(t, "/c", inFolder[0].Shortcut)

	require.NoError(t, db.DeleteSnippet(a.ID))
	assert.ErrorIs(t, db.DeleteSnippet(a.ID), ErrNotFound)

	count, err := db.GetSnippetCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFolders(t *testing.T) {
	db := openTestDB(t)

	work := &Folder{Name: " Work "}
	require.NoError(t, db.CreateFolder(work))
	assert.Equal(t, "Work", work.Name)
	require.NoError(t, db.CreateFolder(&Folder{Name: "Email", ParentID: &work.ID}))
	assert.Error(t, db.CreateFolder(&Folder{Name: ""}))

	folders, err := db.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "Email", folders[0].Name)
	require.NotNil(t, folders[0].ParentID)
	assert.Equal(t, work.ID, *folders[0].ParentID)

	found, err := db.FindFolder("Work")
	require.NoError(t, err)
	assert.Equal(t, work.ID, found.ID)

	s := &snippet.Snippet{Shortcut: "/w", Body: "w", IsActive: true, FolderID: &work.ID}
	require.NoError(t, db.CreateSnippet(s))

	require.NoError(t, db.DeleteFolder(work.ID))
	got, err := db.GetSnippet(s.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FolderID, "snippets outlive their folder")

	_, err = db.FindFolder("Work")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestExpansions_HistoryAndStats(t *testing.T) {
	db := openTestDB(t)
	s := mustCreate(t, db, "/green", "🟢 Green Color: #22c55e", true)

	now := time.Now()
	records := []Expansion{
		{Timestamp: now.Add(-2 * time.Minute), Shortcut: "/green", SnippetID: &s.ID, DeletedCount: 6, CharCount: 22, LatencyMs: 10, Success: true},
		{Timestamp: now.Add(-time.Minute), Shortcut: "/green", SnippetID: &s.ID, DeletedCount: 6, CharCount: 22, LatencyMs: 30, Success: true},
		{Timestamp: now, Shortcut: "/sig", DeletedCount: 4, CharCount: 0, LatencyMs: 5, Success: false, ErrorMessage: "paste failed"},
		{Timestamp: now.AddDate(0, 0, -30), Shortcut: "/old", DeletedCount: 4, CharCount: 10, LatencyMs: 5, Success: true},
	}
	for i := range records {
		require.NoError(t, db.SaveExpansion(&records[i]))
		assert.Len(t, records[i].ID, 26, "ULID")
	}

	history, err := db.GetExpansions(10, 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "/sig", history[0].Shortcut)
	assert.Equal(t, "paste failed", history[0].ErrorMessage)
	assert.Nil(t, history[0].SnippetID)
	require.NotNil(t, history[1].SnippetID)
	assert.Equal(t, s.ID, *history[1].SnippetID)

	page, err := db.GetExpansions(1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, history[1].ID, page[0].ID)

	count, err := db.GetExpansionCount()
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	overall, err := db.GetOverallStats(7)
	require.NoError(t, err)
	assert.Equal(t, 3, overall.TotalExpansions)
	assert.Equal(t, 2, overall.SuccessCount)
	assert.Equal(t, 1, overall.FailureCount)
	assert.Equal(t, 44, overall.TotalCharacters)
	assert.Equal(t, 44-16, overall.KeystrokesSaved)
	assert.InDelta(t, 15.0, overall.AvgLatencyMs, 0.001)

	top, err := db.GetTopShortcuts(7, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "/green", top[0].Shortcut)
	assert.Equal(t, 2, top[0].TotalExpansions)

	daily, err := db.GetDailyStats(60)
	require.NoError(t, err)
	total := 0
	for _, d := range daily {
		total += d.TotalExpansions
	}
	assert.Equal(t, 4, total)

	ranged, err := db.GetStatsForDateRange(now.AddDate(0, 0, -31), now.AddDate(0, 0, -29))
	require.NoError(t, err)
	assert.Equal(t, 1, ranged.TotalExpansions)
}

func TestExpansions_SnippetDeletionKeepsHistory(t *testing.T) {
	db := openTestDB(t)
	s := mustCreate(t, db, "/x", "x", true)
	require.NoError(t, db.SaveExpansion(&Expansion{Shortcut: "/x", SnippetID: &s.ID, Success: true}))

	require.NoError(t, db.DeleteSnippet(s.ID))

	history, err := db.GetExpansions(10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].SnippetID)
}

func TestSnippets_Search(t *testing.T) {
	db := openTestDB(t)

	folder := &Folder{Name: "Work"}
	require.NoError(t, db.CreateFolder(folder))

	require.NoError(t, db.CreateSnippet(&snippet.Snippet{Shortcut: "/green", Name: "Green Color", Body: "g", IsActive: true}))
	require.NoError(t, db.CreateSnippet(&snippet.Snippet{Shortcut: "/grey", Name: "Grey", Body: "g", IsActive: true, FolderID: &folder.ID}))
	require.NoError(t, db.CreateSnippet(&snippet.Snippet{Shortcut: "/pct", Name: "100% done", Body: "p", IsActive: true}))

	tests := []struct {
		name   string
		filter SnippetFilter
		want   []string
	}{
		{"name ignores case", SnippetFilter{Search: "color"}, []string{"/green"}},
		{"shortcut prefix", SnippetFilter{Search: "/GR"}, []string{"/green", "/grey"}},
		{"with folder", SnippetFilter{Search: "gr", FolderID: &folder.ID}, []string{"/grey"}},
		{"percent is literal", SnippetFilter{Search: "0%"}, []string{"/pct"}},
		{"underscore is literal", SnippetFilter{Search: "_"}, nil},
		{"blank matches all", SnippetFilter{Search: "  "}, []string{"/green", "/grey", "/pct"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListSnippets(tt.filter)
			require.NoError(t, err)
			var shortcuts []string
			for _, s := range got {
				shortcuts = append(shortcuts, s.Shortcut)
			}
			assert.Equal(t, tt.want, shortcuts)
		})
	}
}

func TestSnippets_RejectsUnknownMatchType(t *testing.T) {
	db := openTestDB(t)

	err := db.CreateSnippet(&snippet.Snippet{Shortcut: "/re", Body: "x", MatchType: "regex", IsActive: true})
	assert.ErrorContains(t, err, "unsupported match type")

	s := mustCreate(t, db, "/ok", "x", true)
	assert.Equal(t, snippet.MatchExact, s.MatchType)

	prefix := "prefix"
	_, err = db.UpdateSnippet(s.ID, SnippetUpdate{MatchType: &prefix})
	assert.ErrorContains(t, err, "unsupported match type")

	exact := snippet.MatchExact
	_, err = db.UpdateSnippet(s.ID, SnippetUpdate{MatchType: &exact})
	assert.NoError(t, err)
}
