package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/spark/config"
	"markestedt/spark/snippet"
	"markestedt/spark/storage"
)

type fakeExpander struct {
	mu      sync.Mutex
	active  bool
	reloads int
	err     error
}

func (f *fakeExpander) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.active = true
	return nil
}

func (f *fakeExpander) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
}

func (f *fakeExpander) Reload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	f.active = true
	return f.err
}

func (f *fakeExpander) IsActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type testServer struct {
	*Server
	handler  http.Handler
	db       *storage.DB
	expander *fakeExpander
	cfgPath  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, storage.DefaultFileName))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exp := &fakeExpander{}
	cfgPath := filepath.Join(dir, "config.toml")
	srv := NewServer(Options{
		DB:         db,
		Expander:   exp,
		Config:     config.Default(),
		ConfigPath: cfgPath,
		Port:       0,
	})
	t.Cleanup(srv.Close)

	h, err := srv.Handler()
	require.NoError(t, err)
	return &testServer{Server: srv, handler: h, db: db, expander: exp, cfgPath: cfgPath}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.db.CreateSnippet(&snippet.Snippet{Shortcut: "/a", Body: "A", IsActive: true}))

	rec := ts.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Active   bool   `json:"active"`
		Status   string `json:"status"`
		Snippets int    `json:"snippets"`
	}
	decode(t, rec, &got)
	assert.False(t, got.Active)
	assert.Equal(t, "paused", got.Status)
	assert.Equal(t, 1, got.Snippets)

	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodPost, "/api/status", nil).Code)
}

func TestHandleExpander(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/expander/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.expander.IsActive())

	rec = ts.do(t, http.MethodPost, "/api/expander/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ts.expander.IsActive())

	rec = ts.do(t, http.MethodPost, "/api/expander/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.expander.reloads)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/expander/explode", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodGet, "/api/expander/start", nil).Code)
}

func TestHandleExpander_StartFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.expander.err = assert.AnError

	rec := ts.do(t, http.MethodPost, "/api/expander/start", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), assert.AnError.Error())
}

func TestSnippetCRUD(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/snippets", map[string]any{
		"shortcut": "/sig",
		"body":     "Best,\nAnna",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created snippet.Snippet
	decode(t, rec, &created)
	assert.NotZero(t, created.ID)
	assert.True(t, created.IsActive)
	assert.Equal(t, "sig", created.Name)

	// Duplicate shortcut
	rec = ts.do(t, http.MethodPost, "/api/snippets", map[string]any{"shortcut": "/sig", "body": "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Invalid shortcut
	rec = ts.do(t, http.MethodPost, "/api/snippets", map[string]any{"shortcut": "/has space", "body": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := fmt.Sprintf("/api/snippets/%d", created.ID)

	rec = ts.do(t, http.MethodPut, path, map[string]any{"body": "Cheers", "isActive": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated snippet.Snippet
	decode(t, rec, &updated)
	assert.Equal(t, "Cheers", updated.Body)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "/sig", updated.Shortcut)

	rec = ts.do(t, http.MethodGet, "/api/snippets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Snippets []snippet.Snippet `json:"snippets"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Snippets, 1)

	rec = ts.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/snippets/abc", nil).Code)
}

func TestSnippets_FolderFilter(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/folders", map[string]any{"name": "Work"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var folder storage.Folder
	decode(t, rec, &folder)

	ts.do(t, http.MethodPost, "/api/snippets", map[string]any{"shortcut": "/w", "body": "work", "folderId": folder.ID})
	ts.do(t, http.MethodPost, "/api/snippets", map[string]any{"shortcut": "/h", "body": "home"})

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/snippets?folder=%d", folder.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Snippets []snippet.Snippet `json:"snippets"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Snippets, 1)
	assert.Equal(t, "/w", list.Snippets[0].Shortcut)

	rec = ts.do(t, http.MethodGet, "/api/folders", nil)
	var folders struct {
		Folders []storage.Folder `json:"folders"`
	}
	decode(t, rec, &folders)
	assert.Len(t, folders.Folders, 1)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/snippets?folder=x", nil).Code)
}

func TestSnippets_Search(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/api/snippets", map[string]any{"shortcut": "/green", "name": "Green Color", "body": "#22c55e"})
	ts.do(t, http.MethodPost, "/api/snippets", map[string]any{"shortcut": "/sig", "name": "Signature", "body": "Best"})
	ts.do(t, http.MethodPost, "/api/snippets", map[string]any{"shortcut": "/addr", "name": "Address", "body": "Main St"})

	search := func(q string) []string {
		rec := ts.do(t, http.MethodGet, "/api/snippets?q="+url.QueryEscape(q), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list struct {
			Snippets []snippet.Snippet `json:"snippets"`
		}
		decode(t, rec, &list)
		var shortcuts []string
		for _, sn := range list.Snippets {
			shortcuts = append(shortcuts, sn.Shortcut)
		}
		return shortcuts
	}

	assert.Equal(t, []string{"/green"}, search("COLOR"))
	assert.Equal(t, []string{"/sig"}, search("/SI"))
	assert.Equal(t, []string{"/addr"}, search("DRESS"))
	assert.Empty(t, search("%"))
	assert.Len(t, search(""), 3)
}

func TestIndexPageHasSearch(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="search"`)
	assert.Contains(t, rec.Body.String(), "?q=")
}

func TestHandleRender(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/render", map[string]any{"body": "sum={{calc:2+2}}{{cursor}}!"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Text   string `json:"text"`
		Cursor int    `json:"cursor"`
	}
	decode(t, rec, &got)
	assert.Equal(t, "sum=4!", got.Text)
	assert.Equal(t, 5, got.Cursor)
}

func TestHandleConfig(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view configView
	decode(t, rec, &view)
	assert.Equal(t, 100, view.RestoreDelayMs)
	assert.Equal(t, "ctrl+alt+space", view.ToggleHotkey)

	rec = ts.do(t, http.MethodPut, "/api/config", map[string]any{"restoreDelayMs": 250, "toggleHotkey": "ctrl+shift+e"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 250, ts.GetConfig().Expander.RestoreDelayMs)

	saved, err := config.LoadFrom(ts.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 250, saved.Expander.RestoreDelayMs)
	assert.Equal(t, "ctrl+shift+e", saved.Hotkey.Toggle)

	// Rejected values leave the config untouched
	rec = ts.do(t, http.MethodPut, "/api/config", map[string]any{"toggleHotkey": "e"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ctrl+shift+e", ts.GetConfig().Hotkey.Toggle)

	rec = ts.do(t, http.MethodPut, "/api/config", map[string]any{"excludedApps": []string{"KeePass.exe"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodGet, "/api/config", nil)
	decode(t, rec, &view)
	assert.Equal(t, []string{"KeePass.exe"}, view.ExcludedApps)

	rec = ts.do(t, http.MethodPut, "/api/config", map[string]any{"excludedApps": []string{" "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatsAndHistory(t *testing.T) {
	ts := newTestServer(t)
	for i, ok := range []bool{true, true, false} {
		require.NoError(t, ts.db.SaveExpansion(&storage.Expansion{
			Timestamp:    time.Now().Add(time.Duration(-i) * time.Minute),
			Shortcut:     "/sig",
			DeletedCount: 4,
			CharCount:    10,
			LatencyMs:    20,
			Success:      ok,
		}))
	}

	rec := ts.do(t, http.MethodGet, "/api/stats?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Overall   storage.OverallStats    `json:"overall"`
		Daily     []storage.DailyStats    `json:"daily"`
		Shortcuts []storage.ShortcutStats `json:"shortcuts"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, 3, stats.Overall.TotalExpansions)
	assert.Equal(t, 1, stats.Overall.FailureCount)
	require.Len(t, stats.Shortcuts, 1)
	assert.Equal(t, "/sig", stats.Shortcuts[0].Shortcut)

	rec = ts.do(t, http.MethodGet, "/api/history?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Expansions []storage.Expansion `json:"expansions"`
		Total      int                 `json:"total"`
	}
	decode(t, rec, &history)
	assert.Len(t, history.Expansions, 2)
	assert.Equal(t, 3, history.Total)
}

func TestIsLocalOrigin(t *testing.T) {
	assert.True(t, isLocalOrigin(""))
	assert.True(t, isLocalOrigin("http://localhost:7341"))
	assert.True(t, isLocalOrigin("http://127.0.0.1:7341"))
	assert.False(t, isLocalOrigin("https://example.com"))
	assert.False(t, isLocalOrigin("http://localhost.example.com"))
}

func TestWebSocketBroadcasts(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.handler)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, MessageTypeStatus, read().Type)

	ts.BroadcastExpansion(&storage.Expansion{ID: "01J", Shortcut: "/sig", Success: true, Timestamp: time.Now()})
	msg := read()
	assert.Equal(t, MessageTypeExpansion, msg.Type)
	data := msg.Data.(map[string]any)
	assert.Equal(t, "/sig", data["shortcut"])

	ts.BroadcastStatus(true)
	msg = read()
	assert.Equal(t, MessageTypeStatus, msg.Type)
	assert.Equal(t, true, msg.Data.(map[string]any)["active"])
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.handler)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
