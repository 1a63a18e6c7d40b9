package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"markestedt/spark/config"
	"markestedt/spark/render"
	"markestedt/spark/snippet"
	"markestedt/spark/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func isLocalOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// pathID extracts the trailing ID from a path like /api/snippets/123
func pathID(path string) (int64, bool) {
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(parts) < 4 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def, min int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= min {
			return n
		}
	}
	return def
}

// handleStatus returns the current expander status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count, err := s.db.GetSnippetCount()
	if err != nil {
		slog.Error("Failed to count snippets", "error", err)
		http.Error(w, "Failed to get status", http.StatusInternalServerError)
		return
	}

	active := s.expander.IsActive()
	writeJSON(w, http.StatusOK, map[string]any{
		"active":   active,
		"status":   statusName(active),
		"snippets": count,
	})
}

// handleExpander handles POST /api/expander/{start,stop,reload}
func (s *Server) handleExpander(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var err error
	switch strings.TrimPrefix(r.URL.Path, "/api/expander/") {
	case "start":
		err = s.expander.Start(s.baseContext())
	case "stop":
		s.expander.Stop()
	case "reload":
		err = s.expander.Reload(s.baseContext())
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		slog.Error("Expander command failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"active": s.expander.IsActive(),
			"error":  err.Error(),
		})
		return
	}

	active := s.expander.IsActive()
	writeJSON(w, http.StatusOK, map[string]any{"active": active, "status": statusName(active)})
}

// handleSnippets handles GET and POST on the snippet collection
func (s *Server) handleSnippets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSnippets(w, r)
	case http.MethodPost:
		s.handleCreateSnippet(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListSnippets(w http.ResponseWriter, r *http.Request) {
	filter := storage.SnippetFilter{Search: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("folder"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid folder", http.StatusBadRequest)
			return
		}
		filter.FolderID = &id
	}

	snippets, err := s.db.ListSnippets(filter)
	if err != nil {
		slog.Error("Failed to list snippets", "error", err)
		http.Error(w, "Failed to list snippets", http.StatusInternalServerError)
		return
	}
	if snippets == nil {
		snippets = []snippet.Snippet{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"snippets": snippets})
}

func (s *Server) handleCreateSnippet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Shortcut  string `json:"shortcut"`
		Body      string `json:"body"`
		FolderID  *int64 `json:"folderId"`
		IsActive  *bool  `json:"isActive"`
		MatchType string `json:"matchType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sn := &snippet.Snippet{
		Name:      req.Name,
		Shortcut:  req.Shortcut,
		Body:      req.Body,
		FolderID:  req.FolderID,
		MatchType: req.MatchType,
		IsActive:  req.IsActive == nil || *req.IsActive,
	}
	if err := s.db.CreateSnippet(sn); err != nil {
		s.writeStoreError(w, "create snippet", err)
		return
	}

	s.BroadcastSnippetsChanged()
	writeJSON(w, http.StatusCreated, sn)
}

// handleSnippet handles PUT and DELETE on /api/snippets/{id}
func (s *Server) handleSnippet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sn, err := s.db.GetSnippet(id)
		if err != nil {
			s.writeStoreError(w, "get snippet", err)
			return
		}
		writeJSON(w, http.StatusOK, sn)

	case http.MethodPut:
		var u storage.SnippetUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		sn, err := s.db.UpdateSnippet(id, u)
		if err != nil {
			s.writeStoreError(w, "update snippet", err)
			return
		}
		s.BroadcastSnippetsChanged()
		writeJSON(w, http.StatusOK, sn)

	case http.MethodDelete:
		if err := s.db.DeleteSnippet(id); err != nil {
			s.writeStoreError(w, "delete snippet", err)
			return
		}
		s.BroadcastSnippetsChanged()
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// writeStoreError maps storage errors to HTTP statuses
func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrShortcutExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("Snippet store error", "op", op, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// handleFolders handles GET and POST on the folder collection
func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		folders, err := s.db.ListFolders()
		if err != nil {
			slog.Error("Failed to list folders", "error", err)
			http.Error(w, "Failed to list folders", http.StatusInternalServerError)
			return
		}
		if folders == nil {
			folders = []storage.Folder{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"folders": folders})

	case http.MethodPost:
		var f storage.Folder
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.db.CreateFolder(&f); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, f)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRender previews a snippet body
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var out render.Result
	if s.previewer != nil {
		out = s.previewer.RenderResult(r.Context(), req.Body)
	} else {
		out = render.New().RenderResult(r.Context(), req.Body)
	}

	writeJSON(w, http.StatusOK, map[string]any{"text": out.Text, "cursor": out.Cursor})
}

// handleConfig handles GET and PUT requests for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetConfig(w, r)
	case http.MethodPut:
		s.handlePutConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type configView struct {
	Enabled        bool     `json:"enabled"`
	RestoreDelayMs int      `json:"restoreDelayMs"`
	PasteSettleMs  int      `json:"pasteSettleMs"`
	ExcludedApps   []string `json:"excludedApps"`
	ToggleHotkey   string   `json:"toggleHotkey"`
	Interactive    string   `json:"interactive"`
	WebPort        int      `json:"webPort"`
	LogLevel       string   `json:"logLevel"`
}

// handleGetConfig returns the user-facing settings
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.GetConfig()

	writeJSON(w, http.StatusOK, configView{
		Enabled:        cfg.Expander.Enabled,
		RestoreDelayMs: cfg.Expander.RestoreDelayMs,
		PasteSettleMs:  cfg.Expander.PasteSettleMs,
		ExcludedApps:   cfg.Expander.ExcludedApps,
		ToggleHotkey:   cfg.Hotkey.Toggle,
		Interactive:    cfg.Render.Interactive,
		WebPort:        cfg.Web.Port,
		LogLevel:       cfg.Logging.Level,
	})
}

// handlePutConfig updates the configuration file. The file watcher picks
// up the change and reloads the expander.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled        *bool     `json:"enabled"`
		RestoreDelayMs *int      `json:"restoreDelayMs"`
		PasteSettleMs  *int      `json:"pasteSettleMs"`
		ExcludedApps   *[]string `json:"excludedApps"`
		ToggleHotkey   *string   `json:"toggleHotkey"`
		Interactive    *string   `json:"interactive"`
		WebPort        *int      `json:"webPort"`
		LogLevel       *string   `json:"logLevel"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg := *s.GetConfig()

	// Update fields if provided
	if req.Enabled != nil {
		cfg.Expander.Enabled = *req.Enabled
	}
	if req.RestoreDelayMs != nil {
		cfg.Expander.RestoreDelayMs = *req.RestoreDelayMs
	}
	if req.PasteSettleMs != nil {
		cfg.Expander.PasteSettleMs = *req.PasteSettleMs
	}
	if req.ExcludedApps != nil {
		cfg.Expander.ExcludedApps = *req.ExcludedApps
	}
	if req.ToggleHotkey != nil {
		cfg.Hotkey.Toggle = *req.ToggleHotkey
	}
	if req.Interactive != nil {
		cfg.Render.Interactive = *req.Interactive
	}
	if req.WebPort != nil {
		cfg.Web.Port = *req.WebPort
	}
	if req.LogLevel != nil {
		cfg.Logging.Level = *req.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Save to file
	if s.configPath != "" {
		if err := config.Save(s.configPath, &cfg); err != nil {
			slog.Error("Failed to save config", "error", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}
	}

	// Update in-memory config
	s.UpdateConfig(&cfg)

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleStats returns statistics for the specified time range
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	days := queryInt(r, "days", 7, 1)

	overall, err := s.db.GetOverallStats(days)
	if err != nil {
		slog.Error("Failed to get overall stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	daily, err := s.db.GetDailyStats(days)
	if err != nil {
		slog.Error("Failed to get daily stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	top, err := s.db.GetTopShortcuts(days, queryInt(r, "top", 10, 1))
	if err != nil {
		slog.Error("Failed to get shortcut stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"overall":   overall,
		"daily":     daily,
		"shortcuts": top,
	})
}

// handleHistory returns paginated expansion history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := queryInt(r, "limit", 50, 1)
	offset := queryInt(r, "offset", 0, 0)

	expansions, err := s.db.GetExpansions(limit, offset)
	if err != nil {
		slog.Error("Failed to get expansions", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}
	if expansions == nil {
		expansions = []storage.Expansion{}
	}

	total, err := s.db.GetExpansionCount()
	if err != nil {
		slog.Error("Failed to get expansion count", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"expansions": expansions,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}
