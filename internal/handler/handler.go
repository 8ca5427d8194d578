package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lucasew/offlinepages/internal/errutil"
	"github.com/lucasew/offlinepages/internal/eviction"
)

// Clearer runs clearing cycles.
type Clearer interface {
	ClearIfNeeded(ctx context.Context, callback eviction.ClearCallback) bool
	LastClearTime() time.Time
	InProgress() bool
}

// NextRunner reports the next scheduled cycle.
type NextRunner interface {
	NextRun() *time.Time
}

type clearResponse struct {
	Result       string `json:"result"`
	PagesCleared int    `json:"pages_cleared"`
}

type statusResponse struct {
	InProgress    bool       `json:"in_progress"`
	LastClearTime *time.Time `json:"last_clear_time,omitempty"`
	NextRun       *time.Time `json:"next_run,omitempty"`
}

// ClearHandler serves POST /clear, an explicit storage pressure signal.
//
// It answers 409 Conflict when a cycle is already running, since the
// request is dropped in that case.
type ClearHandler struct {
	Clearer Clearer
}

func NewClearHandler(c Clearer) *ClearHandler {
	return &ClearHandler{Clearer: c}
}

func (h *ClearHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var resp clearResponse
	// A client hanging up must not abort a cycle halfway through apply.
	ctx := context.WithoutCancel(r.Context())
	started := h.Clearer.ClearIfNeeded(ctx, func(pagesCleared int, result eviction.ClearResult) {
		resp = clearResponse{Result: result.String(), PagesCleared: pagesCleared}
	})
	if !started {
		http.Error(w, "Clear already in progress", http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// StatusHandler serves GET /status.
type StatusHandler struct {
	Clearer   Clearer
	Scheduler NextRunner
}

func NewStatusHandler(c Clearer, s NextRunner) *StatusHandler {
	return &StatusHandler{Clearer: c, Scheduler: s}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{InProgress: h.Clearer.InProgress()}
	if last := h.Clearer.LastClearTime(); !last.IsZero() {
		resp.LastClearTime = &last
	}
	if h.Scheduler != nil {
		resp.NextRun = h.Scheduler.NextRun()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	errutil.LogMsg(json.NewEncoder(w).Encode(v), "Failed to write response")
}
