package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/lucasew/offlinepages/internal/errutil"
	"github.com/lucasew/offlinepages/internal/eviction"
)

// PageMetadata looks up pages and records accesses to them.
type PageMetadata interface {
	Get(ctx context.Context, id int64) (eviction.OfflinePageItem, bool, error)
	Touch(ctx context.Context, id int64, at time.Time) (bool, error)
}

// ArchiveOpener opens the archive of a page.
type ArchiveOpener interface {
	Open(ctx context.Context, id int64) (io.ReadCloser, int64, error)
}

// PageHandler serves GET /pages/{id}: the archive of a fresh page. Every
// read moves the page's last access time, which drives its eviction order.
type PageHandler struct {
	Pages    PageMetadata
	Archives ArchiveOpener
	Now      func() time.Time
}

func NewPageHandler(pages PageMetadata, archives ArchiveOpener) *PageHandler {
	return &PageHandler{Pages: pages, Archives: archives, Now: time.Now}
}

func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid page id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	page, found, err := h.Pages.Get(ctx, id)
	if err != nil {
		errutil.ReportError(err, "Failed to look up page", "offline_id", id)
		http.Error(w, "Failed to look up page", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if page.IsExpired() {
		http.Error(w, "Page expired", http.StatusGone)
		return
	}

	reader, size, err := h.Archives.Open(ctx, id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "Archive missing", http.StatusNotFound)
			return
		}
		errutil.ReportError(err, "Failed to open archive", "offline_id", id)
		http.Error(w, "Failed to open archive", http.StatusInternalServerError)
		return
	}
	defer func() { _ = reader.Close() }()

	if _, err := h.Pages.Touch(ctx, id, h.Now()); err != nil {
		errutil.ReportError(err, "Failed to record page access", "offline_id", id)
	}

	w.Header().Set("Content-Type", "multipart/related")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	if r.Method == http.MethodHead {
		return
	}
	_, err = io.Copy(w, reader)
	errutil.LogMsg(err, "Failed to stream archive", "offline_id", id)
}
