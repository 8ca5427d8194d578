package handler

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lucasew/offlinepages/internal/eviction"
)

type stubPages struct {
	pages   map[int64]eviction.OfflinePageItem
	touched map[int64]time.Time
}

func (s *stubPages) Get(ctx context.Context, id int64) (eviction.OfflinePageItem, bool, error) {
	p, ok := s.pages[id]
	return p, ok, nil
}

func (s *stubPages) Touch(ctx context.Context, id int64, at time.Time) (bool, error) {
	if _, ok := s.pages[id]; !ok {
		return false, nil
	}
	s.touched[id] = at
	return true, nil
}

type stubArchives map[int64]string

func (s stubArchives) Open(ctx context.Context, id int64) (io.ReadCloser, int64, error) {
	body, ok := s[id]
	if !ok {
		return nil, 0, fs.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

func TestPageHandler(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pages := &stubPages{
		pages: map[int64]eviction.OfflinePageItem{
			1: {OfflineID: 1, Namespace: "bookmark"},
			2: {OfflineID: 2, Namespace: "bookmark", ExpirationTime: now.Add(-time.Hour)},
			3: {OfflineID: 3, Namespace: "bookmark"},
		},
		touched: make(map[int64]time.Time),
	}
	h := NewPageHandler(pages, stubArchives{1: "archive body"})
	h.Now = func() time.Time { return now }

	mux := http.NewServeMux()
	mux.Handle("/pages/{id}", h)

	serve := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	t.Run("Serves And Touches", func(t *testing.T) {
		w := serve(http.MethodGet, "/pages/1")
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d. Body: %s", w.Code, w.Body.String())
		}
		if w.Body.String() != "archive body" {
			t.Errorf("unexpected body %q", w.Body.String())
		}
		if w.Header().Get("Content-Length") != "12" {
			t.Errorf("unexpected content length %q", w.Header().Get("Content-Length"))
		}
		if !pages.touched[1].Equal(now) {
			t.Errorf("expected page 1 touched at %v, got %v", now, pages.touched[1])
		}
	})

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"Expired", http.MethodGet, "/pages/2", http.StatusGone},
		{"Archive Missing", http.MethodGet, "/pages/3", http.StatusNotFound},
		{"Unknown", http.MethodGet, "/pages/9", http.StatusNotFound},
		{"Bad Id", http.MethodGet, "/pages/abc", http.StatusBadRequest},
		{"Wrong Method", http.MethodPost, "/pages/1", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(tt.method, tt.path); w.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, w.Code)
			}
		})
	}

	for _, id := range []int64{2, 3} {
		if _, ok := pages.touched[id]; ok {
			t.Errorf("page %d must not be touched when it is not served", id)
		}
	}
}
