package handlers

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/paperpress/paperpress/internal/core"
	"github.com/paperpress/paperpress/internal/db"
)

func newTestHistory(t *testing.T) *core.HistoryStore {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	history := core.NewHistoryStore(database, zerolog.Nop())
	t.Cleanup(history.Close)
	return history
}

func newHistoryRouter(t *testing.T, history *core.HistoryStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	h := NewHistoryHandler(history, zerolog.Nop())
	h.RegisterRoutes(r.Group("/api"))
	h.RegisterDownloadRoutes(r)
	return r
}

// seedJob writes one job with real artifacts on disk and commits it to
// history.
func seedJob(t *testing.T, history *core.HistoryStore, id string, results []core.FileResult) string {
	t.Helper()

	workDir := filepath.Join(t.TempDir(), id)
	outDir := filepath.Join(workDir, "pdf_output")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, res := range results {
		if !res.Success {
			continue
		}
		if err := os.WriteFile(filepath.Join(outDir, res.Name), []byte("%PDF-1.4 "+res.Name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := history.Append(&core.JobRecord{
		ID:        id,
		Results:   results,
		WorkDir:   workDir,
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	return workDir
}

func TestHistoryListOmitsWorkDir(t *testing.T) {
	history := newTestHistory(t)
	seedJob(t, history, "job1", []core.FileResult{{Success: true, Name: "a.pdf", OriginalName: "a.md"}})
	r := newHistoryRouter(t, history)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); !bytes.Contains([]byte(body), []byte(`"job1"`)) {
		t.Fatalf("job missing from listing: %s", body)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("pdf_output")) || bytes.Contains(w.Body.Bytes(), []byte("workDir")) {
		t.Fatal("listing leaks filesystem paths")
	}
}

func TestDownloadServesArtifact(t *testing.T) {
	history := newTestHistory(t)
	seedJob(t, history, "job1", []core.FileResult{{Success: true, Name: "a.pdf", OriginalName: "a.md"}})
	r := newHistoryRouter(t, history)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download/job1/a.pdf", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("response is not the artifact")
	}
}

func TestDownloadRejectsUnsanitizedSegments(t *testing.T) {
	history := newTestHistory(t)
	seedJob(t, history, "job1", []core.FileResult{{Success: true, Name: "a.pdf", OriginalName: "a.md"}})
	r := newHistoryRouter(t, history)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download/job1/a%2fb.pdf", nil))
	if w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
		t.Fatalf("traversal-looking filename accepted: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download/job$1/a.pdf", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unsanitized id accepted: status = %d", w.Code)
	}
}

func TestDownloadUnknownJobOrFile(t *testing.T) {
	history := newTestHistory(t)
	seedJob(t, history, "job1", []core.FileResult{{Success: true, Name: "a.pdf", OriginalName: "a.md"}})
	r := newHistoryRouter(t, history)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download/nope/a.pdf", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown job: status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download/job1/missing.pdf", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown file: status = %d", w.Code)
	}
}

func TestDownloadZipContainsSuccessesOnly(t *testing.T) {
	history := newTestHistory(t)
	seedJob(t, history, "job1", []core.FileResult{
		{Success: true, Name: "a.pdf", OriginalName: "a.md"},
		{OriginalName: "bad.md", Error: "boom"},
		{Success: true, Name: "b.pdf", OriginalName: "b.md"},
	})
	r := newHistoryRouter(t, history)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download-zip/job1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("Content-Type = %q", ct)
	}

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	if err != nil {
		t.Fatalf("response is not a zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("zip has %d entries, want 2", len(zr.File))
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["a.pdf"] || !names["b.pdf"] {
		t.Fatalf("zip entries = %v", names)
	}
}

func TestDownloadZipNoSuccesses(t *testing.T) {
	history := newTestHistory(t)
	seedJob(t, history, "job1", []core.FileResult{{OriginalName: "bad.md", Error: "boom"}})
	r := newHistoryRouter(t, history)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download-zip/job1", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for all-failed job", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download-zip/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown job", w.Code)
	}
}
