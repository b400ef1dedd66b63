package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func newPreviewRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	NewPreviewHandler(zerolog.Nop()).RegisterRoutes(r.Group("/api"))
	return r
}

func TestPreviewRendersGFM(t *testing.T) {
	r := newPreviewRouter(t)

	body := `{"markdown":"# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		HTML string `json:"html"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.HTML, "<h1") {
		t.Errorf("heading not rendered: %s", resp.HTML)
	}
	if !strings.Contains(resp.HTML, "<table") {
		t.Errorf("GFM table not rendered: %s", resp.HTML)
	}
}

func TestPreviewRejectsNonJSON(t *testing.T) {
	r := newPreviewRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/preview", strings.NewReader("# raw markdown"))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
