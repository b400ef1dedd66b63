package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuildUserPromptSectionOrder(t *testing.T) {
	prompt := BuildUserPrompt(MinutesInput{
		Transcript: "the transcript",
		Agenda:     "the agenda",
		Context:    "past minutes",
		Template:   "the template",
	})

	idx := func(s string) int { return strings.Index(prompt, s) }

	agenda := idx("### Agenda:")
	transcript := idx("### Transcript:")
	past := idx("### Past Minutes (Context):")
	template := idx("### Formatting Template:")

	for name, i := range map[string]int{"agenda": agenda, "transcript": transcript, "past": past, "template": template} {
		if i == -1 {
			t.Fatalf("prompt missing %s section:\n%s", name, prompt)
		}
	}
	if !(agenda < transcript && transcript < past && past < template) {
		t.Fatalf("sections out of order: agenda=%d transcript=%d past=%d template=%d", agenda, transcript, past, template)
	}

	if !strings.Contains(prompt, "follow the style and structure of the provided template strictly") {
		t.Error("template section missing the strict-style instruction")
	}
	if !strings.Contains(prompt, "Output ONLY the meeting minutes") {
		t.Error("prompt missing the fixed instruction block")
	}
}

func TestBuildUserPromptOmitsEmptySections(t *testing.T) {
	prompt := BuildUserPrompt(MinutesInput{Transcript: "only transcript"})

	if strings.Contains(prompt, "### Agenda:") {
		t.Error("empty agenda rendered")
	}
	if strings.Contains(prompt, "### Past Minutes") {
		t.Error("empty context rendered")
	}
	if strings.Contains(prompt, "### Formatting Template:") {
		t.Error("empty template rendered")
	}
	if !strings.Contains(prompt, "### Transcript:\nonly transcript") {
		t.Error("transcript section missing")
	}
}

func TestCleanMarkdownFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", "# Minutes\n", "# Minutes\n"},
		{"markdown fence", "```markdown\n# Minutes\n```", "# Minutes\n"},
		{"bare fence", "```\n# Minutes\n```", "# Minutes\n"},
		{"case insensitive", "```MARKDOWN\n# Minutes\n```", "# Minutes\n"},
		{"trailing whitespace after close", "```markdown\n# Minutes\n```\n\n", "# Minutes\n"},
		{"only leading fence", "```markdown\n# Minutes", "# Minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanMarkdownFences(tt.in); got != tt.want {
				t.Fatalf("CleanMarkdownFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerateMinutes(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "```markdown\n# Minutes\n```"}},
			},
		})
	}))
	defer srv.Close()

	c := NewMinutesClient(srv.URL+"/v1", "sk-test", "test-model")
	out, err := c.GenerateMinutes(context.Background(), MinutesInput{Transcript: "hello"})
	if err != nil {
		t.Fatalf("GenerateMinutes: %v", err)
	}

	if out != "# Minutes\n" {
		t.Fatalf("output = %q, want fences stripped", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "test-model" {
		t.Fatalf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
}

func TestGenerateMinutesSendsPlaceholderKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := NewMinutesClient(srv.URL, "", "m")
	if _, err := c.GenerateMinutes(context.Background(), MinutesInput{Transcript: "x"}); err != nil {
		t.Fatalf("GenerateMinutes: %v", err)
	}
	if gotAuth != "Bearer dummy-key" {
		t.Fatalf("Authorization = %q, want placeholder key", gotAuth)
	}
}

func TestGenerateMinutesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "bad key", "type": "invalid_request_error"},
		})
	}))
	defer srv.Close()

	c := NewMinutesClient(srv.URL, "sk-bad", "m")
	_, err := c.GenerateMinutes(context.Background(), MinutesInput{Transcript: "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "bad key" || apiErr.Type != "invalid_request_error" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestGenerateMinutesEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewMinutesClient(srv.URL, "sk", "m")
	if _, err := c.GenerateMinutes(context.Background(), MinutesInput{Transcript: "x"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestIsConfigured(t *testing.T) {
	if NewMinutesClient("", "", "").IsConfigured() {
		t.Error("unconfigured client reports configured")
	}
	if !NewMinutesClient("http://localhost:8000/v1", "", "").IsConfigured() {
		t.Error("base URL alone should count as configured")
	}
	if !NewMinutesClient("", "sk-test", "").IsConfigured() {
		t.Error("API key alone should count as configured")
	}
}
