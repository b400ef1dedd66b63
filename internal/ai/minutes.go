// Package ai generates meeting minutes by prompting an OpenAI-compatible
// chat completion endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const minutesSystemPrompt = "You are a helpful assistant that generates professional meeting minutes."

const minutesInstructions = `
Instructions:
1. Create meeting minutes based on the agenda items and transcript.
2. Add a timestamp to call to order and motion to adjourn. Determine the time of adjournment based on start time and length of the meeting (if available in transcript).
3. Output ONLY the meeting minutes in valid Markdown format. Do not include any conversational text, confirmation checks, or code block wrappers (like ` + "```markdown" + `).
`

// MinutesClient calls a chat-completions API. A base URL without a key is
// allowed (local gateways often skip auth), in which case a placeholder key
// is sent because most compatible servers still require the header.
type MinutesClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// MinutesInput is the extracted text of the uploaded documents. Transcript
// is required; the rest are optional.
type MinutesInput struct {
	Transcript string
	Agenda     string
	Context    string
	Template   string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// APIError is a structured failure from the completion endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api error: %s (type: %s, status: %d)", e.Message, e.Type, e.StatusCode)
}

func NewMinutesClient(baseURL, apiKey, model string) *MinutesClient {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &MinutesClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *MinutesClient) IsConfigured() bool {
	return c.apiKey != "" || c.baseURL != ""
}

func (c *MinutesClient) Model() string {
	return c.model
}

// BuildUserPrompt assembles the user message: agenda first, then the
// transcript, past minutes, the formatting template, and the fixed
// instruction block.
func BuildUserPrompt(in MinutesInput) string {
	var b strings.Builder
	b.WriteString("Please generate meeting minutes based on the following information:\n\n")

	if in.Agenda != "" {
		fmt.Fprintf(&b, "### Agenda:\n%s\n\n", in.Agenda)
	}

	fmt.Fprintf(&b, "### Transcript:\n%s\n\n", in.Transcript)

	if in.Context != "" {
		fmt.Fprintf(&b, "### Past Minutes (Context):\n%s\n\n", in.Context)
	}

	if in.Template != "" {
		fmt.Fprintf(&b, "### Formatting Template:\n%s\n\n", in.Template)
		b.WriteString("Please follow the style and structure of the provided template strictly.\n")
	}

	b.WriteString(minutesInstructions)
	return b.String()
}

// GenerateMinutes prompts the model and returns cleaned Markdown.
func (c *MinutesClient) GenerateMinutes(ctx context.Context, in MinutesInput) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: minutesSystemPrompt},
			{Role: "user", Content: BuildUserPrompt(in)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	apiKey := c.apiKey
	if apiKey == "" {
		apiKey = "dummy-key"
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    chatResp.Error.Message,
			Type:       chatResp.Error.Type,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	return CleanMarkdownFences(chatResp.Choices[0].Message.Content), nil
}

// CleanMarkdownFences strips a leading ```markdown or ``` fence and a
// trailing ``` fence that models sometimes add despite instructions.
func CleanMarkdownFences(s string) string {
	t := s

	lower := strings.ToLower(t)
	switch {
	case strings.HasPrefix(lower, "```markdown"):
		t = strings.TrimLeft(t[len("```markdown"):], " \t\r\n")
	case strings.HasPrefix(t, "```"):
		t = strings.TrimLeft(t[len("```"):], " \t\r\n")
	}

	trimmed := strings.TrimRight(t, " \t\r\n")
	if strings.HasSuffix(trimmed, "```") {
		t = trimmed[:len(trimmed)-len("```")]
	}

	return t
}
