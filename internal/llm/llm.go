// Package llm wraps the one LLM provider client used throughout this
// module (sentiment classification, summarization, orchestrator intent
// parsing, and the explainability tool-calling loop), grounded on
// bobmcallan-vire's internal/clients/gemini client shape.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Client wraps *genai.Client with the bounded-timeout, retrying call used
// by every component in this module that needs an LLM response.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	retries int
}

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Retries int
}

// New constructs a Client bound to cfg.Model, with LLM calls bounded at
// cfg.Timeout per chunk and retried up to cfg.Retries times.
func New(ctx context.Context, cfg Config) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}

	return &Client{client: genaiClient, model: cfg.Model, timeout: timeout, retries: retries}, nil
}

// Generate sends prompt and returns the concatenated text of the first
// candidate, retrying transient failures with a fixed 2s backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := c.generateOnce(callCtx, prompt, nil)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err
		if attempt < c.retries {
			time.Sleep(2 * time.Second)
		}
	}
	return "", fmt.Errorf("llm: generate after %d attempts: %w", c.retries+1, lastErr)
}

// GenerateWithTools sends prompt with the given tool declarations enabled
// and returns the raw response so callers can inspect function calls.
func (c *Client) GenerateWithTools(ctx context.Context, prompt string, tools []*genai.Tool) (*genai.GenerateContentResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := genai.Text(prompt)
	cfg := &genai.GenerateContentConfig{Tools: tools}
	resp, err := c.client.Models.GenerateContent(callCtx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: generate with tools: %w", err)
	}
	return resp, nil
}

// GenerateWithHistory sends a full multi-turn conversation (used by the
// explainability tool-calling loop to append function-call/response turns)
// with tools enabled, and returns the raw response for the caller to
// inspect for further function calls or final text.
func (c *Client) GenerateWithHistory(ctx context.Context, contents []*genai.Content, tools []*genai.Tool) (*genai.GenerateContentResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{Tools: tools}
	resp, err := c.client.Models.GenerateContent(callCtx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: generate with history: %w", err)
	}
	return resp, nil
}

func (c *Client) generateOnce(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	contents := genai.Text(prompt)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("llm: empty response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return sb.String(), nil
}

// GenerateJSON calls Generate and defensively parses the result into dst,
// stripping markdown code fences and tolerating leading prose.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, dst any) error {
	text, err := c.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	return ParseJSONLeniently(text, dst)
}

// ParseJSONLeniently extracts the first top-level JSON object or array from
// text (stripping ``` fences and any leading/trailing prose) and decodes it
// into dst.
func ParseJSONLeniently(text string, dst any) error {
	cleaned := stripCodeFences(text)
	start := strings.IndexAny(cleaned, "{[")
	if start < 0 {
		return fmt.Errorf("llm: no JSON found in response")
	}
	end := matchingBracketEnd(cleaned, start)
	if end < 0 {
		return fmt.Errorf("llm: unterminated JSON in response")
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), dst); err != nil {
		return fmt.Errorf("llm: decode json: %w", err)
	}
	return nil
}

func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func matchingBracketEnd(s string, start int) int {
	open := s[start]
	close := byte('}')
	if open == '[' {
		close = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
