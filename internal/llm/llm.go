package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoCredential means the upstream API key was never configured.
// Surfaced to callers as a 500 with no retry.
var ErrNoCredential = errors.New("llm: api key not configured")

// UpstreamError preserves a non-success upstream status without
// exposing the upstream response body.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm: upstream returned status %d", e.Status)
}

// Client is a minimal prompt-in/JSON-out client for an OpenAI/Ollama
// style generate endpoint. One attempt per call; retries are the
// caller's problem, and the caller deliberately has none.
type Client struct {
	url    string
	model  string
	apiKey string
	hc     *http.Client
	logger func(format string, v ...any)
}

// NewClient creates a client. A nil httpClient gets a default with a
// generous timeout since generation can be slow.
func NewClient(url, model, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		url:    url,
		model:  model,
		apiKey: apiKey,
		hc:     httpClient,
		logger: func(format string, v ...any) {
			fmt.Fprintf(io.Discard, format, v...)
		},
	}
}

// SetLogger injects a printf-like logger for debugging.
func (c *Client) SetLogger(l func(format string, v ...any)) {
	if l == nil {
		return
	}
	c.logger = l
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Generate sends prompt upstream and returns the upstream JSON body
// unchanged, so the proxy endpoint can forward it as-is. Non-2xx
// responses become an *UpstreamError carrying the status; the body is
// logged, never returned.
func (c *Client) Generate(ctx context.Context, prompt string) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNoCredential
	}

	body := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("llm new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.hc.Do(req)
	lat := time.Since(start)
	c.logger("llm request url=%s model=%s err=%v latency=%s", c.url, c.model, err, lat)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger("llm upstream status=%d body=%s", resp.StatusCode, string(respBody))
		return nil, &UpstreamError{Status: resp.StatusCode}
	}
	// Log the size of the recognized completion, not its content. A zero
	// here flags an upstream response shape we failed to recognize.
	c.logger("llm response model=%s extracted_len=%d", c.model, len(ExtractText(respBody)))
	return json.RawMessage(respBody), nil
}

// ExtractText pulls the generated text out of the common response
// shapes: {"response": ...}, {"text": ...}, openai-style choices with
// either text or message.content. Empty string when none match.
func ExtractText(raw json.RawMessage) string {
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	if s, ok := parsed["response"].(string); ok && s != "" {
		return s
	}
	if s, ok := parsed["text"].(string); ok && s != "" {
		return s
	}
	if choices, ok := parsed["choices"].([]any); ok && len(choices) > 0 {
		first, ok := choices[0].(map[string]any)
		if !ok {
			return ""
		}
		if s, ok := first["text"].(string); ok && s != "" {
			return s
		}
		if msg, ok := first["message"].(map[string]any); ok {
			if s, ok := msg["content"].(string); ok {
				return s
			}
		}
	}
	return ""
}
