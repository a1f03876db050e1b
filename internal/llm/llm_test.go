package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWithoutCredential(t *testing.T) {
	c := NewClient("http://localhost:9", "model", "", nil)
	_, err := c.Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestGenerateForwardsBodyUnchanged(t *testing.T) {
	upstream := `{"response":"two sentences about the news","done":true}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hi", body["prompt"])
		assert.Equal(t, false, body["stream"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(upstream))
	}))
	defer server.Close()

	c := NewClient(server.URL, "model", "secret", server.Client())
	raw, err := c.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.JSONEq(t, upstream, string(raw))
}

func TestGenerateLogsExtractedLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"hello"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "model", "secret", server.Client())
	var logged []string
	c.SetLogger(func(format string, v ...any) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})

	_, err := c.Generate(context.Background(), "hi")
	require.NoError(t, err)

	found := false
	for _, line := range logged {
		if strings.Contains(line, "extracted_len=5") {
			found = true
		}
	}
	assert.True(t, found, "success log reports the recognized completion length, got %v", logged)
}

func TestGeneratePreservesUpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, "model", "secret", server.Client())
	_, err := c.Generate(context.Background(), "hi")

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusServiceUnavailable, upErr.Status)
}

func TestExtractText(t *testing.T) {
	cases := map[string]string{
		`{"response":"a"}`:                            "a",
		`{"text":"b"}`:                                "b",
		`{"choices":[{"text":"c"}]}`:                  "c",
		`{"choices":[{"message":{"content":"d"}}]}`:   "d",
		`{"done":true}`:                               "",
		`not json`:                                    "",
		`{"choices":[]}`:                              "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, ExtractText(json.RawMessage(raw)), "raw %s", raw)
	}
}
