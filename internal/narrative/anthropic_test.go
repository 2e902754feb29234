// ABOUTME: Tests for the Anthropic narrator against a fake Messages endpoint.
// ABOUTME: Verifies request shape, text extraction, and error handling.
package narrative

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeMessages(t *testing.T, status int, body string, seen *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		if seen != nil {
			b, _ := io.ReadAll(r.Body)
			*seen = string(b)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestNarrator(t *testing.T, url string) *AnthropicNarrator {
	t.Helper()
	n, err := NewAnthropicNarrator(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-test",
		BaseURL: url,
	})
	require.NoError(t, err)
	return n
}

func TestAnthropicNarrator_RequiresKey(t *testing.T) {
	_, err := NewAnthropicNarrator(AnthropicConfig{Model: "claude-test"})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = NewAnthropicNarrator(AnthropicConfig{APIKey: "k"})
	assert.Error(t, err)
}

func TestAnthropicNarrator_Narrate(t *testing.T) {
	var body string
	srv := fakeMessages(t, http.StatusOK, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
		"content":[{"type":"text","text":"Good morning."},{"type":"text","text":" Sleep was solid."}],
		"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":5}}`, &body)
	n := newTestNarrator(t, srv.URL)

	text, err := n.Narrate(context.Background(), Input{Kind: KindChat, Question: "How did I sleep?"})
	require.NoError(t, err)

	assert.Equal(t, "Good morning. Sleep was solid.", text)
	assert.Contains(t, body, `"model":"claude-test"`)
	assert.Contains(t, body, "How did I sleep?")
}

func TestAnthropicNarrator_EmptyText(t *testing.T) {
	srv := fakeMessages(t, http.StatusOK, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
		"content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`, nil)
	n := newTestNarrator(t, srv.URL)

	_, err := n.Narrate(context.Background(), Input{Kind: KindDigest, DigestType: DigestMorning})
	assert.ErrorIs(t, err, ErrEmptyNarrative)
}

func TestAnthropicNarrator_APIError(t *testing.T) {
	srv := fakeMessages(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`, nil)
	n := newTestNarrator(t, srv.URL)

	_, err := n.Narrate(context.Background(), Input{Kind: KindDigest, DigestType: DigestMorning})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic messages")
}
