package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/hvac-owl/internal/domain/ai"
)

func newTestServer(t *testing.T, status int, body string, inspect func(map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if inspect != nil {
			inspect(req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okBody = `{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Compatible"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`

func TestComplete_TextAndImages(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, okBody, func(req map[string]any) {
		assert.Equal(t, "gpt-4o", req["model"])
		assert.EqualValues(t, 500, req["max_tokens"])
		msgs := req["messages"].([]any)
		require.Len(t, msgs, 2)

		user := msgs[1].(map[string]any)
		parts := user["content"].([]any)
		require.Len(t, parts, 2)
		img := parts[1].(map[string]any)["image_url"].(map[string]any)
		assert.True(t, strings.HasPrefix(img["url"].(string), "data:image/jpeg;base64,"))
		assert.Equal(t, "high", img["detail"])
	})

	c := NewClient("test-key", srv.URL+"/v1", "")
	out, err := c.Complete(context.Background(), ai.CompletionRequest{
		MaxTokens:   500,
		Temperature: 0.2,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Text: "You are an HVAC expert."},
			{Role: ai.RoleUser, Text: "Check this", Images: []ai.ImagePart{{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "Compatible", out)
}

func TestComplete_ReasoningModelUsesCompletionTokens(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, okBody, func(req map[string]any) {
		assert.Equal(t, "o3-mini", req["model"])
		assert.EqualValues(t, 800, req["max_completion_tokens"])
		_, hasMax := req["max_tokens"]
		assert.False(t, hasMax)
		assert.Equal(t, "json_object", req["response_format"].(map[string]any)["type"])
	})

	c := NewClient("test-key", srv.URL+"/v1", "o3-mini")
	_, err := c.Complete(context.Background(), ai.CompletionRequest{
		MaxTokens: 800,
		JSONMode:  true,
		Messages:  []ai.Message{{Role: ai.RoleUser, Text: "summarize"}},
	})
	require.NoError(t, err)
}

func TestComplete_ErrorTaxonomy(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ai.ErrRateLimited},
		{http.StatusBadRequest, ai.ErrBadRequest},
		{http.StatusInternalServerError, ai.ErrUnavailable},
	}
	for _, tc := range cases {
		srv := newTestServer(t, tc.status, `{"error":{"message":"boom","type":"x"}}`, nil)
		c := NewClient("test-key", srv.URL+"/v1", "gpt-4o")
		_, err := c.Complete(context.Background(), ai.CompletionRequest{
			Messages: []ai.Message{{Role: ai.RoleUser, Text: "hi"}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"id":"x","choices":[]}`, nil)
	c := NewClient("test-key", srv.URL+"/v1", "gpt-4o")
	_, err := c.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: ai.RoleUser, Text: "hi"}},
	})
	assert.ErrorIs(t, err, ai.ErrUnavailable)
}
