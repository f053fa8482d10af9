package chatcompat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/testutil/fixtures"
	"github.com/BaSui01/mediaflow/types"
)

type capturedRequest struct {
	path string
	auth string
	body map[string]any
}

func newChatServer(t *testing.T, status int, reply any) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newTestRunner(t *testing.T, srv *httptest.Server) *Runner {
	t.Helper()
	r, err := NewRunner(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return r
}

func TestRunner_Run(t *testing.T) {
	srv, got := newChatServer(t, http.StatusOK, fixtures.ChatCompletion("a red square", 12, 4))
	r := newTestRunner(t, srv)

	payload, err := r.Run(context.Background(), "", map[string]any{
		"model":    "google/gemini-2.5-pro",
		"messages": []any{map[string]any{"role": "user", "content": "describe"}},
	})
	require.NoError(t, err)

	text, ok := gateway.Choices().Extract(payload)
	require.True(t, ok)
	assert.Equal(t, "a red square", text)

	assert.Equal(t, "/v1/chat/completions", got.path)
	assert.Equal(t, "Bearer sk-test", got.auth)
	assert.Equal(t, "google/gemini-2.5-pro", got.body["model"])
}

func TestRunner_CustomPath(t *testing.T) {
	srv, got := newChatServer(t, http.StatusOK, map[string]any{"ok": true})
	r := newTestRunner(t, srv)

	_, err := r.Run(context.Background(), "/openai/v1/chat/completions", nil)
	require.NoError(t, err)
	assert.Equal(t, "/v1/openai/v1/chat/completions", got.path)
	assert.Empty(t, got.body)
}

func TestRunner_HTTPErrors(t *testing.T) {
	tests := []struct {
		status    int
		code      types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, types.ErrUnauthorized, false},
		{http.StatusTooManyRequests, types.ErrRateLimited, true},
		{http.StatusServiceUnavailable, types.ErrUpstreamError, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv, _ := newChatServer(t, tt.status, map[string]any{
				"error": map[string]any{"message": "backend said no", "type": "error"},
			})
			r := newTestRunner(t, srv)

			_, err := r.Run(context.Background(), "", map[string]any{})
			e, ok := types.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, DefaultPath, e.Endpoint)
		})
	}
}

func TestRunner_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	r := newTestRunner(t, srv)
	srv.Close()

	_, err := r.Run(context.Background(), "", nil)
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrUpstreamError, e.Code)
	assert.True(t, e.Retryable)
}

func TestNewRunner_Config(t *testing.T) {
	_, err := NewRunner(Config{BaseURL: "https://openrouter.ai/api/v1"})
	assert.True(t, types.IsCode(err, types.ErrConfiguration))

	_, err = NewRunner(Config{APIKey: "k", BaseURL: "not a url"})
	assert.True(t, types.IsCode(err, types.ErrConfiguration))

	cfg := ConfigFrom(config.ChatConfig{APIKey: "k", BaseURL: "https://openrouter.ai/api/v1"})
	r, err := NewRunner(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://openrouter.ai/api/v1", r.baseURL)
}
