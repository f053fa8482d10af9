package gateway

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/types"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		msg       string
		code      types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, "bad key", types.ErrUnauthorized, false},
		{http.StatusForbidden, "denied", types.ErrForbidden, false},
		{http.StatusNotFound, "no such model", types.ErrNotFound, false},
		{http.StatusTooManyRequests, "slow down", types.ErrRateLimited, true},
		{http.StatusBadRequest, "prompt too long", types.ErrInvalidRequest, false},
		{http.StatusBadRequest, "Insufficient credit", types.ErrQuotaExceeded, false},
		{http.StatusPaymentRequired, "pay", types.ErrQuotaExceeded, false},
		{http.StatusUnprocessableEntity, "bad field", types.ErrInvalidRequest, false},
		{http.StatusBadGateway, "upstream", types.ErrUpstreamError, true},
		{http.StatusServiceUnavailable, "busy", types.ErrUpstreamError, true},
		{529, "overloaded", types.ErrModelOverloaded, true},
		{http.StatusInternalServerError, "boom", types.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		err := MapHTTPError(tt.status, tt.msg)
		assert.Equal(t, tt.code, err.Code, "status %d", tt.status)
		assert.Equal(t, tt.retryable, err.Retryable, "status %d", tt.status)
		assert.Equal(t, tt.status, err.HTTPStatus)
		assert.Equal(t, tt.msg, err.Message)
	}
}

func TestMapHTTPError_MessageFormat(t *testing.T) {
	err := MapHTTPError(http.StatusNotFound, "Application not found")
	assert.Equal(t, "[NOT_FOUND] HTTP 404: Application not found", err.Error())
}

func TestDecodeBody(t *testing.T) {
	payload, err := DecodeBody(200, nil)
	require.Nil(t, err)
	assert.Equal(t, map[string]any{}, payload)

	payload, err = DecodeBody(200, []byte("  \n"))
	require.Nil(t, err)
	assert.Equal(t, map[string]any{}, payload)

	payload, err = DecodeBody(200, []byte(`{"status":"COMPLETED"}`))
	require.Nil(t, err)
	assert.Equal(t, map[string]any{"status": "COMPLETED"}, payload)

	long := "<html>" + strings.Repeat("x", 500)
	payload, err = DecodeBody(502, []byte(long))
	require.NotNil(t, err)
	assert.Equal(t, types.ErrInvalidResponse, err.Code)
	assert.Equal(t, 502, err.HTTPStatus)
	assert.Len(t, payload.(string), maxErrorTextLen)
	assert.True(t, strings.HasPrefix(err.Message, "Invalid JSON response (502): <html>"))
}

func TestTruncate_RuneBoundary(t *testing.T) {
	s := strings.Repeat("a", 199) + "中文"
	got := truncate(s, 200)
	assert.Equal(t, strings.Repeat("a", 199), got)
	assert.Equal(t, "abc", truncate("abc", 200))
}
