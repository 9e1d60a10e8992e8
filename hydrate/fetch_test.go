package hydrate

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cerrors "github.com/c360/canvaskit/errors"
	"github.com/c360/canvaskit/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetchDecodesJSON(t *testing.T) {
	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"positions":[{"symbol":"AAPL","qty":10}],"asOf":1673778600000}`))
	}))
	t.Cleanup(srv.Close)

	h := New(fastConfig())
	value, err := h.httpFetch(context.Background(), srv.URL)

	require.NoError(t, err)
	want := map[string]any{
		"positions": []any{map[string]any{"symbol": "AAPL", "qty": 10.0}},
		"asOf":      1673778600000.0,
	}
	assert.Equal(t, want, value)
	assert.Equal(t, "application/json", accept)
}

func TestHTTPFetchReturnsTextForOtherContentTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<h1>status</h1>"))
	}))
	t.Cleanup(srv.Close)

	h := New(fastConfig())
	value, err := h.httpFetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "<h1>status</h1>", value)
}

func TestHTTPFetchMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"broken":`))
	}))
	t.Cleanup(srv.Close)

	h := New(fastConfig())
	_, err := h.httpFetch(context.Background(), srv.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrParsingFailed)
	assert.True(t, retry.IsNonRetryable(err), "malformed payloads will not improve on retry")
}

func TestHTTPFetchStatusErrors(t *testing.T) {
	t.Run("client_errors_fail_fast", func(t *testing.T) {
		srv, _ := failingServer(t, http.StatusTeapot, "short and stout")
		h := New(fastConfig())

		_, err := h.httpFetch(context.Background(), srv.URL)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "418")
		assert.Contains(t, err.Error(), "short and stout")
		assert.True(t, retry.IsNonRetryable(err))
		assert.True(t, cerrors.IsInvalid(err))
	})

	t.Run("server_errors_stay_retryable", func(t *testing.T) {
		srv, _ := failingServer(t, http.StatusServiceUnavailable, "overloaded")
		h := New(fastConfig())

		_, err := h.httpFetch(context.Background(), srv.URL)

		require.Error(t, err)
		assert.False(t, retry.IsNonRetryable(err))
		assert.True(t, cerrors.IsTransient(err))
	})
}

func TestHTTPFetchRejectsOversizeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxResponseBytes+1))
	}))
	t.Cleanup(srv.Close)

	h := New(fastConfig())
	_, err := h.httpFetch(context.Background(), srv.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
	assert.True(t, retry.IsNonRetryable(err))
}

func TestIsJSONContent(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        bool
	}{
		{"plain_json", "application/json", true},
		{"json_with_charset", "application/json; charset=utf-8", true},
		{"structured_suffix", "application/problem+json", true},
		{"vendor_suffix", "application/vnd.api+json", true},
		{"text", "text/plain", false},
		{"html", "text/html; charset=utf-8", false},
		{"empty", "", false},
		{"lookalike", "application/jsonp", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isJSONContent(tt.contentType))
		})
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, status := range []int{500, 502, 503, 504, 408, 429} {
		assert.True(t, retryableStatus(status), "status %d", status)
	}
	for _, status := range []int{400, 401, 403, 404, 409, 410, 422} {
		assert.False(t, retryableStatus(status), "status %d", status)
	}
}

func TestPreviewBody(t *testing.T) {
	assert.Equal(t, "", previewBody(nil))
	assert.Equal(t, "fine", previewBody([]byte("  fine\n")))

	long := strings.Repeat("x", errBodyPreview+50)
	got := previewBody([]byte(long))
	assert.Len(t, got, errBodyPreview+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
