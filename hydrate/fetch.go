package hydrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/c360/canvaskit/errors"
	"github.com/c360/canvaskit/pkg/retry"
)

const (
	// maxResponseBytes caps how much of a response body is accepted.
	maxResponseBytes = 10 << 20

	// errBodyPreview is how much response text an error message carries.
	errBodyPreview = 200
)

// httpFetch is the default FetchFunc: a context-bound GET that decodes JSON
// responses and returns anything else as raw text.
func (h *Hydrator) httpFetch(ctx context.Context, endpoint string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.NonRetryable(errors.WrapInvalid(err, "Hydrator", "fetch", "request construction"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "Hydrator", "fetch", "http get")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, errors.WrapTransient(err, "Hydrator", "fetch", "body read")
	}
	if len(body) > maxResponseBytes {
		oversize := fmt.Errorf("%s response exceeds %d bytes", endpoint, maxResponseBytes)
		return nil, retry.NonRetryable(errors.WrapInvalid(oversize, "Hydrator", "fetch", "size check"))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, statusError(endpoint, resp.StatusCode, body)
	}

	if isJSONContent(resp.Header.Get("Content-Type")) {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err != nil {
			malformed := fmt.Errorf("%w: %s: %w", errors.ErrParsingFailed, endpoint, err)
			return nil, retry.NonRetryable(errors.WrapInvalid(malformed, "Hydrator", "fetch", "json decode"))
		}
		return decoded, nil
	}
	return string(body), nil
}

// statusError turns a non-2xx response into an error carrying the status and
// a preview of the body. Server-side statuses stay retryable; client errors
// are marked non-retryable so bad requests fail fast.
func statusError(endpoint string, status int, body []byte) error {
	err := fmt.Errorf("%s returned status %d %s", endpoint, status, http.StatusText(status))
	if preview := previewBody(body); preview != "" {
		err = fmt.Errorf("%w: %s", err, preview)
	}
	if retryableStatus(status) {
		return errors.WrapTransient(err, "Hydrator", "fetch", "status check")
	}
	return retry.NonRetryable(errors.WrapInvalid(err, "Hydrator", "fetch", "status check"))
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= http.StatusInternalServerError
}

// isJSONContent reports whether a Content-Type header denotes a JSON
// payload, including structured suffixes like application/problem+json.
func isJSONContent(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func previewBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= errBodyPreview {
		return text
	}
	return text[:errBodyPreview] + "..."
}
