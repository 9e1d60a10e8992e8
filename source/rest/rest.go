// Package rest fetches JSON documents over HTTP GET as a binding source.
// The binding's params select the document: "endpoint" names a path
// relative to the configured base URL (or an absolute URL), and every
// other param becomes a query parameter.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360/canvaskit/binding"
	"github.com/c360/canvaskit/errors"
	"github.com/c360/canvaskit/pkg/retry"
)

// SourceID is the registry identifier used by Register.
const SourceID = "rest"

const (
	paramEndpoint    = "endpoint"
	maxResponseBytes = 10 << 20
)

// Source issues retried GET requests and decodes the JSON responses into
// the shapes path expressions evaluate against.
type Source struct {
	baseURL string
	client  *http.Client
	headers http.Header
	retry   retry.Config
	logger  *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithClient replaces the HTTP client. The client's timeout bounds each
// attempt.
func WithClient(client *http.Client) Option {
	return func(s *Source) {
		if client != nil {
			s.client = client
		}
	}
}

// WithRetryConfig replaces the retry policy for failed requests.
func WithRetryConfig(rc errors.RetryConfig) Option {
	return func(s *Source) {
		s.retry = rc.ToRetryConfig()
	}
}

// WithHeader adds a header to every request, typically authorization.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		s.headers.Add(key, value)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a rest source. baseURL may be empty when every binding uses
// absolute endpoint URLs.
func New(baseURL string, opts ...Option) (*Source, error) {
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("invalid base URL %q", baseURL),
				"RestSource", "New", "base url validation")
		}
	}

	s := &Source{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		headers: make(http.Header),
		retry:   errors.DefaultRetryConfig().ToRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "rest-source")
	}
	return s, nil
}

// Fetch GETs the document selected by the binding params. Server errors
// and timeouts are retried per the retry policy; client errors and
// malformed payloads fail immediately.
func (s *Source) Fetch(ctx context.Context, params map[string]any, _ binding.Context) (any, error) {
	endpoint, ok := stringParam(params, paramEndpoint)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q param is required", errors.ErrMissingConfig, paramEndpoint),
			"RestSource", "Fetch", "params validation")
	}

	target, err := s.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	rc := s.retry
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.logger.Debug("retrying rest fetch",
			"url", target,
			"attempt", attempt,
			"delay", delay,
			"error", err)
	}
	return retry.DoWithResult(ctx, rc, func() (any, error) {
		return s.get(ctx, target)
	})
}

// buildURL joins the endpoint with the base URL and appends the remaining
// params as query parameters in sorted key order.
func (s *Source) buildURL(endpoint string, params map[string]any) (string, error) {
	target := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if s.baseURL == "" {
			return "", errors.WrapInvalid(
				fmt.Errorf("relative endpoint %q requires a base URL", endpoint),
				"RestSource", "Fetch", "url resolution")
		}
		target = s.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	}

	query := url.Values{}
	for key, value := range params {
		if key == paramEndpoint {
			continue
		}
		query.Set(key, fmt.Sprintf("%v", value))
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target, nil
}

func (s *Source) get(ctx context.Context, target string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.NonRetryable(errors.WrapInvalid(err, "RestSource", "Fetch", "request construction"))
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "RestSource", "Fetch", "http get")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.WrapTransient(err, "RestSource", "Fetch", "body read")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("%s returned status %d %s", target, resp.StatusCode, http.StatusText(resp.StatusCode))
		if retryableStatus(resp.StatusCode) {
			return nil, errors.WrapTransient(err, "RestSource", "Fetch", "status check")
		}
		return nil, retry.NonRetryable(errors.WrapInvalid(err, "RestSource", "Fetch", "status check"))
	}

	if len(body) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, retry.NonRetryable(errors.WrapInvalid(
			fmt.Errorf("%w: %s: %w", errors.ErrParsingFailed, target, err),
			"RestSource", "Fetch", "json decode"))
	}
	return value, nil
}

// retryableStatus reports whether a failed status is worth retrying.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= http.StatusInternalServerError
}

func stringParam(params map[string]any, key string) (string, bool) {
	value, ok := params[key]
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok && str != ""
}

// Register adds the source to a registry under SourceID.
func (s *Source) Register(reg *binding.Registry) error {
	return s.RegisterAs(reg, SourceID)
}

// RegisterAs adds the source under a custom identifier so one process can
// register several rest sources with different base URLs.
func (s *Source) RegisterAs(reg *binding.Registry, id string) error {
	return reg.Register(id, s)
}
