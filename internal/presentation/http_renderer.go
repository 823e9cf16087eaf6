// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package presentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/presentd/internal/recovery"
)

// stepKeyword prefixes step errors so recovery strategies and error-rate
// buckets can tell them apart.
var stepKeyword = map[string]string{
	stepBackground: "network",
	stepPlayer:     "player",
	stepTag:        "tag",
	stepShow:       "presentation",
}

// HTTPRenderer drives a remote render host: every step is a POST of
// {"surveyId": ...} to <base>/<step>.
type HTTPRenderer struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPRenderer creates a renderer for baseURL with a per-request timeout.
func NewHTTPRenderer(baseURL string, timeout time.Duration) (*HTTPRenderer, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &recovery.ValidationError{Field: "renderer.url", Reason: fmt.Sprintf("not an absolute URL: %q", baseURL)}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRenderer{
		base: u,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

func (r *HTTPRenderer) PrepareBackground(ctx context.Context, surveyID string) error {
	return r.call(ctx, stepBackground, surveyID)
}

func (r *HTTPRenderer) InitPlayer(ctx context.Context, surveyID string) error {
	return r.call(ctx, stepPlayer, surveyID)
}

func (r *HTTPRenderer) BootTag(ctx context.Context, surveyID string) error {
	return r.call(ctx, stepTag, surveyID)
}

func (r *HTTPRenderer) Show(ctx context.Context, surveyID string) error {
	return r.call(ctx, stepShow, surveyID)
}

func (r *HTTPRenderer) call(ctx context.Context, step, surveyID string) error {
	kw := stepKeyword[step]
	body, err := json.Marshal(map[string]string{"surveyId": surveyID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base.JoinPath(step).String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", kw, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// The client timeout surfaces as context.DeadlineExceeded, which would
		// read as a caller cancellation. The caller is still waiting, so it
		// is a transient render host failure.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &timeoutError{keyword: kw, step: step, after: r.client.Timeout}
		}
		return fmt.Errorf("%s: %w", kw, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", kw, surveyID, recovery.ErrNotFound)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return &recovery.ValidationError{Field: "surveyId", Reason: fmt.Sprintf("rejected by render host at %s step", step)}
	case code == http.StatusTooManyRequests || code >= 500:
		return &statusError{keyword: kw, step: step, code: code}
	default:
		return fmt.Errorf("%s: invalid request at %s step (status %d)", kw, step, code)
	}
}

// statusError is a transient render host failure.
type statusError struct {
	keyword string
	step    string
	code    int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: render host %s step returned %d", e.keyword, e.step, e.code)
}

// Temporary marks the failure as retryable for the generic classifier.
func (e *statusError) Temporary() bool { return true }

// timeoutError is a render host that did not answer within the client timeout.
type timeoutError struct {
	keyword string
	step    string
	after   time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("%s: render host %s step timed out after %s", e.keyword, e.step, e.after)
}

func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }

// StatusCode extracts the render host status from err, or 0.
func StatusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

var _ Renderer = (*HTTPRenderer)(nil)
