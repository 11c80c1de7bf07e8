// Package api is the HTTP transport client for the chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/cocoja-ai/chatkit/internal/errs"
	"github.com/cocoja-ai/chatkit/pkg/logger"
	"github.com/cocoja-ai/chatkit/pkg/metrics"
)

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
)

// Client issues JSON requests against a fixed base URL. It owns a cookie jar
// (session mode) and at most one bearer credential (token mode). The
// credential is client state, not ambient package state: exactly one identity
// is active per Client, so identity-changing operations must be serialized
// against in-flight requests by the caller.
type Client struct {
	base *url.URL
	hc   *http.Client
	log  *logger.Logger

	mu     sync.Mutex
	bearer string
}

// New builds a client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, log *logger.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: base,
		hc: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		log: log.WithComponent("api"),
	}, nil
}

// SetCredential installs token as the bearer credential for all subsequent
// requests. An empty token clears it.
func (c *Client) SetCredential(token string) {
	c.mu.Lock()
	c.bearer = token
	c.mu.Unlock()
}

// HasCredential reports whether a bearer credential is installed.
func (c *Client) HasCredential() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bearer != ""
}

// PrimeCSRF asks the server to set its anti-forgery cookie. Must run before
// the first unsafe request in session mode.
func (c *Client) PrimeCSRF(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/auth/csrf/", nil, nil)
}

func (c *Client) csrfToken() string {
	for _, ck := range c.hc.Jar.Cookies(c.base) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	return ""
}

// do performs one request. Failures reaching the server surface as
// errs.ErrTransport; context cancellation passes through untouched so callers
// can tell the two apart. Response bodies with error statuses are parsed into
// *APIError exactly once, here.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	start := time.Now()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	u := *c.base
	u.Path += path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	c.mu.Unlock()

	if method != http.MethodGet && method != http.MethodHead {
		if tok := c.csrfToken(); tok != "" {
			req.Header.Set(csrfHeaderName, tok)
		}
	}

	tracer := otel.Tracer("chatkit/api")
	ctx, span := tracer.Start(ctx, method+" "+path)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)

	resp, err := c.hc.Do(req.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordRequest(method, path, "error", time.Since(start).Seconds())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", errs.ErrTransport, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	metrics.RecordRequest(method, path, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	c.log.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrTransport, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := parseAPIError(resp.StatusCode, raw)
		span.SetStatus(codes.Error, apiErr.Error())
		return apiErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
