// Package backend talks to the remote legal-research API: authentication,
// precedent search and detail, chat completion, and document analysis.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 30 * time.Second
	defaultRate    = 10
	defaultBurst   = 20
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RateLimit    float64
	Burst        int
	AnalysisType string
	Tokens       TokenStore
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// Client communicates with the legal-research backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	tokens       TokenStore
	analysisType string
	logger       *zap.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRate
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.Tokens == nil {
		opts.Tokens = &MemoryTokens{}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		httpClient:   opts.HTTPClient,
		limiter:      rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		tokens:       opts.Tokens,
		analysisType: opts.AnalysisType,
		logger:       opts.Logger.Named("backend"),
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(baseURL string, tokens TokenStore) *Client {
	return New(Options{BaseURL: baseURL, Tokens: tokens})
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string { return c.baseURL }

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}

// request describes one call. body is re-read on every retry.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	auth        bool
}

func jsonRequest(method, path string, v any) (request, error) {
	r := request{method: method, path: path, auth: true}
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return r, fmt.Errorf("marshaling request: %w", err)
		}
		r.body = b
		r.contentType = "application/json"
	}
	return r, nil
}

// do sends r, retrying on 429 with exponential backoff, and decodes a 2xx
// JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var lastErr error
	for attempt := range maxRetries {
		err := c.once(ctx, r, out)
		if err == nil {
			return nil
		}
		if !isRateLimit(err) {
			return err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s %s: %w: %w", r.method, r.path, domain.ErrTransport, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("rate limited after %d retries: %w: %w", maxRetries, domain.ErrTransport, lastErr)
}

func (c *Client) once(ctx context.Context, r request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w: %w", domain.ErrTransport, err)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if r.contentType != "" {
		httpReq.Header.Set("Content-Type", r.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	if r.auth {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		if tok == "" {
			return fmt.Errorf("%s %s: not logged in: %w", r.method, r.path, domain.ErrUnauthenticated)
		}
		(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", r.method, r.path, domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(r, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w: %w", r.path, domain.ErrTransport, err)
	}
	return nil
}

// statusError maps a non-2xx response onto the error taxonomy. A 401 also
// drops the held token so the next call demands a fresh login.
func (c *Client) statusError(r request, resp *http.Response) error {
	detail := readDetail(resp.Body)
	msg := fmt.Sprintf("%s %s: HTTP %d", r.method, r.path, resp.StatusCode)
	if detail != "" {
		msg += ": " + detail
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if err := c.tokens.ClearToken(); err != nil {
			c.logger.Warn("clearing token failed", zap.Error(err))
		}
		return fmt.Errorf("%s: %w", msg, domain.ErrUnauthenticated)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%s: %w", msg, domain.ErrFileTooLarge)
	case resp.StatusCode == http.StatusUnsupportedMediaType:
		return fmt.Errorf("%s: %w", msg, domain.ErrUnsupportedType)
	case resp.StatusCode >= 500 && strings.HasPrefix(detail, "404:"):
		// The backend re-raises its own 404 from a catch-all handler, so a
		// missing record arrives as a 500 whose detail starts with "404:".
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s: %w", msg, domain.ErrTransport)
	}
	return fmt.Errorf("%s: %w", msg, domain.ErrUnknown)
}

// readDetail extracts the "detail" field of an error body, or the raw body.
func readDetail(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Detail) > 0 {
		var s string
		if json.Unmarshal(env.Detail, &s) == nil {
			return s
		}
		return string(env.Detail)
	}
	return strings.TrimSpace(string(raw))
}
