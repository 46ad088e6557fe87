// Package umbrella is the client for the Umbrella reporting API: bearer
// authentication, bounded retries on transient errors and offset pagination.
package umbrella

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/auth"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/config"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/logger"
)

const (
	maxBodyBytes  = 32 << 20
	maxErrorBytes = 512
)

// TokenSource supplies bearer tokens. *auth.Provider implements it.
type TokenSource interface {
	Token(ctx context.Context) (auth.Token, error)
	Invalidate()
}

// Client queries reporting endpoints below BaseURL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	tokens   TokenSource
	timeout  time.Duration
	retry    config.Retry
	limiter  *rate.Limiter
	maxPages int
	log      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout sets the per-request timeout. It applies to the client's own
// copy of the HTTP client, whatever the order of options.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry sets the transient-error retry budget.
func WithRetry(r config.Retry) Option {
	return func(c *Client) { c.retry = r }
}

// WithRateLimit throttles outgoing requests; zero RequestsPerSecond disables
// throttling.
func WithRateLimit(rl config.RateLimit) Option {
	return func(c *Client) {
		if rl.RequestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := rl.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst)
	}
}

// WithMaxPages stops FetchAll after n pages; 0 means no limit.
func WithMaxPages(n int) Option {
	return func(c *Client) { c.maxPages = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client for baseURL using tokens for authorization.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	def := config.Default()
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: def.HTTPTimeout},
		tokens:     tokens,
		retry:      def.Retry,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.HTTPClient
		hc.Timeout = c.timeout
		c.HTTPClient = &hc
	}
	return c
}

// Query GETs endpoint with params and returns the raw body. Endpoint is
// either relative to BaseURL or an absolute URL.
//
// A 401 invalidates the token and the request is repeated once with a fresh
// one. 429, 503 and 504 are retried with exponential backoff until the retry
// budget is spent, which yields errs.ErrRetryBudgetExceeded. Every other
// failure is returned as is.
func (c *Client) Query(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target, err := c.resolve(endpoint, params)
	if err != nil {
		return nil, err
	}

	hint := &retryHint{}
	backoff := c.backoff(hint)

	var (
		body    []byte
		attempt int
	)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		b, err := c.authorizedGet(ctx, endpoint, target)
		if err == nil {
			body = b
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Transient() {
			hint.set(apiErr.RetryAfter)
			c.log.Warn("transient API error, backing off",
				logger.Endpoint(endpoint), logger.Status(apiErr.StatusCode), logger.Attempt(attempt))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Transient() {
			return nil, fmt.Errorf("%w after %d attempts: %w", errs.ErrRetryBudgetExceeded, attempt, apiErr)
		}
		return nil, err
	}
	return body, nil
}

// authorizedGet performs one GET, re-authenticating once on 401.
func (c *Client) authorizedGet(ctx context.Context, endpoint, target string) ([]byte, error) {
	body, err := c.get(ctx, endpoint, target)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return body, err
	}

	c.log.Info("token rejected, re-authenticating", logger.Endpoint(endpoint))
	c.tokens.Invalidate()
	body, err = c.get(ctx, endpoint, target)
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %w", errs.ErrUnauthorized, apiErr)
	}
	return body, err
}

func (c *Client) get(ctx context.Context, endpoint, target string) ([]byte, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.log.Debug("report request",
		logger.Endpoint(endpoint), logger.Status(resp.StatusCode),
		logger.RequestID(reqID), zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	return body, nil
}

func (c *Client) resolve(endpoint string, params url.Values) (string, error) {
	raw := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		raw = c.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: endpoint %q: %v", errs.ErrInvalidArgument, endpoint, err)
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// backoff is exponential from BaseDelay, capped at MaxDelay, and allows
// MaxAttempts requests in total. A Retry-After hint stretches the next delay.
func (c *Client) backoff(hint *retryHint) retry.Backoff {
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	base := c.retry.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	maxDelay := c.retry.MaxDelay
	if maxDelay < base {
		maxDelay = base
	}

	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(maxDelay, b)
	b = retry.WithMaxRetries(uint64(attempts-1), b)

	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := b.Next()
		if stop {
			return 0, true
		}
		if h := hint.take(); h > d {
			d = min(h, maxDelay)
		}
		c.log.Debug("next attempt scheduled", logger.Delay(d))
		return d, false
	})
}

// retryHint carries the server's Retry-After into the next backoff step.
type retryHint struct{ d time.Duration }

func (h *retryHint) set(d time.Duration) { h.d = d }

func (h *retryHint) take() time.Duration {
	d := h.d
	h.d = 0
	return d
}
