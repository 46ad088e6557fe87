// Package auth implements the OAuth2 client-credentials token exchange
// against the Umbrella auth endpoint and keeps the bearer token in memory.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/config"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
)

const (
	tokenKey = "access_token"

	// DefaultLifetime applies when neither expires_in nor a JWT exp claim
	// is available.
	DefaultLifetime = time.Hour
	// expirySkew retires a cached token slightly before the vendor does.
	expirySkew = 30 * time.Second
)

// Token is a bearer token with its expiry.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// tokenResponse is the body of the token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Provider exchanges client credentials for a token and caches it until it
// expires or is invalidated. It is not safe for concurrent use.
type Provider struct {
	creds config.Credentials
	http  *http.Client
	cache *gocache.Cache
	log   *zap.Logger
	calls int
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.http = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// NewProvider returns a Provider for the given credentials.
func NewProvider(creds config.Credentials, opts ...Option) *Provider {
	p := &Provider{
		creds: creds,
		http:  &http.Client{Timeout: 10 * time.Second},
		// No janitor goroutine: expired entries are dropped on Get.
		cache: gocache.New(gocache.NoExpiration, 0),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns the cached token or authenticates when there is none.
func (p *Provider) Token(ctx context.Context) (Token, error) {
	if v, ok := p.cache.Get(tokenKey); ok {
		if tok, ok := v.(Token); ok {
			return tok, nil
		}
	}
	return p.Authenticate(ctx)
}

// Invalidate drops the cached token so the next Token call re-authenticates.
func (p *Provider) Invalidate() {
	p.cache.Delete(tokenKey)
}

// Calls reports how many times the token endpoint has been contacted.
func (p *Provider) Calls() int { return p.calls }

// Authenticate performs the client-credentials exchange unconditionally and
// caches the result.
func (p *Provider) Authenticate(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.creds.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(p.creds.ClientID, p.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	p.calls++
	p.log.Debug("requesting access token", zap.String("token_url", p.creds.TokenURL))

	resp, err := p.http.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Token{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Token{}, fmt.Errorf("%w: token endpoint returned %s", errs.ErrAuthentication, resp.Status)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, fmt.Errorf("%w: decode token response: %v", errs.ErrMalformedResponse, err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: no access_token in token response", errs.ErrMalformedResponse)
	}

	now := time.Now()
	tok := Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		ExpiresAt:   expiry(now, tr),
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}

	if ttl := tok.ExpiresAt.Sub(now) - expirySkew; ttl > 0 {
		p.cache.Set(tokenKey, tok, ttl)
	} else {
		p.cache.Delete(tokenKey)
	}
	p.log.Debug("access token obtained", zap.Time("expires_at", tok.ExpiresAt))
	return tok, nil
}

// expiry prefers expires_in, then the exp claim of a JWT access token.
func expiry(now time.Time, tr tokenResponse) time.Time {
	if tr.ExpiresIn > 0 {
		return now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if exp, err := jwtExpiry(tr.AccessToken); err == nil {
		return exp
	}
	return now.Add(DefaultLifetime)
}

// jwtExpiry reads the exp claim without verifying the signature; the token
// is only forwarded, never trusted locally.
func jwtExpiry(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return exp.Time, nil
}
