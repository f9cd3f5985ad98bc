// Package avito is the marketplace messenger API client. It handles OAuth
// client-credentials tokens, outbound throttling, 401 refresh-and-retry, and
// the version fallback chains the API requires (v3, then v2, then v1).
package avito

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/andrrrrey/avito-crm/internal/config"
)

const (
	DefaultBaseURL = "https://api.avito.ru"
	defaultScope   = "messenger:read messenger:write items:info"
	maxErrBody     = 2048
)

// Client talks to the marketplace API. Safe for concurrent use.
type Client struct {
	baseURL   string
	accountID int64
	http      *http.Client
	limiter   *rate.Limiter
	creds     clientcredentials.Config
	store     TokenStore
	now       func() time.Time

	// serializes token refresh so concurrent callers fetch once
	tokenMu sync.Mutex
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, e.g. for tests.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithTokenStore sets where tokens are cached.
func WithTokenStore(s TokenStore) Option { return func(c *Client) { c.store = s } }

// WithBaseURL overrides the API origin.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLimiter replaces the outbound throttle.
func WithLimiter(l *rate.Limiter) Option { return func(c *Client) { c.limiter = l } }

// New builds a client from cfg.
func New(cfg config.AvitoConfig, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	lim := rate.Inf
	if cfg.RPS > 0 {
		lim = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		baseURL:   base,
		accountID: cfg.AccountID,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(lim, burst),
		store:     &memoryTokenStore{},
		now:       time.Now,
		creds: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       strings.Fields(defaultScope),
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}
	for _, o := range opts {
		o(c)
	}
	c.creds.TokenURL = c.baseURL + "/token/"
	return c
}

// AccountID returns the configured account id.
func (c *Client) AccountID() int64 { return c.accountID }

func escape(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), "~", "%7E")
}

func (c *Client) account() (string, error) {
	if c.accountID == 0 {
		return "", ErrNotConfigured
	}
	return strconv.FormatInt(c.accountID, 10), nil
}

// token returns a cached token while it has more than a minute left,
// otherwise fetches and stores a new one.
func (c *Client) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	tok, exp, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: load: %v", ErrToken, err)
	}
	if tok != "" && exp.Sub(c.now()) > tokenMargin {
		return tok, nil
	}

	octx := context.WithValue(ctx, oauth2.HTTPClient, c.http)
	t, err := c.creds.Token(octx)
	if err != nil {
		return "", fmt.Errorf("%w: fetch: %v", ErrToken, err)
	}
	exp = t.Expiry
	if exp.IsZero() {
		exp = c.now()
	}
	if err := c.store.Save(ctx, t.AccessToken, exp); err != nil {
		return "", fmt.Errorf("%w: save: %v", ErrToken, err)
	}
	return t.AccessToken, nil
}

func (c *Client) clearToken(ctx context.Context) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	_ = c.store.Clear(ctx)
}

// do performs one API call. A 401 clears the stored token and retries once.
// JSON bodies decode with json.Number; other content types come back as a string.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (any, error) {
	ctx, span := otel.Tracer("avito").Start(ctx, "avito."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("avito.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() { requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", op, err)
		}
		payload = b
	}

	for attempt := 0; ; attempt++ {
		status, out, err := c.roundTrip(ctx, method, path, payload)
		requestsTotal.WithLabelValues(op, statusLabel(status)).Inc()
		span.SetAttributes(attribute.Int("http.status_code", status))

		if status == http.StatusUnauthorized && attempt == 0 {
			c.clearToken(ctx)
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (int, any, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return 0, nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := string(raw)
		if len(text) > maxErrBody {
			text = text[:maxErrBody]
		}
		return resp.StatusCode, nil, &APIError{Status: resp.StatusCode, Path: path, Body: text}
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return resp.StatusCode, string(raw), nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, out, nil
}

// attempt is one candidate request in a fallback chain.
type attempt struct {
	method string
	path   string
	body   any
}

// firstOK tries candidates in order and returns the first success. Token
// failures and a done context end the chain early; otherwise the last error
// is returned wrapped.
func (c *Client) firstOK(ctx context.Context, op string, tries []attempt) (any, error) {
	var lastErr error
	for _, t := range tries {
		out, err := c.do(ctx, op, t.method, t.path, t.body)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrToken) || ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%s failed: %w", op, lastErr)
}

func gets(paths ...string) []attempt {
	out := make([]attempt, len(paths))
	for i, p := range paths {
		out[i] = attempt{method: http.MethodGet, path: p}
	}
	return out
}
