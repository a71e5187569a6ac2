// Package canvas is a small client for the Canvas LMS REST API. It covers
// the handful of endpoints the tool catalog needs and classifies every
// failure as an *upstream.Error.
package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/ggoodman/canvas-mcp/upstream"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout   = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 200 * time.Millisecond
	defaultMaxPages      = 10
	defaultPerPage       = "100"

	maxBodyBytes    = 16 << 20
	maxMessageChars = 200
)

// Config describes how to reach a Canvas instance.
type Config struct {
	// BaseURL is the API root, for example https://school.instructure.com/api/v1.
	BaseURL string
	Token   string

	UserAgent   string
	HTTPTimeout time.Duration

	// RateLimit caps outgoing requests per second. Zero disables throttling.
	RateLimit float64

	// RetryAttempts bounds attempts for GET requests that fail transiently.
	RetryAttempts uint
	RetryDelay    time.Duration

	// MaxPages bounds how many pages a list call follows.
	MaxPages int

	// Transport is the base round tripper beneath the auth layer.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client issues authenticated requests against the Canvas API. It is safe
// for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	attempts  uint
	delay     time.Duration
	maxPages  int
	log       *slog.Logger
}

// New constructs a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("canvas: token is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("canvas: invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("canvas: base url must be http or https, got %q", cfg.BaseURL)
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	baseTransport := cfg.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})

	c := &Client{
		base: base,
		http: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: ts, Base: baseTransport},
		},
		userAgent: cfg.UserAgent,
		attempts:  cfg.RetryAttempts,
		delay:     cfg.RetryDelay,
		maxPages:  cfg.MaxPages,
		log:       cfg.Logger,
	}
	if c.userAgent == "" {
		c.userAgent = "canvas-mcp"
	}
	if c.attempts == 0 {
		c.attempts = defaultRetryAttempts
	}
	if c.delay <= 0 {
		c.delay = defaultRetryDelay
	}
	if c.maxPages <= 0 {
		c.maxPages = defaultMaxPages
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Get fetches path and decodes the JSON body into out. Transient failures
// are retried.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	body, _, err := c.getWithRetry(ctx, c.resolve(path, query))
	if err != nil {
		return err
	}
	return decode(body, out)
}

// GetAll fetches every page of a list endpoint by following rel="next"
// links, up to the configured page cap.
func (c *Client) GetAll(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	if q.Get("per_page") == "" {
		q.Set("per_page", defaultPerPage)
	}

	var items []json.RawMessage
	target := c.resolve(path, q)
	for page := 0; target != ""; page++ {
		if page >= c.maxPages {
			c.log.WarnContext(ctx, "canvas.paginate.truncated", slog.String("path", path), slog.Int("pages", page))
			break
		}
		body, header, err := c.getWithRetry(ctx, target)
		if err != nil {
			return nil, err
		}
		var batch []json.RawMessage
		if err := decode(body, &batch); err != nil {
			return nil, err
		}
		items = append(items, batch...)
		target = nextLink(header.Values("Link"))
	}
	return items, nil
}

// Post sends body as JSON and decodes the response into out. Mutating
// requests are never retried.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPut, path, body, out)
}

// Delete removes the resource at path and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.sendJSON(ctx, http.MethodDelete, path, nil, out)
}

// CurrentUser returns the profile of the token's owner.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.Get(ctx, "users/self", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("canvas: encode request: %w", err)
		}
		payload = b
	}
	resp, _, err := c.send(ctx, method, c.resolve(path, nil), payload)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func (c *Client) getWithRetry(ctx context.Context, target string) ([]byte, http.Header, error) {
	var (
		body   []byte
		header http.Header
	)
	err := retry.Do(
		func() error {
			var err error
			body, header, err = c.send(ctx, http.MethodGet, target, nil)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			ue, ok := upstream.As(err)
			return ok && ue.Retryable() && ctx.Err() == nil
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("canvas: GET %s: %w", redact(target), context.Cause(ctx))
		}
		return nil, nil, err
	}
	return body, header, nil
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte) ([]byte, http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, nil, fmt.Errorf("canvas: %s %s: %w", method, redact(target), context.Cause(ctx))
			}
			return nil, nil, fmt.Errorf("canvas: rate limiter: %w", err)
		}
	}

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, nil, fmt.Errorf("canvas: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	log := c.log.With(slog.String("http_method", method), slog.String("url", redact(target)))
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("canvas: %s %s: %w", method, redact(target), context.Cause(ctx))
		}
		log.WarnContext(ctx, "canvas.request.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return nil, nil, &upstream.Error{Kind: upstream.KindUnavailable, Message: "Canvas is unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("canvas: %s %s: %w", method, redact(target), context.Cause(ctx))
		}
		return nil, nil, &upstream.Error{Kind: upstream.KindUnavailable, Status: resp.StatusCode, Message: "incomplete response from Canvas", Err: err}
	}

	if kind := upstream.KindForStatus(resp.StatusCode); kind != "" {
		msg := errorMessage(body, resp.StatusCode)
		switch kind {
		case upstream.KindForbidden:
			msg = "Forbidden: " + msg
		case upstream.KindRateLimited:
			msg = "Rate limit exceeded: " + msg
		}
		log.InfoContext(ctx, "canvas.request.fail", slog.Int("status", resp.StatusCode), slog.String("kind", string(kind)), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return nil, nil, &upstream.Error{Kind: kind, Status: resp.StatusCode, Message: msg}
	}

	log.DebugContext(ctx, "canvas.request.ok", slog.Int("status", resp.StatusCode), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return body, resp.Header, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	target := strings.TrimRight(c.base.String(), "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("canvas: decode response: %w", err)
	}
	return nil
}

// errorMessage extracts a human readable message from a Canvas error body.
func errorMessage(body []byte, status int) string {
	var payload map[string]any
	if json.Unmarshal(body, &payload) == nil {
		if s, ok := payload["message"].(string); ok && s != "" {
			return s
		}
		if s, ok := payload["error"].(string); ok && s != "" {
			return s
		}
		if list, ok := payload["errors"].([]any); ok && len(list) > 0 {
			if first, ok := list[0].(map[string]any); ok {
				if s, ok := first["message"].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" || payload != nil {
		return http.StatusText(status)
	}
	if r := []rune(msg); len(r) > maxMessageChars {
		msg = string(r[:maxMessageChars]) + "..."
	}
	return msg
}

// nextLink returns the rel="next" target of an RFC 8288 Link header.
func nextLink(values []string) string {
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			segs := strings.Split(part, ";")
			if len(segs) < 2 {
				continue
			}
			target := strings.TrimSpace(segs[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, p := range segs[1:] {
				p = strings.TrimSpace(p)
				if strings.EqualFold(p, `rel="next"`) || strings.EqualFold(p, "rel=next") {
					return target[1 : len(target)-1]
				}
			}
		}
	}
	return ""
}

// redact drops the query string so access tokens passed as parameters never
// reach the diagnostic sink.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}

// PathSegment escapes an identifier for use as a single path element.
// Canvas alternate identifiers such as "sis_course_id:A1" pass through
// unchanged.
func PathSegment(s string) string {
	return url.PathEscape(s)
}

// List fetches every page of a list endpoint and decodes each element as T.
func List[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	raw, err := c.GetAll(ctx, path, query)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := decode(item, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
