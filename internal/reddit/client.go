// Package reddit implements source.EventSource against the Reddit API.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"reddit_responder/internal/source"
)

// Default endpoints.
const (
	DefaultAPIBase = "https://oauth.reddit.com"
	DefaultWWWBase = "https://www.reddit.com"
	tokenPath      = "/api/v1/access_token"
)

const maxBodySize = 10 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds account credentials and client tuning.
type Config struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string

	APIBase string
	WWWBase string

	// RequestsPerSecond and Burst pace every outgoing request.
	RequestsPerSecond float64
	Burst             int
	// MaxExpansionRequests caps the requests spent expanding one comment tree.
	MaxExpansionRequests int
	// PollMin and PollMax bound the delay between listing polls.
	PollMin time.Duration
	PollMax time.Duration
}

func (c *Config) setDefaults() {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if c.WWWBase == "" {
		c.WWWBase = DefaultWWWBase
	}
	if c.UserAgent == "" {
		c.UserAgent = "linux:reddit_responder:v1.0 (by /u/" + c.Username + ")"
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.MaxExpansionRequests <= 0 {
		c.MaxExpansionRequests = 100
	}
	if c.PollMin <= 0 {
		c.PollMin = time.Second
	}
	if c.PollMax <= 0 {
		c.PollMax = 16 * time.Second
	}
}

// APIError is a non rate-limit failure reported by Reddit.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("reddit api: %s: %s", e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("reddit api: status %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("reddit api: status %d", e.StatusCode)
	}
}

// Client talks to Reddit as a single script-app account.
type Client struct {
	cfg Config
	log *slog.Logger

	read   HTTPClient // authenticated, retries transient failures
	write  HTTPClient // authenticated, never retries
	public HTTPClient // unauthenticated listing feeds

	limiter   *rate.Limiter
	pollSleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	identity string
}

var _ source.EventSource = (*Client)(nil)

// New creates a Client that authenticates with the password grant.
func New(cfg Config, log *slog.Logger) *Client {
	cfg.setDefaults()
	base := newRetryingClient(cfg.UserAgent, 3, log)
	noRetry := newRetryingClient(cfg.UserAgent, 0, log)
	ts := newTokenSource(cfg, base)
	return NewWithClients(cfg, authorize(base, ts), authorize(noRetry, ts), base, log)
}

// NewWithClients creates a Client over caller-supplied HTTP clients. read and
// write must already attach credentials.
func NewWithClients(cfg Config, read, write, public HTTPClient, log *slog.Logger) *Client {
	cfg.setDefaults()
	return &Client{
		cfg:       cfg,
		log:       log,
		read:      read,
		write:     write,
		public:    public,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		pollSleep: sleepCtx,
	}
}

// Identity returns the authenticated account's username.
func (c *Client) Identity(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != "" {
		return c.identity, nil
	}

	var me struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, c.read, c.cfg.APIBase+"/api/v1/me?raw_json=1", &me); err != nil {
		return "", fmt.Errorf("fetch identity: %w", err)
	}
	if me.Name == "" {
		return "", errors.New("fetch identity: empty username")
	}
	c.identity = me.Name
	return me.Name, nil
}

func (c *Client) do(ctx context.Context, hc HTTPClient, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return hc.Do(req)
}

// fetch performs req and returns the body of a 2xx response. 429 is reported
// as source.ErrRateLimited and other statuses as *APIError.
func (c *Client) fetch(ctx context.Context, hc HTTPClient, req *http.Request) ([]byte, error) {
	resp, err := c.do(ctx, hc, req)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", req.Method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, source.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: snippet(body)}
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, hc HTTPClient, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	body, err := c.fetch(ctx, hc, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, hc HTTPClient, path string, form url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := c.fetch(ctx, hc, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
