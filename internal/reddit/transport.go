package reddit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
)

// leveledSlog adapts slog to retryablehttp's logger. Intermediate failures are
// logged at WARN because they are retried.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Warn(msg string, keysAndValues ...any)  { l.inner.Warn(msg, keysAndValues...) }
func (l leveledSlog) Info(msg string, keysAndValues ...any)  { l.inner.Debug(msg, keysAndValues...) }
func (l leveledSlog) Debug(msg string, keysAndValues ...any) { l.inner.Debug(msg, keysAndValues...) }

// retryPolicy wraps retryablehttp.DefaultRetryPolicy but leaves 429 to the
// caller, which decides how to cool down.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type userAgentTransport struct {
	userAgent string
	base      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

func newRetryingClient(userAgent string, maxRetries int, log *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Transport = &userAgentTransport{userAgent: userAgent, base: rc.HTTPClient.Transport}
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: log.With("subsystem", "reddit_http")})
	rc.CheckRetry = retryPolicy

	client := rc.StandardClient()
	client.Timeout = 30 * time.Second
	return client
}

// passwordTokenSource fetches tokens with the resource owner password grant,
// which is what Reddit script apps use.
type passwordTokenSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	return s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

func newTokenSource(cfg Config, hc *http.Client) oauth2.TokenSource {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.WWWBase + tokenPath,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
	return oauth2.ReuseTokenSource(nil, &passwordTokenSource{
		ctx:      ctx,
		conf:     conf,
		username: cfg.Username,
		password: cfg.Password,
	})
}

// authorize returns a client that attaches bearer tokens from ts to every
// request sent through hc.
func authorize(hc *http.Client, ts oauth2.TokenSource) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: hc.Transport},
		Timeout:   hc.Timeout,
	}
}
