package reddit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
)

type sleepLog struct {
	mu    sync.Mutex
	calls []time.Duration
	// onSleep, when set, is called with the number of sleeps so far.
	onSleep func(n int)
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	n := len(s.calls)
	s.mu.Unlock()
	if s.onSleep != nil {
		s.onSleep(n)
	}
	return ctx.Err()
}

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server, *sleepLog) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := Config{
		Username:          "responder_bot",
		UserAgent:         "test-agent/1.0",
		APIBase:           srv.URL,
		WWWBase:           srv.URL,
		RequestsPerSecond: 1000,
		Burst:             100,
	}
	c := NewWithClients(cfg, srv.Client(), srv.Client(), srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	sl := &sleepLog{}
	c.pollSleep = sl.sleep
	return c, srv, sl
}

func TestIdentityIsCached(t *testing.T) {
	var calls atomic.Int32
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/v1/me" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("User-Agent"); got != "test-agent/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		_, _ = io.WriteString(w, `{"name": "responder_bot", "id": "abc"}`)
	}))

	for range 2 {
		got, err := c.Identity(context.Background())
		if err != nil {
			t.Fatalf("identity: %v", err)
		}
		if got != "responder_bot" {
			t.Errorf("Identity() = %q", got)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestReply(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      model.ReplyHandle
		wantLimit bool
		wantCode  string
		wantHTTP  int
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{"json": {"errors": [], "data": {"things": [{"kind": "t1", "data": {
				"id": "c9", "name": "t1_c9", "permalink": "/r/activism/comments/p1/title/c9/"}}]}}}`,
			want: model.ReplyHandle{ID: "c9", Permalink: "/r/activism/comments/p1/title/c9/"},
		},
		{
			name:      "ratelimit error code",
			status:    http.StatusOK,
			body:      `{"json": {"errors": [["RATELIMIT", "you are doing that too much. try again in 9 minutes.", "ratelimit"]]}}`,
			wantLimit: true,
		},
		{
			name:      "http 429",
			status:    http.StatusTooManyRequests,
			body:      `{"message": "Too Many Requests", "error": 429}`,
			wantLimit: true,
		},
		{
			name:     "other api error",
			status:   http.StatusOK,
			body:     `{"json": {"errors": [["THREAD_LOCKED", "that thread is locked", "parent"]]}}`,
			wantCode: "THREAD_LOCKED",
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     `{"message": "Forbidden", "error": 403}`,
			wantHTTP: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/comment" {
					http.NotFound(w, r)
					return
				}
				if err := r.ParseForm(); err != nil {
					t.Errorf("parse form: %v", err)
				}
				if got := r.PostForm.Get("thing_id"); got != "t3_p1" {
					t.Errorf("thing_id = %q", got)
				}
				if got := r.PostForm.Get("text"); got != "hello there" {
					t.Errorf("text = %q", got)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			got, err := c.Reply(context.Background(), model.Post{ID: "p1"}, "hello there")

			switch {
			case tt.wantLimit:
				if !errors.Is(err, source.ErrRateLimited) {
					t.Fatalf("got %v, want ErrRateLimited", err)
				}
			case tt.wantCode != "" || tt.wantHTTP != 0:
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("got %v, want *APIError", err)
				}
				if errors.Is(err, source.ErrRateLimited) {
					t.Error("api error classified as rate limited")
				}
				if apiErr.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
				}
				if apiErr.StatusCode != tt.wantHTTP {
					t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.wantHTTP)
				}
			default:
				if err != nil {
					t.Fatalf("reply: %v", err)
				}
				want := tt.want
				want.Permalink = srv.URL + want.Permalink
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("Reply() mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestRetryPolicyLeaves429ToCaller(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{status: http.StatusTooManyRequests, want: false},
		{status: http.StatusServiceUnavailable, want: true},
		{status: http.StatusOK, want: false},
		{status: http.StatusNotFound, want: false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			got, _ := retryPolicy(context.Background(), &http.Response{StatusCode: tt.status, Header: http.Header{}}, nil)
			if got != tt.want {
				t.Errorf("retryPolicy(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
