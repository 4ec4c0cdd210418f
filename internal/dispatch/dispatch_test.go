package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
	"reddit_responder/internal/source/sourcetest"
)

type recordingSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return s.err
}

var testPolicy = Policy{Pacing: 10 * time.Second, Cooldown: 10 * time.Minute}

func newTestDispatcher(src *sourcetest.Fake, p Policy, s Sleeper) *Dispatcher {
	return New(src, p, s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatchSuccessPaces(t *testing.T) {
	src := sourcetest.New("bot")
	sl := &recordingSleeper{}
	d := newTestDispatcher(src, testPolicy, sl)

	h, err := d.Dispatch(context.Background(), model.Post{ID: "p1", Subreddit: "test"}, "hello")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if h.ID == "" || h.Permalink == "" {
		t.Errorf("expected populated handle, got %+v", h)
	}
	if diff := cmp.Diff([]time.Duration{10 * time.Second}, sl.calls); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]sourcetest.SentReply{{PostID: "p1", Body: "hello"}}, src.SentReplies()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchRateLimited(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		replyErrs  []error
		wantErr    bool
		wantSleeps []time.Duration
		wantSent   int
	}{
		{
			name:       "no retries abandons post",
			replyErrs:  []error{source.ErrRateLimited},
			wantErr:    true,
			wantSleeps: []time.Duration{10 * time.Minute},
			wantSent:   0,
		},
		{
			name:       "retry succeeds after cooldown",
			maxRetries: 1,
			replyErrs:  []error{source.ErrRateLimited},
			wantSleeps: []time.Duration{10 * time.Minute, 10 * time.Second},
			wantSent:   1,
		},
		{
			name:       "retries exhausted",
			maxRetries: 1,
			replyErrs:  []error{source.ErrRateLimited, source.ErrRateLimited},
			wantErr:    true,
			wantSleeps: []time.Duration{10 * time.Minute, 10 * time.Minute},
			wantSent:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sourcetest.New("bot")
			src.ReplyErrs = tt.replyErrs
			sl := &recordingSleeper{}
			p := testPolicy
			p.MaxRetries = tt.maxRetries
			d := newTestDispatcher(src, p, sl)
			var limited int
			d.OnRateLimit = func(model.Post) { limited++ }

			_, err := d.Dispatch(context.Background(), model.Post{ID: "p1"}, "body")
			if tt.wantErr {
				if !errors.Is(err, source.ErrRateLimited) {
					t.Fatalf("got %v, want ErrRateLimited", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantSleeps, sl.calls); diff != "" {
				t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
			}
			if got := len(src.SentReplies()); got != tt.wantSent {
				t.Errorf("sent %d replies, want %d", got, tt.wantSent)
			}
			if limited != len(tt.replyErrs) {
				t.Errorf("OnRateLimit called %d times, want %d", limited, len(tt.replyErrs))
			}
		})
	}
}

func TestDispatchOtherErrorNoSleep(t *testing.T) {
	src := sourcetest.New("bot")
	boom := errors.New("thread locked")
	src.ReplyErrs = []error{boom}
	sl := &recordingSleeper{}
	d := newTestDispatcher(src, testPolicy, sl)

	_, err := d.Dispatch(context.Background(), model.Post{ID: "p1"}, "body")
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if errors.Is(err, source.ErrRateLimited) {
		t.Error("non rate-limit error classified as rate limited")
	}
	if len(sl.calls) != 0 {
		t.Errorf("expected no sleeps, got %v", sl.calls)
	}
}

type ctxCheckingReplier struct {
	err error
}

func (r *ctxCheckingReplier) Reply(ctx context.Context, _ model.Post, _ string) (model.ReplyHandle, error) {
	r.err = ctx.Err()
	return model.ReplyHandle{ID: "c1"}, nil
}

func TestDispatchReplyIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &ctxCheckingReplier{}
	d := New(r, testPolicy, RealSleeper{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	h, err := d.Dispatch(ctx, model.Post{ID: "p1"}, "body")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if h.ID != "c1" {
		t.Errorf("handle = %+v", h)
	}
	if r.err != nil {
		t.Errorf("reply saw cancelled context: %v", r.err)
	}
}

func TestRealSleeperHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RealSleeper{}.Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleep did not return promptly on cancellation")
	}
}
