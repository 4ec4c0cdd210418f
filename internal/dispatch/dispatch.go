// Package dispatch posts replies with pacing and rate-limit cooldowns.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
)

// Policy controls pacing between replies and what happens on a rate limit.
type Policy struct {
	// Pacing is the pause after every successful reply.
	Pacing time.Duration
	// Cooldown is the pause after the platform reports a rate limit.
	Cooldown time.Duration
	// MaxRetries is how many times a rate-limited reply is attempted again
	// after the cooldown. Zero abandons the post.
	MaxRetries int
}

// DefaultPolicy waits 10s between replies and 10m after a rate limit, and
// does not retry rate-limited posts.
var DefaultPolicy = Policy{
	Pacing:   10 * time.Second,
	Cooldown: 10 * time.Minute,
}

// Sleeper pauses the caller. Implementations return early with ctx.Err()
// when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// RealSleeper sleeps on a timer.
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Replier posts a reply to a post.
type Replier interface {
	Reply(ctx context.Context, post model.Post, body string) (model.ReplyHandle, error)
}

// Dispatcher sends replies one at a time under a Policy.
type Dispatcher struct {
	replier Replier
	policy  Policy
	sleeper Sleeper
	log     *slog.Logger

	// OnRateLimit, when set, is called each time a reply is rate limited.
	OnRateLimit func(post model.Post)
}

// New returns a Dispatcher. A nil sleeper means RealSleeper.
func New(replier Replier, policy Policy, sleeper Sleeper, log *slog.Logger) *Dispatcher {
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	return &Dispatcher{
		replier: replier,
		policy:  policy,
		sleeper: sleeper,
		log:     log,
	}
}

// Dispatch replies to post with body. A reply that has been sent is never
// interrupted by ctx; ctx only shortens the pacing and cooldown pauses.
//
// On success Dispatch pauses for the pacing interval before returning. When
// rate limited it pauses for the cooldown and then retries or gives up,
// returning an error that wraps source.ErrRateLimited. Any other error is
// returned at once.
func (d *Dispatcher) Dispatch(ctx context.Context, post model.Post, body string) (model.ReplyHandle, error) {
	for attempt := 0; ; attempt++ {
		h, err := d.replier.Reply(context.WithoutCancel(ctx), post, body)
		if err == nil {
			d.log.Info("replied to post", "post_id", post.ID, "subreddit", post.Subreddit, "reply_id", h.ID)
			if err := d.sleeper.Sleep(ctx, d.policy.Pacing); err != nil {
				d.log.Debug("pacing interrupted", "error", err)
			}
			return h, nil
		}

		if !errors.Is(err, source.ErrRateLimited) {
			return model.ReplyHandle{}, fmt.Errorf("reply to %s: %w", post.ID, err)
		}

		if d.OnRateLimit != nil {
			d.OnRateLimit(post)
		}
		d.log.Warn("rate limited, cooling down",
			"post_id", post.ID, "cooldown", d.policy.Cooldown, "attempt", attempt+1)
		if err := d.sleeper.Sleep(ctx, d.policy.Cooldown); err != nil {
			return model.ReplyHandle{}, fmt.Errorf("reply to %s: %w (cooldown interrupted: %v)", post.ID, source.ErrRateLimited, err)
		}
		if attempt >= d.policy.MaxRetries {
			return model.ReplyHandle{}, fmt.Errorf("reply to %s: %w", post.ID, source.ErrRateLimited)
		}
	}
}
