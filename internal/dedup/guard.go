// Package dedup decides whether a post has already been answered.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
)

// ReplyLister lists every reply on a post.
type ReplyLister interface {
	ListReplies(ctx context.Context, post model.Post) ([]model.Reply, error)
}

// Guard combines a per-session seen set with a check of the post's live
// reply tree. It belongs to a single monitoring session and is not safe for
// concurrent use.
type Guard struct {
	lister ReplyLister
	log    *slog.Logger
	seen   map[string]struct{}

	attempts uint
	delay    time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithRetry sets how many times a failed reply listing is attempted and the
// initial delay between attempts.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(g *Guard) {
		g.attempts = attempts
		g.delay = delay
	}
}

// New returns a Guard with an empty seen set.
func New(lister ReplyLister, log *slog.Logger, opts ...Option) *Guard {
	g := &Guard{
		lister:   lister,
		log:      log,
		seen:     make(map[string]struct{}),
		attempts: 3,
		delay:    time.Second,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// MarkSeen records postID and reports whether it was new to this session.
func (g *Guard) MarkSeen(postID string) bool {
	if _, ok := g.seen[postID]; ok {
		return false
	}
	g.seen[postID] = struct{}{}
	return true
}

// AlreadyHandled reports whether identity has replied anywhere in the post's
// comment tree. If the tree cannot be listed completely it returns true
// together with the error, so the caller skips the post.
func (g *Guard) AlreadyHandled(ctx context.Context, post model.Post, identity string) (bool, error) {
	var (
		replies []model.Reply
		lastErr error
	)
	err := retry.Do(
		func() error {
			replies, lastErr = g.lister.ListReplies(ctx, post)
			if errors.Is(lastErr, source.ErrIncompleteExpansion) {
				return retry.Unrecoverable(lastErr)
			}
			return lastErr
		},
		retry.Attempts(g.attempts),
		retry.Delay(g.delay),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.log.Info("retrying reply listing", "post_id", post.ID, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return true, fmt.Errorf("list replies for %s: %w", post.ID, lastErr)
	}

	for _, r := range replies {
		if strings.EqualFold(r.Author, identity) {
			return true, nil
		}
	}
	return false, nil
}
