// Package source defines the capability the monitor needs from a platform
// that publishes posts and accepts replies.
package source

import (
	"context"
	"errors"

	"reddit_responder/internal/model"
)

var (
	// ErrRateLimited is returned by Reply when the platform refuses the
	// request because of rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrIncompleteExpansion is returned by ListReplies when the comment tree
	// could not be fully expanded.
	ErrIncompleteExpansion = errors.New("reply listing incomplete")

	// ErrStreamClosed is returned by Stream.Next after Close.
	ErrStreamClosed = errors.New("stream closed")
)

// EventSource reads new posts and replies to them as the bot account.
type EventSource interface {
	// Identity returns the bot account's username.
	Identity(ctx context.Context) (string, error)
	// Open starts a stream of posts published after the call in any of the
	// given subreddits. Posts that existed before Open are not delivered.
	Open(ctx context.Context, subreddits []string) (Stream, error)
	// ListReplies returns every reply in the post's comment tree, with all
	// "load more" placeholders expanded.
	ListReplies(ctx context.Context, post model.Post) ([]model.Reply, error)
	// Reply posts body as a top-level reply to post.
	Reply(ctx context.Context, post model.Post, body string) (model.ReplyHandle, error)
}

// Stream is a blocking iterator over newly published posts.
type Stream interface {
	// Next blocks until a post arrives, ctx is done, or the stream fails.
	Next(ctx context.Context) (model.Post, error)
	Close() error
}
