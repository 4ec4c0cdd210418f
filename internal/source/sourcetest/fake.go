// Package sourcetest provides an in-memory source.EventSource for tests.
package sourcetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
)

// Fake is an in-memory EventSource. Posts pushed with Publish are delivered to
// the open stream in order; once they are drained, Next returns StreamErr if
// set and otherwise blocks until ctx is done.
type Fake struct {
	mu sync.Mutex

	Username string
	// IdentityErr is returned by Identity when set.
	IdentityErr error
	// OpenErr is returned by Open when set.
	OpenErr error
	// StreamErr is returned by Next once the queued posts are drained.
	StreamErr error

	// Replies holds the existing reply tree per post id.
	Replies map[string][]model.Reply
	// ListErrs are returned by successive ListReplies calls before succeeding.
	ListErrs []error
	// ReplyErrs are returned by successive Reply calls before succeeding.
	ReplyErrs []error

	OpenedWith []string
	ListCalls  int
	Sent       []SentReply

	queue  []model.Post
	notify chan struct{}
}

// SentReply is a reply the fake accepted.
type SentReply struct {
	PostID string
	Body   string
}

// New returns a Fake for the bot account username.
func New(username string) *Fake {
	return &Fake{
		Username: username,
		Replies:  make(map[string][]model.Reply),
		notify:   make(chan struct{}, 1),
	}
}

// Publish queues posts for delivery on the stream.
func (f *Fake) Publish(posts ...model.Post) {
	f.mu.Lock()
	f.queue = append(f.queue, posts...)
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// SentReplies returns a copy of the replies posted so far.
func (f *Fake) SentReplies() []SentReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentReply(nil), f.Sent...)
}

func (f *Fake) Identity(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IdentityErr != nil {
		return "", f.IdentityErr
	}
	return f.Username, nil
}

func (f *Fake) Open(_ context.Context, subreddits []string) (source.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	f.OpenedWith = append([]string(nil), subreddits...)
	return &stream{f: f}, nil
}

func (f *Fake) ListReplies(_ context.Context, post model.Post) ([]model.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if len(f.ListErrs) > 0 {
		err := f.ListErrs[0]
		f.ListErrs = f.ListErrs[1:]
		return nil, err
	}
	return append([]model.Reply(nil), f.Replies[post.ID]...), nil
}

func (f *Fake) Reply(_ context.Context, post model.Post, body string) (model.ReplyHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ReplyErrs) > 0 {
		err := f.ReplyErrs[0]
		f.ReplyErrs = f.ReplyErrs[1:]
		return model.ReplyHandle{}, err
	}
	id := fmt.Sprintf("c%d", len(f.Sent)+1)
	f.Sent = append(f.Sent, SentReply{PostID: post.ID, Body: body})
	f.Replies[post.ID] = append(f.Replies[post.ID], model.Reply{ID: id, Author: f.Username, ParentID: "t3_" + post.ID})
	return model.ReplyHandle{
		ID:        id,
		Permalink: fmt.Sprintf("https://www.reddit.com/r/%s/comments/%s/_/%s/", strings.ToLower(post.Subreddit), post.ID, id),
	}, nil
}

type stream struct {
	f      *Fake
	closed bool
}

func (s *stream) Next(ctx context.Context) (model.Post, error) {
	for {
		s.f.mu.Lock()
		if s.closed {
			s.f.mu.Unlock()
			return model.Post{}, source.ErrStreamClosed
		}
		if len(s.f.queue) > 0 {
			p := s.f.queue[0]
			s.f.queue = s.f.queue[1:]
			s.f.mu.Unlock()
			return p, nil
		}
		if s.f.StreamErr != nil {
			err := s.f.StreamErr
			s.f.mu.Unlock()
			return model.Post{}, err
		}
		s.f.mu.Unlock()

		select {
		case <-ctx.Done():
			return model.Post{}, ctx.Err()
		case <-s.f.notify:
		}
	}
}

func (s *stream) Close() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	s.closed = true
	return nil
}
