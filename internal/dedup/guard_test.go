package dedup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
	"reddit_responder/internal/source/sourcetest"
)

func newTestGuard(src *sourcetest.Fake) *Guard {
	return New(src, slog.New(slog.NewTextHandler(io.Discard, nil)), WithRetry(3, 0))
}

func TestMarkSeen(t *testing.T) {
	g := newTestGuard(sourcetest.New("bot"))

	if !g.MarkSeen("p1") {
		t.Error("first MarkSeen(p1) = false, want true")
	}
	if g.MarkSeen("p1") {
		t.Error("second MarkSeen(p1) = true, want false")
	}
	if !g.MarkSeen("p2") {
		t.Error("MarkSeen(p2) = false, want true")
	}
}

func TestAlreadyHandled(t *testing.T) {
	post := model.Post{ID: "abc"}

	tests := []struct {
		name    string
		replies []model.Reply
		want    bool
	}{
		{name: "no replies", want: false},
		{
			name:    "other authors only",
			replies: []model.Reply{{ID: "c1", Author: "alice"}, {ID: "c2", Author: "bob"}},
			want:    false,
		},
		{
			name:    "bot replied at top level",
			replies: []model.Reply{{ID: "c1", Author: "alice"}, {ID: "c2", Author: "bot"}},
			want:    true,
		},
		{
			name: "bot reply deep in tree",
			replies: []model.Reply{
				{ID: "c1", Author: "alice", ParentID: "t3_abc"},
				{ID: "c2", Author: "bob", ParentID: "t1_c1"},
				{ID: "c3", Author: "BOT", ParentID: "t1_c2"},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sourcetest.New("bot")
			src.Replies[post.ID] = tt.replies
			g := newTestGuard(src)

			got, err := g.AlreadyHandled(context.Background(), post, "bot")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("AlreadyHandled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlreadyHandledRetriesTransientErrors(t *testing.T) {
	src := sourcetest.New("bot")
	src.ListErrs = []error{errors.New("timeout"), errors.New("502")}
	g := newTestGuard(src)

	got, err := g.AlreadyHandled(context.Background(), model.Post{ID: "abc"}, "bot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("AlreadyHandled() = true, want false")
	}
	if src.ListCalls != 3 {
		t.Errorf("ListReplies called %d times, want 3", src.ListCalls)
	}
}

func TestAlreadyHandledFailsTowardSkip(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantIs    error
	}{
		{
			name:      "persistent failure",
			errs:      []error{errors.New("a"), errors.New("b"), errors.New("c")},
			wantCalls: 3,
		},
		{
			name:      "incomplete expansion is not retried",
			errs:      []error{source.ErrIncompleteExpansion},
			wantCalls: 1,
			wantIs:    source.ErrIncompleteExpansion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sourcetest.New("bot")
			src.ListErrs = tt.errs
			g := newTestGuard(src)

			got, err := g.AlreadyHandled(context.Background(), model.Post{ID: "abc"}, "bot")
			if err == nil {
				t.Fatal("expected error")
			}
			if !got {
				t.Error("AlreadyHandled() = false on failure, want true")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error %v does not wrap %v", err, tt.wantIs)
			}
			if src.ListCalls != tt.wantCalls {
				t.Errorf("ListReplies called %d times, want %d", src.ListCalls, tt.wantCalls)
			}
		})
	}
}
