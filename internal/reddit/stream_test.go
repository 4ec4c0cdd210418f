package reddit

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
)

type entry struct {
	id, sub, author, title, body string
	minute                       int
}

func atomFeed(entries ...entry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>newest submissions</title>`)
	for _, e := range entries {
		ts := time.Date(2025, 1, 1, 0, e.minute, 0, 0, time.UTC).Format(time.RFC3339)
		content := `<!-- SC_OFF --><div class="md"><p>` + e.body + `</p></div><!-- SC_ON --> &#32; submitted by <a href="https://www.reddit.com/user/` + e.author + `"> /u/` + e.author + ` </a>`
		fmt.Fprintf(&b, `
<entry>
  <author><name>/u/%s</name><uri>https://www.reddit.com/user/%s</uri></author>
  <category term="%s" label="r/%s"/>
  <content type="html">%s</content>
  <id>t3_%s</id>
  <link href="https://www.reddit.com/r/%s/comments/%s/x/"/>
  <updated>%s</updated>
  <published>%s</published>
  <title>%s</title>
</entry>`, e.author, e.author, e.sub, e.sub, html.EscapeString(content), e.id, e.sub, e.id, ts, ts, e.title)
	}
	b.WriteString("\n</feed>\n")
	return b.String()
}

func wantPost(e entry) model.Post {
	return model.Post{
		ID:        e.id,
		Subreddit: e.sub,
		Title:     e.title,
		Body:      e.body,
		Author:    e.author,
		URL:       "https://www.reddit.com/r/" + e.sub + "/comments/" + e.id + "/x/",
		CreatedAt: time.Date(2025, 1, 1, 0, e.minute, 0, 0, time.UTC),
	}
}

func TestStreamSkipsExistingAndYieldsOldestFirst(t *testing.T) {
	a := entry{id: "aaa", sub: "activism", author: "alice", title: "Old A", body: "existing", minute: 1}
	b := entry{id: "bbb", sub: "mutualaid", author: "bob", title: "Old B", body: "existing", minute: 2}
	c := entry{id: "ccc", sub: "activism", author: "carol", title: "How do I start?", body: "Looking for resources", minute: 3}
	d := entry{id: "ddd", sub: "mutualaid", author: "dave", title: "Food bank", body: "community fridge", minute: 4}

	pages := []string{
		atomFeed(b, a),
		atomFeed(b, a),
		atomFeed(d, c, b, a),
	}
	var polls atomic.Int32
	cl, _, sl := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/activism+mutualaid/new/.rss" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		n := int(polls.Add(1)) - 1
		_, _ = io.WriteString(w, pages[min(n, len(pages)-1)])
	}))

	s, err := cl.Open(context.Background(), []string{"activism", "mutualaid"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	var got []model.Post
	for range 2 {
		p, err := s.Next(context.Background())
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, p)
	}

	if diff := cmp.Diff([]model.Post{wantPost(c), wantPost(d)}, got); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]time.Duration{time.Second, 2 * time.Second}, sl.calls); diff != "" {
		t.Errorf("poll delays (-want +got):\n%s", diff)
	}
	if n := polls.Load(); n != 3 {
		t.Errorf("polled %d times, want 3", n)
	}
}

func TestStreamBacksOffToMax(t *testing.T) {
	feed := atomFeed(entry{id: "aaa", sub: "activism", author: "alice", title: "A", minute: 1})
	cl, _, sl := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, feed)
	}))

	s, err := cl.Open(context.Background(), []string{"activism"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sl.onSleep = func(n int) {
		if n == 7 {
			cancel()
		}
	}
	_, err = s.Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 16 * time.Second, 16 * time.Second,
	}
	if diff := cmp.Diff(want, sl.calls); diff != "" {
		t.Errorf("poll delays (-want +got):\n%s", diff)
	}
}

func TestStreamRateLimitedListingBacksOff(t *testing.T) {
	var polls atomic.Int32
	feed := atomFeed(entry{id: "aaa", sub: "activism", author: "alice", title: "A", minute: 1})
	fresh := atomFeed(
		entry{id: "bbb", sub: "activism", author: "bob", title: "B", minute: 2},
		entry{id: "aaa", sub: "activism", author: "alice", title: "A", minute: 1},
	)
	cl, _, sl := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch polls.Add(1) {
		case 1:
			_, _ = io.WriteString(w, feed)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = io.WriteString(w, fresh)
		}
	}))

	s, err := cl.Open(context.Background(), []string{"activism"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	p, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if p.ID != "bbb" {
		t.Errorf("got post %q, want bbb", p.ID)
	}
	if diff := cmp.Diff([]time.Duration{time.Second, 16 * time.Second}, sl.calls); diff != "" {
		t.Errorf("poll delays (-want +got):\n%s", diff)
	}
}

func TestStreamErrorAndClose(t *testing.T) {
	cl, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	s, err := cl.Open(context.Background(), []string{"doesnotexist"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var apiErr *APIError
	if _, err := s.Next(context.Background()); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("got %v, want 404 APIError", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, source.ErrStreamClosed) {
		t.Errorf("got %v, want ErrStreamClosed", err)
	}
}

func TestOpenWithoutSubreddits(t *testing.T) {
	cl, _, _ := newTestClient(t, http.NotFoundHandler())
	if _, err := cl.Open(context.Background(), nil); err == nil {
		t.Error("expected error for empty subreddit list")
	}
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "empty", content: "", want: ""},
		{
			name:    "self post",
			content: `<!-- SC_OFF --><div class="md"><p>First <strong>para</strong></p><p>Second</p></div><!-- SC_ON --> submitted by`,
			want:    "First paraSecond",
		},
		{
			name:    "link post",
			content: `<table><tr><td><a href="https://example.com">[link]</a></td></tr></table>`,
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, extractBody(tt.content)); diff != "" {
				t.Errorf("extractBody() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
