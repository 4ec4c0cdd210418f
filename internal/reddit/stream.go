package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
)

// seenWindow bounds how many post ids a stream remembers. Reddit listings
// return at most 100 entries, so older ids can never reappear.
const seenWindow = 1000

// Open starts polling the combined "new" listing of subreddits. Posts already
// in the listing when the stream starts are skipped.
func (c *Client) Open(_ context.Context, subreddits []string) (source.Stream, error) {
	if len(subreddits) == 0 {
		return nil, errors.New("open stream: no subreddits")
	}
	escaped := make([]string, len(subreddits))
	for i, s := range subreddits {
		escaped[i] = url.PathEscape(s)
	}
	return &Stream{
		c:        c,
		url:      fmt.Sprintf("%s/r/%s/new/.rss?limit=100&raw_json=1", c.cfg.WWWBase, strings.Join(escaped, "+")),
		seen:     make(map[string]struct{}),
		interval: c.cfg.PollMin,
	}, nil
}

// Stream polls a subreddit listing feed and yields posts it has not seen.
type Stream struct {
	c   *Client
	url string

	seen     map[string]struct{}
	order    []string
	pending  []model.Post
	primed   bool
	closed   bool
	interval time.Duration
}

// Next returns the next new post, oldest first.
func (s *Stream) Next(ctx context.Context) (model.Post, error) {
	for {
		if s.closed {
			return model.Post{}, source.ErrStreamClosed
		}
		if len(s.pending) > 0 {
			p := s.pending[0]
			s.pending = s.pending[1:]
			return p, nil
		}

		if s.primed {
			if err := s.c.pollSleep(ctx, s.interval); err != nil {
				return model.Post{}, err
			}
		}

		posts, err := s.poll(ctx)
		switch {
		case errors.Is(err, source.ErrRateLimited):
			s.c.log.Warn("listing rate limited, backing off", "delay", s.c.cfg.PollMax)
			s.interval = s.c.cfg.PollMax
			if !s.primed {
				if err := s.c.pollSleep(ctx, s.interval); err != nil {
					return model.Post{}, err
				}
			}
			continue
		case err != nil:
			return model.Post{}, err
		}

		fresh := s.remember(posts)
		if !s.primed {
			s.primed = true
			s.c.log.Info("stream primed", "existing_posts", len(posts))
			continue
		}
		if len(fresh) == 0 {
			s.interval = min(s.interval*2, s.c.cfg.PollMax)
			continue
		}
		s.interval = s.c.cfg.PollMin
		s.pending = fresh
	}
}

// Close stops the stream.
func (s *Stream) Close() error {
	s.closed = true
	return nil
}

// remember records posts in the seen window and returns the ones that were
// not there before, oldest first.
func (s *Stream) remember(posts []model.Post) []model.Post {
	var fresh []model.Post
	for _, p := range posts {
		if _, ok := s.seen[p.ID]; ok {
			continue
		}
		s.seen[p.ID] = struct{}{}
		s.order = append(s.order, p.ID)
		fresh = append(fresh, p)
	}
	if over := len(s.order) - seenWindow; over > 0 {
		for _, id := range s.order[:over] {
			delete(s.seen, id)
		}
		s.order = slices.Clone(s.order[over:])
	}
	slices.SortStableFunc(fresh, func(a, b model.Post) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return fresh
}

func (s *Stream) poll(ctx context.Context) ([]model.Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	body, err := s.c.fetch(ctx, s.c.public, req)
	if err != nil {
		return nil, fmt.Errorf("poll listing: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	posts := make([]model.Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		p, ok := postFromItem(item)
		if !ok {
			s.c.log.Debug("skipping listing entry without id", "link", item.Link)
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func postFromItem(item *gofeed.Item) (model.Post, bool) {
	id := strings.TrimPrefix(item.GUID, "t3_")
	if id == "" {
		return model.Post{}, false
	}

	p := model.Post{
		ID:    id,
		Title: item.Title,
		URL:   item.Link,
		Body:  extractBody(item.Content),
	}
	if len(item.Categories) > 0 {
		p.Subreddit = item.Categories[0]
	}
	if item.Author != nil {
		p.Author = strings.TrimPrefix(item.Author.Name, "/u/")
	}
	switch {
	case item.PublishedParsed != nil:
		p.CreatedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		p.CreatedAt = item.UpdatedParsed.UTC()
	}
	return p, true
}

// extractBody returns the self text from a listing entry's HTML content.
// Link posts have no self text.
func extractBody(content string) string {
	if content == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	var parts []string
	doc.Find("div.md").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}
