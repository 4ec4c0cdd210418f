package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
)

// maxMoreChildren is the most ids /api/morechildren accepts per call.
const maxMoreChildren = 100

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

type commentData struct {
	ID       string          `json:"id"`
	Author   string          `json:"author"`
	ParentID string          `json:"parent_id"`
	Replies  json.RawMessage `json:"replies"`
}

type moreData struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parent_id"`
	Count    int      `json:"count"`
	Children []string `json:"children"`
}

// continueThread reports whether m is a "continue this thread" link rather
// than a batch of collapsed ids.
func (m moreData) continueThread() bool {
	return len(m.Children) == 0
}

// tree accumulates the replies of one post while its placeholders are expanded.
type tree struct {
	replies []model.Reply
	ids     map[string]struct{}
	more    []moreData
}

func (t *tree) add(things []thing) error {
	for _, th := range things {
		switch th.Kind {
		case "t1":
			var d commentData
			if err := json.Unmarshal(th.Data, &d); err != nil {
				return fmt.Errorf("decode comment: %w", err)
			}
			if _, ok := t.ids[d.ID]; !ok {
				t.ids[d.ID] = struct{}{}
				t.replies = append(t.replies, model.Reply{ID: d.ID, Author: d.Author, ParentID: d.ParentID})
			}
			// Threaded responses nest replies as a listing; flat ones use "".
			if r := bytes.TrimSpace(d.Replies); len(r) > 0 && r[0] == '{' {
				var l listing
				if err := json.Unmarshal(r, &l); err != nil {
					return fmt.Errorf("decode replies of %s: %w", d.ID, err)
				}
				if err := t.add(l.Data.Children); err != nil {
					return err
				}
			}
		case "more":
			var d moreData
			if err := json.Unmarshal(th.Data, &d); err != nil {
				return fmt.Errorf("decode more: %w", err)
			}
			if d.continueThread() && (d.ParentID == "" || !strings.HasPrefix(d.ParentID, "t1_")) {
				continue
			}
			t.more = append(t.more, d)
		}
	}
	return nil
}

// ListReplies returns every comment on post. All "load more" and "continue
// this thread" placeholders are expanded; if that takes more than the
// configured number of requests it fails with source.ErrIncompleteExpansion.
func (c *Client) ListReplies(ctx context.Context, post model.Post) ([]model.Reply, error) {
	t := &tree{ids: make(map[string]struct{})}

	var resp []listing
	u := fmt.Sprintf("%s/comments/%s?limit=500&threaded=false&raw_json=1", c.cfg.APIBase, url.PathEscape(post.ID))
	if err := c.getJSON(ctx, c.read, u, &resp); err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("fetch comments: expected 2 listings, got %d", len(resp))
	}
	if err := t.add(resp[1].Data.Children); err != nil {
		return nil, err
	}

	requests := 0
	for len(t.more) > 0 {
		if requests >= c.cfg.MaxExpansionRequests {
			return nil, fmt.Errorf("post %s: %d placeholders left after %d requests: %w",
				post.ID, len(t.more), requests, source.ErrIncompleteExpansion)
		}
		m := t.more[0]
		t.more = t.more[1:]

		if m.continueThread() {
			if err := c.expandThread(ctx, post.ID, m, t); err != nil {
				return nil, err
			}
			requests++
			continue
		}

		batch := m.Children
		if len(batch) > maxMoreChildren {
			rest := m
			rest.Children = batch[maxMoreChildren:]
			t.more = append(t.more, rest)
			batch = batch[:maxMoreChildren]
		}
		if err := c.expandMore(ctx, post.ID, batch, t); err != nil {
			return nil, err
		}
		requests++
	}

	c.log.Debug("listed replies", "post_id", post.ID, "replies", len(t.replies), "expansion_requests", requests)
	return t.replies, nil
}

func (c *Client) expandMore(ctx context.Context, postID string, ids []string, t *tree) error {
	q := url.Values{}
	q.Set("api_type", "json")
	q.Set("link_id", "t3_"+postID)
	q.Set("children", strings.Join(ids, ","))
	q.Set("limit_children", "false")
	q.Set("raw_json", "1")

	var resp struct {
		JSON struct {
			Errors [][]string `json:"errors"`
			Data   struct {
				Things []thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := c.getJSON(ctx, c.read, c.cfg.APIBase+"/api/morechildren?"+q.Encode(), &resp); err != nil {
		return fmt.Errorf("expand more children: %w", err)
	}
	if err := apiErrors(resp.JSON.Errors); err != nil {
		return fmt.Errorf("expand more children: %w", err)
	}
	return t.add(resp.JSON.Data.Things)
}

func (c *Client) expandThread(ctx context.Context, postID string, m moreData, t *tree) error {
	parent := strings.TrimPrefix(m.ParentID, "t1_")
	u := fmt.Sprintf("%s/comments/%s/_/%s?limit=500&threaded=false&raw_json=1",
		c.cfg.APIBase, url.PathEscape(postID), url.PathEscape(parent))

	var resp []listing
	if err := c.getJSON(ctx, c.read, u, &resp); err != nil {
		return fmt.Errorf("continue thread %s: %w", parent, err)
	}
	if len(resp) < 2 {
		return fmt.Errorf("continue thread %s: expected 2 listings, got %d", parent, len(resp))
	}
	return t.add(resp[1].Data.Children)
}
