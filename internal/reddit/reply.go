package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
)

// Reply posts body as a top-level comment on post. Reddit's RATELIMIT error
// and HTTP 429 are reported as source.ErrRateLimited.
func (c *Client) Reply(ctx context.Context, post model.Post, body string) (model.ReplyHandle, error) {
	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("thing_id", "t3_"+post.ID)
	form.Set("text", body)
	form.Set("raw_json", "1")

	var resp struct {
		JSON struct {
			Errors [][]string `json:"errors"`
			Data   struct {
				Things []thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := c.postForm(ctx, c.write, "/api/comment", form, &resp); err != nil {
		return model.ReplyHandle{}, fmt.Errorf("post comment: %w", err)
	}
	if err := apiErrors(resp.JSON.Errors); err != nil {
		return model.ReplyHandle{}, fmt.Errorf("post comment: %w", err)
	}
	if len(resp.JSON.Data.Things) == 0 {
		return model.ReplyHandle{}, fmt.Errorf("post comment: %w", &APIError{Message: "no comment in response"})
	}

	var d struct {
		ID        string `json:"id"`
		Permalink string `json:"permalink"`
	}
	if err := json.Unmarshal(resp.JSON.Data.Things[0].Data, &d); err != nil {
		return model.ReplyHandle{}, fmt.Errorf("decode comment: %w", err)
	}
	h := model.ReplyHandle{ID: d.ID}
	if d.Permalink != "" {
		h.Permalink = c.cfg.WWWBase + d.Permalink
	}
	return h, nil
}

// apiErrors converts the [code, message, field] triples Reddit returns in
// api_type=json responses.
func apiErrors(errs [][]string) error {
	if len(errs) == 0 {
		return nil
	}
	e := errs[0]
	var code, msg string
	if len(e) > 0 {
		code = e[0]
	}
	if len(e) > 1 {
		msg = e[1]
	}
	if strings.EqualFold(code, "RATELIMIT") {
		return fmt.Errorf("%s: %w", msg, source.ErrRateLimited)
	}
	return &APIError{Code: code, Message: msg}
}
