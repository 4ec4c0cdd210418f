// Package storage defines the post history interface and its implementations.
package storage

import (
	"context"
	"slices"
	"strings"

	"reddit_responder/internal/model"
)

// History is the append-only log of replies the bot has made.
type History interface {
	Append(ctx context.Context, rec *model.PostRecord) error
	Query(ctx context.Context, q Query) ([]model.PostRecord, error)
	Stats(ctx context.Context) (model.Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Query filters history records. Subreddit and Template are case-insensitive
// exact matches; empty means any. Limit <= 0 means no limit.
type Query struct {
	Limit     int
	Subreddit string
	Template  string
}

// Matches reports whether rec passes the subreddit and template filters.
func (q Query) Matches(rec model.PostRecord) bool {
	if q.Subreddit != "" && !strings.EqualFold(rec.Subreddit, q.Subreddit) {
		return false
	}
	if q.Template != "" && !strings.EqualFold(rec.TemplateUsed, q.Template) {
		return false
	}
	return true
}

// apply filters, sorts newest first and truncates recs in place.
func (q Query) apply(recs []model.PostRecord) []model.PostRecord {
	out := slices.DeleteFunc(recs, func(r model.PostRecord) bool { return !q.Matches(r) })
	slices.SortStableFunc(out, func(a, b model.PostRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// ComputeStats aggregates recs into totals, per-key counts and the time span.
// Records without a timestamp count toward the totals but not the span.
func ComputeStats(recs []model.PostRecord) model.Stats {
	st := model.Stats{
		BySubreddit: make(map[string]int),
		ByTemplate:  make(map[string]int),
	}
	for _, r := range recs {
		st.Total++
		st.BySubreddit[r.Subreddit]++
		st.ByTemplate[r.TemplateUsed]++
		ts := r.Timestamp
		if ts.IsZero() {
			continue
		}
		if st.First == nil || ts.Before(*st.First) {
			st.First = &ts
		}
		if st.Last == nil || ts.After(*st.Last) {
			st.Last = &ts
		}
	}
	return st
}
