package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reddit_responder/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backends returns a fresh instance of every History implementation.
func backends(t *testing.T) map[string]History {
	t.Helper()
	db, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return map[string]History{
		"json":   NewJSONFile(filepath.Join(t.TempDir(), "post_history.json"), discardLogger()),
		"sqlite": db,
	}
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id, sub, tmpl string, minutes int) model.PostRecord {
	return model.PostRecord{
		PostID:       id,
		Subreddit:    sub,
		Title:        "title " + id,
		TemplateUsed: tmpl,
		ReplyURL:     "https://reddit.com/r/" + sub + "/comments/" + id,
		Timestamp:    base.Add(time.Duration(minutes) * time.Minute),
	}
}

func seed(t *testing.T, h History, recs ...model.PostRecord) {
	t.Helper()
	for i := range recs {
		if err := h.Append(context.Background(), &recs[i]); err != nil {
			t.Fatalf("append %s: %v", recs[i].PostID, err)
		}
	}
}

func ids(recs []model.PostRecord) []string {
	out := []string{}
	for _, r := range recs {
		out = append(out, r.PostID)
	}
	return out
}

func TestHistoryQuery(t *testing.T) {
	recs := []model.PostRecord{
		record("p1", "mutualaid", "Mutual Aid", 0),
		record("p2", "Activism", "General Activism", 10),
		record("p3", "activism", "mutual aid", 5),
		record("p4", "privacy", "Digital Security", 20),
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "all newest first", query: Query{}, want: []string{"p4", "p2", "p3", "p1"}},
		{name: "limit", query: Query{Limit: 2}, want: []string{"p4", "p2"}},
		{name: "subreddit case-insensitive", query: Query{Subreddit: "ACTIVISM"}, want: []string{"p2", "p3"}},
		{name: "template case-insensitive", query: Query{Template: "Mutual aid"}, want: []string{"p3", "p1"}},
		{name: "both filters", query: Query{Subreddit: "activism", Template: "mutual aid"}, want: []string{"p3"}},
		{name: "no match", query: Query{Subreddit: "golang"}, want: []string{}},
	}

	for name, h := range backends(t) {
		seed(t, h, recs...)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				got, err := h.Query(context.Background(), tt.query)
				if err != nil {
					t.Fatalf("query: %v", err)
				}
				if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
					t.Errorf("Query(%+v) mismatch (-want +got):\n%s", tt.query, diff)
				}
			})
		}
	}
}

func TestHistoryRoundTripsFields(t *testing.T) {
	for name, h := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := record("abc", "mutualaid", "Mutual Aid", 3)
			want.Title = "A very long title that is stored in full without any truncation at all, even past sixty characters"
			seed(t, h, want)

			got, err := h.Query(context.Background(), Query{})
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if diff := cmp.Diff([]model.PostRecord{want}, got); diff != "" {
				t.Errorf("Query() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHistoryAllowsDuplicatePostIDs(t *testing.T) {
	for name, h := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, h, record("dup", "a", "T", 0), record("dup", "a", "T", 1))
			got, err := h.Query(context.Background(), Query{})
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != 2 {
				t.Errorf("got %d records, want 2", len(got))
			}
		})
	}
}

func TestHistoryStatsAndClear(t *testing.T) {
	for name, h := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := h.Stats(ctx)
			if err != nil {
				t.Fatalf("stats: %v", err)
			}
			if empty.Total != 0 || empty.First != nil || empty.Last != nil {
				t.Errorf("empty stats = %+v", empty)
			}

			seed(t, h,
				record("p1", "a", "T1", 5),
				record("p2", "b", "T1", 0),
				record("p3", "a", "T2", 9),
			)
			got, err := h.Stats(ctx)
			if err != nil {
				t.Fatalf("stats: %v", err)
			}
			first, last := base, base.Add(9*time.Minute)
			want := model.Stats{
				Total:       3,
				BySubreddit: map[string]int{"a": 2, "b": 1},
				ByTemplate:  map[string]int{"T1": 2, "T2": 1},
				First:       &first,
				Last:        &last,
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
			}

			if err := h.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			recs, err := h.Query(ctx, Query{})
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(recs) != 0 {
				t.Errorf("expected empty history after clear, got %d records", len(recs))
			}
		})
	}
}
