// Package model defines the domain types used across the application.
package model

import "time"

// Template is a named, keyword-triggered canned reply.
type Template struct {
	Name        string
	Description string
	Keywords    []string
	Body        string
}

// Category groups subreddits that are enabled or disabled together.
type Category struct {
	Name       string
	Subreddits []string
	Enabled    bool
}

// Post is a newly published submission read from the event source.
type Post struct {
	ID        string
	Subreddit string
	Title     string
	Body      string
	Author    string
	URL       string
	CreatedAt time.Time
}

// Text returns the text keyword matching runs against.
func (p Post) Text() string {
	return p.Title + " " + p.Body
}

// Reply is an existing comment somewhere in a post's comment tree.
type Reply struct {
	ID       string
	Author   string
	ParentID string
}

// ReplyHandle identifies a reply the bot has posted.
type ReplyHandle struct {
	ID        string
	Permalink string
}

// PostRecord is a history entry for a dispatched reply.
type PostRecord struct {
	PostID       string
	Subreddit    string
	Title        string
	TemplateUsed string
	ReplyURL     string
	Timestamp    time.Time
}

// Stats summarizes the reply history.
type Stats struct {
	Total       int
	BySubreddit map[string]int
	ByTemplate  map[string]int
	First       *time.Time
	Last        *time.Time
}

// State is a monitoring session state.
type State string

// Monitor loop states.
const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateMatching   State = "matching"
	StateDeduping   State = "deduping"
	StateReplying   State = "replying"
	StateRecording  State = "recording"
	StateStopped    State = "stopped"
)

// Counters tracks per-session pipeline outcomes.
type Counters struct {
	Seen        int
	Matched     int
	Replied     int
	Skipped     int
	Failed      int
	RateLimited int
}

// Status is the read-only view of the monitor published to observers.
type Status struct {
	State        State
	LastAction   string
	SessionStart *time.Time
	Subreddits   []string
	Counters     Counters
}

// Running reports whether a session is active.
func (s Status) Running() bool {
	return s.State != StateIdle && s.State != StateStopped
}
