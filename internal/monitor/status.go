package monitor

import (
	"slices"
	"sync"
	"time"

	"reddit_responder/internal/model"
)

// StatusBoard holds the monitor's published status. The monitor is the only
// writer; observers read copies through Snapshot.
type StatusBoard struct {
	mu sync.Mutex
	st model.Status
}

// NewStatusBoard returns a board in the idle state.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{st: model.Status{State: model.StateIdle, LastAction: "Not started"}}
}

// Snapshot returns a copy of the current status.
func (b *StatusBoard) Snapshot() model.Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.st
	st.Subreddits = slices.Clone(b.st.Subreddits)
	if b.st.SessionStart != nil {
		t := *b.st.SessionStart
		st.SessionStart = &t
	}
	return st
}

func (b *StatusBoard) begin(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st = model.Status{
		State:        model.StateConnecting,
		LastAction:   "Connecting",
		SessionStart: &now,
	}
}

func (b *StatusBoard) setSubreddits(subs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.Subreddits = slices.Clone(subs)
}

func (b *StatusBoard) setState(s model.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.State = s
}

func (b *StatusBoard) setAction(action string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.st.LastAction = action
}

func (b *StatusBoard) count(fn func(c *model.Counters)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.st.Counters)
}
