// Package monitor runs the stream → match → dedup → dispatch → record loop.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"reddit_responder/internal/dedup"
	"reddit_responder/internal/dispatch"
	"reddit_responder/internal/matcher"
	"reddit_responder/internal/model"
	"reddit_responder/internal/source"
	"reddit_responder/internal/storage"
)

var (
	// ErrConfig marks session failures that a restart cannot fix: the
	// registry or catalog is unusable until an operator edits it.
	ErrConfig = errors.New("configuration error")
	// ErrNoSubreddits is returned by Run when no enabled category has any
	// subreddit. It wraps ErrConfig.
	ErrNoSubreddits = fmt.Errorf("%w: no subreddits to monitor", ErrConfig)
	// ErrAlreadyRunning is returned by Run while another session is active.
	ErrAlreadyRunning = errors.New("monitor already running")
)

// Registry provides the subreddits to watch.
type Registry interface {
	EffectiveSet() ([]string, error)
}

// Catalog provides the templates to match against, in tie-break order.
type Catalog interface {
	List() ([]model.Template, error)
}

// Notifier is told about every reply the monitor records.
type Notifier interface {
	NotifyReply(ctx context.Context, rec model.PostRecord)
}

// Monitor watches the effective subreddit set and answers matching posts.
// Posts are handled one at a time; a slow reply listing or dispatch delays
// every post queued behind it.
type Monitor struct {
	src      source.EventSource
	registry Registry
	catalog  Catalog
	history  storage.History
	notifier Notifier
	board    *StatusBoard
	log      *slog.Logger

	policy    dispatch.Policy
	sleeper   dispatch.Sleeper
	dedupOpts []dedup.Option
	now       func() time.Time

	running atomic.Bool
}

// New creates a Monitor with the default dispatch policy.
func New(src source.EventSource, registry Registry, catalog Catalog, history storage.History, log *slog.Logger) *Monitor {
	return &Monitor{
		src:      src,
		registry: registry,
		catalog:  catalog,
		history:  history,
		board:    NewStatusBoard(),
		log:      log,
		policy:   dispatch.DefaultPolicy,
		sleeper:  dispatch.RealSleeper{},
		now:      time.Now,
	}
}

// SetPolicy overrides the dispatch policy and the sleeper used for pauses.
func (m *Monitor) SetPolicy(p dispatch.Policy, s dispatch.Sleeper) {
	m.policy = p
	if s != nil {
		m.sleeper = s
	}
}

// SetNotifier registers n to be told about recorded replies.
func (m *Monitor) SetNotifier(n Notifier) {
	m.notifier = n
}

// SetDedupOptions configures the per-session dedup guard.
func (m *Monitor) SetDedupOptions(opts ...dedup.Option) {
	m.dedupOpts = opts
}

// Status returns the board observers read the monitor's status from.
func (m *Monitor) Status() *StatusBoard {
	return m.board
}

// session is the state of one Run call. The registry and catalog are read
// once when it starts; edits made later apply to the next session.
type session struct {
	identity   string
	templates  []model.Template
	guard      *dedup.Guard
	dispatcher *dispatch.Dispatcher
}

// Run starts a monitoring session and blocks until ctx is cancelled or the
// stream fails. Cancellation is a clean stop and returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	m.board.begin(m.now().UTC())
	m.setState(model.StateConnecting)

	err := m.run(ctx)
	switch {
	case err == nil || ctx.Err() != nil:
		m.board.setAction("Stopped")
		m.log.Info("monitor stopped")
		err = nil
	default:
		m.board.setAction("Stopped: " + err.Error())
		m.log.Error("monitor stopped", "error", err)
	}
	m.setState(model.StateStopped)
	return err
}

func (m *Monitor) run(ctx context.Context) error {
	subs, err := m.registry.EffectiveSet()
	if err != nil {
		return fmt.Errorf("%w: resolve subreddits: %w", ErrConfig, err)
	}
	if len(subs) == 0 {
		return ErrNoSubreddits
	}
	templates, err := m.catalog.List()
	if err != nil {
		return fmt.Errorf("%w: load templates: %w", ErrConfig, err)
	}
	identity, err := m.src.Identity(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}
	stream, err := m.src.Open(ctx, subs)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	s := &session{
		identity:   identity,
		templates:  templates,
		guard:      dedup.New(m.src, m.log, m.dedupOpts...),
		dispatcher: dispatch.New(m.src, m.policy, m.sleeper, m.log),
	}
	s.dispatcher.OnRateLimit = func(post model.Post) {
		rateLimits.Inc()
		m.board.count(func(c *model.Counters) { c.RateLimited++ })
		m.board.setAction("Rate limited on " + post.ID + ", cooling down")
	}

	m.board.setSubreddits(subs)
	m.board.setAction(fmt.Sprintf("Monitoring %d subreddits", len(subs)))
	m.log.Info("monitoring started", "identity", identity, "subreddits", len(subs), "templates", len(templates))

	for {
		m.setState(model.StateStreaming)
		post, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		m.process(ctx, s, post)
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (m *Monitor) process(ctx context.Context, s *session, post model.Post) {
	log := m.log.With("post_id", post.ID, "subreddit", post.Subreddit)

	if !s.guard.MarkSeen(post.ID) {
		log.Debug("post already seen this session")
		return
	}
	postsSeen.Inc()
	m.board.count(func(c *model.Counters) { c.Seen++ })

	m.setState(model.StateMatching)
	name, ok := matcher.Match(post.Text(), s.templates)
	if !ok {
		log.Debug("no template matched")
		return
	}
	i := slices.IndexFunc(s.templates, func(t model.Template) bool { return t.Name == name })
	tmpl := s.templates[i]
	postsMatched.WithLabelValues(name).Inc()
	m.board.count(func(c *model.Counters) { c.Matched++ })
	log = log.With("template", name)

	m.setState(model.StateDeduping)
	handled, err := s.guard.AlreadyHandled(ctx, post, s.identity)
	if err != nil {
		log.Warn("could not verify existing replies, skipping", "error", err)
		m.skip("dedup_error")
		return
	}
	if handled {
		log.Info("already replied, skipping")
		m.skip("already_replied")
		return
	}

	m.setState(model.StateReplying)
	h, err := s.dispatcher.Dispatch(ctx, post, tmpl.Body)
	if err != nil {
		if errors.Is(err, source.ErrRateLimited) {
			log.Warn("reply abandoned after rate limit", "error", err)
			m.skip("rate_limited")
			return
		}
		log.Warn("reply failed, skipping", "error", err)
		m.board.count(func(c *model.Counters) { c.Failed++ })
		m.skip("reply_error")
		return
	}

	m.setState(model.StateRecording)
	rec := model.PostRecord{
		PostID:       post.ID,
		Subreddit:    post.Subreddit,
		Title:        post.Title,
		TemplateUsed: name,
		ReplyURL:     h.Permalink,
		Timestamp:    m.now().UTC(),
	}
	if rec.ReplyURL == "" {
		rec.ReplyURL = post.URL
	}
	// The reply is out; record it even if shutdown has begun.
	recordCtx := context.WithoutCancel(ctx)
	if err := m.history.Append(recordCtx, &rec); err != nil {
		log.Error("record reply", "error", err)
	}
	repliesSent.WithLabelValues(name, post.Subreddit).Inc()
	m.board.count(func(c *model.Counters) { c.Replied++ })
	m.board.setAction(fmt.Sprintf("Replied to %s in r/%s with %q", post.ID, post.Subreddit, name))

	if m.notifier != nil {
		m.notifier.NotifyReply(recordCtx, rec)
	}
}

func (m *Monitor) skip(reason string) {
	postsSkipped.WithLabelValues(reason).Inc()
	m.board.count(func(c *model.Counters) { c.Skipped++ })
}

func (m *Monitor) setState(s model.State) {
	m.board.setState(s)
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		sessionState.WithLabelValues(string(st)).Set(v)
	}
}

var allStates = []model.State{
	model.StateIdle,
	model.StateConnecting,
	model.StateStreaming,
	model.StateMatching,
	model.StateDeduping,
	model.StateReplying,
	model.StateRecording,
	model.StateStopped,
}
