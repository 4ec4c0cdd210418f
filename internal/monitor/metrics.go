package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postsSeen = promauto.NewCounter(prometheus.CounterOpts{
	Name: "responder_posts_seen_total",
	Help: "Number of new posts read from the stream",
})

var postsMatched = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "responder_posts_matched_total",
	Help: "Number of posts that selected a template",
}, []string{"template"})

var postsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "responder_posts_skipped_total",
	Help: "Number of matched posts that were not replied to",
}, []string{"reason"})

var repliesSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "responder_replies_sent_total",
	Help: "Number of replies posted",
}, []string{"template", "subreddit"})

var rateLimits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "responder_rate_limits_total",
	Help: "Number of replies refused because of rate limiting",
})

var sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "responder_session_state",
	Help: "1 for the monitor's current state, 0 otherwise",
}, []string{"state"})
