// Package server exposes monitor status, reply history and metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reddit_responder/internal/model"
	"reddit_responder/internal/storage"
)

const defaultHistoryLimit = 50

// StatusSource provides the monitor's current status.
type StatusSource interface {
	Snapshot() model.Status
}

// Server serves the read-only status API.
type Server struct {
	status  StatusSource
	history storage.History
	log     *slog.Logger
	now     func() time.Time
	router  *chi.Mux
}

// New creates a Server and registers its routes.
func New(status StatusSource, history storage.History, log *slog.Logger) *Server {
	s := &Server{
		status:  status,
		history: history,
		log:     log,
		now:     time.Now,
		router:  chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/metrics", promhttp.Handler().ServeHTTP)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Get("/stats", s.handleStats)
	})
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

type countersResponse struct {
	Seen        int `json:"seen"`
	Matched     int `json:"matched"`
	Replied     int `json:"replied"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	RateLimited int `json:"rate_limited"`
}

type statusResponse struct {
	State          model.State      `json:"state"`
	Running        bool             `json:"running"`
	LastAction     string           `json:"last_action"`
	SessionStart   *time.Time       `json:"session_start"`
	RuntimeSeconds int64            `json:"runtime_seconds"`
	Subreddits     []string         `json:"subreddits"`
	Counters       countersResponse `json:"counters"`
	Timestamp      time.Time        `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.status.Snapshot()
	now := s.now().UTC()

	resp := statusResponse{
		State:        st.State,
		Running:      st.Running(),
		LastAction:   st.LastAction,
		SessionStart: st.SessionStart,
		Subreddits:   st.Subreddits,
		Counters:     countersResponse(st.Counters),
		Timestamp:    now,
	}
	if resp.Subreddits == nil {
		resp.Subreddits = []string{}
	}
	if st.Running() && st.SessionStart != nil {
		resp.RuntimeSeconds = int64(now.Sub(*st.SessionStart).Seconds())
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type recordResponse struct {
	PostID       string    `json:"post_id"`
	Subreddit    string    `json:"subreddit"`
	Title        string    `json:"title"`
	TemplateUsed string    `json:"template_used"`
	URL          string    `json:"url"`
	Timestamp    time.Time `json:"timestamp"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := storage.Query{
		Limit:     defaultHistoryLimit,
		Subreddit: r.URL.Query().Get("subreddit"),
		Template:  r.URL.Query().Get("template"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		q.Limit = n
	}

	recs, err := s.history.Query(r.Context(), q)
	if err != nil {
		s.log.Error("query history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}

	resp := make([]recordResponse, len(recs))
	for i, rec := range recs {
		resp[i] = recordResponse{
			PostID:       rec.PostID,
			Subreddit:    rec.Subreddit,
			Title:        rec.Title,
			TemplateUsed: rec.TemplateUsed,
			URL:          rec.ReplyURL,
			Timestamp:    rec.Timestamp,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Total       int            `json:"total"`
	BySubreddit map[string]int `json:"by_subreddit"`
	ByTemplate  map[string]int `json:"by_template"`
	FirstPost   *time.Time     `json:"first_post"`
	LastPost    *time.Time     `json:"last_post"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.history.Stats(r.Context())
	if err != nil {
		s.log.Error("history stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:       st.Total,
		BySubreddit: st.BySubreddit,
		ByTemplate:  st.ByTemplate,
		FirstPost:   st.First,
		LastPost:    st.Last,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
