// Package scheduler keeps monitoring sessions running across failures.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reddit_responder/internal/monitor"
)

// Runner runs one monitoring session until it fails or ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Scheduler restarts monitoring sessions after they stop with an error.
type Scheduler struct {
	runner Runner
	sender Sender
	chatID int64
	log    *slog.Logger
	delay  time.Duration
}

// New creates a Scheduler that waits one minute between sessions.
func New(runner Runner, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		log:    log,
		delay:  1 * time.Minute,
	}
}

// SetRestartDelay overrides the default 1-minute pause before a restart.
func (s *Scheduler) SetRestartDelay(d time.Duration) {
	s.delay = d
}

// SetAlerts sends a message to chatID whenever a session stops with an error.
func (s *Scheduler) SetAlerts(sender Sender, chatID int64) {
	s.sender = sender
	s.chatID = chatID
}

// Run starts sessions back to back, blocking until ctx is cancelled. A
// session that fails with monitor.ErrConfig is reported once and not
// restarted, since the registry or catalog has to be fixed first.
func (s *Scheduler) Run(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		err := s.runner.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("session ended")
		}
		if errors.Is(err, monitor.ErrConfig) {
			s.log.Error("monitoring stopped on configuration error, not restarting", "attempt", attempt, "error", err)
			s.alert(fmt.Sprintf("Monitoring stopped: %v\nFix the configuration and restart the bot.", err))
			return
		}

		s.log.Error("monitoring session stopped, restarting", "attempt", attempt, "delay", s.delay, "error", err)
		s.alert(fmt.Sprintf("Monitoring stopped: %v\nRestarting in %s.", err, s.delay))

		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) alert(text string) {
	if s.sender == nil || s.chatID == 0 {
		return
	}
	s.sender.SendMessage(s.chatID, text)
}
