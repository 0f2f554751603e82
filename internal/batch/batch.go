// Package batch replays a fixed list of example questions through the
// controller, one at a time. Advancement is chained off the completed
// exchange rather than a free-running timer, so an in-flight request can
// never be overlapped or raced.
package batch

import (
	"context"
	"time"

	"github.com/0DidUStudy/ragchat/internal/logger"
)

// Submitter is satisfied by *controller.Controller.
type Submitter interface {
	Submit(ctx context.Context, text string) bool
}

// Runner paces an ordered list of questions through the submitter.
type Runner struct {
	submitter Submitter
	questions []string
	interval  time.Duration
}

// NewRunner builds a runner with the given pacing interval between
// consecutive questions.
func NewRunner(s Submitter, questions []string, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Runner{submitter: s, questions: questions, interval: interval}
}

// Run replays the questions in order and returns how many were submitted.
// Each Submit blocks until the exchange completes, so the next item only
// dispatches once the controller is Idle again. A rejected submission is
// logged and skipped, never retried. Cancelling the context stops the run
// between items.
func (r *Runner) Run(ctx context.Context) int {
	submitted := 0
	for i, q := range r.questions {
		if ctx.Err() != nil {
			return submitted
		}
		if r.submitter.Submit(ctx, q) {
			submitted++
		} else {
			logger.L.Warn("example question skipped", "index", i, "question", q)
		}
		if i == len(r.questions)-1 {
			break
		}
		select {
		case <-ctx.Done():
			return submitted
		case <-time.After(r.interval):
		}
	}
	return submitted
}
