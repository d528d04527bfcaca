// Package crawler implements the Crawl Engine: one long-running,
// strictly-sequential loop per active target, adapting DNA as it goes.
package crawler

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Crawl modes.
const (
	ModeExplore = "explore"
	ModeObserve = "observe"
	ModeAchieve = "achieve"
)

// Session status values.
const (
	StatusStarting  = "starting"
	StatusRunning   = "running"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrAlreadyRunning is returned by Start when targetId already has an
// active session.
var ErrAlreadyRunning = errors.New("crawler: session already running for target")

// ErrSessionNotFound is returned by Pause/Resume/Stop for an unknown id.
var ErrSessionNotFound = errors.New("crawler: session not found")

// StartRequest describes a new crawl session.
type StartRequest struct {
	TargetID      string
	SeedURL       string
	Mode          string // explore | observe | achieve
	Goal          string
	MaxDuration   time.Duration
	MaxIterations int
}

// Session is the in-memory, ephemeral record of one active or finished
// crawl. Sessions never survive a process restart.
type Session struct {
	ID            string
	TargetID      string
	SeedURL       string
	Mode          string
	Goal          string
	MaxDuration   time.Duration
	MaxIterations int
	StartedAt     time.Time

	mu         sync.Mutex
	status     string
	iterations int
	lastErr    error

	cancel  context.CancelFunc
	paused  chan struct{} // closed while NOT paused; replaced on Pause
	done    chan struct{}
}

// Status returns the session's current status.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Iterations returns how many loop iterations have completed.
func (s *Session) Iterations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iterations
}

// Err returns the error that moved the session to failed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Session) setFailed(err error) {
	s.mu.Lock()
	s.status = StatusFailed
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Session) incIterations() {
	s.mu.Lock()
	s.iterations++
	s.mu.Unlock()
}

// waitIfPaused blocks until the session is resumed or ctx is canceled.
func (s *Session) waitIfPaused(ctx context.Context) error {
	s.mu.Lock()
	gate := s.paused
	s.mu.Unlock()
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
