package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wrenfield/greenlight/advisor"
	"github.com/wrenfield/greenlight/internal/browser"
	"github.com/wrenfield/greenlight/internal/fetcher"
	"github.com/wrenfield/greenlight/idgen"
	"github.com/wrenfield/greenlight/mutator"
	"github.com/wrenfield/greenlight/observability"
	"github.com/wrenfield/greenlight/store"
)

// defaultRecentWindow is how many past request logs feed the Scorer and
// the local challenge-adaptation check on each iteration.
const defaultRecentWindow = 20

// Engine owns the crawl loop and tracks one Session per active target —
// RegisterLocal-style callers (e.g. the connectivity Router) drive it
// through Start/Pause/Resume/Stop.
type Engine struct {
	store    *store.Store
	mutator  *mutator.Mutator
	fetcher  *fetcher.Fetcher
	browser  *browser.Manager // nil disables the browser acquisition path
	advisor  *advisor.Advisor
	metrics  *observability.MetricsManager // optional; nil disables metric emission
	idgen    idgen.Generator
	logger   *slog.Logger

	requestTimeout time.Duration

	mu        sync.Mutex
	sessions  map[string]*Session
	byTarget  map[string]string // targetID -> sessionID, only while running
}

// Option configures an Engine.
type Option func(*Engine)

// WithBrowser enables the Browser acquisition path for capability-gated
// escalation.
func WithBrowser(mgr *browser.Manager) Option {
	return func(e *Engine) { e.browser = mgr }
}

// WithMetrics wires a MetricsManager for per-iteration instrumentation.
func WithMetrics(m *observability.MetricsManager) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRequestTimeout overrides the default 15s per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) { e.requestTimeout = d }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithIDGenerator overrides the session/log ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(e *Engine) { e.idgen = gen }
}

// New builds an Engine over the given store, mutator, fetcher, and
// advisor. The browser path and metrics are optional.
func New(s *store.Store, mut *mutator.Mutator, f *fetcher.Fetcher, adv *advisor.Advisor, opts ...Option) *Engine {
	e := &Engine{
		store:          s,
		mutator:        mut,
		fetcher:        f,
		advisor:        adv,
		idgen:          idgen.Prefixed("session_", idgen.Default),
		logger:         slog.Default(),
		requestTimeout: 15 * time.Second,
		sessions:       make(map[string]*Session),
		byTarget:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches a new crawl session for req.TargetID. Returns
// ErrAlreadyRunning if a session for that target is already active.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if req.Mode == "" {
		req.Mode = ModeExplore
	}
	if req.MaxDuration <= 0 {
		req.MaxDuration = 30 * time.Minute
	}
	if req.MaxIterations <= 0 {
		req.MaxIterations = 200
	}

	e.mu.Lock()
	if _, running := e.byTarget[req.TargetID]; running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}

	sess := &Session{
		ID:            e.idgen(),
		TargetID:      req.TargetID,
		SeedURL:       req.SeedURL,
		Mode:          req.Mode,
		Goal:          req.Goal,
		MaxDuration:   req.MaxDuration,
		MaxIterations: req.MaxIterations,
		StartedAt:     time.Now(),
		status:        StatusStarting,
		paused:        closedChan(),
		done:          make(chan struct{}),
	}
	runCtx, cancel := context.WithTimeout(context.Background(), req.MaxDuration)
	sess.cancel = cancel

	e.sessions[sess.ID] = sess
	e.byTarget[req.TargetID] = sess.ID
	e.mu.Unlock()

	go e.run(runCtx, sess)

	return sess, nil
}

// Pause suspends a running session between iterations. A paused session
// holds its resources open and resumes where it left off.
func (e *Engine) Pause(id string) error {
	sess, err := e.get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	if sess.status == StatusRunning {
		sess.paused = make(chan struct{})
		sess.status = StatusPaused
	}
	sess.mu.Unlock()
	return nil
}

// Resume unpauses a session paused via Pause.
func (e *Engine) Resume(id string) error {
	sess, err := e.get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	if sess.status == StatusPaused {
		close(sess.paused)
		sess.status = StatusRunning
	}
	sess.mu.Unlock()
	return nil
}

// Stop cancels a running or paused session, releasing its resources. The
// session transitions to completed once its loop observes the cancellation.
func (e *Engine) Stop(id string) error {
	sess, err := e.get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	if sess.status == StatusPaused {
		close(sess.paused)
	}
	sess.mu.Unlock()
	sess.cancel()
	return nil
}

// Get returns the session record for id.
func (e *Engine) Get(id string) (*Session, error) {
	return e.get(id)
}

func (e *Engine) get(id string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (e *Engine) release(sess *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.byTarget[sess.TargetID] == sess.ID {
		delete(e.byTarget, sess.TargetID)
	}
}

// recordSessionFailure is the terminal half of an invariant-violation
// failure (SPEC_FULL.md §7): the target's status moves to failed (or
// learning, if it never advanced past discovering) and a final
// LearningEvent records the cause, so the failure is visible on the
// target row rather than only in the process log. Uses a fresh,
// short-lived context since the session's own context may already be
// past its deadline.
func (e *Engine) recordSessionFailure(sess *Session, cause error, l *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	target, err := e.store.GetTarget(ctx, sess.TargetID)
	if err != nil || target == nil {
		l.Warn("crawler: load target for failure recording", "err", err)
		return
	}

	status := store.StatusFailed
	if target.Status == store.StatusDiscovering {
		status = store.StatusLearning
	}
	if err := e.store.UpdateTargetFields(ctx, sess.TargetID, store.TargetPatch{Status: &status}); err != nil {
		l.Warn("crawler: set target status after failure", "err", err)
	}

	if err := e.store.AppendLearningEvent(ctx, &store.LearningEvent{
		ID: e.idgen(), TargetID: sess.TargetID, DnaVersionID: target.CurrentDnaID,
		EventType: store.EventFailure, Title: "session failed", Description: cause.Error(),
	}); err != nil {
		l.Warn("crawler: append failure learning event", "err", err)
	}
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

// run drives a session's full lifecycle: the 9-step loop, until Stop,
// max-iterations, max-duration, or goal achievement ends it.
func (e *Engine) run(ctx context.Context, sess *Session) {
	defer close(sess.done)
	defer e.release(sess)
	defer sess.cancel()

	sess.setStatus(StatusRunning)

	var hb *observability.HeartbeatWriter
	if e.store != nil && e.store.DB != nil {
		hb = observability.NewHeartbeatWriter(e.store.DB, fmt.Sprintf("crawler:%s", sess.ID), 10*time.Second)
		hb.Start(ctx)
		defer hb.Stop()
	}

	l := e.logger.With("session", sess.ID, "target", sess.TargetID, "mode", sess.Mode)
	l.Info("crawler: session starting", "seed", sess.SeedURL)

	for {
		if ctx.Err() != nil {
			sess.setStatus(StatusCompleted)
			l.Info("crawler: session ending", "reason", ctx.Err())
			return
		}
		if sess.Iterations() >= sess.MaxIterations {
			sess.setStatus(StatusCompleted)
			l.Info("crawler: session reached max iterations")
			return
		}

		if err := sess.waitIfPaused(ctx); err != nil {
			sess.setStatus(StatusCompleted)
			return
		}

		done, err := e.iterate(ctx, sess, l)
		if err != nil {
			sess.setFailed(err)
			l.Error("crawler: iteration failed", "err", err)
			e.recordSessionFailure(sess, err, l)
			return
		}
		sess.incIterations()
		if done {
			sess.setStatus(StatusCompleted)
			return
		}
	}
}
