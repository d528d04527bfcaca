package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wrenfield/greenlight/advisor"
	"github.com/wrenfield/greenlight/internal/fetcher"
	"github.com/wrenfield/greenlight/mutator"
	"github.com/wrenfield/greenlight/store"
)

func slogNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, srv *httptest.Server) (*Engine, *store.Store) {
	t.Helper()
	st := store.OpenMemory(t)
	mut := mutator.New(st)
	f := fetcher.New(fetcher.WithClient(srv.Client()))
	adv := advisor.New(advisor.OfflineClient{})
	eng := New(st, mut, f, adv, WithRequestTimeout(2*time.Second))
	return eng, st
}

// TestColdStart mirrors SPEC_FULL.md's end-to-end cold-start scenario: a
// target's first iteration against a 200/"welcome" response creates the
// birth DNA, logs the request unblocked, records the first-success
// milestone, and raises the target into YELLOW.
func TestColdStart(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("welcome"))
	}))
	defer srv.Close()

	eng, st := newTestEngine(t, srv)

	target := &store.Target{ID: "t1", URL: srv.URL}
	if err := st.CreateTarget(ctx, target); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	sess, err := eng.Start(ctx, StartRequest{
		TargetID: "t1", SeedURL: srv.URL, Mode: ModeObserve, MaxIterations: 1,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitForSession(t, sess)

	if sess.Status() != StatusCompleted {
		t.Errorf("expected session to complete, got %q (err=%v)", sess.Status(), sess.Err())
	}

	snap, err := st.GetActiveDna(ctx, "t1")
	if err != nil {
		t.Fatalf("GetActiveDna: %v", err)
	}
	if snap == nil {
		t.Fatal("expected an active DNA snapshot to have been created")
	}
	if snap.Version != "1.0.0" {
		t.Errorf("Version = %q, want 1.0.0", snap.Version)
	}

	logs, err := st.RecentRequestLogs(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("RecentRequestLogs: %v", err)
	}
	if len(logs) == 0 {
		t.Fatal("expected at least one request log")
	}
	first := logs[len(logs)-1]
	if first.ResponseStatus == nil || *first.ResponseStatus != 200 {
		t.Errorf("ResponseStatus = %v, want 200", first.ResponseStatus)
	}
	if first.WasBlocked {
		t.Error("expected WasBlocked = false")
	}
	if first.ChallengeDetected {
		t.Error("expected ChallengeDetected = false")
	}

	events, err := st.RecentLearningEvents(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("RecentLearningEvents: %v", err)
	}
	var sawMilestone bool
	for _, e := range events {
		if e.EventType == store.EventMilestone && e.Title == "First successful request" {
			sawMilestone = true
			if e.TrustImpact != 10 {
				t.Errorf("milestone TrustImpact = %d, want 10", e.TrustImpact)
			}
		}
	}
	if !sawMilestone {
		t.Error("expected a 'First successful request' milestone LearningEvent")
	}

	updated, err := st.GetTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if updated.TrustScore < 25 {
		t.Errorf("TrustScore = %d, want >= 25 (YELLOW threshold)", updated.TrustScore)
	}
	if updated.GreenLightStatus != store.GreenLightYellow {
		t.Errorf("GreenLightStatus = %q, want %q", updated.GreenLightStatus, store.GreenLightYellow)
	}
	if updated.Status != store.StatusLearning {
		t.Errorf("Status = %q, want %q", updated.Status, store.StatusLearning)
	}
}

// TestTransientFetchFailureContinuesSession covers SPEC_FULL.md §7's
// transient-network-error taxonomy: acquire failures are recorded and
// scored, never fatal to the session.
func TestTransientFetchFailureContinuesSession(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "connection reset", http.StatusServiceUnavailable)
	}))
	srv.Close() // closed server: every request fails at the transport level

	eng, st := newTestEngine(t, srv)
	if err := st.CreateTarget(ctx, &store.Target{ID: "t1", URL: srv.URL}); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	sess, err := eng.Start(ctx, StartRequest{
		TargetID: "t1", SeedURL: srv.URL, Mode: ModeObserve, MaxIterations: 2,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForSession(t, sess)

	if sess.Status() != StatusCompleted {
		t.Errorf("expected session to complete despite fetch failures, got %q (err=%v)", sess.Status(), sess.Err())
	}

	logs, err := st.RecentRequestLogs(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("RecentRequestLogs: %v", err)
	}
	if len(logs) == 0 {
		t.Fatal("expected request logs to be recorded despite fetch failures")
	}
	for _, lg := range logs {
		if !lg.WasBlocked {
			t.Error("expected every failed-fetch log to be marked WasBlocked")
		}
	}

	updated, err := st.GetTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if updated.GreenLightStatus != store.GreenLightRed {
		t.Errorf("GreenLightStatus = %q, want %q after repeated failures", updated.GreenLightStatus, store.GreenLightRed)
	}
}

func TestEngine_AlreadyRunning(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("welcome"))
	}))
	defer srv.Close()

	eng, st := newTestEngine(t, srv)
	if err := st.CreateTarget(ctx, &store.Target{ID: "t1", URL: srv.URL}); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	sess, err := eng.Start(ctx, StartRequest{TargetID: "t1", SeedURL: srv.URL, MaxIterations: 5})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		eng.Stop(sess.ID)
		waitForSession(t, sess)
	}()

	if _, err := eng.Start(ctx, StartRequest{TargetID: "t1", SeedURL: srv.URL}); err != ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestEngine_UnknownSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	eng, _ := newTestEngine(t, srv)

	if err := eng.Pause("missing"); err != ErrSessionNotFound {
		t.Errorf("Pause: expected ErrSessionNotFound, got %v", err)
	}
	if err := eng.Resume("missing"); err != ErrSessionNotFound {
		t.Errorf("Resume: expected ErrSessionNotFound, got %v", err)
	}
	if err := eng.Stop("missing"); err != ErrSessionNotFound {
		t.Errorf("Stop: expected ErrSessionNotFound, got %v", err)
	}
}

// TestRecordSessionFailure covers SPEC_FULL.md §7's invariant-violation
// failure path: the target's status records the failure and a terminal
// LearningEvent describes the cause.
func TestRecordSessionFailure(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	eng, st := newTestEngine(t, srv)

	if err := st.CreateTarget(ctx, &store.Target{ID: "t1", URL: srv.URL, Status: store.StatusLearning}); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	sess := &Session{ID: "s1", TargetID: "t1"}
	cause := fmt.Errorf("crawler: invariant violation: missing active dna")
	eng.recordSessionFailure(sess, cause, slogNop())

	updated, err := st.GetTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if updated.Status != store.StatusFailed {
		t.Errorf("Status = %q, want %q", updated.Status, store.StatusFailed)
	}

	events, err := st.RecentLearningEvents(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("RecentLearningEvents: %v", err)
	}
	var sawFailure bool
	for _, e := range events {
		if e.EventType == store.EventFailure {
			sawFailure = true
			if e.Description != cause.Error() {
				t.Errorf("failure event Description = %q, want %q", e.Description, cause.Error())
			}
		}
	}
	if !sawFailure {
		t.Error("expected a failure LearningEvent")
	}
}

// TestRecordSessionFailure_NeverAdvanced covers the "learning" alternative
// for a target that was still discovering when its session failed.
func TestRecordSessionFailure_NeverAdvanced(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	eng, st := newTestEngine(t, srv)

	if err := st.CreateTarget(ctx, &store.Target{ID: "t1", URL: srv.URL}); err != nil {
		t.Fatalf("CreateTarget: %v", err)
	}

	sess := &Session{ID: "s1", TargetID: "t1"}
	eng.recordSessionFailure(sess, fmt.Errorf("boom"), slogNop())

	updated, err := st.GetTarget(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTarget: %v", err)
	}
	if updated.Status != store.StatusLearning {
		t.Errorf("Status = %q, want %q", updated.Status, store.StatusLearning)
	}
}

func waitForSession(t *testing.T, sess *Session) {
	t.Helper()
	deadline := time.After(8 * time.Second)
	for {
		switch sess.Status() {
		case StatusCompleted, StatusFailed:
			return
		}
		select {
		case <-deadline:
			t.Fatalf("session %s did not finish in time (status=%s)", sess.ID, sess.Status())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
