package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/wrenfield/greenlight/advisor"
	"github.com/wrenfield/greenlight/internal/browser"
	"github.com/wrenfield/greenlight/internal/fetcher"
	"github.com/wrenfield/greenlight/dna"
	"github.com/wrenfield/greenlight/mutator"
	"github.com/wrenfield/greenlight/store"
	"github.com/wrenfield/greenlight/trust"
)

// explorePaths are cycled through in explore mode once a target is clear
// to continue, when no browser-discovered links are available.
var explorePaths = []string{"/", "/blog", "/about", "/contact"}

// iterate runs one full pass of the 9-step adaptive loop and reports
// whether the session is finished (goal achieved).
func (e *Engine) iterate(ctx context.Context, sess *Session, l *slog.Logger) (done bool, err error) {
	// Step 1: load current DNA + recent request window.
	snap, err := e.store.GetActiveDna(ctx, sess.TargetID)
	if err != nil {
		return false, fmt.Errorf("crawler: load active dna: %w", err)
	}
	if snap == nil {
		if _, err := e.mutator.CreateInitial(ctx, sess.TargetID); err != nil {
			return false, fmt.Errorf("crawler: create initial dna: %w", err)
		}
		snap, err = e.store.GetActiveDna(ctx, sess.TargetID)
		if err != nil || snap == nil {
			return false, fmt.Errorf("crawler: reload dna after birth: %w", err)
		}
	}
	d, err := dna.Unmarshal([]byte(snap.DnaJSON))
	if err != nil {
		return false, fmt.Errorf("crawler: unmarshal dna: %w", err)
	}

	recent, err := e.store.RecentRequestLogs(ctx, sess.TargetID, defaultRecentWindow)
	if err != nil {
		return false, fmt.Errorf("crawler: recent request logs: %w", err)
	}

	targetURL := sess.SeedURL
	if len(recent) > 0 && sess.Mode != ModeAchieve {
		// Exploration continues from the seed; achieve mode always tests
		// the seed goal path directly rather than wandering.
	}

	// Step 2+3: acquire pageURL, HTTP-only by default, Browser when the
	// DNA demands JS and the HTTP response alone is insufficient.
	reqCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	logID := e.idgen()
	reqHeaders := headerLogString(d.Network)
	if err := e.store.AppendRequestLog(reqCtx, &store.RequestLog{
		ID: logID, TargetID: sess.TargetID, DnaID: snap.ID,
		Method: "GET", URL: targetURL, RequestHeaders: reqHeaders,
	}); err != nil {
		return false, fmt.Errorf("crawler: append request log: %w", err)
	}

	status, contentType, body, timingMs, fetchErr := e.acquire(reqCtx, d, targetURL)
	if fetchErr != nil {
		// Transient network errors (connection reset, timeout, DNS hiccup)
		// are not fatal: record the failure on the RequestLog, let the
		// Scorer weigh it as a negative signal, and keep iterating.
		if err := e.store.UpdateRequestLogResponse(ctx, logID, store.ResponseUpdate{
			ResponseStatus: 0, WasBlocked: true, BlockReason: fetchErr.Error(),
		}); err != nil {
			return false, fmt.Errorf("crawler: update request log: %w", err)
		}
		postFetchRecent, err := e.store.RecentRequestLogs(ctx, sess.TargetID, defaultRecentWindow)
		if err != nil {
			return false, fmt.Errorf("crawler: recent request logs (post-failure): %w", err)
		}
		if _, _, err := e.scoreAndUpdateTarget(ctx, sess, d, postFetchRecent); err != nil {
			return false, err
		}
		l.Warn("crawler: transient acquire failure", "url", targetURL, "err", fetchErr)
		return sleepCtx(ctx, randomDelay(d.Timing.DelayRange)), nil
	}

	// Step 4: persist response, detect and classify challenges.
	challengeDetected, challengeType := detectChallenge(status, contentType, body)
	blocked := isBlockStatus(status) || challengeDetected
	if err := e.store.UpdateRequestLogResponse(ctx, logID, store.ResponseUpdate{
		ResponseStatus: status, ResponseBodyPreview: previewOf(body),
		WasBlocked: blocked, BlockReason: blockReasonFor(status, challengeDetected, challengeType),
		ChallengeDetected: challengeDetected, ChallengeType: challengeType,
		TimingMs: timingMs,
	}); err != nil {
		return false, fmt.Errorf("crawler: update request log: %w", err)
	}

	if challengeDetected {
		if err := e.adaptOnChallenge(ctx, sess.TargetID, challengeType); err != nil {
			l.Warn("crawler: local challenge adaptation failed", "err", err)
		}
	}

	if len(recent) == 0 && status == 200 && !blocked {
		if err := e.store.AppendLearningEvent(ctx, &store.LearningEvent{
			ID: e.idgen(), TargetID: sess.TargetID, DnaVersionID: snap.ID,
			EventType: store.EventMilestone, Title: "First successful request",
			TrustImpact: 10,
		}); err != nil {
			l.Warn("crawler: append first-success milestone failed", "err", err)
		}
	}

	recent, err = e.store.RecentRequestLogs(ctx, sess.TargetID, defaultRecentWindow)
	if err != nil {
		return false, fmt.Errorf("crawler: recent request logs (post-response): %w", err)
	}

	// Step 5: score trust, persist the green-light state, update the target.
	result, target, err := e.scoreAndUpdateTarget(ctx, sess, d, recent)
	if err != nil {
		return false, err
	}

	// Step 6: if navigation isn't cleared, consult the advisor and mutate.
	if !result.Recommendation.AllowNavigation {
		if err := e.consultAdvisor(ctx, sess, target, d, result, challengeType, l); err != nil {
			l.Warn("crawler: advisor consultation failed", "err", err)
		}
		sleepFor := 2 * time.Duration(d.Timing.DelayRange.Max) * time.Millisecond
		return sleepCtx(ctx, sleepFor), nil
	}

	// Step 7: exploratory sub-request, paced from the DNA delay range.
	delay := randomDelay(d.Timing.DelayRange)
	if sleepCtx(ctx, delay) {
		return true, nil
	}

	// Step 8: in achieve mode, test the goal predicate.
	if sess.Mode == ModeAchieve && goalAchieved(sess.Goal, targetURL, body) {
		if err := e.store.AppendLearningEvent(ctx, &store.LearningEvent{
			ID: e.idgen(), TargetID: sess.TargetID, DnaVersionID: snap.ID,
			EventType: store.EventMilestone, Title: "goal achieved", Description: sess.Goal,
			TrustImpact: 20,
		}); err != nil {
			l.Warn("crawler: append milestone event failed", "err", err)
		}
		return true, nil
	}

	sess.SeedURL = nextExploreURL(targetURL, sess.Mode)
	return false, nil
}

// scoreAndUpdateTarget runs the Scorer over recent, persists the resulting
// GreenLightState, and updates the target's status/greenLightStatus/
// trustScore/maintainedFor/lastSeen. Called from the normal response path
// and from the transient-fetch-error path, so a failed acquisition still
// feeds the Scorer a negative signal instead of aborting the session.
func (e *Engine) scoreAndUpdateTarget(ctx context.Context, sess *Session, d dna.DNA, recent []*store.RequestLog) (trust.Result, *store.Target, error) {
	target, err := e.store.GetTarget(ctx, sess.TargetID)
	if err != nil {
		return trust.Result{}, nil, fmt.Errorf("crawler: get target: %w", err)
	}
	if target == nil {
		return trust.Result{}, nil, fmt.Errorf("crawler: target %s not found", sess.TargetID)
	}

	prev := trust.Previous{Status: target.GreenLightStatus, TrustScore: target.TrustScore, MaintainedFor: target.MaintainedFor, EstablishedAt: target.EstablishedAt}
	result := trust.Calculate(d, recent, prev, time.Now().UnixMilli())

	if err := e.store.PutGreenLightState(ctx, &store.GreenLightState{
		ID: e.idgen(), TargetID: sess.TargetID, Status: result.Status, TrustScore: result.TrustScore,
		SignalsJSON: trust.SignalsJSON(result.Signals), EstablishedAt: result.EstablishedAt, MaintainedFor: result.MaintainedFor,
	}); err != nil {
		return trust.Result{}, nil, fmt.Errorf("crawler: put green light state: %w", err)
	}

	targetStatus := targetStatusFor(result.Status)
	patch := store.TargetPatch{
		Status:           &targetStatus,
		GreenLightStatus: &result.Status,
		TrustScore:       &result.TrustScore,
		MaintainedFor:    &result.MaintainedFor,
		LastSeen:         int64Ptr(time.Now().UnixMilli()),
	}
	if result.EstablishedAt != nil {
		patch.EstablishedAt = result.EstablishedAt
	} else if target.EstablishedAt != nil {
		patch.ClearEstablished = true
	}
	if err := e.store.UpdateTargetFields(ctx, sess.TargetID, patch); err != nil {
		return trust.Result{}, nil, fmt.Errorf("crawler: update target: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordSimple("scorer.decay_rate", result.DecayRate, "points")
		e.metrics.RecordSimple("scorer.trust_score", float64(result.TrustScore), "points")
	}

	return result, target, nil
}

// acquire performs the HTTP-only fetch, escalating to the Browser path
// when the DNA demands JS and the HTTP response alone was insufficient.
func (e *Engine) acquire(ctx context.Context, d dna.DNA, pageURL string) (status int, contentType string, body []byte, timingMs int64, err error) {
	hdrs := fetcher.Headers{Ordered: d.Network.HeaderOrder, Values: d.Network.Headers}
	resp, fetchErr := e.fetcher.Fetch(ctx, pageURL, hdrs)
	if fetchErr != nil {
		return 0, "", nil, 0, fetchErr
	}

	if !resp.Sufficient && d.Capabilities.JSEnabled && e.browser != nil {
		tab, tabErr := browser.OpenTab(ctx, e.browser, pageURL, e.idgen(), browser.LevelHeadless)
		if tabErr != nil {
			// Fall back to the HTTP-only result; the browser escalation is
			// best-effort, not a hard requirement.
			return resp.StatusCode, resp.ContentType, resp.Body, resp.TimingMs, nil
		}
		defer tab.Close()

		dom, domErr := tab.GetFullDOM(ctx)
		if domErr == nil {
			return resp.StatusCode, "text/html", dom, resp.TimingMs, nil
		}
	}

	return resp.StatusCode, resp.ContentType, resp.Body, resp.TimingMs, nil
}

// adaptOnChallenge widens the timing gene's delay range and records a
// challenge LearningEvent, independent of any advisor consultation.
func (e *Engine) adaptOnChallenge(ctx context.Context, targetID, challengeType string) error {
	snap, err := e.store.GetActiveDna(ctx, targetID)
	if err != nil || snap == nil {
		return err
	}
	d, err := dna.Unmarshal([]byte(snap.DnaJSON))
	if err != nil {
		return err
	}

	patch := map[string]any{
		"delayRange": map[string]any{
			"min": d.Timing.DelayRange.Min + 500,
			"max": d.Timing.DelayRange.Max + 1000,
		},
	}

	res, err := e.mutator.Mutate(ctx, targetID, mutator.Proposal{
		Gene: dna.GeneTiming, Patch: patch,
		Reason: "challenge encountered: " + challengeType, Confidence: 1, RiskLevel: "low",
	})
	if err != nil {
		return err
	}

	return e.store.AppendLearningEvent(ctx, &store.LearningEvent{
		ID: e.idgen(), TargetID: targetID, DnaVersionID: res.SnapshotID,
		EventType: store.EventChallenge, Title: "challenge encountered", Description: challengeType,
		ChallengeType: challengeType, TrustImpact: -5,
	})
}

// consultAdvisor asks the Advisor Bridge for guidance and applies any
// mutation it proposes.
func (e *Engine) consultAdvisor(ctx context.Context, sess *Session, target *store.Target, d dna.DNA, result trust.Result, challengeType string, l *slog.Logger) error {
	if e.advisor == nil {
		return nil
	}

	dnaMap := dnaToMap(d)

	var challengeView *advisor.ChallengeView
	if challengeType != "" {
		challengeView = &advisor.ChallengeView{Type: challengeType}
	}

	reqCtx := advisor.Context{
		Target: advisor.TargetSummary{
			ID: target.ID, URL: target.URL, Status: target.Status,
			GreenLightStatus: result.Status, TrustScore: result.TrustScore,
		},
		CurrentDNA: dnaMap,
		Challenge:  challengeView,
	}

	resp, err := e.advisor.Analyze(ctx, reqCtx)
	if err != nil {
		return err
	}

	for _, m := range resp.Mutations {
		if _, err := e.mutator.Mutate(ctx, sess.TargetID, mutator.Proposal{
			Gene: m.Gene, Patch: m.Change, Reason: m.Reason, Confidence: m.Confidence, RiskLevel: m.RiskLevel,
		}); err != nil {
			l.Warn("crawler: advisor mutation failed", "gene", m.Gene, "err", err)
		}
	}
	return nil
}

func dnaToMap(d dna.DNA) map[string]any {
	b, err := dna.Marshal(d)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := jsonUnmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

func randomDelay(r dna.DelayRange) time.Duration {
	if r.Max <= r.Min {
		return time.Duration(r.Min) * time.Millisecond
	}
	span := r.Max - r.Min
	return time.Duration(r.Min+rand.Intn(span)) * time.Millisecond
}

// sleepCtx sleeps for d or until ctx is canceled, returning true if it
// was canceled (the caller should treat the session as finished).
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-ctx.Done():
		return true
	}
}

func previewOf(body []byte) string {
	const max = 2048
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}

func headerLogString(n dna.Network) string {
	var sb strings.Builder
	for i, name := range n.HeaderOrder {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(n.Headers[name])
	}
	return sb.String()
}

func int64Ptr(v int64) *int64 { return &v }

// targetStatusFor derives the target's domain-progress status from its
// freshly-scored green-light status: RED means no evidence of progress
// yet (discovering), YELLOW/GREEN mean evidence is accumulating
// (learning), ESTABLISHED is established.
func targetStatusFor(glStatus string) string {
	switch glStatus {
	case store.GreenLightEstablished:
		return store.StatusEstablished
	case store.GreenLightYellow, store.GreenLightGreen:
		return store.StatusLearning
	default:
		return store.StatusDiscovering
	}
}

// nextExploreURL picks the next path to visit. Achieve mode always
// retargets the seed (the goal is tested against it directly); explore
// and observe modes cycle through a small fixed set of common paths.
func nextExploreURL(current, mode string) string {
	if mode == ModeAchieve {
		return current
	}
	u, err := url.Parse(current)
	if err != nil {
		return current
	}
	next := explorePaths[0]
	for i, p := range explorePaths {
		if p == u.Path {
			next = explorePaths[(i+1)%len(explorePaths)]
			break
		}
	}
	u.Path = next
	u.RawQuery = ""
	return u.String()
}
