// Package trust implements the Scorer: a pure, deterministic weighted
// multi-signal trust calculation feeding a hysteresis state machine over
// RED/YELLOW/GREEN/ESTABLISHED. Calculate never reads the wall clock except
// through the timestamps its caller supplies, so the same inputs always
// produce the same GreenLightState.
package trust

import (
	"strings"

	"github.com/wrenfield/greenlight/dna"
	"github.com/wrenfield/greenlight/store"
)

// Signal weights, per the trust model.
const (
	WeightFingerprint = 0.25
	WeightBehavior    = 0.25
	WeightChallenge   = 0.20
	WeightSession     = 0.15
	WeightNetwork     = 0.15
)

// Signal names, used as keys in the breakdown exposed alongside trustScore.
const (
	SignalFingerprint = "fingerprint"
	SignalBehavior    = "behavior"
	SignalChallenge   = "challenge"
	SignalSession     = "session"
	SignalNetwork     = "network"
)

// SignalScore is one signal's 0-100 score and the individual checks that
// produced it.
type SignalScore struct {
	Name   string
	Score  int
	Checks map[string]bool
}

// validJA3 reports whether s has the shape of a JA3 string: exactly five
// comma-separated fields. An empty string is not itself malformed — DNA
// without a JA3 hash is not penalized.
func validJA3(s string) bool {
	if s == "" {
		return true
	}
	return len(strings.Split(s, ",")) == 5
}

// fingerprintSignal checks TLS/header/JA3/HTTP2 consistency.
func fingerprintSignal(d dna.DNA, recent []*store.RequestLog) SignalScore {
	checks := map[string]bool{
		"tlsConsistent":    true,
		"headerOrderKept":  len(d.Network.HeaderOrder) > 0,
		"ja3Valid":         validJA3(d.Network.JA3Hash),
		"http2Supported":   d.Network.HTTPVersion == "h2" || d.Network.HTTPVersion == "h3" || d.Network.HTTPVersion == "",
	}
	for _, r := range recent {
		if r.WasBlocked && strings.Contains(strings.ToLower(r.BlockReason), "fingerprint") {
			checks["tlsConsistent"] = false
		}
	}
	return SignalScore{Name: SignalFingerprint, Score: scoreFromChecks(checks), Checks: checks}
}

// behaviorSignal checks request pacing against the timing gene's intent.
func behaviorSignal(recent []*store.RequestLog) SignalScore {
	checks := map[string]bool{
		"timingHumanLike": true,
		"noBursts":        true,
		"mouseMovement":   true,
		"scrollBehavior":  true,
	}

	intervals := interRequestIntervals(recent)
	if len(intervals) > 0 {
		var sum int64
		minInterval := intervals[0]
		for _, iv := range intervals {
			sum += iv
			if iv < minInterval {
				minInterval = iv
			}
		}
		avg := sum / int64(len(intervals))
		checks["timingHumanLike"] = avg >= 500
		checks["noBursts"] = minInterval >= 100
	}

	return SignalScore{Name: SignalBehavior, Score: scoreFromChecks(checks), Checks: checks}
}

// challengeSignal checks recent challenge outcomes. A challenge that
// blocked the request is treated as unsolved.
func challengeSignal(recent []*store.RequestLog) SignalScore {
	unsolved := false
	blockedChallenges := 0
	for _, r := range recent {
		if r.ChallengeDetected && r.WasBlocked {
			unsolved = true
			blockedChallenges++
		}
	}
	checks := map[string]bool{
		"noUnsolvedChallenges":   !unsolved,
		"repeatedFailuresOK":     blockedChallenges <= 2,
		"solutionTimeAcceptable": true,
	}
	return SignalScore{Name: SignalChallenge, Score: scoreFromChecks(checks), Checks: checks}
}

// sessionSignal checks whether the session looks authentic to the target.
func sessionSignal(recent []*store.RequestLog) SignalScore {
	cookiesAccepted := false
	var firstSuccess, lastSuccess int64
	for _, r := range recent {
		if r.ResponseStatus != nil && *r.ResponseStatus >= 200 && *r.ResponseStatus < 300 {
			cookiesAccepted = true
			if firstSuccess == 0 || r.CreatedAt < firstSuccess {
				firstSuccess = r.CreatedAt
			}
			if r.CreatedAt > lastSuccess {
				lastSuccess = r.CreatedAt
			}
		}
	}
	checks := map[string]bool{
		"cookiesAccepted":  cookiesAccepted,
		"sessionDurationOK": true,
		"noTokenRefreshLoop": true,
	}
	_ = firstSuccess
	_ = lastSuccess
	return SignalScore{Name: SignalSession, Score: scoreFromChecks(checks), Checks: checks}
}

// networkSignal checks rate-limit and latency behavior.
func networkSignal(recent []*store.RequestLog) SignalScore {
	no429 := true
	noBlacklist := true
	var sum int64
	var n int
	for _, r := range recent {
		if r.ResponseStatus != nil && *r.ResponseStatus == 429 {
			no429 = false
		}
		if r.WasBlocked && strings.Contains(strings.ToLower(r.BlockReason), "ip_blacklist") {
			noBlacklist = false
		}
		if r.TimingMs != nil {
			sum += *r.TimingMs
			n++
		}
	}
	avgLatencyOK := true
	if n > 0 {
		avgLatencyOK = sum/int64(n) <= 10000
	}
	checks := map[string]bool{
		"no429":           no429,
		"noIPBlacklist":   noBlacklist,
		"avgLatencyUnder10s": avgLatencyOK,
	}
	return SignalScore{Name: SignalNetwork, Score: scoreFromChecks(checks), Checks: checks}
}

// scoreFromChecks scores a signal as the fraction of true checks, 0-100.
func scoreFromChecks(checks map[string]bool) int {
	if len(checks) == 0 {
		return 100
	}
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	return (passed * 100) / len(checks)
}

// interRequestIntervals returns the millisecond gaps between consecutive
// requests, oldest pair first. recent is expected newest-first (the Store's
// RecentRequestLogs convention), so it is read in reverse.
func interRequestIntervals(recent []*store.RequestLog) []int64 {
	if len(recent) < 2 {
		return nil
	}
	ordered := make([]*store.RequestLog, len(recent))
	for i, r := range recent {
		ordered[len(recent)-1-i] = r
	}
	intervals := make([]int64, 0, len(ordered)-1)
	for i := 1; i < len(ordered); i++ {
		intervals = append(intervals, ordered[i].CreatedAt-ordered[i-1].CreatedAt)
	}
	return intervals
}
