package trust

import (
	"encoding/json"
	"math"

	"github.com/wrenfield/greenlight/dna"
	"github.com/wrenfield/greenlight/store"
)

// Green-light status values, mirrored from store's constants for
// convenience so callers need not import store just to branch on status.
const (
	StatusRed         = store.GreenLightRed
	StatusYellow      = store.GreenLightYellow
	StatusGreen       = store.GreenLightGreen
	StatusEstablished = store.GreenLightEstablished
)

// Hysteresis thresholds.
const (
	thresholdYellow      = 25
	thresholdGreen       = 50
	thresholdEstablished = 75
	thresholdDemote       = 70
)

// Previous is the caller-supplied prior GreenLightState a tick advances
// from. A zero value is the correct starting point for a target's first
// Calculate call (RED, score 0, maintainedFor 0).
type Previous struct {
	Status        string
	TrustScore    int
	MaintainedFor int
	EstablishedAt *int64
}

// Result is the outcome of one Scorer tick.
type Result struct {
	Status        string
	TrustScore    int
	Signals       []SignalScore
	MaintainedFor int
	EstablishedAt *int64
	DecayRate     float64
	Recommendation Recommendation
}

// Recommendation is the navigation policy attached to a green-light status.
type Recommendation struct {
	AllowNavigation bool
	MaxRPS          float64
	ReadOnly        bool
}

func recommendationFor(status string) Recommendation {
	switch status {
	case StatusRed:
		return Recommendation{AllowNavigation: false, MaxRPS: 0, ReadOnly: true}
	case StatusYellow:
		return Recommendation{AllowNavigation: true, MaxRPS: 1.0 / 3.0, ReadOnly: true}
	case StatusGreen:
		return Recommendation{AllowNavigation: true, MaxRPS: 3, ReadOnly: false}
	case StatusEstablished:
		return Recommendation{AllowNavigation: true, MaxRPS: math.Inf(1), ReadOnly: false}
	default:
		return Recommendation{AllowNavigation: false, MaxRPS: 0, ReadOnly: true}
	}
}

// statusRank orders statuses for the one-level-per-tick transition rule.
var statusRank = map[string]int{
	StatusRed:         0,
	StatusYellow:       1,
	StatusGreen:        2,
	StatusEstablished:  3,
}

// Calculate computes a fresh trust score from dna and recentRequests and
// advances prev's status by at most one level, applying hysteresis.
// nowMillis is supplied by the caller (never read from the wall clock
// here), keeping Calculate pure: identical inputs always produce an
// identical Result.
func Calculate(d dna.DNA, recentRequests []*store.RequestLog, prev Previous, nowMillis int64) Result {
	signals := []SignalScore{
		fingerprintSignal(d, recentRequests),
		behaviorSignal(recentRequests),
		challengeSignal(recentRequests),
		sessionSignal(recentRequests),
		networkSignal(recentRequests),
	}

	weights := map[string]float64{
		SignalFingerprint: WeightFingerprint,
		SignalBehavior:    WeightBehavior,
		SignalChallenge:   WeightChallenge,
		SignalSession:     WeightSession,
		SignalNetwork:     WeightNetwork,
	}

	var weighted float64
	for _, sig := range signals {
		weighted += weights[sig.Name] * float64(sig.Score)
	}
	score := int(math.Round(weighted))

	targetStatus := statusForScore(score)
	if prev.Status == StatusEstablished && score >= thresholdDemote {
		// Hysteresis band: once ESTABLISHED, only a drop below
		// thresholdDemote (70) triggers a demotion, even though the
		// promotion threshold is 75.
		targetStatus = StatusEstablished
	}
	nextStatus := step(prev.Status, targetStatus)

	maintainedFor := prev.MaintainedFor
	establishedAt := prev.EstablishedAt

	if nextStatus == StatusEstablished {
		if prev.Status != StatusEstablished {
			ts := nowMillis
			establishedAt = &ts
			maintainedFor = 0
		} else {
			maintainedFor++
		}
	} else {
		if prev.Status == StatusEstablished {
			maintainedFor = 0
		}
		establishedAt = nil
	}

	decay := math.Max(0, float64(prev.TrustScore-score)) * 0.1

	return Result{
		Status:         nextStatus,
		TrustScore:     score,
		Signals:        signals,
		MaintainedFor:  maintainedFor,
		EstablishedAt:  establishedAt,
		DecayRate:      decay,
		Recommendation: recommendationFor(nextStatus),
	}
}

// statusForScore maps a raw score to the status it would occupy with no
// hysteresis applied.
func statusForScore(score int) string {
	switch {
	case score >= thresholdEstablished:
		return StatusEstablished
	case score >= thresholdGreen:
		return StatusGreen
	case score >= thresholdYellow:
		return StatusYellow
	default:
		return StatusRed
	}
}

// step advances from to target by at most one rank per tick, with the
// ESTABLISHED->GREEN demotion additionally gated on dropping below
// thresholdDemote (handled by Calculate, which passes ESTABLISHED as the
// target while a previously ESTABLISHED score stays at or above
// thresholdDemote).
func step(from, target string) string {
	if from == "" {
		from = StatusRed
	}
	fromRank := statusRank[from]
	targetRank := statusRank[target]

	if from == StatusEstablished && target != StatusEstablished {
		return StatusGreen
	}

	if targetRank > fromRank {
		return rankToStatus(fromRank + 1)
	}
	if targetRank < fromRank {
		return rankToStatus(fromRank - 1)
	}
	return from
}

func rankToStatus(rank int) string {
	for status, r := range statusRank {
		if r == rank {
			return status
		}
	}
	return StatusRed
}

// SignalsJSON serializes a breakdown for storage in GreenLightState.SignalsJSON.
func SignalsJSON(signals []SignalScore) string {
	b, err := json.Marshal(signals)
	if err != nil {
		return "[]"
	}
	return string(b)
}
