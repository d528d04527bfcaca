package trust

import (
	"testing"

	"github.com/wrenfield/greenlight/dna"
	"github.com/wrenfield/greenlight/store"
)

func TestCalculateEmptyRecentRequestsIsWellDefined(t *testing.T) {
	d := dna.DefaultProfile()
	res := Calculate(d, nil, Previous{}, 1000)

	var behavior, session SignalScore
	for _, sig := range res.Signals {
		switch sig.Name {
		case SignalBehavior:
			behavior = sig
		case SignalSession:
			session = sig
		}
	}
	if behavior.Score != 100 {
		t.Errorf("behavior.Score = %d, want 100 (checks pass by vacuity with no requests)", behavior.Score)
	}
	if session.Checks["cookiesAccepted"] {
		t.Error("session signal reports cookiesAccepted=true with zero requests, want false")
	}
	// RED only ever advances one level per tick, regardless of how high the
	// raw score is with no prior history.
	if res.Status != StatusYellow {
		t.Errorf("Status = %q, want YELLOW (one-level advance from the zero-value RED prior)", res.Status)
	}
}

func TestCalculateOneLevelPerTick(t *testing.T) {
	d := dna.DefaultProfile()

	var recent []*store.RequestLog
	base := int64(1_000_000)
	for i := 0; i < 5; i++ {
		status := 200
		timing := int64(300)
		recent = append(recent, &store.RequestLog{
			CreatedAt:      base + int64(i)*2000,
			ResponseStatus: &status,
			TimingMs:       &timing,
		})
	}

	res := Calculate(d, recent, Previous{Status: StatusRed, TrustScore: 0}, base+10000)
	if res.TrustScore < thresholdGreen {
		t.Fatalf("expected a healthy score to exercise the transition cap, got %d", res.TrustScore)
	}
	if res.Status != StatusYellow {
		t.Errorf("Status = %q, want YELLOW (RED can only advance one level even though score qualifies higher)", res.Status)
	}
}

func TestCalculateEstablishedHysteresis(t *testing.T) {
	d := dna.DefaultProfile()

	var recent []*store.RequestLog
	base := int64(1_000_000)
	for i := 0; i < 5; i++ {
		status := 200
		timing := int64(300)
		recent = append(recent, &store.RequestLog{
			CreatedAt:      base + int64(i)*2000,
			ResponseStatus: &status,
			TimingMs:       &timing,
		})
	}
	// One blocked fingerprint challenge pulls the score into the 70-75 band.
	recent[0].WasBlocked = true
	recent[0].BlockReason = "fingerprint mismatch"
	recent[0].ChallengeDetected = true

	established := int64(500)
	prev := Previous{Status: StatusEstablished, TrustScore: 72, MaintainedFor: 3, EstablishedAt: &established}

	res := Calculate(d, recent, prev, base+10000)
	if res.TrustScore < thresholdDemote || res.TrustScore >= thresholdEstablished {
		t.Fatalf("TrustScore = %d, want a score inside the 70-75 hysteresis band", res.TrustScore)
	}
	if res.Status != StatusEstablished {
		t.Fatalf("Status = %q, want ESTABLISHED to hold within the 70-75 hysteresis band", res.Status)
	}
	if res.MaintainedFor != 4 {
		t.Errorf("MaintainedFor = %d, want 4 (accumulated by one)", res.MaintainedFor)
	}
	if res.EstablishedAt == nil || *res.EstablishedAt != established {
		t.Errorf("EstablishedAt = %v, want unchanged %d", res.EstablishedAt, established)
	}
}

func TestCalculateEstablishedDemotesBelowSeventy(t *testing.T) {
	status429 := 429
	timing := int64(20000)
	base := int64(1_000_000)

	var recent []*store.RequestLog
	for i := 0; i < 3; i++ {
		recent = append(recent, &store.RequestLog{
			CreatedAt:         base + int64(i)*50,
			ResponseStatus:    &status429,
			TimingMs:          &timing,
			WasBlocked:        true,
			BlockReason:       "fingerprint mismatch",
			ChallengeDetected: true,
		})
	}

	prev := Previous{Status: StatusEstablished, TrustScore: 95, MaintainedFor: 10}

	res := Calculate(dna.DefaultProfile(), recent, prev, base+10000)
	if res.TrustScore >= thresholdDemote {
		t.Fatalf("expected a degraded score below thresholdDemote, got %d", res.TrustScore)
	}
	if res.Status != StatusGreen {
		t.Errorf("Status = %q, want GREEN (one-level demotion from ESTABLISHED)", res.Status)
	}
	if res.MaintainedFor != 0 {
		t.Errorf("MaintainedFor = %d, want reset to 0 on leaving ESTABLISHED", res.MaintainedFor)
	}
	if res.EstablishedAt != nil {
		t.Errorf("EstablishedAt = %v, want nil after leaving ESTABLISHED", res.EstablishedAt)
	}
}

func TestStatusForScoreBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{24, StatusRed},
		{25, StatusYellow},
		{49, StatusYellow},
		{50, StatusGreen},
		{74, StatusGreen},
		{75, StatusEstablished},
	}
	for _, c := range cases {
		if got := statusForScore(c.score); got != c.want {
			t.Errorf("statusForScore(%d) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestStepNeverAdvancesMoreThanOneLevel(t *testing.T) {
	if got := step(StatusRed, StatusEstablished); got != StatusYellow {
		t.Errorf("step(RED, ESTABLISHED) = %q, want YELLOW", got)
	}
	if got := step(StatusGreen, StatusEstablished); got != StatusEstablished {
		t.Errorf("step(GREEN, ESTABLISHED) = %q, want ESTABLISHED", got)
	}
	if got := step(StatusEstablished, StatusRed); got != StatusGreen {
		t.Errorf("step(ESTABLISHED, RED) = %q, want GREEN (one level down)", got)
	}
}

func TestCalculateDecayRate(t *testing.T) {
	prev := Previous{Status: StatusRed, TrustScore: 100}
	res := Calculate(dna.DefaultProfile(), nil, prev, 1000)
	if res.DecayRate <= 0 {
		t.Errorf("DecayRate = %v, want > 0 after a score drop from 100 to %d", res.DecayRate, res.TrustScore)
	}
}

func TestValidJA3(t *testing.T) {
	cases := []struct {
		name string
		ja3  string
		want bool
	}{
		{"empty is not malformed", "", true},
		{"five fields", "771,4865-4866-4867,0-23-65281,29-23-24,0", true},
		{"wrong field count", "771,4865-4866-4867", false},
	}
	for _, c := range cases {
		if got := validJA3(c.ja3); got != c.want {
			t.Errorf("%s: validJA3(%q) = %v, want %v", c.name, c.ja3, got, c.want)
		}
	}
}

func TestRecommendationFor(t *testing.T) {
	if r := recommendationFor(StatusRed); r.AllowNavigation {
		t.Error("RED should not allow navigation")
	}
	if r := recommendationFor(StatusEstablished); !r.AllowNavigation || r.ReadOnly {
		t.Errorf("ESTABLISHED should be unrestricted, got %+v", r)
	}
}
