package advisor

import "context"

// OfflineClient synthesizes a deterministic Analyze response when no live
// credentials are configured. It never calls out to a model.
type OfflineClient struct{}

// Analyze returns exactly one low-risk timing mutation widening the
// current delayRange (read from req.CurrentDNA; the default profile's
// 1000-3000 ms when absent) by 1s at the lower and 2s at the upper bound,
// a trust evaluation nudging the score up by 5 (clamped to 100), and a
// continue strategy — all marked Mock.
func (OfflineClient) Analyze(_ context.Context, req Context) (*Response, error) {
	nextScore := req.Target.TrustScore + 5
	if nextScore > 100 {
		nextScore = 100
	}

	lo, hi := 1000.0, 3000.0
	if timing, ok := req.CurrentDNA["timing"].(map[string]any); ok {
		if dr, ok := timing["delayRange"].(map[string]any); ok {
			if v, ok := dr["min"].(float64); ok {
				lo = v
			}
			if v, ok := dr["max"].(float64); ok {
				hi = v
			}
		}
	}

	return &Response{
		Mock: true,
		Mutations: []MutationSuggestion{
			{
				Gene: "timing",
				Change: map[string]any{
					"delayRange": map[string]any{"min": int(lo) + 1000, "max": int(hi) + 2000},
				},
				Reason:     "offline fallback: widen pacing conservatively with no live guidance available",
				Confidence: 0.5,
				RiskLevel:  "low",
			},
		},
		Trust: &TrustEvaluation{
			TrustScore:     nextScore,
			Recommendation: "continue with conservative pacing",
			ShouldContinue: true,
		},
		Strategy: &StrategyDecision{
			Action: ActionContinue,
			Reason: "offline fallback: no advisor credentials configured",
		},
	}, nil
}
