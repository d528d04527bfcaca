package advisor

import (
	"context"
	"testing"
)

func TestOfflineClientAnalyze(t *testing.T) {
	reqCtx := Context{Target: TargetSummary{ID: "t1", TrustScore: 10}}

	resp, err := (OfflineClient{}).Analyze(context.Background(), reqCtx)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !resp.Mock {
		t.Error("Mock = false, want true for offline fallback")
	}
	if len(resp.Mutations) != 1 {
		t.Fatalf("len(Mutations) = %d, want exactly 1", len(resp.Mutations))
	}
	if resp.Mutations[0].Gene != "timing" || resp.Mutations[0].RiskLevel != "low" {
		t.Errorf("Mutations[0] = %+v, want a low-risk timing mutation", resp.Mutations[0])
	}
	if resp.Trust == nil || resp.Trust.TrustScore != 15 {
		t.Fatalf("Trust = %+v, want trustScore 15 (10+5)", resp.Trust)
	}
	if resp.Strategy == nil || resp.Strategy.Action != ActionContinue {
		t.Fatalf("Strategy = %+v, want continue", resp.Strategy)
	}
}

func TestOfflineClientAnalyzeClampsTrustScore(t *testing.T) {
	reqCtx := Context{Target: TargetSummary{ID: "t1", TrustScore: 98}}
	resp, err := (OfflineClient{}).Analyze(context.Background(), reqCtx)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Trust.TrustScore != 100 {
		t.Errorf("TrustScore = %d, want clamped to 100", resp.Trust.TrustScore)
	}
}

func TestCheckModelSupported(t *testing.T) {
	if err := CheckModelSupported("claude-sonnet-4-5-20250929"); err != nil {
		t.Errorf("CheckModelSupported(sonnet): %v", err)
	}
	if err := CheckModelSupported("claude-haiku-4-5-20251001"); err == nil {
		t.Error("CheckModelSupported(haiku): want ErrModelUnsupported")
	}
}

func TestValidateMutation(t *testing.T) {
	cases := []struct {
		name string
		m    MutationSuggestion
		ok   bool
	}{
		{"valid", MutationSuggestion{Gene: "timing", Change: map[string]any{"delayRange": 1}, Confidence: 0.8, RiskLevel: "low"}, true},
		{"unknown gene", MutationSuggestion{Gene: "bogus", Change: map[string]any{"x": 1}, RiskLevel: "low"}, false},
		{"empty change", MutationSuggestion{Gene: "timing", RiskLevel: "low"}, false},
		{"confidence out of range", MutationSuggestion{Gene: "timing", Change: map[string]any{"x": 1}, Confidence: 1.5, RiskLevel: "low"}, false},
		{"bad risk level", MutationSuggestion{Gene: "timing", Change: map[string]any{"x": 1}, RiskLevel: "extreme"}, false},
	}
	for _, c := range cases {
		err := validateMutation(c.m)
		if (err == nil) != c.ok {
			t.Errorf("%s: validateMutation err=%v, want ok=%v", c.name, err, c.ok)
		}
	}
}

func TestAnalyzeDropsInvalidToolCallsWithoutFailingResponse(t *testing.T) {
	stub := stubClient{resp: &Response{
		Mutations: []MutationSuggestion{
			{Gene: "timing", Change: map[string]any{"delayRange": 1}, RiskLevel: "low"},
			{Gene: "not-a-gene", Change: map[string]any{"x": 1}, RiskLevel: "low"},
		},
		Strategy: &StrategyDecision{Action: "explode"},
	}}

	a := New(stub)
	resp, err := a.Analyze(context.Background(), Context{Target: TargetSummary{ID: "t1"}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(resp.Mutations) != 1 {
		t.Fatalf("len(Mutations) = %d, want 1 (invalid one dropped)", len(resp.Mutations))
	}
	if resp.Strategy != nil {
		t.Errorf("Strategy = %+v, want nil (invalid action dropped)", resp.Strategy)
	}
}

func TestAnalyzeCachesByContextDigest(t *testing.T) {
	stub := &countingClient{resp: &Response{Mock: true}}
	a := New(stub)

	reqCtx := Context{Target: TargetSummary{ID: "t1", TrustScore: 50}}
	if _, err := a.Analyze(context.Background(), reqCtx); err != nil {
		t.Fatalf("Analyze (1): %v", err)
	}
	if _, err := a.Analyze(context.Background(), reqCtx); err != nil {
		t.Fatalf("Analyze (2): %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("calls = %d, want 1 (second Analyze should hit the cache)", stub.calls)
	}
}

type stubClient struct {
	resp *Response
	err  error
}

func (s stubClient) Analyze(_ context.Context, _ Context) (*Response, error) {
	return s.resp, s.err
}

type countingClient struct {
	resp  *Response
	calls int
}

func (c *countingClient) Analyze(_ context.Context, _ Context) (*Response, error) {
	c.calls++
	return c.resp, nil
}
