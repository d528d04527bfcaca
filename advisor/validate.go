package advisor

import (
	"fmt"
	"strings"
)

// supportedModelTiers is the string-match gate for the minimum capability
// tier a configured model name must satisfy. The gate is deliberately
// crude (substring match) rather than a model registry: new tiers are
// added here as they're qualified.
var supportedModelTiers = []string{"claude-sonnet", "claude-opus"}

// CheckModelSupported enforces the capability-tier gate; callers fail
// fast with ErrModelUnsupported before ever issuing a request.
func CheckModelSupported(model string) error {
	for _, tier := range supportedModelTiers {
		if strings.Contains(model, tier) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrModelUnsupported, model)
}

var validGenes = map[string]bool{
	"identity": true, "timing": true, "network": true,
	"interaction": true, "capabilities": true,
}

var validRiskLevels = map[string]bool{"low": true, "medium": true, "high": true}

var validActions = map[string]bool{
	ActionContinue: true, ActionPause: true, ActionAdapt: true,
	ActionRetreat: true, ActionAccelerate: true,
}

// validateMutation checks one suggest_dna_mutation tool call against its
// schema. A failure here discards only this tool call, per the Advisor
// Bridge's failure mode — it never aborts the whole Analyze response.
func validateMutation(m MutationSuggestion) error {
	if !validGenes[m.Gene] {
		return fmt.Errorf("%w: unknown gene %q", ErrAdvisorProtocol, m.Gene)
	}
	if len(m.Change) == 0 {
		return fmt.Errorf("%w: empty change", ErrAdvisorProtocol)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of [0,1]", ErrAdvisorProtocol, m.Confidence)
	}
	if !validRiskLevels[m.RiskLevel] {
		return fmt.Errorf("%w: unknown riskLevel %q", ErrAdvisorProtocol, m.RiskLevel)
	}
	return nil
}

func validateTrust(t TrustEvaluation) error {
	if t.TrustScore < 0 || t.TrustScore > 100 {
		return fmt.Errorf("%w: trustScore %d out of [0,100]", ErrAdvisorProtocol, t.TrustScore)
	}
	return nil
}

func validateStrategy(s StrategyDecision) error {
	if !validActions[s.Action] {
		return fmt.Errorf("%w: unknown action %q", ErrAdvisorProtocol, s.Action)
	}
	return nil
}
