package mutator

import (
	"encoding/json"

	"github.com/wrenfield/greenlight/dna"
)

// diffToJSON renders a gene Diff for storage in LearningEvent.dnaChanges.
// Marshal failure here would mean dna.Diff stopped being JSON-safe, which
// cannot happen for a struct of string slices; errors are deliberately
// swallowed into an empty object rather than failing the mutation.
func diffToJSON(d dna.Diff) string {
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}
