package decision_test

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/frappe/erp-coagent-gateway/internal/decision"
)

// TestNormalizeProperties checks spec §8's decision-encoding invariant
// ("true vs. APPROVED... normalize at the API boundary to a canonical
// boolean") holds for every wire shape the boundary may see, not just the
// hand-picked cases in decision_test.go.
func TestNormalizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("a bare bool passes through unchanged", prop.ForAll(
		func(b bool) bool {
			return decision.Normalize(b) == b
		},
		gen.Bool(),
	))

	properties.Property("approve synonyms normalize true regardless of case or surrounding whitespace", prop.ForAll(
		func(word string, upper bool, pad string) bool {
			if upper {
				word = strings.ToUpper(word)
			} else {
				word = strings.ToLower(word)
			}
			return decision.Normalize(pad + word + pad)
		},
		gen.OneConstOf("approve", "approved", "true"),
		gen.Bool(),
		gen.OneConstOf("", " ", "  ", "\t"),
	))

	properties.Property("cancel and unrecognized strings normalize false", prop.ForAll(
		func(word string) bool {
			return !decision.Normalize(word)
		},
		gen.OneConstOf("cancel", "cancelled", "deny", "no", "", "xyz123"),
	))

	properties.Property("non-bool, non-string values always normalize false", prop.ForAll(
		func(n int) bool {
			return !decision.Normalize(n)
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}
