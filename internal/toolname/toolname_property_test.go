package toolname

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genToolName produces names across and around the MaxLength boundary,
// using an index so that within one generated batch every name is
// syntactically distinct even at the same length.
func genToolName() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 120),
		gen.IntRange(0, 9999),
	).Map(func(vs []interface{}) string {
		length := vs[0].(int)
		n := vs[1].(int)
		suffix := fmt.Sprintf("_%d", n)
		if len(suffix) >= length {
			return suffix
		}
		padded := make([]byte, length-len(suffix))
		for i := range padded {
			padded[i] = 'a'
		}
		return string(padded) + suffix
	})
}

// TestAliasRestoreRoundTripProperty exercises spec.md §8 property 3's
// first two clauses for any generated name: restore(alias(name)) == name
// always, and alias(x) == x whenever len(x) <= MaxLength.
func TestAliasRestoreRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("restore(alias(name)) == name", prop.ForAll(
		func(name string) bool {
			m := New()
			alias := m.Alias(name)
			return m.Restore(alias) == name
		},
		genToolName(),
	))

	properties.Property("alias is identity within the length limit", prop.ForAll(
		func(name string) bool {
			if len(name) > MaxLength {
				return true
			}
			m := New()
			return m.Alias(name) == name
		},
		genToolName(),
	))

	properties.TestingRun(t)
}

// TestAliasNoCollisionWithinRequestProperty exercises spec.md §8 property
// 3's third clause: distinct names passed through the same request-scoped
// Map never alias to the same short name.
func TestAliasNoCollisionWithinRequestProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no two distinct names collide within one map", prop.ForAll(
		func(names []string) bool {
			distinct := make(map[string]struct{}, len(names))
			for _, n := range names {
				distinct[n] = struct{}{}
			}

			m := New()
			seen := make(map[string]string, len(distinct))
			for n := range distinct {
				short := m.Alias(n)
				if prior, ok := seen[short]; ok && prior != n {
					return false
				}
				seen[short] = n
			}
			return true
		},
		gen.SliceOfN(8, genToolName()),
	))

	properties.TestingRun(t)
}
