package ratelimit

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestAllowMonotonicityProperty generalizes TestAllow_Monotonicity in
// ratelimit_test.go into spec.md §8 property 5 proper: for any quota Q and
// any burst of calls fired back-to-back (well within window W), at most Q
// are admitted — admissions never exceed the configured quota regardless
// of how many requests arrive inside one window.
func TestAllowMonotonicityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("no more than Q admissions per window, for any Q and burst size", prop.ForAll(
		func(quota, burst int) bool {
			l := New(100, time.Hour)
			l.enabled = true

			admitted := 0
			for i := 0; i < burst; i++ {
				if l.Allow("sk-prop", quota, 60).Allowed {
					admitted++
				}
			}
			return admitted <= quota
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 200),
	))

	properties.Property("independent keys never share one key's quota", prop.ForAll(
		func(quota int, keyA, keyB string) bool {
			if keyA == keyB {
				return true
			}
			l := New(100, time.Hour)
			l.enabled = true

			admittedA, admittedB := 0, 0
			for i := 0; i < quota; i++ {
				if l.Allow(keyA, quota, 60).Allowed {
					admittedA++
				}
				if l.Allow(keyB, quota, 60).Allowed {
					admittedB++
				}
			}
			return admittedA == quota && admittedB == quota
		},
		gen.IntRange(1, 10),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
