package upsell

import "fmt"

// Tier is an entry in the plan tier ladder used by the rule-based
// recommendation fallback.
type Tier struct {
	// Plan is the plan's name.
	Plan string

	// EstimatedValue is the fixed opportunity value of upgrading to this
	// tier.
	EstimatedValue float64

	// Features are the tier's headline features.
	Features []string
}

// DefaultTiers is the default plan tier ladder, in ascending order.
var DefaultTiers = []Tier{
	{
		Plan:           "Basic",
		EstimatedValue: 0,
		Features:       []string{"Core Platform", "Standard Support"},
	},
	{
		Plan:           "Professional",
		EstimatedValue: 15000.0,
		Features:       []string{"Advanced Analytics", "Priority Support", "Custom Integrations"},
	},
	{
		Plan:           "Enterprise",
		EstimatedValue: 50000.0,
		Features:       []string{"Dedicated Infrastructure", "24/7 Support", "Custom SLAs"},
	},
}

// FallbackRecommendation computes a rule-based recommendation without
// consulting any external system.
//
// If current usage exceeds the plan's usage threshold, the next tier in the
// ladder is recommended with its fixed estimated value; otherwise the current
// tier is recommended with zero estimated value. It is deterministic and
// side-effect free so that it is safe to compute during retries.
func FallbackRecommendation(
	u UsageSnapshot,
	c ContractSnapshot,
	tiers []Tier,
) Recommendation {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}

	current := tierIndex(tiers, c.CurrentPlan)

	if u.CurrentUsage > u.Threshold {
		next := current
		if next < len(tiers)-1 {
			next++
		}

		t := tiers[next]

		return Recommendation{
			Plan:           t.Plan,
			EstimatedValue: t.EstimatedValue,
			Justification: fmt.Sprintf(
				"%s usage of %.1f exceeds the %s plan threshold of %.1f",
				u.MetricType,
				u.CurrentUsage,
				c.CurrentPlan,
				u.Threshold,
			),
			Features:       t.Features,
			ROIAnalysis:    "rule-based estimate from the fixed tier table",
			RiskAssessment: "not assessed",
		}
	}

	t := tiers[current]

	return Recommendation{
		Plan:           t.Plan,
		EstimatedValue: 0,
		Justification: fmt.Sprintf(
			"%s usage of %.1f is within the %s plan threshold of %.1f",
			u.MetricType,
			u.CurrentUsage,
			c.CurrentPlan,
			u.Threshold,
		),
		Features:       t.Features,
		ROIAnalysis:    "no upgrade indicated",
		RiskAssessment: "not assessed",
	}
}

// tierIndex returns the index of the named plan, or zero if the plan is not
// in the ladder.
func tierIndex(tiers []Tier, plan string) int {
	for i, t := range tiers {
		if t.Plan == plan {
			return i
		}
	}

	return 0
}
