// Package quality implements the pure evaluation engine: the parameter
// evaluator, the criterion scorer and the scoring strategies that aggregate
// per-item outcomes into an inspection verdict.
package quality

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ZeroOptimalPolicy decides how a parameter whose optimal value is zero is treated.
type ZeroOptimalPolicy string

const (
	// ZeroOptimalAsAbsent skips the tolerance branch, as if no optimal were set.
	ZeroOptimalAsAbsent ZeroOptimalPolicy = "no_optimal"
	// ZeroOptimalReject refuses such definitions at creation time.
	ZeroOptimalReject ZeroOptimalPolicy = "reject"
)

// ToleranceBasis selects the quantity tolerance percentages are taken from.
type ToleranceBasis string

const (
	// ToleranceOfOptimal applies tolerances as a percentage of the optimal value.
	ToleranceOfOptimal ToleranceBasis = "optimal"
	// ToleranceOfSpan applies tolerances as a percentage of max - min, falling
	// back to the optimal value when either bound is missing.
	ToleranceOfSpan ToleranceBasis = "span"
)

// Config carries the thresholds used by the engine. It replaces process-wide
// tier defaults; every Engine holds its own copy.
type Config struct {
	ApprovalPercent    decimal.Decimal
	ConditionalPercent decimal.Decimal
	WeightedThreshold  decimal.Decimal
	CriterionPassScore decimal.Decimal
	ZeroOptimal        ZeroOptimalPolicy
	ToleranceBasis     ToleranceBasis
}

// DefaultConfig returns the cooperative's standard thresholds.
func DefaultConfig() Config {
	return Config{
		ApprovalPercent:    decimal.NewFromInt(90),
		ConditionalPercent: decimal.NewFromInt(70),
		WeightedThreshold:  decimal.NewFromInt(70),
		CriterionPassScore: decimal.NewFromInt(60),
		ZeroOptimal:        ZeroOptimalAsAbsent,
		ToleranceBasis:     ToleranceOfOptimal,
	}
}

// Validate rejects inconsistent thresholds.
func (c Config) Validate() error {
	for name, v := range map[string]decimal.Decimal{
		"approval_percent":     c.ApprovalPercent,
		"conditional_percent":  c.ConditionalPercent,
		"weighted_threshold":   c.WeightedThreshold,
		"criterion_pass_score": c.CriterionPassScore,
	} {
		if v.IsNegative() || v.GreaterThan(hundred) {
			return fmt.Errorf("quality config: %s %s outside 0..100", name, v)
		}
	}
	if c.ConditionalPercent.GreaterThan(c.ApprovalPercent) {
		return fmt.Errorf("quality config: conditional_percent %s exceeds approval_percent %s", c.ConditionalPercent, c.ApprovalPercent)
	}
	switch c.ZeroOptimal {
	case ZeroOptimalAsAbsent, ZeroOptimalReject:
	default:
		return fmt.Errorf("quality config: unknown zero_optimal_policy %q", c.ZeroOptimal)
	}
	switch c.ToleranceBasis {
	case ToleranceOfOptimal, ToleranceOfSpan:
	default:
		return fmt.Errorf("quality config: unknown tolerance_basis %q", c.ToleranceBasis)
	}
	return nil
}

var hundred = decimal.NewFromInt(100)
