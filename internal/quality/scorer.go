package quality

import (
	"fmt"

	"coopquality/pkg/domain"

	"github.com/shopspring/decimal"
)

// Observation is what an inspector records for one standard item. Ordinal
// criteria use Score, everything else uses Value.
type Observation struct {
	Value       *decimal.Decimal
	Score       *int
	Text        string
	EvidenceKey string
	RecordedBy  string
}

// ScoreCriterion maps an observation onto a 0..100 normalized score.
func (e *Engine) ScoreCriterion(def domain.CriterionDefinition, obs Observation) (decimal.Decimal, error) {
	if def.Kind.Ordinal() {
		if obs.Score == nil {
			return decimal.Zero, domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "assigned_score", Message: "ordinal criterion " + def.Code + " requires an assigned score"}
		}
		if def.ScaleMax > def.ScaleMin && (*obs.Score < def.ScaleMin || *obs.Score > def.ScaleMax) {
			return decimal.Zero, domain.ValidationError{
				Entity:  domain.EntityEvaluationResult,
				Field:   "assigned_score",
				Message: fmt.Sprintf("score %d for %s is outside the scale %d..%d", *obs.Score, def.Code, def.ScaleMin, def.ScaleMax),
			}
		}
		return scoreOrdinal(def.ScaleMin, def.ScaleMax, *obs.Score), nil
	}
	if obs.Value == nil {
		return decimal.Zero, domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "measured_value", Message: "criterion " + def.Code + " requires a measured value"}
	}
	return scoreNumeric(def.Min, def.Optimal, def.Max, *obs.Value), nil
}

func scoreOrdinal(lo, hi, assigned int) decimal.Decimal {
	if hi == lo {
		if assigned >= hi {
			return hundred
		}
		return decimal.Zero
	}
	ratio := decimal.NewFromInt(int64(assigned - lo)).Div(decimal.NewFromInt(int64(hi - lo)))
	return clampPercent(ratio.Mul(hundred))
}

// scoreNumeric measures distance from the optimum against the side of the
// range the value falls on (opt-min or max-opt), so either bound scores 0
// even when the optimum is off-centre.
func scoreNumeric(lo, opt, hi *decimal.Decimal, v decimal.Decimal) decimal.Decimal {
	if lo == nil || hi == nil || !hi.GreaterThan(*lo) {
		return hundred
	}
	if opt == nil {
		return clampPercent(v.Sub(*lo).Div(hi.Sub(*lo)).Mul(hundred))
	}
	if v.Equal(*opt) {
		return hundred
	}
	var ratio decimal.Decimal
	if v.LessThan(*opt) {
		if !opt.GreaterThan(*lo) {
			return decimal.Zero
		}
		ratio = v.Sub(*lo).Div(opt.Sub(*lo))
	} else {
		if !hi.GreaterThan(*opt) {
			return decimal.Zero
		}
		ratio = hi.Sub(v).Div(hi.Sub(*opt))
	}
	return clampPercent(ratio.Mul(hundred))
}

func clampPercent(v decimal.Decimal) decimal.Decimal {
	switch {
	case v.IsNegative():
		return decimal.Zero
	case v.GreaterThan(hundred):
		return hundred
	}
	return v.Round(2)
}

// criterionVerdict derives a per-item verdict for a scored criterion so both
// scoring modes share the failure classes.
func (e *Engine) criterionVerdict(def domain.CriterionDefinition, obs Observation, score decimal.Decimal) domain.Verdict {
	if score.GreaterThanOrEqual(e.cfg.CriterionPassScore) {
		if score.Equal(hundred) {
			return domain.VerdictOptimal
		}
		return domain.VerdictAcceptable
	}
	if obs.Value != nil {
		if def.Min != nil && obs.Value.LessThan(*def.Min) {
			return domain.VerdictLow
		}
		if def.Max != nil && obs.Value.GreaterThan(*def.Max) {
			return domain.VerdictHigh
		}
	}
	return domain.VerdictOutOfRange
}
