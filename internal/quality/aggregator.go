package quality

import (
	"coopquality/pkg/domain"

	"github.com/shopspring/decimal"
)

// ratioPrecision is the number of decimal places kept when comparing a
// percentage against a threshold. Only the reported Percentage is rounded to 2.
const ratioPrecision = 16

// Item is one active standard item resolved against its definition.
type Item struct {
	DefinitionID string
	Code         string
	Mandatory    bool
	Weight       decimal.Decimal
}

// Aggregate is the outcome of folding results over a standard's items.
type Aggregate struct {
	Verdict    domain.FinalVerdict
	Percentage decimal.Decimal
	Evaluated  int
	Approved   int
	Critical   int
	// Failures lists mandatory items whose result is a failure class.
	Failures []domain.EvaluationResult
}

// ScoringStrategy turns item results into a final verdict.
type ScoringStrategy interface {
	Mode() domain.ScoringMode
	Aggregate(items []Item, results []domain.EvaluationResult) Aggregate
}

// ThresholdStrategy counts approved items as a percentage; any mandatory
// failure rejects regardless of the percentage.
type ThresholdStrategy struct {
	ApprovalPercent    decimal.Decimal
	ConditionalPercent decimal.Decimal
}

// Mode implements ScoringStrategy.
func (ThresholdStrategy) Mode() domain.ScoringMode { return domain.ScoringThreshold }

// Aggregate implements ScoringStrategy.
func (s ThresholdStrategy) Aggregate(items []Item, results []domain.EvaluationResult) Aggregate {
	agg := count(items, results, func(r domain.EvaluationResult) bool { return r.Verdict.Passing() })
	var pct decimal.Decimal
	if agg.Evaluated > 0 {
		pct = decimal.NewFromInt(int64(agg.Approved * 100)).
			DivRound(decimal.NewFromInt(int64(agg.Evaluated)), ratioPrecision)
	}
	switch {
	case agg.Evaluated == 0, agg.Critical > 0:
		agg.Verdict = domain.FinalRejected
	case pct.GreaterThanOrEqual(s.ApprovalPercent):
		agg.Verdict = domain.FinalApproved
	case pct.GreaterThanOrEqual(s.ConditionalPercent):
		agg.Verdict = domain.FinalConditional
	default:
		agg.Verdict = domain.FinalRejected
	}
	agg.Percentage = pct.Round(2)
	return agg
}

// WeightedStrategy compares the weighted mean of normalized scores against a
// single threshold. Mandatory failures are counted but do not override.
type WeightedStrategy struct {
	Threshold decimal.Decimal
	PassScore decimal.Decimal
}

// Mode implements ScoringStrategy.
func (WeightedStrategy) Mode() domain.ScoringMode { return domain.ScoringWeighted }

// Aggregate implements ScoringStrategy.
func (s WeightedStrategy) Aggregate(items []Item, results []domain.EvaluationResult) Aggregate {
	agg := count(items, results, func(r domain.EvaluationResult) bool {
		return r.NormalizedScore != nil && r.NormalizedScore.GreaterThanOrEqual(s.PassScore)
	})
	byID := indexResults(results)
	var sum, weights decimal.Decimal
	for _, item := range items {
		r, ok := byID[item.DefinitionID]
		if !ok || r.NormalizedScore == nil {
			continue
		}
		sum = sum.Add(r.NormalizedScore.Mul(item.Weight))
		weights = weights.Add(item.Weight)
	}
	var pct decimal.Decimal
	if weights.IsPositive() {
		pct = sum.DivRound(weights, ratioPrecision)
	}
	if agg.Evaluated > 0 && pct.GreaterThanOrEqual(s.Threshold) {
		agg.Verdict = domain.FinalApproved
	} else {
		agg.Verdict = domain.FinalRejected
	}
	agg.Percentage = pct.Round(2)
	return agg
}

func count(items []Item, results []domain.EvaluationResult, approved func(domain.EvaluationResult) bool) Aggregate {
	byID := indexResults(results)
	var agg Aggregate
	for _, item := range items {
		r, ok := byID[item.DefinitionID]
		if !ok {
			continue
		}
		agg.Evaluated++
		if approved(r) {
			agg.Approved++
		}
		if item.Mandatory && r.Verdict.Failing() {
			agg.Critical++
			agg.Failures = append(agg.Failures, r)
		}
	}
	return agg
}

func indexResults(results []domain.EvaluationResult) map[string]domain.EvaluationResult {
	out := make(map[string]domain.EvaluationResult, len(results))
	for _, r := range results {
		out[r.DefinitionID] = r
	}
	return out
}
