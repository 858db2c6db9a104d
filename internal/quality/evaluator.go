package quality

import (
	"coopquality/pkg/domain"

	"github.com/shopspring/decimal"
)

// EvaluateParameter classifies a measured value against a parameter
// definition. Missing bounds disable their branch; it never fails.
func (e *Engine) EvaluateParameter(def domain.ParameterDefinition, measured decimal.Decimal) (domain.Verdict, decimal.Decimal) {
	if def.Min != nil && measured.LessThan(*def.Min) {
		return domain.VerdictLow, measured.Sub(*def.Min).Abs()
	}
	if def.Max != nil && measured.GreaterThan(*def.Max) {
		return domain.VerdictHigh, measured.Sub(*def.Max).Abs()
	}
	if def.Optimal == nil || def.Optimal.IsZero() {
		return domain.VerdictAcceptable, decimal.Zero
	}

	optimal := *def.Optimal
	deviation := measured.Sub(optimal).Abs()
	basis := e.toleranceBasis(def)
	switch {
	case deviation.LessThanOrEqual(basis.Mul(def.ToleranceLow).Div(hundred)):
		return domain.VerdictOptimal, deviation
	case deviation.LessThanOrEqual(basis.Mul(def.ToleranceHigh).Div(hundred)):
		return domain.VerdictAcceptable, deviation
	default:
		return domain.VerdictOutOfRange, deviation
	}
}

func (e *Engine) toleranceBasis(def domain.ParameterDefinition) decimal.Decimal {
	if e.cfg.ToleranceBasis == ToleranceOfSpan && def.Min != nil && def.Max != nil {
		return def.Max.Sub(*def.Min)
	}
	return def.Optimal.Abs()
}

// CheckParameter applies engine-level policy on top of ParameterDefinition.Validate.
func (e *Engine) CheckParameter(def domain.ParameterDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if e.cfg.ZeroOptimal == ZeroOptimalReject && def.Optimal != nil && def.Optimal.IsZero() {
		return domain.ValidationError{Entity: domain.EntityParameter, Field: "optimal", Message: "zero optimal value is not supported by tolerance percentages"}
	}
	return nil
}
