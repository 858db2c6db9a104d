package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validate checks the bound ordering of a parameter definition.
func (p ParameterDefinition) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid(EntityParameter, "name", "is required")
	}
	switch p.Type {
	case ParameterPhysical, ParameterChemical, ParameterMicrobiological, ParameterOrganoleptic, ParameterPackaging:
	default:
		return invalid(EntityParameter, "type", "unknown parameter type %q", p.Type)
	}
	if err := validateBounds(EntityParameter, p.Min, p.Optimal, p.Max); err != nil {
		return err
	}
	if p.ToleranceLow.IsNegative() {
		return invalid(EntityParameter, "tolerance_low", "must not be negative")
	}
	if p.ToleranceHigh.IsNegative() {
		return invalid(EntityParameter, "tolerance_high", "must not be negative")
	}
	return nil
}

// Validate checks weights, scale and bound ordering of a criterion definition.
func (c CriterionDefinition) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid(EntityCriterion, "name", "is required")
	}
	switch c.Kind {
	case KindObjective, KindSubjective, KindMeasurement, KindVisual, KindChemical:
	default:
		return invalid(EntityCriterion, "kind", "unknown evaluation kind %q", c.Kind)
	}
	if !c.Weight.IsPositive() {
		return invalid(EntityCriterion, "weight", "must be positive")
	}
	if c.ScaleMin > c.ScaleMax {
		return invalid(EntityCriterion, "scale", "minimum %d exceeds maximum %d", c.ScaleMin, c.ScaleMax)
	}
	return validateBounds(EntityCriterion, c.Min, c.Optimal, c.Max)
}

// Validate checks structural consistency of a standard. Definition existence
// is checked by the service against the store.
func (s Standard) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return invalid(EntityStandard, "name", "is required")
	}
	switch s.Mode {
	case ScoringThreshold, ScoringWeighted:
	default:
		return invalid(EntityStandard, "mode", "unknown scoring mode %q", s.Mode)
	}
	switch s.Tier {
	case TierBasic, TierStandard, TierPremium, TierOrganic, TierExport:
	case "":
	default:
		return invalid(EntityStandard, "tier", "unknown quality tier %q", s.Tier)
	}
	if len(s.Items) == 0 {
		return invalid(EntityStandard, "items", "at least one definition is required")
	}
	seen := make(map[string]struct{}, len(s.Items))
	for _, item := range s.Items {
		if item.DefinitionID == "" {
			return invalid(EntityStandard, "items", "definition id is required")
		}
		if _, dup := seen[item.DefinitionID]; dup {
			return invalid(EntityStandard, "items", "definition %s listed twice", item.DefinitionID)
		}
		seen[item.DefinitionID] = struct{}{}
		if item.Weight != nil && !item.Weight.IsPositive() {
			return invalid(EntityStandard, "items", "weight for %s must be positive", item.DefinitionID)
		}
	}
	if t := s.ApprovalThreshold; t != nil && (t.IsNegative() || t.GreaterThan(hundred)) {
		return invalid(EntityStandard, "approval_threshold", "must be within 0..100")
	}
	return nil
}

// Item returns the standard item bound to definitionID.
func (s Standard) Item(definitionID string) (StandardItem, bool) {
	for _, item := range s.Items {
		if item.DefinitionID == definitionID {
			return item, true
		}
	}
	return StandardItem{}, false
}

func validateBounds(entity EntityType, lo, opt, hi *decimal.Decimal) error {
	if lo != nil && hi != nil && lo.GreaterThan(*hi) {
		return invalid(entity, "min", "minimum %s exceeds maximum %s", lo, hi)
	}
	if opt == nil {
		return nil
	}
	if lo != nil && opt.LessThan(*lo) {
		return invalid(entity, "optimal", "optimal %s is below minimum %s", opt, lo)
	}
	if hi != nil && opt.GreaterThan(*hi) {
		return invalid(entity, "optimal", "optimal %s is above maximum %s", opt, hi)
	}
	return nil
}
