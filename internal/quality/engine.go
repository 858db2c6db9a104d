package quality

import (
	"sort"

	"coopquality/pkg/domain"

	"github.com/shopspring/decimal"
)

// Definitions resolves definitions referenced by standard items.
type Definitions interface {
	FindParameter(id string) (domain.ParameterDefinition, bool)
	FindCriterion(id string) (domain.CriterionDefinition, bool)
}

// Engine bundles the configured evaluator, scorer and strategies. All methods
// are pure functions of their inputs and the engine configuration.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Strategy returns the scoring strategy selected by the standard.
func (e *Engine) Strategy(std domain.Standard) ScoringStrategy {
	if std.Mode == domain.ScoringWeighted {
		threshold := e.cfg.WeightedThreshold
		if std.ApprovalThreshold != nil {
			threshold = *std.ApprovalThreshold
		}
		return WeightedStrategy{Threshold: threshold, PassScore: e.cfg.CriterionPassScore}
	}
	approval := e.cfg.ApprovalPercent
	if std.ApprovalThreshold != nil {
		approval = *std.ApprovalThreshold
	}
	conditional := e.cfg.ConditionalPercent
	if conditional.GreaterThan(approval) {
		conditional = approval
	}
	return ThresholdStrategy{ApprovalPercent: approval, ConditionalPercent: conditional}
}

// Items resolves the active items of a standard in display order. Inactive
// definitions are skipped; unknown ones are reported as not found.
func (e *Engine) Items(std domain.Standard, defs Definitions) ([]Item, error) {
	ordered := append([]domain.StandardItem(nil), std.Items...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	items := make([]Item, 0, len(ordered))
	for _, si := range ordered {
		item, active, err := resolve(std.Mode, si, defs)
		if err != nil {
			return nil, err
		}
		if active {
			items = append(items, item)
		}
	}
	return items, nil
}

func resolve(mode domain.ScoringMode, si domain.StandardItem, defs Definitions) (Item, bool, error) {
	item := Item{DefinitionID: si.DefinitionID, Weight: decimal.NewFromInt(1)}
	var active bool
	if mode == domain.ScoringWeighted {
		def, ok := defs.FindCriterion(si.DefinitionID)
		if !ok {
			return Item{}, false, domain.NotFoundError{Entity: domain.EntityCriterion, ID: si.DefinitionID}
		}
		item.Code, item.Mandatory, item.Weight, active = def.Code, def.Mandatory, def.Weight, !def.Inactive
	} else {
		def, ok := defs.FindParameter(si.DefinitionID)
		if !ok {
			return Item{}, false, domain.NotFoundError{Entity: domain.EntityParameter, ID: si.DefinitionID}
		}
		item.Code, item.Mandatory, active = def.Code, def.Mandatory, !def.Inactive
	}
	if si.Mandatory != nil {
		item.Mandatory = *si.Mandatory
	}
	if si.Weight != nil {
		item.Weight = *si.Weight
	}
	return item, active, nil
}

// Assess evaluates one observation for the standard item bound to
// definitionID and returns the result to persist. Identity, inspection and
// timestamps are left for the caller.
func (e *Engine) Assess(std domain.Standard, definitionID string, obs Observation, defs Definitions) (domain.EvaluationResult, error) {
	si, ok := std.Item(definitionID)
	if !ok {
		return domain.EvaluationResult{}, domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "definition_id", Message: "definition " + definitionID + " is not part of standard " + std.Code}
	}
	item, active, err := resolve(std.Mode, si, defs)
	if err != nil {
		return domain.EvaluationResult{}, err
	}
	if !active {
		return domain.EvaluationResult{}, domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "definition_id", Message: "definition " + definitionID + " is inactive"}
	}

	result := domain.EvaluationResult{
		DefinitionID:  definitionID,
		MeasuredValue: obs.Value,
		AssignedScore: obs.Score,
		Mandatory:     item.Mandatory,
		Observation:   obs.Text,
		EvidenceKey:   obs.EvidenceKey,
		RecordedBy:    obs.RecordedBy,
	}

	if std.Mode == domain.ScoringWeighted {
		def, _ := defs.FindCriterion(definitionID)
		if def.RequiresEvidence && obs.EvidenceKey == "" {
			return domain.EvaluationResult{}, domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "evidence_key", Message: "criterion " + def.Code + " requires evidence"}
		}
		score, err := e.ScoreCriterion(def, obs)
		if err != nil {
			return domain.EvaluationResult{}, err
		}
		result.NormalizedScore = &score
		result.Verdict = e.criterionVerdict(def, obs, score)
		if obs.Value != nil && def.Optimal != nil {
			result.Deviation = obs.Value.Sub(*def.Optimal).Abs()
		}
		return result, nil
	}

	def, _ := defs.FindParameter(definitionID)
	if obs.Value == nil {
		return domain.EvaluationResult{}, domain.ValidationError{Entity: domain.EntityEvaluationResult, Field: "measured_value", Message: "parameter " + def.Code + " requires a measured value"}
	}
	result.Verdict, result.Deviation = e.EvaluateParameter(def, *obs.Value)
	return result, nil
}

// Aggregate folds stored results into the standard's final verdict.
func (e *Engine) Aggregate(std domain.Standard, defs Definitions, results []domain.EvaluationResult) (Aggregate, error) {
	items, err := e.Items(std, defs)
	if err != nil {
		return Aggregate{}, err
	}
	return e.Strategy(std).Aggregate(items, results), nil
}
