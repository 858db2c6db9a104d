package core

import "coopquality/pkg/domain"

type (
	// Rule is evaluated at commit time against the pending state.
	Rule = domain.Rule
	// RulesEngine aggregates rule results for a transaction.
	RulesEngine = domain.RulesEngine
)

// NewRulesEngine returns an engine without rules.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine registers the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(LifecycleTransitionRule())
	engine.Register(ResultIntegrityRule())
	engine.Register(DefinitionReferenceRule())
	return engine
}
