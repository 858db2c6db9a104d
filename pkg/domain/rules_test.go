package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type staticRule struct {
	name     string
	severity Severity
}

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: r.severity, Message: r.name + " fired"}}}, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return Result{}, errors.New("boom")
}

type emptyView struct{}

func (emptyView) FindInspection(string) (Inspection, bool)         { return Inspection{}, false }
func (emptyView) FindParameter(string) (ParameterDefinition, bool) { return ParameterDefinition{}, false }
func (emptyView) FindCriterion(string) (CriterionDefinition, bool) { return CriterionDefinition{}, false }
func (emptyView) FindStandard(string) (Standard, bool)             { return Standard{}, false }
func (emptyView) ListInspections() []Inspection                    { return nil }
func (emptyView) ListResults(string) []EvaluationResult            { return nil }
func (emptyView) ListAlerts() []Alert                              { return nil }

func TestRulesEngineEvaluatesInOrder(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"first", SeverityWarn})
	engine.Register(staticRule{"second", SeverityBlock})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 || res.Violations[0].Rule != "first" || !res.HasBlocking() {
		t.Fatalf("unexpected result %+v", res)
	}
	names := engine.Rules()
	names[0] = nil
	if engine.Rules()[0] == nil {
		t.Fatalf("Rules must return a copy")
	}

	err = RuleViolationError{Result: res}
	if !errors.Is(err, ErrInvalidState) || !strings.Contains(err.Error(), "second") {
		t.Fatalf("unexpected violation error %v", err)
	}
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn", SeverityWarn})
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}
