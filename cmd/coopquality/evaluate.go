package main

import (
	"encoding/json"
	"fmt"

	"coopquality/internal/quality"
	"coopquality/internal/report"
	"coopquality/pkg/domain"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type evaluateFlags struct {
	name, value, min, optimal, max, tolLow, tolHigh string
}

func newEvaluateCmd(a *app) *cobra.Command {
	var f evaluateFlags
	cmd := &cobra.Command{
		Use:     "evaluate",
		Short:   "Evaluate one measured value against ad-hoc parameter bounds",
		Example: "  coopquality evaluate --value 180 --min 150 --optimal 175 --max 200 --tol-low 5 --tol-high 10",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := a.evaluate(f)
			if err != nil {
				return a.fail(err)
			}
			if a.jsonOutput {
				return json.NewEncoder(a.stdout).Encode(result)
			}
			report.New(a.stdout).Evaluation(f.name, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "parameter", "label printed with the result")
	cmd.Flags().StringVar(&f.value, "value", "", "measured value (required)")
	cmd.Flags().StringVar(&f.min, "min", "", "minimum bound")
	cmd.Flags().StringVar(&f.optimal, "optimal", "", "optimal value")
	cmd.Flags().StringVar(&f.max, "max", "", "maximum bound")
	cmd.Flags().StringVar(&f.tolLow, "tol-low", "0", "lower tolerance percentage")
	cmd.Flags().StringVar(&f.tolHigh, "tol-high", "0", "upper tolerance percentage")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func (a *app) evaluate(f evaluateFlags) (domain.EvaluationResult, error) {
	qcfg, err := a.cfg.QualityEngineConfig()
	if err != nil {
		return domain.EvaluationResult{}, err
	}
	engine, err := quality.NewEngine(qcfg)
	if err != nil {
		return domain.EvaluationResult{}, err
	}
	def := domain.ParameterDefinition{Code: f.name, Name: f.name, Type: domain.ParameterPhysical}
	for _, b := range []struct {
		flag string
		raw  string
		dst  **decimal.Decimal
	}{
		{"min", f.min, &def.Min},
		{"optimal", f.optimal, &def.Optimal},
		{"max", f.max, &def.Max},
	} {
		if b.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(b.raw)
		if err != nil {
			return domain.EvaluationResult{}, fmt.Errorf("--%s: %w", b.flag, err)
		}
		*b.dst = &d
	}
	if def.ToleranceLow, err = decimal.NewFromString(f.tolLow); err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("--tol-low: %w", err)
	}
	if def.ToleranceHigh, err = decimal.NewFromString(f.tolHigh); err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("--tol-high: %w", err)
	}
	if err := engine.CheckParameter(def); err != nil {
		return domain.EvaluationResult{}, err
	}
	measured, err := decimal.NewFromString(f.value)
	if err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("--value: %w", err)
	}
	verdict, deviation := engine.EvaluateParameter(def, measured)
	return domain.EvaluationResult{MeasuredValue: &measured, Verdict: verdict, Deviation: deviation}, nil
}
