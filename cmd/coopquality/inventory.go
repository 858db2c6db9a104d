package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"coopquality/internal/inventory"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newInventoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Replenishment calculations: EOQ, reorder point, demand forecast",
	}
	cmd.AddCommand(newEOQCmd(a), newReorderCmd(a), newForecastCmd(a))
	return cmd
}

func parseDecimal(flag, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %w", flag, err)
	}
	return d, nil
}

func (a *app) printValue(key string, v any) error {
	if a.jsonOutput {
		return json.NewEncoder(a.stdout).Encode(map[string]any{key: v})
	}
	_, err := fmt.Fprintf(a.stdout, "%s: %v\n", key, v)
	return err
}

func newEOQCmd(a *app) *cobra.Command {
	var demand, orderCost, holdingCost string
	cmd := &cobra.Command{
		Use:   "eoq",
		Short: "Economic order quantity sqrt(2DS/H)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDecimal("demand", demand)
			if err != nil {
				return a.fail(err)
			}
			s, err := parseDecimal("order-cost", orderCost)
			if err != nil {
				return a.fail(err)
			}
			h, err := parseDecimal("holding-cost", holdingCost)
			if err != nil {
				return a.fail(err)
			}
			q, err := inventory.EOQ(d, s, h)
			if err != nil {
				return a.fail(err)
			}
			return a.printValue("eoq", q)
		},
	}
	cmd.Flags().StringVar(&demand, "demand", "", "annual demand in units")
	cmd.Flags().StringVar(&orderCost, "order-cost", "", "cost per order")
	cmd.Flags().StringVar(&holdingCost, "holding-cost", "", "annual holding cost per unit")
	return cmd
}

func newReorderCmd(a *app) *cobra.Command {
	var daily, safety string
	var lead int
	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Reorder point: daily demand x lead days + safety stock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDecimal("daily-demand", daily)
			if err != nil {
				return a.fail(err)
			}
			s, err := parseDecimal("safety-stock", safety)
			if err != nil {
				return a.fail(err)
			}
			rop, err := inventory.ReorderPoint(d, lead, s)
			if err != nil {
				return a.fail(err)
			}
			return a.printValue("reorder_point", rop)
		},
	}
	cmd.Flags().StringVar(&daily, "daily-demand", "", "average units per day")
	cmd.Flags().IntVar(&lead, "lead-days", 0, "supplier lead time in days")
	cmd.Flags().StringVar(&safety, "safety-stock", "0", "safety stock in units")
	return cmd
}

func newForecastCmd(a *app) *cobra.Command {
	var history []string
	var window, horizon int
	var alpha string
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Moving-average forecast, or exponential smoothing when --alpha is set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			series := make([]decimal.Decimal, 0, len(history))
			for _, raw := range history {
				v, err := parseDecimal("history", raw)
				if err != nil {
					return a.fail(err)
				}
				series = append(series, v)
			}
			if alpha != "" {
				al, err := parseDecimal("alpha", alpha)
				if err != nil {
					return a.fail(err)
				}
				next, err := inventory.ExponentialSmoothing(series, al)
				if err != nil {
					return a.fail(err)
				}
				return a.printValue("forecast", next)
			}
			out, err := inventory.MovingAverageForecast(series, window, horizon)
			if err != nil {
				return a.fail(err)
			}
			return a.printValue("forecast", out)
		},
	}
	cmd.Flags().StringSliceVar(&history, "history", nil, "comma separated demand history, oldest first")
	cmd.Flags().IntVar(&window, "window", 3, "moving average window")
	cmd.Flags().IntVar(&horizon, "horizon", 1, "periods to forecast")
	cmd.Flags().StringVar(&alpha, "alpha", "", "smoothing factor in (0, 1]")
	return cmd
}
