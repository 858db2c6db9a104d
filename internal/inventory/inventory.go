// Package inventory holds the textbook replenishment formulas that sit next
// to quality control in the cooperative: economic order quantity, reorder
// point and two demand forecasts. Everything works on decimals.
package inventory

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is matched by every argument error.
var ErrInvalidInput = errors.New("inventory: invalid input")

// Precision is the number of decimal places results are rounded to.
const Precision = 4

var two = decimal.NewFromInt(2)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// EOQ returns sqrt(2·D·S / H) for annual demand D, cost per order S and
// annual holding cost per unit H.
func EOQ(annualDemand, orderCost, holdingCost decimal.Decimal) (decimal.Decimal, error) {
	if annualDemand.IsNegative() {
		return decimal.Zero, invalid("annual demand %s is negative", annualDemand)
	}
	if !orderCost.IsPositive() {
		return decimal.Zero, invalid("order cost %s must be positive", orderCost)
	}
	if !holdingCost.IsPositive() {
		return decimal.Zero, invalid("holding cost %s must be positive", holdingCost)
	}
	radicand := two.Mul(annualDemand).Mul(orderCost).DivRound(holdingCost, 16)
	return sqrt(radicand).Round(Precision), nil
}

// ReorderPoint is daily demand times lead time plus safety stock.
func ReorderPoint(dailyDemand decimal.Decimal, leadDays int, safetyStock decimal.Decimal) (decimal.Decimal, error) {
	if dailyDemand.IsNegative() {
		return decimal.Zero, invalid("daily demand %s is negative", dailyDemand)
	}
	if leadDays < 0 {
		return decimal.Zero, invalid("lead time %d is negative", leadDays)
	}
	if safetyStock.IsNegative() {
		return decimal.Zero, invalid("safety stock %s is negative", safetyStock)
	}
	return dailyDemand.Mul(decimal.NewFromInt(int64(leadDays))).Add(safetyStock).Round(Precision), nil
}

// MovingAverageForecast projects horizon periods ahead. Each forecast is the
// mean of the previous window values, earlier forecasts included.
func MovingAverageForecast(history []decimal.Decimal, window, horizon int) ([]decimal.Decimal, error) {
	if window <= 0 {
		return nil, invalid("window %d must be positive", window)
	}
	if horizon <= 0 {
		return nil, invalid("horizon %d must be positive", horizon)
	}
	if len(history) < window {
		return nil, invalid("need at least %d observations, have %d", window, len(history))
	}
	series := append([]decimal.Decimal(nil), history...)
	out := make([]decimal.Decimal, 0, horizon)
	w := decimal.NewFromInt(int64(window))
	for i := 0; i < horizon; i++ {
		sum := decimal.Zero
		for _, v := range series[len(series)-window:] {
			sum = sum.Add(v)
		}
		next := sum.DivRound(w, 16)
		series = append(series, next)
		out = append(out, next.Round(Precision))
	}
	return out, nil
}

// ExponentialSmoothing returns the next-period forecast of simple exponential
// smoothing seeded with the first observation. alpha must be in (0, 1].
func ExponentialSmoothing(history []decimal.Decimal, alpha decimal.Decimal) (decimal.Decimal, error) {
	if len(history) == 0 {
		return decimal.Zero, invalid("history is empty")
	}
	if !alpha.IsPositive() || alpha.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, invalid("alpha %s outside (0, 1]", alpha)
	}
	level := history[0]
	keep := decimal.NewFromInt(1).Sub(alpha)
	for _, v := range history[1:] {
		level = alpha.Mul(v).Add(keep.Mul(level))
	}
	return level.Round(Precision), nil
}

// sqrt runs Newton's method from the float estimate.
func sqrt(v decimal.Decimal) decimal.Decimal {
	if !v.IsPositive() {
		return decimal.Zero
	}
	x := decimal.NewFromFloat(math.Sqrt(v.InexactFloat64()))
	if !x.IsPositive() {
		x = v
	}
	epsilon := decimal.New(1, -12)
	for i := 0; i < 50; i++ {
		next := x.Add(v.DivRound(x, 16)).DivRound(two, 16)
		if next.Sub(x).Abs().LessThan(epsilon) {
			return next
		}
		x = next
	}
	return x
}
