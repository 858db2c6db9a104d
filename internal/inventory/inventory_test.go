package inventory

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func series(vs ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = d(v)
	}
	return out
}

func TestEOQ(t *testing.T) {
	cases := []struct {
		demand, order, holding, want string
	}{
		{"1000", "10", "0.5", "200"},
		{"1200", "100", "6", "200"},
		{"0", "50", "2", "0"},
		{"5000", "25", "3", "288.6751"},
	}
	for _, tc := range cases {
		got, err := EOQ(d(tc.demand), d(tc.order), d(tc.holding))
		if err != nil {
			t.Fatalf("EOQ(%s,%s,%s): %v", tc.demand, tc.order, tc.holding, err)
		}
		if !got.Equal(d(tc.want)) {
			t.Fatalf("EOQ(%s,%s,%s) = %s, want %s", tc.demand, tc.order, tc.holding, got, tc.want)
		}
	}
}

func TestEOQRejects(t *testing.T) {
	for _, args := range [][3]string{{"-1", "10", "1"}, {"100", "0", "1"}, {"100", "10", "0"}, {"100", "10", "-2"}} {
		if _, err := EOQ(d(args[0]), d(args[1]), d(args[2])); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("EOQ%v: expected ErrInvalidInput, got %v", args, err)
		}
	}
}

func TestReorderPoint(t *testing.T) {
	got, err := ReorderPoint(d("12.5"), 4, d("20"))
	if err != nil || !got.Equal(d("70")) {
		t.Fatalf("ReorderPoint = %s, %v", got, err)
	}
	if _, err := ReorderPoint(d("1"), -1, d("0")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected negative lead time to fail")
	}
	if _, err := ReorderPoint(d("1"), 1, d("-1")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected negative safety stock to fail")
	}
}

func TestMovingAverageForecast(t *testing.T) {
	got, err := MovingAverageForecast(series("10", "20", "30", "40"), 2, 3)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	want := series("35", "37.5", "36.25")
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("period %d = %s, want %s (%v)", i+1, got[i], want[i], got)
		}
	}
	if _, err := MovingAverageForecast(series("1"), 2, 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short history must fail")
	}
	if _, err := MovingAverageForecast(series("1", "2"), 0, 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero window must fail")
	}
	if _, err := MovingAverageForecast(series("1", "2"), 1, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero horizon must fail")
	}
}

func TestExponentialSmoothing(t *testing.T) {
	got, err := ExponentialSmoothing(series("100", "110", "90"), d("0.5"))
	if err != nil || !got.Equal(d("97.5")) {
		t.Fatalf("smoothing = %s, %v", got, err)
	}
	if got, _ := ExponentialSmoothing(series("100", "110", "90"), d("1")); !got.Equal(d("90")) {
		t.Fatalf("alpha 1 must track the last value, got %s", got)
	}
	for _, alpha := range []string{"0", "-0.1", "1.01"} {
		if _, err := ExponentialSmoothing(series("1"), d(alpha)); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("alpha %s must fail", alpha)
		}
	}
	if _, err := ExponentialSmoothing(nil, d("0.3")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty history must fail")
	}
}
