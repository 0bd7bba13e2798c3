package engine

import (
	"math/big"
	"testing"
)

func TestToUnits(t *testing.T) {
	cases := []struct {
		amount   float64
		decimals uint8
		maxFrac  int
		want     string
	}{
		{25, 6, 6, "25000000"},
		{0.01, 18, -1, "10000000000000000"},
		{0.5, 18, 8, "500000000000000000"},
		{0.128, 6, 1, "100000"}, // clamped to one fractional digit
		{0, 18, -1, "0"},
	}
	for _, tc := range cases {
		got := toUnits(tc.amount, tc.decimals, tc.maxFrac)
		if got.String() != tc.want {
			t.Fatalf("toUnits(%v, %d, %d) = %s, want %s",
				tc.amount, tc.decimals, tc.maxFrac, got, tc.want)
		}
	}
}

func TestFromUnits(t *testing.T) {
	v, _ := new(big.Int).SetString("25000000", 10)
	if got := fromUnits(v, 6); got != 25 {
		t.Fatalf("fromUnits = %v, want 25", got)
	}
	w, _ := new(big.Int).SetString("10000000000000000", 10)
	if got := fromUnits(w, 18); got != 0.01 {
		t.Fatalf("fromUnits = %v, want 0.01", got)
	}
}
