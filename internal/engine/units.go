package engine

import (
	"math"
	"math/big"
)

// toUnits converts a human-readable amount to the token's native integer
// unit. maxFrac clamps the fractional precision before scaling so derived
// amounts (notional / probed price) cannot overflow into dust-level noise.
func toUnits(amount float64, decimals uint8, maxFrac int) *big.Int {
	if maxFrac >= 0 && int(decimals) > maxFrac {
		p := math.Pow10(maxFrac)
		amount = math.Round(amount*p) / p
	}
	f := new(big.Float).Mul(
		new(big.Float).SetFloat64(amount),
		new(big.Float).SetFloat64(math.Pow10(int(decimals))),
	)
	i, _ := f.Int(nil)
	return i
}

// fromUnits converts a native integer amount to a human-readable float.
func fromUnits(v *big.Int, decimals uint8) float64 {
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(v),
		new(big.Float).SetFloat64(math.Pow10(int(decimals))),
	).Float64()
	return f
}
