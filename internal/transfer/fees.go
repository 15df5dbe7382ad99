package transfer

import "github.com/shopspring/decimal"

// CalculateFee computes the deterministic transaction fee in TRY:
// round2(base + amountTRY * percent), rounded half-up.
func CalculateFee(amountTRY, base, percent decimal.Decimal) decimal.Decimal {
	return base.Add(amountTRY.Mul(percent)).Round(2)
}
