package transfer

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateFee(t *testing.T) {
	base := decimal.NewFromInt(5)
	percent := decimal.RequireFromString("0.01")

	tests := []struct {
		amountTRY string
		want      string
	}{
		{"500", "10"},
		{"3000", "35"},
		{"1000", "15"},
		{"0.01", "5"},       // 5.0001 rounds down
		{"49.5", "5.5"},     // 5.495 rounds half-up to 5.50
		{"10000", "105"},
		{"123.45", "6.23"},  // 6.2345 -> 6.23
	}
	for _, tt := range tests {
		amount := decimal.RequireFromString(tt.amountTRY)
		want := decimal.RequireFromString(tt.want)
		if got := CalculateFee(amount, base, percent); !got.Equal(want) {
			t.Errorf("CalculateFee(%s) = %s, want %s", tt.amountTRY, got, want)
		}
	}
}

func TestCalculateFeeDeterministic(t *testing.T) {
	base := decimal.NewFromInt(5)
	percent := decimal.RequireFromString("0.01")
	amount := decimal.RequireFromString("777.77")

	first := CalculateFee(amount, base, percent)
	second := CalculateFee(amount, base, percent)
	if !first.Equal(second) {
		t.Errorf("Fee must be deterministic: %s vs %s", first, second)
	}
}
