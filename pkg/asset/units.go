package asset

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// StandardDecimals is the fixed-point scale of every pool balance on the bridge network.
const StandardDecimals int32 = 8

// ToStandardUnits converts a human amount into standardized integer units.
// Digits beyond the asset's representable precision are dropped, never rounded up.
func ToStandardUnits(human decimal.Decimal, ref Ref) decimal.Decimal {
	places := ref.Decimals
	if places > StandardDecimals {
		places = StandardDecimals
	}
	return human.Truncate(places).Shift(StandardDecimals).Truncate(0)
}

// ToHumanUnits converts standardized units back into a human amount.
func ToHumanUnits(standard decimal.Decimal, _ Ref) decimal.Decimal {
	return standard.Truncate(0).Shift(-StandardDecimals)
}

// ToNativeUnits converts standardized units into the asset's on-chain base units.
func ToNativeUnits(standard decimal.Decimal, ref Ref) *big.Int {
	amount := standard.Truncate(0).BigInt()
	switch {
	case ref.Decimals > StandardDecimals:
		return amount.Mul(amount, pow10(ref.Decimals-StandardDecimals))
	case ref.Decimals < StandardDecimals:
		return amount.Quo(amount, pow10(StandardDecimals-ref.Decimals))
	default:
		return amount
	}
}

// FromNativeUnits converts on-chain base units into standardized units,
// truncating precision the bridge cannot represent.
func FromNativeUnits(native *big.Int, ref Ref) decimal.Decimal {
	if native == nil {
		return decimal.Zero
	}
	amount := new(big.Int).Set(native)
	switch {
	case ref.Decimals > StandardDecimals:
		amount.Quo(amount, pow10(ref.Decimals-StandardDecimals))
	case ref.Decimals < StandardDecimals:
		amount.Mul(amount, pow10(StandardDecimals-ref.Decimals))
	}
	return decimal.NewFromBigInt(amount, 0)
}

// ToStandardUnits resolves ticker and converts a human amount into standardized units.
func (r *Registry) ToStandardUnits(human decimal.Decimal, ticker string) (decimal.Decimal, error) {
	ref, err := r.Lookup(ticker)
	if err != nil {
		return decimal.Zero, err
	}
	return ToStandardUnits(human, ref), nil
}

// ToHumanUnits resolves ticker and converts standardized units into a human amount.
func (r *Registry) ToHumanUnits(standard decimal.Decimal, ticker string) (decimal.Decimal, error) {
	ref, err := r.Lookup(ticker)
	if err != nil {
		return decimal.Zero, err
	}
	return ToHumanUnits(standard, ref), nil
}

func pow10(n int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
