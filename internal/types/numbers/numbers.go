package numbers

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// UNIT is the fixed point scale of reward rates (1e18).
var UNIT = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// MAX_BPS is the denominator of basis point values.
const MAX_BPS = 10000

// Zero returns a fresh zero valued big.Int.
func Zero() *big.Int {
	return new(big.Int)
}

// Copy returns a copy of v, treating nil as zero.
func Copy(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// MulDiv returns floor(a * b / c). c must be non-zero.
func MulDiv(a, b, c *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Quo(r, c)
}

// Min returns the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Sum adds all of the values, treating nil as zero.
func Sum(values ...*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range values {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}

// RewardPerPeriod returns objective * rewardPerVote / UNIT.
func RewardPerPeriod(objective, rewardPerVote *big.Int) *big.Int {
	return MulDiv(objective, rewardPerVote, UNIT)
}

// FeeAmount returns amount * feeBps / MAX_BPS.
func FeeAmount(amount *big.Int, feeBps uint64) *big.Int {
	return MulDiv(amount, new(big.Int).SetUint64(feeBps), big.NewInt(MAX_BPS))
}

// ParseAmount parses a non-negative integer amount. Scientific notation such as
// "150000e18" is accepted as long as the result is integral.
func ParseAmount(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount '%s': %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount '%s': negative", s)
	}
	if !d.Equal(d.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount '%s': not an integer", s)
	}
	return d.BigInt(), nil
}

// MustParseAmount is ParseAmount for constants. It panics on invalid input.
func MustParseAmount(s string) *big.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Ratio returns a / b as a decimal string with the given number of places.
// A zero denominator yields "0".
func Ratio(a, b *big.Int, places int32) string {
	if b == nil || b.Sign() == 0 {
		return decimal.Zero.StringFixed(places)
	}
	return decimal.NewFromBigInt(a, 0).DivRound(decimal.NewFromBigInt(b, 0), places).StringFixed(places)
}

// ToUnits renders a raw amount scaled down by UNIT, e.g. 1500e18 becomes "1500".
func ToUnits(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -18).String()
}

// UnitsFloat returns the amount scaled down by UNIT as a float, for metrics.
func UnitsFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(v, -18).Float64()
	return f
}
