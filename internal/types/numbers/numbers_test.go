package numbers

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Numbers(t *testing.T) {
	t.Run("ParseAmount", func(t *testing.T) {
		t.Run("Should parse scientific notation", func(t *testing.T) {
			v, err := ParseAmount("150000e18")
			assert.Nil(t, err)
			assert.Equal(t, "150000000000000000000000", v.String())
		})
		t.Run("Should parse plain integers", func(t *testing.T) {
			v, err := ParseAmount("42")
			assert.Nil(t, err)
			assert.Equal(t, int64(42), v.Int64())
		})
		t.Run("Should parse fractional mantissas that scale to integers", func(t *testing.T) {
			v, err := ParseAmount("0.5e18")
			assert.Nil(t, err)
			assert.Equal(t, "500000000000000000", v.String())
		})
		t.Run("Should reject negatives", func(t *testing.T) {
			_, err := ParseAmount("-1")
			assert.NotNil(t, err)
		})
		t.Run("Should reject fractions", func(t *testing.T) {
			_, err := ParseAmount("1.5")
			assert.NotNil(t, err)
		})
		t.Run("Should reject garbage", func(t *testing.T) {
			_, err := ParseAmount("abc")
			assert.NotNil(t, err)
		})
	})

	t.Run("RewardPerPeriod", func(t *testing.T) {
		objective := MustParseAmount("150000e18")
		rpv := MustParseAmount("0.1e18")
		assert.Equal(t, MustParseAmount("15000e18").String(), RewardPerPeriod(objective, rpv).String())
	})

	t.Run("FeeAmount", func(t *testing.T) {
		assert.Equal(t, MustParseAmount("2400e18").String(), FeeAmount(MustParseAmount("60000e18"), 400).String())
	})

	t.Run("MulDiv truncates", func(t *testing.T) {
		assert.Equal(t, int64(3), MulDiv(big.NewInt(10), big.NewInt(1), big.NewInt(3)).Int64())
	})

	t.Run("Ratio", func(t *testing.T) {
		assert.Equal(t, "0.5000", Ratio(big.NewInt(1), big.NewInt(2), 4))
		assert.Equal(t, "0.0000", Ratio(big.NewInt(1), big.NewInt(0), 4))
	})

	t.Run("ToUnits", func(t *testing.T) {
		assert.Equal(t, "1500", ToUnits(MustParseAmount("1500e18")))
		assert.Equal(t, "0.25", ToUnits(MustParseAmount("0.25e18")))
	})

	t.Run("Sum and Copy", func(t *testing.T) {
		a := big.NewInt(5)
		c := Copy(a)
		c.Add(c, big.NewInt(1))
		assert.Equal(t, int64(5), a.Int64())
		assert.Equal(t, int64(11), Sum(a, nil, c).Int64())
		assert.Equal(t, int64(0), Copy(nil).Int64())
	})
}
