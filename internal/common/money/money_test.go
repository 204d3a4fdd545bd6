package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cents, err := Parse("12.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), cents)

	cents, err = Parse("0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cents)

	_, err = Parse("-1")
	assert.ErrorIs(t, err, ErrNegative)

	_, err = Parse("1.005")
	assert.ErrorIs(t, err, ErrPrecision)

	_, err = Parse("abc")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12.50", Format(1250))
	assert.Equal(t, "0.00", Format(0))
	assert.Equal(t, "0.07", Format(7))
}

func TestFromDecimalRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("99.99")
	cents, err := FromDecimal(d)
	require.NoError(t, err)
	assert.True(t, ToDecimal(cents).Equal(d))
}
