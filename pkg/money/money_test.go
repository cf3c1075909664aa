package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		minor    int64
		currency string
		want     int64
	}{
		{"positive paise", 123456, INR, 123456},
		{"zero", 0, INR, 0},
		{"negative", -5000, INR, -5000},
		{"dollars", 1234, USD, 1234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.minor, tt.currency)
			assert.Equal(t, tt.want, m.Amount())
			assert.Equal(t, tt.currency, m.Currency())
		})
	}
}

func TestNewFromDecimal(t *testing.T) {
	m := NewFromDecimal(decimal.RequireFromString("1234.56"), INR)
	assert.Equal(t, int64(123456), m.Amount())
	assert.Equal(t, "1234.56", m.String())

	t.Run("rounds to minor units", func(t *testing.T) {
		m := NewFromDecimal(decimal.RequireFromString("12.345"), INR)
		assert.Equal(t, int64(1235), m.Amount())
	})

	t.Run("unknown currency falls back to INR", func(t *testing.T) {
		m := NewFromDecimal(decimal.RequireFromString("10"), "???")
		assert.Equal(t, INR, m.Currency())
	})
}

func TestNewFromString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234.56", "1234.56"},
		{"1,23,456.78", "123456.78"},
		{"₹500", "500.00"},
		{"Rs. 99.50", "99.50"},
		{"-450.00", "-450.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := NewFromString(tt.in, INR)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.String())
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := NewFromString("12AB.CD", INR)
		assert.Error(t, err)
	})
}

func TestArithmetic(t *testing.T) {
	a := New(10000, INR)
	b := New(2500, INR)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(12500), sum.Amount())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, int64(7500), diff.Amount())

	t.Run("currency mismatch", func(t *testing.T) {
		_, err := a.Add(New(100, USD))
		assert.Error(t, err)
	})

	t.Run("nil receiver behaves as zero", func(t *testing.T) {
		var z *Money
		sum, err := z.Add(a)
		require.NoError(t, err)
		assert.Equal(t, a.Amount(), sum.Amount())

		neg, err := z.Subtract(b)
		require.NoError(t, err)
		assert.Equal(t, int64(-2500), neg.Amount())

		assert.True(t, z.IsZero())
		assert.False(t, z.IsNegative())
	})
}

func TestDecimalRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("61251.00")
	m := NewFromDecimal(d, INR)
	assert.True(t, m.ToDecimal().Equal(d))
}

func TestPredicates(t *testing.T) {
	assert.True(t, Zero(INR).IsZero())
	assert.True(t, New(-1, INR).IsNegative())
	assert.False(t, New(1, INR).IsNegative())
}

func TestFormatDecimal(t *testing.T) {
	d := decimal.RequireFromString("12550")
	got := FormatDecimal(&d, INR)
	assert.Contains(t, got, "12,550")
	assert.Contains(t, got, "₹")

	assert.Empty(t, FormatDecimal(nil, INR))
}
