// Package money provides currency-safe formatting and arithmetic using
// integer minor units and the Fowler Money pattern. Statement amounts are
// parsed into shopspring decimals; this package renders them for API
// responses with proper ISO-4217 handling.
package money

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	INR = "INR" // Indian Rupee, the default statement currency
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	AED = "AED" // UAE Dirham
	SGD = "SGD" // Singapore Dollar
)

// Money represents a monetary value with currency. It wraps go-money for
// safe arithmetic and shopspring/decimal for precision conversions.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units and a currency code.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, currencyCode)}
}

// NewFromDecimal creates Money from a decimal amount in major units.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(INR)
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	minor := amount.Mul(multiplier).Round(0).IntPart()
	return New(minor, currency.Code)
}

// NewFromString parses a printed amount such as "1,23,456.78" or "₹500".
func NewFromString(amount, currencyCode string) (*Money, error) {
	amount = strings.TrimSpace(amount)
	amount = strings.ReplaceAll(amount, " ", "")
	for _, sym := range []string{"₹", "$", "€", "£", "Rs.", "Rs"} {
		amount = strings.ReplaceAll(amount, sym, "")
	}
	amount = strings.ReplaceAll(amount, ",", "")

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	return NewFromDecimal(d, currencyCode), nil
}

// Zero returns a zero Money value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the value in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero reports whether the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Add adds two Money values. Returns an error on currency mismatch.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Subtract subtracts other from m. Returns an error on currency mismatch.
func (m *Money) Subtract(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		if other == nil || other.m == nil {
			return Zero(INR), nil
		}
		return &Money{m: other.m.Negative()}, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Subtract(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Display returns a locale-formatted string such as "₹1,234.56".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}

// String returns the amount as a plain decimal string such as "1234.56".
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// ToDecimal converts back to major units for precise calculations.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	divisor := decimal.New(1, int32(m.m.Currency().Fraction))
	return decimal.NewFromInt(m.m.Amount()).Div(divisor)
}

// FormatDecimal renders a decimal amount in the given currency, used for
// statement metadata in API responses. A nil amount renders as "".
func FormatDecimal(amount *decimal.Decimal, currencyCode string) string {
	if amount == nil {
		return ""
	}
	return NewFromDecimal(*amount, currencyCode).Display()
}
