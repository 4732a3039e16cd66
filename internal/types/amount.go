package types

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrLedgerUnderflow is fatal: it means a checked subtraction would have
// driven a balance negative. Callers must halt further mutation of the
// affected asset rather than paper over it.
var ErrLedgerUnderflow = errors.New("ledger: arithmetic underflow")

// Amount is an arbitrary-precision fixed-point value used for every
// price, quantity, and balance in the core. Floating point never appears
// here or in any package built on top of it.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero}

// NewAmountFromString parses a decimal string (e.g. "50000.25") into an
// Amount. Returns an error on malformed input; never silently truncates.
func NewAmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{d: d}, nil
}

// NewAmountFromInt builds an Amount from a plain integer, useful in tests
// and for quantities that are naturally whole units.
func NewAmountFromInt(i int64) Amount {
	return Amount{d: decimal.NewFromInt(i)}
}

func (a Amount) String() string { return a.d.String() }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

// IsNegative reports whether the amount is strictly less than zero.
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// Cmp compares a to b: -1, 0, or 1.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// Equal reports whether a and b represent the same value.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// GreaterThan reports whether a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }

// GreaterThanOrEqual reports whether a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

// LessThanOrEqual reports whether a <= b.
func (a Amount) LessThanOrEqual(b Amount) bool { return a.d.LessThanOrEqual(b.d) }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Mul returns a * b.
func (a Amount) Mul(b Amount) Amount { return Amount{d: a.d.Mul(b.d)} }

// Sub returns a - b, or ErrLedgerUnderflow if the result would be
// negative and allowNegative is false. Matching engines and ledgers
// never want a silently negative balance.
func (a Amount) Sub(b Amount, allowNegative bool) (Amount, error) {
	r := a.d.Sub(b.d)
	if !allowNegative && r.IsNegative() {
		return Amount{}, ErrLedgerUnderflow
	}
	return Amount{d: r}, nil
}

// CanonicalBytes returns a byte-stable encoding of the amount for use in
// canonical encodings that feed hashes. Decimal.String() already produces
// a minimal, unambiguous representation for a given value.
func (a Amount) CanonicalBytes() []byte { return []byte(a.d.String()) }
