package model

import (
	"bytes"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for anything that is not a decimal u128.
var ErrInvalidAmount = errors.New("invalid u128 amount")

// maxAmount = 2^128 - 1
var maxAmount = decimal.RequireFromString("340282366920938463463374607431768211455")

// Amount is an unsigned 128-bit ledger amount in the smallest unit.
// It travels as a decimal string in JSON and is stored as text.
type Amount struct {
	d decimal.Decimal
}

// NewAmount builds an Amount from a uint64.
func NewAmount(v uint64) Amount {
	return Amount{d: decimal.NewFromUint64(v)}
}

// ParseAmount accepts only plain base-10 digits within the u128 range.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidAmount
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Cmp(maxAmount) > 0 {
		return Amount{}, fmt.Errorf("%w: %q overflows u128", ErrInvalidAmount, s)
	}
	return Amount{d: d}, nil
}

// MustAmount panics on invalid input. Intended for constants and tests.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) String() string { return a.d.String() }

func (a Amount) IsZero() bool { return a.d.IsZero() }

func (a Amount) Cmp(o Amount) int { return a.d.Cmp(o.d) }

func (a Amount) LessThan(o Amount) bool { return a.d.LessThan(o.d) }

func (a Amount) Equal(o Amount) bool { return a.d.Equal(o.d) }

// Excess returns a - o, floored at zero.
func (a Amount) Excess(o Amount) Amount {
	if !o.d.LessThan(a.d) {
		return Amount{}
	}
	return Amount{d: a.d.Sub(o.d)}
}

// Add fails instead of wrapping past 2^128 - 1.
func (a Amount) Add(o Amount) (Amount, error) {
	sum := a.d.Add(o.d)
	if sum.Cmp(maxAmount) > 0 {
		return Amount{}, fmt.Errorf("%w: %s + %s overflows u128", ErrInvalidAmount, a, o)
	}
	return Amount{d: sum}, nil
}

// Sub fails when o > a.
func (a Amount) Sub(o Amount) (Amount, error) {
	if a.d.LessThan(o.d) {
		return Amount{}, fmt.Errorf("%w: %s - %s underflows", ErrInvalidAmount, a, o)
	}
	return Amount{d: a.d.Sub(o.d)}, nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts the quoted form and, leniently, a bare integer.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("%w: null", ErrInvalidAmount)
	}
	s := string(b)
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		s = string(b[1 : len(b)-1])
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value stores the amount as its decimal text.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return a.scanString(v)
	case []byte:
		return a.scanString(string(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidAmount, v)
		}
		*a = NewAmount(uint64(v))
		return nil
	case nil:
		*a = Amount{}
		return nil
	default:
		return fmt.Errorf("scan amount: unsupported type %T", src)
	}
}

func (a *Amount) scanString(s string) error {
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
