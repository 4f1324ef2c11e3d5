package money

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sponsorbridge/backend/internal/apperr"
)

// NanoScale matches chain nanounits: 1 TON = 1e9 nano.
const NanoScale = 9

// Amount is a fixed-decimal money value. Floating point never enters the
// arithmetic; everything goes through decimal at scale 9.
type Amount struct {
	d decimal.Decimal
}

func Zero() Amount {
	return Amount{d: decimal.Zero}
}

func FromDecimalString(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: invalid amount %q", apperr.ErrValidation, s)
	}
	return Amount{d: d.Round(NanoScale)}, nil
}

func FromNano(nano *big.Int) Amount {
	return Amount{d: decimal.NewFromBigInt(nano, -NanoScale)}
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// MulPercent scales the amount by pct/100, rounded half-even at scale 9.
func (a Amount) MulPercent(pct int) Amount {
	p := decimal.NewFromInt(int64(pct)).Div(decimal.NewFromInt(100))
	return Amount{d: a.d.Mul(p).RoundBank(NanoScale)}
}

func (a Amount) IsPositive() bool      { return a.d.IsPositive() }
func (a Amount) Cmp(b Amount) int      { return a.d.Cmp(b.d) }
func (a Amount) String() string        { return a.d.String() }
func (a Amount) Equal(b Amount) bool   { return a.d.Equal(b.d) }

// ToNano converts to integer nanounits.
func (a Amount) ToNano() *big.Int {
	return a.d.Shift(NanoScale).Round(0).BigInt()
}

// FeeSplit is the outcome of SubtractFee: payout = amount - fee.
type FeeSplit struct {
	Fee    Amount
	Payout Amount
}

// SubtractFee carves the platform fee out of an amount. Rounds the fee
// half-even at scale 9 so fee+payout always reassembles the original.
func SubtractFee(amount Amount, pct int) (FeeSplit, error) {
	if pct < 0 || pct > 100 {
		return FeeSplit{}, fmt.Errorf("%w: fee percent %d out of range", apperr.ErrValidation, pct)
	}
	fee := amount.MulPercent(pct)
	return FeeSplit{Fee: fee, Payout: amount.Sub(fee)}, nil
}
