/*

Boundary-cross prediction for v4-style concentrated liquidity pools.

Given the pool's current Q64.96 sqrt price, the liquidity active at that
price, and a proposed trade, these functions decide whether the trade will
push the price out of the active interval. The next-price formulas and their
rounding directions mirror the engine's own price-impact math: the predictor
must never disagree with the engine about whether a boundary is reached.

All functions are pure. Inputs are never mutated.

*/

package amm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
)

var (
	ErrInvalidPriceState = errors.New("invalid price state")
	ErrNegativeAmount    = errors.New("trade amount is negative")
)

// q96 is the Q64.96 fixed-point scale (2^96).
//
// The next-price formulas multiply liquidity, Q96 and a sqrt price together,
// so intermediates can exceed the 256-bit limit math.Int enforces. All
// predictor arithmetic therefore runs on raw big.Int and only the inputs
// arrive as math.Int.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// WillCrossBoundary reports whether the proposed trade moves the price out
// of the active interval [SqrtPriceLowerX96, SqrtPriceUpperX96).
//
// A zero-magnitude trade never crosses. A non-zero trade against zero
// in-range liquidity always crosses: there is nothing at this price to
// absorb it.
func WillCrossBoundary(ps types.PriceState, trade types.TradeDescriptor) (bool, error) {
	if err := validatePriceState(ps); err != nil {
		return false, err
	}
	if trade.Amount.IsNil() || trade.Amount.IsNegative() {
		return false, ErrNegativeAmount
	}
	if trade.Amount.IsZero() {
		return false, nil
	}
	if ps.Liquidity.IsZero() {
		return true, nil
	}

	next, ok := nextSqrtPrice(ps, trade)
	if !ok {
		// The requested output exceeds what in-range liquidity can provide;
		// the swap necessarily continues past the boundary.
		return true, nil
	}

	if trade.ZeroForOne {
		// Price moves down; reaching the lower bound crosses the tick.
		return next.Cmp(ps.SqrtPriceLowerX96.BigInt()) <= 0, nil
	}
	return next.Cmp(ps.SqrtPriceUpperX96.BigInt()) >= 0, nil
}

// RangeContains reports whether the current price falls inside the interval
// [lower, upper). Liquidity changes on an interval containing the active
// price alter the in-range beneficiary set.
func RangeContains(ps types.PriceState, r types.LiquidityRange) (bool, error) {
	if err := validatePriceState(ps); err != nil {
		return false, err
	}
	if r.SqrtPriceLowerX96.IsNil() || r.SqrtPriceUpperX96.IsNil() ||
		!r.SqrtPriceLowerX96.IsPositive() || r.SqrtPriceLowerX96.GTE(r.SqrtPriceUpperX96) {
		return false, fmt.Errorf("%w: range [%s, %s)", ErrInvalidPriceState, r.SqrtPriceLowerX96, r.SqrtPriceUpperX96)
	}
	return ps.SqrtPriceX96.GTE(r.SqrtPriceLowerX96) && ps.SqrtPriceX96.LT(r.SqrtPriceUpperX96), nil
}

// nextSqrtPrice computes the post-trade sqrt price assuming the whole
// magnitude fills against current in-range liquidity. The second return is
// false when the interval cannot supply the requested exact output.
func nextSqrtPrice(ps types.PriceState, trade types.TradeDescriptor) (*big.Int, bool) {
	sqrtP := ps.SqrtPriceX96.BigInt()
	liq := ps.Liquidity.BigInt()
	amount := trade.Amount.BigInt()

	switch {
	case trade.ZeroForOne && trade.ExactInput:
		// Token0 in, price down:
		//   next = L*Q96*sqrtP / (L*Q96 + amount*sqrtP), rounded up
		// Rounding up keeps the predicted price no lower than the engine's.
		numerator := new(big.Int).Mul(liq, q96)
		denominator := new(big.Int).Add(numerator, new(big.Int).Mul(amount, sqrtP))
		return ceilDiv(numerator.Mul(numerator, sqrtP), denominator), true

	case trade.ZeroForOne && !trade.ExactInput:
		// Token1 out, price down:
		//   next = sqrtP - amount*Q96/L, quotient rounded up
		quotient := ceilDiv(new(big.Int).Mul(amount, q96), liq)
		next := new(big.Int).Sub(sqrtP, quotient)
		if next.Sign() <= 0 {
			return nil, false
		}
		return next, true

	case !trade.ZeroForOne && trade.ExactInput:
		// Token1 in, price up:
		//   next = sqrtP + amount*Q96/L, quotient rounded down
		quotient := new(big.Int).Quo(new(big.Int).Mul(amount, q96), liq)
		return quotient.Add(sqrtP, quotient), true

	default:
		// Token0 out, price up:
		//   next = L*Q96*sqrtP / (L*Q96 - amount*sqrtP), rounded up
		numerator := new(big.Int).Mul(liq, q96)
		denominator := new(big.Int).Sub(numerator, new(big.Int).Mul(amount, sqrtP))
		if denominator.Sign() <= 0 {
			return nil, false
		}
		return ceilDiv(numerator.Mul(numerator, sqrtP), denominator), true
	}
}

func validatePriceState(ps types.PriceState) error {
	if ps.SqrtPriceX96.IsNil() || ps.Liquidity.IsNil() ||
		ps.SqrtPriceLowerX96.IsNil() || ps.SqrtPriceUpperX96.IsNil() {
		return fmt.Errorf("%w: nil field", ErrInvalidPriceState)
	}
	if !ps.SqrtPriceX96.IsPositive() {
		return fmt.Errorf("%w: sqrt price %s", ErrInvalidPriceState, ps.SqrtPriceX96)
	}
	if ps.Liquidity.IsNegative() {
		return fmt.Errorf("%w: liquidity %s", ErrInvalidPriceState, ps.Liquidity)
	}
	if !ps.SqrtPriceLowerX96.IsPositive() || ps.SqrtPriceLowerX96.GTE(ps.SqrtPriceUpperX96) {
		return fmt.Errorf("%w: interval [%s, %s)", ErrInvalidPriceState, ps.SqrtPriceLowerX96, ps.SqrtPriceUpperX96)
	}
	return nil
}

// ceilDiv divides two positive integers rounding the quotient up.
func ceilDiv(a, b *big.Int) *big.Int {
	quotient, remainder := new(big.Int).QuoRem(a, b, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}
