package types

import (
	"cosmossdk.io/math"
)

// TradeDescriptor describes a proposed swap before it executes.
type TradeDescriptor struct {
	// ZeroForOne is true when the trade sells asset A for asset B,
	// pushing the price down.
	ZeroForOne bool `json:"zero_for_one"`

	// ExactInput is true when Amount is the input magnitude, false when it
	// is the requested output magnitude.
	ExactInput bool `json:"exact_input"`

	// Amount is the trade magnitude, always non-negative.
	Amount math.Int `json:"amount"`
}

// PriceState is the host engine's view of the pool at the current price:
// the sqrt price in Q64.96, the liquidity active at that price, and the
// sqrt-price bounds of the active interval.
type PriceState struct {
	SqrtPriceX96      math.Int `json:"sqrt_price_x96"`
	Liquidity         math.Int `json:"liquidity"`
	SqrtPriceLowerX96 math.Int `json:"sqrt_price_lower_x96"`
	SqrtPriceUpperX96 math.Int `json:"sqrt_price_upper_x96"`
}

// LiquidityRange is the price range of a liquidity change, in the same
// Q64.96 sqrt-price representation the host uses.
type LiquidityRange struct {
	SqrtPriceLowerX96 math.Int `json:"sqrt_price_lower_x96"`
	SqrtPriceUpperX96 math.Int `json:"sqrt_price_upper_x96"`
}

// BalanceDelta is the signed net amount per asset about to flow into
// (positive) or out of (negative) the pool's on-hand balance as part of the
// operation in progress.
type BalanceDelta struct {
	AmountA math.Int `json:"amount_a"`
	AmountB math.Int `json:"amount_b"`
}

// ZeroBalanceDelta returns a delta with both legs at zero.
func ZeroBalanceDelta() BalanceDelta {
	return BalanceDelta{AmountA: math.ZeroInt(), AmountB: math.ZeroInt()}
}
