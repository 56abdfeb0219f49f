package host

import (
	"cosmossdk.io/math"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
)

// Engine is the surface the pool/market engine exposes to the controller.
// The engine owns pricing, token custody and the fee-donation primitive; the
// controller only consumes them.
type Engine interface {
	// PoolBalance returns the gross on-hand balance the pool holds for one
	// asset, independent of how much of it the controller has deployed.
	PoolBalance(poolID types.PoolID, asset types.AssetID) (math.Int, error)

	// PriceState returns the current sqrt price, in-range liquidity and the
	// bounds of the active price interval.
	PriceState(poolID types.PoolID) (types.PriceState, error)

	// Donate credits amounts to whoever holds liquidity at the currently
	// active price interval.
	Donate(poolID types.PoolID, amountA, amountB math.Int) error

	// Take moves funds from pool custody into controller-held idle balance.
	Take(poolID types.PoolID, asset types.AssetID, amount math.Int) error

	// Settle returns controller-held funds to pool custody.
	Settle(poolID types.PoolID, asset types.AssetID, amount math.Int) error
}
