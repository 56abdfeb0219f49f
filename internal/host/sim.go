package host

import (
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
)

var (
	ErrUnknownPool  = errors.New("unknown pool")
	ErrNegativeFlow = errors.New("negative custody amount")
)

// Donation records one Donate call for inspection by the driver and tests.
type Donation struct {
	PoolID  types.PoolID
	AmountA math.Int
	AmountB math.Int
}

// Sim is an in-process host engine. It tracks gross pool balances and price
// state per pool and records donations instead of distributing them.
type Sim struct {
	mu sync.Mutex

	balances  map[types.PoolID]map[types.AssetID]math.Int
	prices    map[types.PoolID]types.PriceState
	donations []Donation
}

// NewSim creates an empty simulated host engine.
func NewSim() *Sim {
	return &Sim{
		balances: make(map[types.PoolID]map[types.AssetID]math.Int),
		prices:   make(map[types.PoolID]types.PriceState),
	}
}

// SetPoolBalance sets the gross on-hand balance for one asset of a pool.
func (h *Sim) SetPoolBalance(poolID types.PoolID, asset types.AssetID, amount math.Int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.balances[poolID] == nil {
		h.balances[poolID] = make(map[types.AssetID]math.Int)
	}
	h.balances[poolID][asset] = amount
}

// SetPriceState sets the current price state for a pool.
func (h *Sim) SetPriceState(poolID types.PoolID, ps types.PriceState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prices[poolID] = ps
}

func (h *Sim) PoolBalance(poolID types.PoolID, asset types.AssetID) (math.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	assets, ok := h.balances[poolID]
	if !ok {
		return math.Int{}, fmt.Errorf("%w: %s", ErrUnknownPool, poolID)
	}
	bal, ok := assets[asset]
	if !ok {
		return math.ZeroInt(), nil
	}
	return bal, nil
}

func (h *Sim) PriceState(poolID types.PoolID) (types.PriceState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, ok := h.prices[poolID]
	if !ok {
		return types.PriceState{}, fmt.Errorf("%w: %s", ErrUnknownPool, poolID)
	}
	return ps, nil
}

func (h *Sim) Donate(poolID types.PoolID, amountA, amountB math.Int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if amountA.IsNegative() || amountB.IsNegative() {
		return fmt.Errorf("%w: donate %s/%s", ErrNegativeFlow, amountA, amountB)
	}
	h.donations = append(h.donations, Donation{PoolID: poolID, AmountA: amountA, AmountB: amountB})
	return nil
}

func (h *Sim) Take(poolID types.PoolID, asset types.AssetID, amount math.Int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if amount.IsNegative() {
		return fmt.Errorf("%w: take %s", ErrNegativeFlow, amount)
	}
	return nil
}

func (h *Sim) Settle(poolID types.PoolID, asset types.AssetID, amount math.Int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if amount.IsNegative() {
		return fmt.Errorf("%w: settle %s", ErrNegativeFlow, amount)
	}
	return nil
}

// Donations returns a copy of the recorded Donate calls.
func (h *Sim) Donations() []Donation {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Donation, len(h.donations))
	copy(out, h.donations)
	return out
}
