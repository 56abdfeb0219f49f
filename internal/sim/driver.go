package sim

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/controller"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/host"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/logger"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/vault"
)

// q96 is the Q64.96 scale used for simulated sqrt prices.
var q96 = math.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 96))

// PoolSpec describes one simulated pool.
type PoolSpec struct {
	PoolID types.PoolID
	AssetA types.AssetID
	AssetB types.AssetID
}

// Driver replays synthetic trade, liquidity and sweep traffic against the
// controller so the full pipeline (predictor, distribution, rebalancer,
// journal) can be observed without a live host engine.
type Driver struct {
	logger     zerolog.Logger
	controller *controller.Controller
	host       *host.Sim
	vaults     map[types.AssetID]*vault.Sim
	pools      []PoolSpec
	rng        *rand.Rand
	cycleCount int
}

// NewDriver wires a driver over the simulated host and vaults.
func NewDriver(ctrl *controller.Controller, hostSim *host.Sim, vaults map[types.AssetID]*vault.Sim, pools []PoolSpec, seed int64) (*Driver, error) {
	if ctrl == nil || hostSim == nil {
		return nil, fmt.Errorf("controller and host simulator are required")
	}
	if len(pools) == 0 {
		return nil, fmt.Errorf("at least one pool spec is required")
	}
	return &Driver{
		logger:     logger.GetForComponent("sim_driver"),
		controller: ctrl,
		host:       hostSim,
		vaults:     vaults,
		pools:      pools,
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// Bootstrap creates the simulated pools and seeds their balances and prices.
func (d *Driver) Bootstrap() error {
	for _, p := range d.pools {
		seed := math.NewInt(1_000_000 + d.rng.Int63n(9_000_000))
		d.host.SetPoolBalance(p.PoolID, p.AssetA, seed)
		d.host.SetPoolBalance(p.PoolID, p.AssetB, seed)
		d.host.SetPriceState(p.PoolID, d.priceStateAround(q96))

		if err := d.controller.OnPoolCreated(p.PoolID, p.AssetA, p.AssetB); err != nil {
			return fmt.Errorf("failed to create pool %s: %w", p.PoolID, err)
		}
	}
	d.logger.Info().Int("pools", len(d.pools)).Msg("Simulated pools bootstrapped")
	return nil
}

// RunLoop runs cycles until the context is cancelled.
func (d *Driver) RunLoop(ctx context.Context, interval time.Duration) {
	d.logger.Info().Dur("interval", interval).Msg("Starting simulation loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.runCycle()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("Simulation loop stopped due to context cancellation")
			return
		case <-ticker.C:
			d.runCycle()
		}
	}
}

// runCycle drives one round of synthetic traffic across every pool.
func (d *Driver) runCycle() {
	d.cycleCount++
	cycleLogger := d.logger.With().
		Str("cycle_id", uuid.New().String()).
		Int("cycle", d.cycleCount).
		Logger()
	cycleLogger.Info().Msg("--- Starting simulation cycle ---")

	// Vault rates drift upward a little each cycle so yield accrues.
	for asset, v := range d.vaults {
		factor := math.LegacyOneDec().Add(math.LegacyNewDecWithPrec(int64(1+d.rng.Intn(5)), 3))
		if err := v.AccrueYield(factor); err != nil {
			cycleLogger.Error().Err(err).Str("asset", string(asset)).Msg("Failed to accrue simulated yield")
		}
	}

	for _, p := range d.pools {
		if err := d.tradeOnce(cycleLogger, p); err != nil {
			cycleLogger.Error().Err(err).Str("pool", string(p.PoolID)).Msg("Cycle aborted for pool")
			continue
		}

		// Occasionally sweep accumulated idle capital into the vaults.
		if d.rng.Intn(4) == 0 {
			if err := d.controller.RequestSweep(p.PoolID); err != nil {
				cycleLogger.Error().Err(err).Str("pool", string(p.PoolID)).Msg("Sweep failed")
			}
		}
	}

	cycleLogger.Info().Msg("--- Simulation cycle completed ---")
}

// tradeOnce runs one synthetic trade through the full before/after sequence.
func (d *Driver) tradeOnce(cycleLogger zerolog.Logger, p PoolSpec) error {
	trade := types.TradeDescriptor{
		ZeroForOne: d.rng.Intn(2) == 0,
		ExactInput: d.rng.Intn(2) == 0,
		Amount:     math.NewInt(1_000 + d.rng.Int63n(50_000)),
	}

	if err := d.controller.BeforeTrade(p.PoolID, trade); err != nil {
		return fmt.Errorf("before trade: %w", err)
	}

	// The simulated settlement flows a fraction of the trade through the
	// controller's custody, alternating direction with the trade side.
	flow := trade.Amount.QuoRaw(2)
	delta := types.ZeroBalanceDelta()
	if trade.ZeroForOne {
		delta.AmountA = flow
		delta.AmountB = flow.Neg()
	} else {
		delta.AmountA = flow.Neg()
		delta.AmountB = flow
	}
	if err := d.ensureIdleCoverage(p, delta); err != nil {
		return err
	}
	if err := d.controller.AfterTrade(p.PoolID, delta); err != nil {
		return fmt.Errorf("after trade: %w", err)
	}

	// Drift the pool's gross balances and price to keep later cycles honest.
	for asset, amt := range map[types.AssetID]math.Int{p.AssetA: delta.AmountA, p.AssetB: delta.AmountB} {
		gross, err := d.host.PoolBalance(p.PoolID, asset)
		if err != nil {
			return err
		}
		d.host.SetPoolBalance(p.PoolID, asset, math.MaxInt(gross.Add(amt), math.ZeroInt()))
	}
	drift := math.NewInt(int64(d.rng.Intn(1 << 20)))
	if d.rng.Intn(2) == 0 {
		drift = drift.Neg()
	}
	d.host.SetPriceState(p.PoolID, d.priceStateAround(q96.Add(drift)))

	cycleLogger.Debug().
		Str("pool", string(p.PoolID)).
		Bool("zero_for_one", trade.ZeroForOne).
		Str("amount", trade.Amount.String()).
		Msg("Synthetic trade settled")
	return nil
}

// ensureIdleCoverage tops up controller idle custody through a positive
// inflow before simulating an outflow that the fresh controller could not
// otherwise cover.
func (d *Driver) ensureIdleCoverage(p PoolSpec, delta types.BalanceDelta) error {
	st, err := d.controller.PoolState(p.PoolID)
	if err != nil {
		return err
	}

	top := types.ZeroBalanceDelta()
	needed := false
	if delta.AmountA.IsNegative() && st.IdleBalanceA.Add(st.ShareBalanceA).LT(delta.AmountA.Neg()) {
		top.AmountA = delta.AmountA.Neg().MulRaw(2)
		needed = true
	}
	if delta.AmountB.IsNegative() && st.IdleBalanceB.Add(st.ShareBalanceB).LT(delta.AmountB.Neg()) {
		top.AmountB = delta.AmountB.Neg().MulRaw(2)
		needed = true
	}
	if !needed {
		return nil
	}
	return d.controller.AfterLiquidityChange(p.PoolID, top)
}

// priceStateAround builds a plausible active interval around a sqrt price,
// one percent wide, with mid-sized liquidity.
func (d *Driver) priceStateAround(sqrtPrice math.Int) types.PriceState {
	halfWidth := sqrtPrice.QuoRaw(200)
	return types.PriceState{
		SqrtPriceX96:      sqrtPrice,
		Liquidity:         math.NewInt(10_000_000),
		SqrtPriceLowerX96: sqrtPrice.Sub(halfWidth),
		SqrtPriceUpperX96: sqrtPrice.Add(halfWidth),
	}
}
