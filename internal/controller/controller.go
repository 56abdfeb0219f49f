package controller

import (
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/amm"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/config"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/host"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/logger"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/registry"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/state"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/vault"
)

var (
	ErrUnauthorized     = errors.New("caller is not the configured manager")
	ErrInsufficientIdle = errors.New("idle balance cannot cover pending outflow")
)

// Journal receives committed state and controller actions for observability.
// Journal failures are logged and swallowed: observability must never abort
// a host operation that already succeeded.
type Journal interface {
	SaveState(st types.PoolYieldState) error
	RecordEvent(ev state.YieldEvent) error
}

// Controller is the buffered yield controller: it keeps part of each pool's
// capital idle, deploys the rest into bound yield vaults, and donates
// accrued yield to in-range liquidity when the active interval is about to
// change.
//
// The host engine drives it through the lifecycle methods. Every method is
// atomic: a per-pool operation lock serializes the whole read-mutate-commit
// sequence, mutations happen on a private copy of the pool record, and the
// copy is committed only when the whole operation succeeded. The lock is what
// lets the permissionless sweep path interleave with host lifecycle calls
// without losing updates.
type Controller struct {
	logger   zerolog.Logger
	host     host.Engine
	registry registry.Registry
	store    *state.Store
	journal  Journal

	manager string

	mu         sync.Mutex
	thresholds config.BufferThresholds
	poolLocks  map[types.PoolID]*sync.Mutex
}

// Config holds the dependencies for creating a new Controller instance.
type Config struct {
	Host       host.Engine
	Registry   registry.Registry
	Thresholds config.BufferThresholds
	Manager    string
	Journal    Journal
}

// NewController creates a controller with dependency injection.
func NewController(cfg Config) (*Controller, error) {
	if err := validateControllerConfig(cfg); err != nil {
		return nil, fmt.Errorf("controller configuration validation failed: %w", err)
	}

	c := &Controller{
		logger:     logger.GetForComponent("yield_controller"),
		host:       cfg.Host,
		registry:   cfg.Registry,
		store:      state.NewStore(),
		journal:    cfg.Journal,
		manager:    cfg.Manager,
		thresholds: cfg.Thresholds,
		poolLocks:  make(map[types.PoolID]*sync.Mutex),
	}

	c.logger.Info().
		Str("min", cfg.Thresholds.MinBufferRatio.String()).
		Str("target", cfg.Thresholds.TargetBufferRatio.String()).
		Str("max", cfg.Thresholds.MaxBufferRatio.String()).
		Msg("Yield controller created")

	return c, nil
}

func validateControllerConfig(cfg Config) error {
	if cfg.Host == nil {
		return fmt.Errorf("host engine cannot be nil")
	}
	if cfg.Registry == nil {
		return fmt.Errorf("vault registry cannot be nil")
	}
	if cfg.Manager == "" {
		return fmt.Errorf("manager principal cannot be empty")
	}
	return cfg.Thresholds.Validate()
}

// Thresholds returns the active buffer thresholds.
func (c *Controller) Thresholds() config.BufferThresholds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thresholds
}

// UpdateThresholds replaces the watermarks. Only the configured manager may
// call it, and invalid sets are rejected before they reach runtime state.
func (c *Controller) UpdateThresholds(manager string, t config.BufferThresholds) error {
	if manager != c.manager {
		return fmt.Errorf("%w: %s", ErrUnauthorized, manager)
	}
	if err := t.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.thresholds = t
	c.mu.Unlock()

	c.logger.Info().
		Str("min", t.MinBufferRatio.String()).
		Str("target", t.TargetBufferRatio.String()).
		Str("max", t.MaxBufferRatio.String()).
		Msg("Buffer thresholds updated")
	return nil
}

// PoolState returns a copy of the pool's yield record.
func (c *Controller) PoolState(poolID types.PoolID) (types.PoolYieldState, error) {
	return c.store.Get(poolID)
}

// Snapshot returns copies of all pool records, ordered by pool ID.
func (c *Controller) Snapshot() []types.PoolYieldState {
	return c.store.Snapshot()
}

// OnPoolCreated initializes the yield record for a new pool. Called exactly
// once per pool; a duplicate notification is a host contract violation.
func (c *Controller) OnPoolCreated(poolID types.PoolID, assetA, assetB types.AssetID) error {
	opLogger, _ := c.opLogger("on_pool_created", poolID)

	l := c.poolLock(poolID)
	l.Lock()
	defer l.Unlock()

	_, hasVaultA := c.registry.Resolve(assetA)
	_, hasVaultB := c.registry.Resolve(assetB)

	st := types.NewPoolYieldState(poolID, assetA, assetB, hasVaultA, hasVaultB)
	if err := c.store.Create(st); err != nil {
		return err
	}

	opLogger.Info().
		Str("asset_a", string(assetA)).
		Str("asset_b", string(assetB)).
		Bool("vault_a", hasVaultA).
		Bool("vault_b", hasVaultB).
		Msg("Pool yield state initialized")

	c.journalState(opLogger, st)
	return nil
}

// BeforeLiquidityChange runs before a liquidity add/remove. When the changed
// range contains the active price the in-range beneficiary set is about to
// change, so accrued yield is distributed first.
func (c *Controller) BeforeLiquidityChange(poolID types.PoolID, rng types.LiquidityRange) error {
	opLogger, opID := c.opLogger("before_liquidity_change", poolID)

	l := c.poolLock(poolID)
	l.Lock()
	defer l.Unlock()

	st, err := c.store.Get(poolID)
	if err != nil {
		return err
	}

	ps, err := c.host.PriceState(poolID)
	if err != nil {
		return fmt.Errorf("failed to query price state: %w", err)
	}
	inRange, err := amm.RangeContains(ps, rng)
	if err != nil {
		return err
	}
	if !inRange {
		opLogger.Debug().Msg("Range does not touch active interval, no distribution")
		return nil
	}

	if err := c.distributeYield(opLogger, opID, &st); err != nil {
		return err
	}
	if err := c.store.Commit(st); err != nil {
		return err
	}
	c.journalState(opLogger, st)
	return nil
}

// BeforeTrade runs before a swap. When the trade is predicted to push the
// price out of the active interval, accrued yield is distributed to the
// providers who were in range while it accrued.
func (c *Controller) BeforeTrade(poolID types.PoolID, trade types.TradeDescriptor) error {
	opLogger, opID := c.opLogger("before_trade", poolID)

	l := c.poolLock(poolID)
	l.Lock()
	defer l.Unlock()

	st, err := c.store.Get(poolID)
	if err != nil {
		return err
	}

	ps, err := c.host.PriceState(poolID)
	if err != nil {
		return fmt.Errorf("failed to query price state: %w", err)
	}
	crossing, err := amm.WillCrossBoundary(ps, trade)
	if err != nil {
		return err
	}
	if !crossing {
		opLogger.Debug().Msg("No boundary cross predicted, no distribution")
		return nil
	}

	opLogger.Info().
		Bool("zero_for_one", trade.ZeroForOne).
		Bool("exact_input", trade.ExactInput).
		Str("amount", trade.Amount.String()).
		Msg("Boundary cross predicted, distributing accrued yield")

	if err := c.distributeYield(opLogger, opID, &st); err != nil {
		return err
	}
	if err := c.store.Commit(st); err != nil {
		return err
	}
	c.journalState(opLogger, st)
	return nil
}

// AfterLiquidityChange runs after a liquidity add/remove settles its net
// balance delta. The rebalancer runs first so idle custody can cover a
// pending outflow, then the delta is applied to idle balances and principal.
func (c *Controller) AfterLiquidityChange(poolID types.PoolID, delta types.BalanceDelta) error {
	return c.afterBalanceChange("after_liquidity_change", poolID, delta)
}

// AfterTrade runs after a swap settles its net balance delta.
func (c *Controller) AfterTrade(poolID types.PoolID, delta types.BalanceDelta) error {
	return c.afterBalanceChange("after_trade", poolID, delta)
}

func (c *Controller) afterBalanceChange(op string, poolID types.PoolID, delta types.BalanceDelta) error {
	opLogger, opID := c.opLogger(op, poolID)

	l := c.poolLock(poolID)
	l.Lock()
	defer l.Unlock()

	st, err := c.store.Get(poolID)
	if err != nil {
		return err
	}

	if err := c.rebalance(opLogger, opID, &st, delta); err != nil {
		return err
	}
	if err := c.applyDelta(opLogger, &st, delta); err != nil {
		return err
	}
	if err := c.store.Commit(st); err != nil {
		return err
	}
	c.journalState(opLogger, st)
	return nil
}

// legs exposes the two per-asset views of a pool record so the engines do
// not duplicate the A/B arms. The pointers alias fields of the caller's
// private copy.
type leg struct {
	asset     types.AssetID
	vlt       vault.Vault
	idle      *math.Int
	shares    *math.Int
	principal *math.Int
	delta     math.Int
}

func (c *Controller) legs(st *types.PoolYieldState, delta types.BalanceDelta) [2]leg {
	vltA, _ := c.registry.Resolve(st.AssetA)
	vltB, _ := c.registry.Resolve(st.AssetB)
	return [2]leg{
		{
			asset:     st.AssetA,
			vlt:       vltA,
			idle:      &st.IdleBalanceA,
			shares:    &st.ShareBalanceA,
			principal: &st.TrackedPrincipalA,
			delta:     orZero(delta.AmountA),
		},
		{
			asset:     st.AssetB,
			vlt:       vltB,
			idle:      &st.IdleBalanceB,
			shares:    &st.ShareBalanceB,
			principal: &st.TrackedPrincipalB,
			delta:     orZero(delta.AmountB),
		},
	}
}

// applyDelta settles the operation's net flow into or out of controller
// custody and advances the tracked principal by the same amount. Assets
// without a bound vault never enter controller custody, so their leg is a
// no-op and the host keeps pass-through custody.
func (c *Controller) applyDelta(opLogger zerolog.Logger, st *types.PoolYieldState, delta types.BalanceDelta) error {
	for _, l := range c.legs(st, delta) {
		if l.vlt == nil || l.delta.IsZero() {
			continue
		}

		if l.delta.IsPositive() {
			if err := c.host.Take(st.PoolID, l.asset, l.delta); err != nil {
				return fmt.Errorf("failed to take %s %s into idle custody: %w", l.delta, l.asset, err)
			}
			*l.idle = l.idle.Add(l.delta)
			*l.principal = l.principal.Add(l.delta)
			continue
		}

		outflow := l.delta.Neg()
		if l.idle.LT(outflow) {
			return fmt.Errorf("%w: asset %s needs %s, idle %s", ErrInsufficientIdle, l.asset, outflow, l.idle)
		}
		if err := c.host.Settle(st.PoolID, l.asset, outflow); err != nil {
			return fmt.Errorf("failed to settle %s %s back to pool custody: %w", outflow, l.asset, err)
		}
		*l.idle = l.idle.Sub(outflow)
		*l.principal = math.MaxInt(l.principal.Sub(outflow), math.ZeroInt())

		opLogger.Debug().
			Str("asset", string(l.asset)).
			Str("outflow", outflow.String()).
			Str("idle", l.idle.String()).
			Msg("Settled outflow from idle custody")
	}
	return nil
}

// poolLock returns the operation mutex for one pool, creating it on first
// use. Holding it across an entire read-mutate-commit sequence is what makes
// the sequence atomic against concurrent operations on the same pool.
func (c *Controller) poolLock(poolID types.PoolID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.poolLocks[poolID]
	if !ok {
		l = &sync.Mutex{}
		c.poolLocks[poolID] = l
	}
	return l
}

func (c *Controller) opLogger(op string, poolID types.PoolID) (zerolog.Logger, string) {
	opID := uuid.New().String()
	return c.logger.With().
		Str("operation_id", opID).
		Str("operation", op).
		Str("pool", string(poolID)).
		Logger(), opID
}

func (c *Controller) journalState(opLogger zerolog.Logger, st types.PoolYieldState) {
	if c.journal == nil {
		return
	}
	if err := c.journal.SaveState(st); err != nil {
		opLogger.Warn().Err(err).Msg("Failed to journal pool yield state")
	}
}

func (c *Controller) journalEvent(opLogger zerolog.Logger, ev state.YieldEvent) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordEvent(ev); err != nil {
		opLogger.Warn().Err(err).Msg("Failed to journal yield event")
	}
}

func orZero(v math.Int) math.Int {
	if v.IsNil() {
		return math.ZeroInt()
	}
	return v
}
