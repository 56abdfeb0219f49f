package controller

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/state"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
)

// rebalance enforces the idle-ratio watermarks for each bound asset before
// the operation's balance delta settles.
//
// The trigger compares the current idle balance against the pool's gross
// on-hand balance after the delta. Inside the [min, max] band no vault call
// is made; that hysteresis is what keeps small trades from causing a vault
// round-trip. An idle balance that cannot cover a pending outflow triggers
// regardless of the band, so a withdrawal is never stranded.
//
// A triggered rebalance moves idle toward the level that leaves the idle
// ratio at target once the delta settles: target*total - delta. Withdrawals
// from the vault are capped by the value actually deployed there.
func (c *Controller) rebalance(opLogger zerolog.Logger, opID string, st *types.PoolYieldState, delta types.BalanceDelta) error {
	thresholds := c.Thresholds()

	for _, l := range c.legs(st, delta) {
		if l.vlt == nil {
			continue
		}

		gross, err := c.host.PoolBalance(st.PoolID, l.asset)
		if err != nil {
			return fmt.Errorf("failed to query pool balance for %s: %w", l.asset, err)
		}
		if gross.IsNil() || gross.IsNegative() {
			return fmt.Errorf("host reported invalid pool balance %s for %s", gross, l.asset)
		}

		total := gross.Add(l.delta)
		if !total.IsPositive() {
			// Ratio is undefined on an emptied pool; nothing to rebalance.
			continue
		}

		ratio := math.LegacyNewDecFromInt(*l.idle).Quo(math.LegacyNewDecFromInt(total))
		cannotCoverOutflow := l.delta.IsNegative() && l.idle.LT(l.delta.Neg())
		if !cannotCoverOutflow &&
			ratio.GTE(thresholds.MinBufferRatio) &&
			ratio.LTE(thresholds.MaxBufferRatio) {
			continue
		}

		// Idle level that lands on target once the delta settles.
		desiredIdle := math.MaxInt(
			thresholds.TargetBufferRatio.MulInt(total).TruncateInt().Sub(l.delta),
			math.ZeroInt(),
		)

		switch {
		case l.idle.LT(desiredIdle):
			shortfall := desiredIdle.Sub(*l.idle)
			deployed, err := l.vlt.ValueOf(*l.shares)
			if err != nil {
				return fmt.Errorf("failed to value %s shares for asset %s: %w", l.shares, l.asset, err)
			}
			amount := math.MinInt(shortfall, deployed)
			if !amount.IsPositive() {
				opLogger.Warn().
					Str("asset", string(l.asset)).
					Str("shortfall", shortfall.String()).
					Msg("Buffer below watermark but no vault value to withdraw")
				continue
			}

			redeemed, err := l.vlt.Withdraw(amount)
			if err != nil {
				return fmt.Errorf("failed to withdraw %s %s from vault: %w", amount, l.asset, err)
			}
			*l.shares = l.shares.Sub(redeemed)
			if l.shares.IsNegative() {
				return fmt.Errorf("vault for %s redeemed %s shares, more than the %s held", l.asset, redeemed, st.PoolID)
			}
			*l.idle = l.idle.Add(amount)

			opLogger.Info().
				Str("asset", string(l.asset)).
				Str("ratio", ratio.String()).
				Str("withdrawn", amount.String()).
				Str("idle", l.idle.String()).
				Msg("Rebalanced buffer from vault")

			c.journalEvent(opLogger, state.YieldEvent{
				OperationID: opID,
				Type:        state.EventRebalanceWithdraw,
				PoolID:      st.PoolID,
				Asset:       l.asset,
				Amount:      amount,
			})

		case l.idle.GT(desiredIdle):
			surplus := l.idle.Sub(desiredIdle)
			minted, err := l.vlt.Deposit(surplus)
			if err != nil {
				return fmt.Errorf("failed to deposit %s %s into vault: %w", surplus, l.asset, err)
			}
			*l.shares = l.shares.Add(minted)
			*l.idle = l.idle.Sub(surplus)

			opLogger.Info().
				Str("asset", string(l.asset)).
				Str("ratio", ratio.String()).
				Str("deposited", surplus.String()).
				Str("idle", l.idle.String()).
				Msg("Rebalanced buffer into vault")

			c.journalEvent(opLogger, state.YieldEvent{
				OperationID: opID,
				Type:        state.EventRebalanceDeposit,
				PoolID:      st.PoolID,
				Asset:       l.asset,
				Amount:      surplus,
			})
		}
	}
	return nil
}
