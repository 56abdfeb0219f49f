package controller

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/state"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
)

// distributeYield recognizes accrued yield per asset and hands it to the
// host's donation primitive.
//
// Per bound asset: yield is the excess of idle + valueOf(shares) over the
// tracked principal. A vault that lost value produces non-positive yield and
// distributes nothing; funds are never clawed back from idle. When yield
// exceeds idle, the shortfall is redeemed from the vault first.
//
// After a distribution the controller's balances have been reduced by the
// donated amount, so idle + valueOf(shares) lands back on the tracked
// principal: the baseline advances to the post-distribution value and the
// next call sees only yield accrued since this one.
func (c *Controller) distributeYield(opLogger zerolog.Logger, opID string, st *types.PoolYieldState) error {
	donated := [2]math.Int{math.ZeroInt(), math.ZeroInt()}
	events := make([]state.YieldEvent, 0, 2)

	for i, l := range c.legs(st, types.ZeroBalanceDelta()) {
		if l.vlt == nil {
			continue
		}

		shareValue, err := l.vlt.ValueOf(*l.shares)
		if err != nil {
			return fmt.Errorf("failed to value %s shares for asset %s: %w", l.shares, l.asset, err)
		}
		currentValue := l.idle.Add(shareValue)
		accrued := currentValue.Sub(*l.principal)
		if !accrued.IsPositive() {
			continue
		}

		if accrued.GT(*l.idle) {
			shortfall := accrued.Sub(*l.idle)
			redeemed, err := l.vlt.Withdraw(shortfall)
			if err != nil {
				return fmt.Errorf("failed to withdraw %s %s from vault: %w", shortfall, l.asset, err)
			}
			*l.shares = l.shares.Sub(redeemed)
			if l.shares.IsNegative() {
				return fmt.Errorf("vault for %s redeemed %s shares, more than the %s held", l.asset, redeemed, st.PoolID)
			}
			*l.idle = math.ZeroInt()
		} else {
			*l.idle = l.idle.Sub(accrued)
		}

		donated[i] = accrued

		opLogger.Info().
			Str("asset", string(l.asset)).
			Str("yield", accrued.String()).
			Str("idle", l.idle.String()).
			Str("shares", l.shares.String()).
			Msg("Recognized accrued yield")

		events = append(events, state.YieldEvent{
			OperationID: opID,
			Type:        state.EventDistribution,
			PoolID:      st.PoolID,
			Asset:       l.asset,
			Amount:      accrued,
		})
	}

	if donated[0].IsZero() && donated[1].IsZero() {
		return nil
	}

	if err := c.host.Donate(st.PoolID, donated[0], donated[1]); err != nil {
		return fmt.Errorf("failed to donate yield: %w", err)
	}
	for _, ev := range events {
		c.journalEvent(opLogger, ev)
	}
	return nil
}
