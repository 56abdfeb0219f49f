package controller

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/state"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
)

// RequestSweep deploys the full idle balance of every bound asset into its
// vault. It is permissionless: idle capital that accumulated below the
// rebalancer's trigger band would otherwise sit unproductive forever, so
// anyone may pay to push it into the vault.
//
// The read-deposit-zero sequence runs on a private copy under the pool's
// operation lock and commits once, so sweeps interleaved with lifecycle
// operations are serialized and a second sweep of an already-empty pool is a
// no-op.
func (c *Controller) RequestSweep(poolID types.PoolID) error {
	opLogger, opID := c.opLogger("request_sweep", poolID)

	l := c.poolLock(poolID)
	l.Lock()
	defer l.Unlock()

	st, err := c.store.Get(poolID)
	if err != nil {
		return err
	}

	swept := false
	for _, l := range c.legs(&st, types.ZeroBalanceDelta()) {
		if l.vlt == nil || !l.idle.IsPositive() {
			continue
		}

		amount := *l.idle
		minted, err := l.vlt.Deposit(amount)
		if err != nil {
			return fmt.Errorf("failed to sweep %s %s into vault: %w", amount, l.asset, err)
		}
		*l.shares = l.shares.Add(minted)
		*l.idle = math.ZeroInt()
		swept = true

		opLogger.Info().
			Str("asset", string(l.asset)).
			Str("swept", amount.String()).
			Str("shares", l.shares.String()).
			Msg("Swept idle balance into vault")

		c.journalEvent(opLogger, state.YieldEvent{
			OperationID: opID,
			Type:        state.EventSweep,
			PoolID:      poolID,
			Asset:       l.asset,
			Amount:      amount,
		})
	}

	if !swept {
		opLogger.Debug().Msg("Nothing to sweep")
		return nil
	}

	if err := c.store.Commit(st); err != nil {
		return err
	}
	c.journalState(opLogger, st)
	return nil
}
