// ./internal/state/yield_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
)

// YieldEventType classifies a journaled controller action.
type YieldEventType string

const (
	EventDistribution      YieldEventType = "distribution"
	EventRebalanceWithdraw YieldEventType = "rebalance_withdraw"
	EventRebalanceDeposit  YieldEventType = "rebalance_deposit"
	EventSweep             YieldEventType = "sweep"
)

// YieldEvent is one journaled controller action.
type YieldEvent struct {
	OperationID string          `json:"operation_id"`
	Type        YieldEventType  `json:"event_type"`
	PoolID      types.PoolID    `json:"pool_id"`
	Asset       types.AssetID   `json:"asset"`
	Amount      math.Int        `json:"amount"`
	Detail      json.RawMessage `json:"detail,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// SavePoolYieldState upserts the journal row for one pool.
func SavePoolYieldState(st types.PoolYieldState) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	stmt := `
        INSERT INTO pool_yield_states (
            pool_id, asset_a, asset_b, has_vault_a, has_vault_b,
            idle_balance_a, idle_balance_b, share_balance_a, share_balance_b,
            tracked_principal_a, tracked_principal_b, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (pool_id) DO UPDATE SET
            idle_balance_a = EXCLUDED.idle_balance_a,
            idle_balance_b = EXCLUDED.idle_balance_b,
            share_balance_a = EXCLUDED.share_balance_a,
            share_balance_b = EXCLUDED.share_balance_b,
            tracked_principal_a = EXCLUDED.tracked_principal_a,
            tracked_principal_b = EXCLUDED.tracked_principal_b,
            updated_at = EXCLUDED.updated_at;`

	_, err := DB.Exec(stmt,
		string(st.PoolID), string(st.AssetA), string(st.AssetB), st.HasVaultA, st.HasVaultB,
		st.IdleBalanceA.String(), st.IdleBalanceB.String(),
		st.ShareBalanceA.String(), st.ShareBalanceB.String(),
		st.TrackedPrincipalA.String(), st.TrackedPrincipalB.String(),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save pool yield state for %s: %w", st.PoolID, err)
	}
	return nil
}

// ListPoolYieldStates returns all journaled pool records.
func ListPoolYieldStates() ([]types.PoolYieldState, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`
        SELECT pool_id, asset_a, asset_b, has_vault_a, has_vault_b,
               idle_balance_a, idle_balance_b, share_balance_a, share_balance_b,
               tracked_principal_a, tracked_principal_b
        FROM pool_yield_states
        ORDER BY pool_id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool yield states: %w", err)
	}
	defer rows.Close()

	var out []types.PoolYieldState
	for rows.Next() {
		var (
			st                     types.PoolYieldState
			poolID, assetA, assetB string
			amounts                [6]string
		)
		if err := rows.Scan(
			&poolID, &assetA, &assetB, &st.HasVaultA, &st.HasVaultB,
			&amounts[0], &amounts[1], &amounts[2], &amounts[3], &amounts[4], &amounts[5],
		); err != nil {
			return nil, fmt.Errorf("failed to scan pool yield state: %w", err)
		}
		st.PoolID = types.PoolID(poolID)
		st.AssetA = types.AssetID(assetA)
		st.AssetB = types.AssetID(assetB)

		parsed := make([]math.Int, len(amounts))
		for i, raw := range amounts {
			v, ok := math.NewIntFromString(raw)
			if !ok {
				return nil, fmt.Errorf("failed to parse stored amount %q for pool %s", raw, poolID)
			}
			parsed[i] = v
		}
		st.IdleBalanceA, st.IdleBalanceB = parsed[0], parsed[1]
		st.ShareBalanceA, st.ShareBalanceB = parsed[2], parsed[3]
		st.TrackedPrincipalA, st.TrackedPrincipalB = parsed[4], parsed[5]
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pool yield states: %w", err)
	}
	return out, nil
}

// GetPoolYieldState loads one journaled pool record.
func GetPoolYieldState(poolID types.PoolID) (*types.PoolYieldState, error) {
	states, err := ListPoolYieldStates()
	if err != nil {
		return nil, err
	}
	for i := range states {
		if states[i].PoolID == poolID {
			return &states[i], nil
		}
	}
	return nil, fmt.Errorf("no journaled state for pool '%s'", poolID)
}

// RecordYieldEvent appends one controller action to the journal.
func RecordYieldEvent(ev YieldEvent) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	amount := sql.NullString{}
	if !ev.Amount.IsNil() {
		amount = sql.NullString{String: ev.Amount.String(), Valid: true}
	}

	stmt := `
        INSERT INTO yield_events (event_timestamp, operation_id, event_type, pool_id, asset, amount, detail)
        VALUES ($1, $2, $3, $4, $5, $6, $7);`
	_, err := DB.Exec(stmt,
		time.Now(), ev.OperationID, string(ev.Type), string(ev.PoolID), string(ev.Asset), amount, []byte(ev.Detail),
	)
	if err != nil {
		return fmt.Errorf("failed to record yield event: %w", err)
	}

	log.Debug().
		Str("operation_id", ev.OperationID).
		Str("type", string(ev.Type)).
		Str("pool", string(ev.PoolID)).
		Msg("Recorded yield event")
	return nil
}

// RecentYieldEvents returns the most recent journaled actions, newest first.
func RecentYieldEvents(limit int) ([]YieldEvent, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := DB.Query(`
        SELECT event_timestamp, operation_id, event_type, pool_id, asset, amount, detail
        FROM yield_events
        ORDER BY event_timestamp DESC
        LIMIT $1;`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query yield events: %w", err)
	}
	defer rows.Close()

	var out []YieldEvent
	for rows.Next() {
		var (
			ev            YieldEvent
			evType        string
			poolID, asset string
			amount        sql.NullString
			detail        []byte
		)
		if err := rows.Scan(&ev.Timestamp, &ev.OperationID, &evType, &poolID, &asset, &amount, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan yield event: %w", err)
		}
		ev.Type = YieldEventType(evType)
		ev.PoolID = types.PoolID(poolID)
		ev.Asset = types.AssetID(asset)
		ev.Detail = detail
		if amount.Valid {
			v, ok := math.NewIntFromString(amount.String)
			if !ok {
				return nil, fmt.Errorf("failed to parse event amount %q", amount.String)
			}
			ev.Amount = v
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate yield events: %w", err)
	}
	return out, nil
}
