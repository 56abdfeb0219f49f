/*

This is the custom type for per-pool yield accounting. It is the entirety of
the controller's durable state: idle custody, vault shares, and the tracked
principal baseline per asset.

*/

package types

import (
	"cosmossdk.io/math"
)

// AssetID identifies one token of a pool's pair (address or denom).
type AssetID string

// PoolID identifies a pool. Pools are never deleted.
type PoolID string

// PoolYieldState is the per-pool balance record. All amounts are integer
// token units; shares are integer vault share units.
//
// Invariants maintained by the controller:
//   - idle and share balances are never negative
//   - an asset without a vault binding keeps idle, shares and principal at
//     zero (the asset never leaves host custody)
//   - absent vault value loss, idle + valueOf(shares) >= tracked principal;
//     the excess is undistributed yield
type PoolYieldState struct {
	PoolID PoolID  `json:"pool_id"`
	AssetA AssetID `json:"asset_a"`
	AssetB AssetID `json:"asset_b"`

	// HasVaultA/B record whether a yield vault was bound at pool creation.
	// The handles themselves live in the registry; these flags exist so the
	// journal row is self-describing.
	HasVaultA bool `json:"has_vault_a"`
	HasVaultB bool `json:"has_vault_b"`

	IdleBalanceA math.Int `json:"idle_balance_a"`
	IdleBalanceB math.Int `json:"idle_balance_b"`

	ShareBalanceA math.Int `json:"share_balance_a"`
	ShareBalanceB math.Int `json:"share_balance_b"`

	TrackedPrincipalA math.Int `json:"tracked_principal_a"`
	TrackedPrincipalB math.Int `json:"tracked_principal_b"`
}

// NewPoolYieldState returns a zeroed record for a freshly created pool.
func NewPoolYieldState(poolID PoolID, assetA, assetB AssetID, hasVaultA, hasVaultB bool) PoolYieldState {
	return PoolYieldState{
		PoolID:            poolID,
		AssetA:            assetA,
		AssetB:            assetB,
		HasVaultA:         hasVaultA,
		HasVaultB:         hasVaultB,
		IdleBalanceA:      math.ZeroInt(),
		IdleBalanceB:      math.ZeroInt(),
		ShareBalanceA:     math.ZeroInt(),
		ShareBalanceB:     math.ZeroInt(),
		TrackedPrincipalA: math.ZeroInt(),
		TrackedPrincipalB: math.ZeroInt(),
	}
}

// Clone returns a deep copy. math.Int is backed by big.Int, so the copies
// must not share the underlying words with the original.
func (s PoolYieldState) Clone() PoolYieldState {
	c := s
	c.IdleBalanceA = cloneInt(s.IdleBalanceA)
	c.IdleBalanceB = cloneInt(s.IdleBalanceB)
	c.ShareBalanceA = cloneInt(s.ShareBalanceA)
	c.ShareBalanceB = cloneInt(s.ShareBalanceB)
	c.TrackedPrincipalA = cloneInt(s.TrackedPrincipalA)
	c.TrackedPrincipalB = cloneInt(s.TrackedPrincipalB)
	return c
}

func cloneInt(v math.Int) math.Int {
	if v.IsNil() {
		return math.ZeroInt()
	}
	return v.Add(math.ZeroInt())
}
