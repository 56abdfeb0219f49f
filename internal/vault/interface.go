package vault

import (
	"cosmossdk.io/math"
)

// Vault defines the interface for an external yield vault bound to one asset.
// Implementations are assumed correct and atomic: a failed call mints or
// redeems nothing.
type Vault interface {
	// Deposit places an asset amount into the vault and returns the shares minted.
	Deposit(amount math.Int) (math.Int, error)

	// Withdraw redeems enough shares to release the requested asset amount
	// and returns the shares redeemed.
	Withdraw(amount math.Int) (math.Int, error)

	// ValueOf converts a share balance to an asset amount at the vault's
	// current exchange rate.
	ValueOf(shares math.Int) (math.Int, error)
}
