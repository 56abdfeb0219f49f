package vault

import (
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/logger"
)

var (
	ErrNegativeAmount    = errors.New("amount is negative")
	ErrInsufficientValue = errors.New("insufficient vault value")
	ErrCallDisabled      = errors.New("vault call disabled")
)

var vaultLogger = logger.GetForComponent("sim_vault")

// Sim is an in-process vault with an adjustable share exchange rate. It backs
// the simulation driver and the test suite. Yield accrual is modelled by
// raising the rate: outstanding shares gain value without new deposits.
type Sim struct {
	mu sync.Mutex

	name        string
	rate        math.LegacyDec // assets per share
	totalShares math.Int

	// depositsDown / withdrawalsDown simulate a reverting vault.
	depositsDown    bool
	withdrawalsDown bool
}

// NewSim creates a simulated vault with a 1:1 initial exchange rate.
func NewSim(name string) *Sim {
	return &Sim{
		name:        name,
		rate:        math.LegacyOneDec(),
		totalShares: math.ZeroInt(),
	}
}

// Deposit mints shares for the deposited amount at the current rate,
// rounding shares down so the vault never over-credits a depositor.
func (v *Sim) Deposit(amount math.Int) (math.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.depositsDown {
		return math.Int{}, fmt.Errorf("%w: deposit on %s", ErrCallDisabled, v.name)
	}
	if amount.IsNil() || amount.IsNegative() {
		return math.Int{}, ErrNegativeAmount
	}
	if amount.IsZero() {
		return math.ZeroInt(), nil
	}

	shares := math.LegacyNewDecFromInt(amount).Quo(v.rate).TruncateInt()
	v.totalShares = v.totalShares.Add(shares)
	return shares, nil
}

// Withdraw releases the requested asset amount, redeeming shares rounded up
// so the vault never pays out more value than the shares it burns.
func (v *Sim) Withdraw(amount math.Int) (math.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.withdrawalsDown {
		return math.Int{}, fmt.Errorf("%w: withdraw on %s", ErrCallDisabled, v.name)
	}
	if amount.IsNil() || amount.IsNegative() {
		return math.Int{}, ErrNegativeAmount
	}
	if amount.IsZero() {
		return math.ZeroInt(), nil
	}

	shares := math.LegacyNewDecFromInt(amount).Quo(v.rate).Ceil().TruncateInt()
	if shares.GT(v.totalShares) {
		return math.Int{}, fmt.Errorf("%w: need %s shares, have %s", ErrInsufficientValue, shares, v.totalShares)
	}
	v.totalShares = v.totalShares.Sub(shares)
	return shares, nil
}

// ValueOf converts shares to an asset amount at the current rate, rounded down.
func (v *Sim) ValueOf(shares math.Int) (math.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if shares.IsNil() || shares.IsNegative() {
		return math.Int{}, ErrNegativeAmount
	}
	return v.rate.MulInt(shares).TruncateInt(), nil
}

// AccrueYield multiplies the exchange rate by the given growth factor,
// e.g. 1.01 for one percent yield on all outstanding shares.
func (v *Sim) AccrueYield(factor math.LegacyDec) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if factor.IsNil() || !factor.IsPositive() {
		return fmt.Errorf("growth factor must be positive, got %s", factor)
	}
	v.rate = v.rate.Mul(factor)
	vaultLogger.Debug().
		Str("vault", v.name).
		Str("rate", v.rate.String()).
		Msg("Vault exchange rate updated")
	return nil
}

// SetDepositsDown toggles deposit failures for fault-path tests.
func (v *Sim) SetDepositsDown(down bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.depositsDown = down
}

// SetWithdrawalsDown toggles withdrawal failures for fault-path tests.
func (v *Sim) SetWithdrawalsDown(down bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.withdrawalsDown = down
}
