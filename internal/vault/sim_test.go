package vault

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestSimDepositMintsAtRate(t *testing.T) {
	v := NewSim("test")

	shares, err := v.Deposit(math.NewInt(1_000))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1_000), shares, "initial rate is 1:1")

	require.NoError(t, v.AccrueYield(math.LegacyNewDecWithPrec(125, 2)))

	shares, err = v.Deposit(math.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(80), shares, "100 assets at rate 1.25 mints 80 shares")

	value, err := v.ValueOf(shares)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(100), value)
}

func TestSimWithdrawRedeemsRoundedUp(t *testing.T) {
	v := NewSim("test")

	_, err := v.Deposit(math.NewInt(100))
	require.NoError(t, err)
	require.NoError(t, v.AccrueYield(math.LegacyNewDec(2)))

	redeemed, err := v.Withdraw(math.NewInt(150))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(75), redeemed)

	// 25 shares remain, worth 50 at rate 2.
	value, err := v.ValueOf(math.NewInt(25))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(50), value)
}

func TestSimWithdrawRoundsShareFractionUp(t *testing.T) {
	v := NewSim("test")

	_, err := v.Deposit(math.NewInt(1_000))
	require.NoError(t, err)
	require.NoError(t, v.AccrueYield(math.LegacyNewDecWithPrec(110, 2)))

	// 100 / 1.1 = 90.909...: the vault burns 91 shares, never 90.
	redeemed, err := v.Withdraw(math.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, math.NewInt(91), redeemed)
}

func TestSimDepositWithdrawRoundTrip(t *testing.T) {
	v := NewSim("test")
	require.NoError(t, v.AccrueYield(math.LegacyNewDecWithPrec(110, 2)))

	minted, err := v.Deposit(math.NewInt(1_000))
	require.NoError(t, err)

	value, err := v.ValueOf(minted)
	require.NoError(t, err)

	// Withdrawing the deposit's current value burns exactly the minted
	// shares: deposit rounds shares down, withdrawal rounds them up, and the
	// two meet within one share of each other.
	redeemed, err := v.Withdraw(value)
	require.NoError(t, err)
	require.True(t, minted.Sub(redeemed).Abs().LTE(math.OneInt()))

	// No more than a rounding remainder stays behind.
	leftover, err := v.ValueOf(minted.Sub(redeemed))
	require.NoError(t, err)
	require.True(t, leftover.LTE(math.OneInt()))
}

func TestSimWithdrawBeyondValueFails(t *testing.T) {
	v := NewSim("test")

	_, err := v.Deposit(math.NewInt(100))
	require.NoError(t, err)

	_, err = v.Withdraw(math.NewInt(101))
	require.ErrorIs(t, err, ErrInsufficientValue)
}

func TestSimRejectsNegativeAmounts(t *testing.T) {
	v := NewSim("test")

	_, err := v.Deposit(math.NewInt(-1))
	require.ErrorIs(t, err, ErrNegativeAmount)
	_, err = v.Withdraw(math.NewInt(-1))
	require.ErrorIs(t, err, ErrNegativeAmount)
	_, err = v.ValueOf(math.NewInt(-1))
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestSimZeroAmountsAreNoOps(t *testing.T) {
	v := NewSim("test")

	shares, err := v.Deposit(math.ZeroInt())
	require.NoError(t, err)
	require.True(t, shares.IsZero())

	redeemed, err := v.Withdraw(math.ZeroInt())
	require.NoError(t, err)
	require.True(t, redeemed.IsZero())
}

func TestSimFaultToggles(t *testing.T) {
	v := NewSim("test")
	_, err := v.Deposit(math.NewInt(100))
	require.NoError(t, err)

	v.SetDepositsDown(true)
	_, err = v.Deposit(math.NewInt(1))
	require.ErrorIs(t, err, ErrCallDisabled)

	v.SetWithdrawalsDown(true)
	_, err = v.Withdraw(math.NewInt(1))
	require.ErrorIs(t, err, ErrCallDisabled)

	v.SetDepositsDown(false)
	v.SetWithdrawalsDown(false)
	_, err = v.Deposit(math.NewInt(1))
	require.NoError(t, err)
	_, err = v.Withdraw(math.NewInt(1))
	require.NoError(t, err)
}

func TestSimAccrueYieldRejectsNonPositiveFactor(t *testing.T) {
	v := NewSim("test")
	require.Error(t, v.AccrueYield(math.LegacyZeroDec()))
	require.Error(t, v.AccrueYield(math.LegacyNewDec(-1)))
}
