package controller_test

import (
	"math/big"
	"sync"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/config"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/controller"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/host"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/registry"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/vault"
)

const (
	testManager = "treasury-ops"
	testPool    = types.PoolID("pool-1")
	assetA      = types.AssetID("USDC")
	assetB      = types.AssetID("WETH")
)

var q96 = math.NewIntFromBigInt(new(big.Int).Lsh(big.NewInt(1), 96))

type fixture struct {
	ctrl   *controller.Controller
	host   *host.Sim
	vaultA *vault.Sim
	vaultB *vault.Sim
}

// newFixture builds a controller over simulated host and vaults. When bindB
// is false, asset B has no vault binding and must stay in host custody.
func newFixture(t *testing.T, thresholds config.BufferThresholds, bindB bool) *fixture {
	t.Helper()

	hostSim := host.NewSim()
	vaultA := vault.NewSim("yvUSDC")
	vaultB := vault.NewSim("yvWETH")

	bindings := map[types.AssetID]vault.Vault{assetA: vaultA}
	if bindB {
		bindings[assetB] = vaultB
	}

	ctrl, err := controller.NewController(controller.Config{
		Host:       hostSim,
		Registry:   registry.NewStatic(bindings),
		Thresholds: thresholds,
		Manager:    testManager,
	})
	require.NoError(t, err)

	return &fixture{ctrl: ctrl, host: hostSim, vaultA: vaultA, vaultB: vaultB}
}

// createPool registers the standard test pool with zeroed host balances.
func (f *fixture) createPool(t *testing.T) {
	t.Helper()
	f.host.SetPoolBalance(testPool, assetA, math.ZeroInt())
	f.host.SetPoolBalance(testPool, assetB, math.ZeroInt())
	require.NoError(t, f.ctrl.OnPoolCreated(testPool, assetA, assetB))
}

// seedIdle pushes an inflow of asset A through the controller so its idle
// balance and tracked principal both land on the given amount.
func (f *fixture) seedIdle(t *testing.T, amount int64) {
	t.Helper()
	f.host.SetPoolBalance(testPool, assetA, math.ZeroInt())
	delta := types.ZeroBalanceDelta()
	delta.AmountA = math.NewInt(amount)
	require.NoError(t, f.ctrl.AfterLiquidityChange(testPool, delta))
}

// crossingPrice is a price state any nonzero trade crosses out of: zero
// in-range liquidity absorbs nothing.
func crossingPrice() types.PriceState {
	return types.PriceState{
		SqrtPriceX96:      q96,
		Liquidity:         math.ZeroInt(),
		SqrtPriceLowerX96: q96.SubRaw(1),
		SqrtPriceUpperX96: q96.AddRaw(1),
	}
}

// calmPrice is a price state a small trade never crosses out of.
func calmPrice() types.PriceState {
	return types.PriceState{
		SqrtPriceX96:      q96,
		Liquidity:         math.NewInt(1_000_000_000),
		SqrtPriceLowerX96: q96.Sub(q96.QuoRaw(10)),
		SqrtPriceUpperX96: q96.Add(q96.QuoRaw(10)),
	}
}

func TestOnPoolCreatedRejectsDuplicate(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)
	f.createPool(t)

	err := f.ctrl.OnPoolCreated(testPool, assetA, assetB)
	require.Error(t, err)

	st, err := f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.True(t, st.HasVaultA)
	require.True(t, st.HasVaultB)
	require.True(t, st.IdleBalanceA.IsZero())
	require.True(t, st.TrackedPrincipalA.IsZero())
}

func TestAfterTradeRebalancesToTarget(t *testing.T) {
	// Watermarks 0.20 / 0.40 / 0.50. A pool holding 2,000,000 of asset A
	// with 1,000,000 idle sees a 700,000 withdrawal: the post-settlement
	// total is 1,300,000 and the idle ratio would breach the band, so the
	// rebalancer tops idle up to 1,220,000 before settlement and the final
	// idle balance lands exactly on target.
	thresholds := config.BufferThresholds{
		MinBufferRatio:    math.LegacyNewDecWithPrec(20, 2),
		TargetBufferRatio: math.LegacyNewDecWithPrec(40, 2),
		MaxBufferRatio:    math.LegacyNewDecWithPrec(50, 2),
	}
	f := newFixture(t, thresholds, true)
	f.createPool(t)
	f.seedIdle(t, 2_000_000)

	// Deploy 1,000,000 into the vault via a delta-free rebalance pass:
	// at gross 2,500,000 the idle ratio 0.8 exceeds max and the target
	// level is exactly 1,000,000.
	f.host.SetPoolBalance(testPool, assetA, math.NewInt(2_500_000))
	require.NoError(t, f.ctrl.AfterTrade(testPool, types.ZeroBalanceDelta()))

	st, err := f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1_000_000), st.IdleBalanceA)
	require.Equal(t, math.NewInt(1_000_000), st.ShareBalanceA)

	// The withdrawal under test.
	f.host.SetPoolBalance(testPool, assetA, math.NewInt(2_000_000))
	delta := types.ZeroBalanceDelta()
	delta.AmountA = math.NewInt(-700_000)
	require.NoError(t, f.ctrl.AfterTrade(testPool, delta))

	st, err = f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(520_000), st.IdleBalanceA, "idle should land on target ratio after settlement")
	require.Equal(t, math.NewInt(780_000), st.ShareBalanceA)
	require.Equal(t, math.NewInt(1_300_000), st.TrackedPrincipalA)

	// 520,000 = 0.40 * 1,300,000: the invariant the band protects.
	require.Equal(t,
		thresholds.TargetBufferRatio.MulInt(st.TrackedPrincipalA).TruncateInt(),
		st.IdleBalanceA,
	)
}

func TestAfterTradeInsideBandNoVaultCall(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)
	f.createPool(t)
	f.seedIdle(t, 200_000)

	// Gross 1,000,000, idle 200,000: ratio 0.2 sits inside [0.1, 0.3].
	f.host.SetPoolBalance(testPool, assetA, math.NewInt(1_000_000))
	delta := types.ZeroBalanceDelta()
	delta.AmountA = math.NewInt(-50_000)
	require.NoError(t, f.ctrl.AfterTrade(testPool, delta))

	st, err := f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.True(t, st.ShareBalanceA.IsZero(), "in-band operation must not touch the vault")
	require.Equal(t, math.NewInt(150_000), st.IdleBalanceA)
	require.Equal(t, math.NewInt(150_000), st.TrackedPrincipalA)
}

func TestAfterTradeUncoverableOutflowAborts(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)
	f.createPool(t)
	f.seedIdle(t, 100)

	// Idle 100 and an empty vault cannot cover a 500 outflow. The operation
	// must fail and leave the record untouched.
	f.host.SetPoolBalance(testPool, assetA, math.NewInt(1_000))
	delta := types.ZeroBalanceDelta()
	delta.AmountA = math.NewInt(-500)
	err := f.ctrl.AfterTrade(testPool, delta)
	require.ErrorIs(t, err, controller.ErrInsufficientIdle)

	st, err := f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(100), st.IdleBalanceA)
	require.Equal(t, math.NewInt(100), st.TrackedPrincipalA)
	require.True(t, st.ShareBalanceA.IsZero())
}

func TestBeforeTradeDistributesOnPredictedCross(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)
	f.createPool(t)
	f.seedIdle(t, 1_000_000)
	require.NoError(t, f.ctrl.RequestSweep(testPool))

	// 10% yield on 1,000,000 principal deployed at rate 1.
	require.NoError(t, f.vaultA.AccrueYield(math.LegacyNewDecWithPrec(110, 2)))

	f.host.SetPriceState(testPool, crossingPrice())
	trade := types.TradeDescriptor{ZeroForOne: true, ExactInput: true, Amount: math.NewInt(1_000)}
	require.NoError(t, f.ctrl.BeforeTrade(testPool, trade))

	donations := f.host.Donations()
	require.Len(t, donations, 1)
	require.Equal(t, testPool, donations[0].PoolID)
	require.Equal(t, math.NewInt(100_000), donations[0].AmountA)
	require.True(t, donations[0].AmountB.IsZero())

	st, err := f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1_000_000), st.TrackedPrincipalA, "principal is the donation baseline, not touched by distribution")
	require.True(t, st.IdleBalanceA.IsZero())

	// Redeemed shares round up, so the remaining position is worth at most
	// the principal and short by no more than one unit.
	value, err := f.vaultA.ValueOf(st.ShareBalanceA)
	require.NoError(t, err)
	require.True(t, value.LTE(st.TrackedPrincipalA))
	require.True(t, st.TrackedPrincipalA.Sub(value).LTE(math.OneInt()))
}

func TestBeforeTradeNoCrossNoDistribution(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)
	f.createPool(t)
	f.seedIdle(t, 1_000_000)
	require.NoError(t, f.ctrl.RequestSweep(testPool))
	require.NoError(t, f.vaultA.AccrueYield(math.LegacyNewDecWithPrec(110, 2)))

	f.host.SetPriceState(testPool, calmPrice())
	trade := types.TradeDescriptor{ZeroForOne: true, ExactInput: true, Amount: math.NewInt(10)}
	require.NoError(t, f.ctrl.BeforeTrade(testPool, trade))

	require.Empty(t, f.host.Donations(), "yield stays undistributed until a cross is predicted")
}

func TestBeforeTradeNegativeYieldNoClawback(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)
	f.createPool(t)
	f.seedIdle(t, 1_000_000)
	require.NoError(t, f.ctrl.RequestSweep(testPool))

	// The vault lost 10%: current value is below principal.
	require.NoError(t, f.vaultA.AccrueYield(math.LegacyNewDecWithPrec(90, 2)))

	f.host.SetPriceState(testPool, crossingPrice())
	trade := types.TradeDescriptor{ZeroForOne: false, ExactInput: true, Amount: math.NewInt(1_000)}
	require.NoError(t, f.ctrl.BeforeTrade(testPool, trade))

	require.Empty(t, f.host.Donations(), "losses must not trigger a donation")

	st, err := f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1_000_000), st.ShareBalanceA)
	require.Equal(t, math.NewInt(1_000_000), st.TrackedPrincipalA)
}

func TestBeforeTradeVaultFailureAbortsCleanly(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)
	f.createPool(t)
	f.seedIdle(t, 1_000_000)
	require.NoError(t, f.ctrl.RequestSweep(testPool))
	require.NoError(t, f.vaultA.AccrueYield(math.LegacyNewDecWithPrec(110, 2)))

	f.vaultA.SetWithdrawalsDown(true)

	f.host.SetPriceState(testPool, crossingPrice())
	trade := types.TradeDescriptor{ZeroForOne: true, ExactInput: true, Amount: math.NewInt(1_000)}
	err := f.ctrl.BeforeTrade(testPool, trade)
	require.ErrorIs(t, err, vault.ErrCallDisabled)

	require.Empty(t, f.host.Donations())

	st, err := f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(1_000_000), st.ShareBalanceA, "aborted operation must leave no trace")
	require.True(t, st.IdleBalanceA.IsZero())
	require.Equal(t, math.NewInt(1_000_000), st.TrackedPrincipalA)
}

func TestBeforeLiquidityChangeOnlyInRange(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)
	f.createPool(t)
	f.seedIdle(t, 1_000_000)
	require.NoError(t, f.ctrl.RequestSweep(testPool))
	require.NoError(t, f.vaultA.AccrueYield(math.LegacyNewDecWithPrec(105, 2)))

	f.host.SetPriceState(testPool, calmPrice())

	// A range entirely above the current price leaves the in-range
	// beneficiary set alone.
	outOfRange := types.LiquidityRange{
		SqrtPriceLowerX96: q96.MulRaw(2),
		SqrtPriceUpperX96: q96.MulRaw(3),
	}
	require.NoError(t, f.ctrl.BeforeLiquidityChange(testPool, outOfRange))
	require.Empty(t, f.host.Donations())

	inRange := types.LiquidityRange{
		SqrtPriceLowerX96: q96.SubRaw(100),
		SqrtPriceUpperX96: q96.AddRaw(100),
	}
	require.NoError(t, f.ctrl.BeforeLiquidityChange(testPool, inRange))

	donations := f.host.Donations()
	require.Len(t, donations, 1)
	require.Equal(t, math.NewInt(50_000), donations[0].AmountA)
}

func TestUnboundAssetStaysUntouched(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, false)
	f.createPool(t)

	st, err := f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.True(t, st.HasVaultA)
	require.False(t, st.HasVaultB)

	// Inflows on both assets: only the bound asset enters custody.
	delta := types.BalanceDelta{AmountA: math.NewInt(10_000), AmountB: math.NewInt(10_000)}
	require.NoError(t, f.ctrl.AfterLiquidityChange(testPool, delta))

	require.NoError(t, f.ctrl.RequestSweep(testPool))

	f.host.SetPriceState(testPool, crossingPrice())
	require.NoError(t, f.vaultA.AccrueYield(math.LegacyNewDecWithPrec(110, 2)))
	trade := types.TradeDescriptor{ZeroForOne: true, ExactInput: true, Amount: math.NewInt(100)}
	require.NoError(t, f.ctrl.BeforeTrade(testPool, trade))

	st, err = f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.True(t, st.IdleBalanceB.IsZero())
	require.True(t, st.ShareBalanceB.IsZero())
	require.True(t, st.TrackedPrincipalB.IsZero())

	for _, d := range f.host.Donations() {
		require.True(t, d.AmountB.IsZero())
	}
}

func TestRequestSweepDeploysIdle(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)
	f.createPool(t)
	f.seedIdle(t, 250_000)

	require.NoError(t, f.ctrl.RequestSweep(testPool))

	st, err := f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.True(t, st.IdleBalanceA.IsZero())
	require.Equal(t, math.NewInt(250_000), st.ShareBalanceA)
	require.Equal(t, math.NewInt(250_000), st.TrackedPrincipalA)

	// Sweeping again is a no-op.
	require.NoError(t, f.ctrl.RequestSweep(testPool))
	st, err = f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.Equal(t, math.NewInt(250_000), st.ShareBalanceA)
}

func TestConcurrentSweepsDoNotLoseSettlements(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)
	f.createPool(t)

	// Inflows race against permissionless sweeps on the same pool. Every
	// settled inflow must survive into the tracked principal; a sweep that
	// commits a stale read would erase one.
	const rounds = 200
	inflow := math.NewInt(100)

	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			delta := types.ZeroBalanceDelta()
			delta.AmountA = inflow
			errs <- f.ctrl.AfterLiquidityChange(testPool, delta)
		}()
		go func() {
			defer wg.Done()
			errs <- f.ctrl.RequestSweep(testPool)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	st, err := f.ctrl.PoolState(testPool)
	require.NoError(t, err)
	require.Equal(t, inflow.MulRaw(rounds), st.TrackedPrincipalA, "every settled inflow must be accounted")

	// At a 1:1 exchange rate shares convert to assets exactly, so the
	// conservation check is exact as well.
	require.Equal(t, st.TrackedPrincipalA, st.IdleBalanceA.Add(st.ShareBalanceA))
}

func TestUpdateThresholds(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)

	updated := config.BufferThresholds{
		MinBufferRatio:    math.LegacyNewDecWithPrec(5, 2),
		TargetBufferRatio: math.LegacyNewDecWithPrec(15, 2),
		MaxBufferRatio:    math.LegacyNewDecWithPrec(25, 2),
	}

	err := f.ctrl.UpdateThresholds("intruder", updated)
	require.ErrorIs(t, err, controller.ErrUnauthorized)
	require.Equal(t, config.DefaultBufferThresholds, f.ctrl.Thresholds())

	invalid := updated
	invalid.MinBufferRatio = math.LegacyNewDecWithPrec(50, 2)
	err = f.ctrl.UpdateThresholds(testManager, invalid)
	require.ErrorIs(t, err, config.ErrInvalidThresholds)
	require.Equal(t, config.DefaultBufferThresholds, f.ctrl.Thresholds())

	require.NoError(t, f.ctrl.UpdateThresholds(testManager, updated))
	require.Equal(t, updated, f.ctrl.Thresholds())
}

func TestOperationsOnUnknownPoolFail(t *testing.T) {
	f := newFixture(t, config.DefaultBufferThresholds, true)

	_, err := f.ctrl.PoolState(testPool)
	require.Error(t, err)

	require.Error(t, f.ctrl.BeforeTrade(testPool, types.TradeDescriptor{
		ZeroForOne: true, ExactInput: true, Amount: math.NewInt(1),
	}))
	require.Error(t, f.ctrl.AfterTrade(testPool, types.ZeroBalanceDelta()))
	require.Error(t, f.ctrl.RequestSweep(testPool))
}
