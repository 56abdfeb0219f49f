/*

This file contains the buffer threshold parameters for the yield controller.

The three watermarks define the hysteresis band for the idle buffer: the
fraction of a pool's on-hand balance per asset that stays in immediate
custody instead of being deployed to a yield vault.

*/

package config

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"
)

// ErrInvalidThresholds is returned when a threshold set violates
// 0 <= min <= target <= max <= 1.
var ErrInvalidThresholds = errors.New("invalid buffer thresholds")

const (
	// DefaultThresholdsConfigName names the threshold set the service loads
	// from the database at startup.
	DefaultThresholdsConfigName    = "default_buffer_policy"
	DefaultThresholdsConfigVersion = 1
)

// BufferThresholds holds the idle-ratio watermarks for one controller
// instance. Values are fractions of the pool's on-hand balance.
type BufferThresholds struct {
	// MinBufferRatio is the low watermark. Below it the rebalancer pulls
	// funds back from the vault.
	MinBufferRatio math.LegacyDec `json:"min_buffer_ratio"`

	// TargetBufferRatio is the level a triggered rebalance restores.
	TargetBufferRatio math.LegacyDec `json:"target_buffer_ratio"`

	// MaxBufferRatio is the high watermark. Above it the rebalancer deploys
	// the surplus into the vault.
	MaxBufferRatio math.LegacyDec `json:"max_buffer_ratio"`
}

// DefaultBufferThresholds is the baseline watermark set used when no active
// thresholds are found in the database during initialization.
//
// The band is deliberately wide: every trade shifts the idle ratio a little,
// and a narrow band would turn nearly every swap into a vault round-trip.
var DefaultBufferThresholds = BufferThresholds{
	MinBufferRatio: math.LegacyNewDecWithPrec(10, 2), // 0.10
	// Rationale: enough idle depth to absorb routine withdrawals without a
	// vault call, while keeping most capital earning.

	TargetBufferRatio: math.LegacyNewDecWithPrec(20, 2), // 0.20
	// Rationale: a triggered rebalance lands in the middle of the band so
	// the next small trade does not immediately re-trigger.

	MaxBufferRatio: math.LegacyNewDecWithPrec(30, 2), // 0.30
	// Rationale: idle capital above this level earns nothing; sweep the
	// excess into the vault.
}

// Validate checks the watermark ordering constraint.
func (t BufferThresholds) Validate() error {
	for name, v := range map[string]math.LegacyDec{
		"min":    t.MinBufferRatio,
		"target": t.TargetBufferRatio,
		"max":    t.MaxBufferRatio,
	} {
		if v.IsNil() {
			return fmt.Errorf("%w: %s ratio is nil", ErrInvalidThresholds, name)
		}
		if v.IsNegative() {
			return fmt.Errorf("%w: %s ratio %s is negative", ErrInvalidThresholds, name, v)
		}
		if v.GT(math.LegacyOneDec()) {
			return fmt.Errorf("%w: %s ratio %s exceeds 1", ErrInvalidThresholds, name, v)
		}
	}
	if t.MinBufferRatio.GT(t.TargetBufferRatio) {
		return fmt.Errorf("%w: min %s > target %s", ErrInvalidThresholds, t.MinBufferRatio, t.TargetBufferRatio)
	}
	if t.TargetBufferRatio.GT(t.MaxBufferRatio) {
		return fmt.Errorf("%w: target %s > max %s", ErrInvalidThresholds, t.TargetBufferRatio, t.MaxBufferRatio)
	}
	return nil
}
