// ./internal/state/thresholds_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/config"
)

// SaveBufferThresholds saves a new version of buffer thresholds.
func SaveBufferThresholds(t config.BufferThresholds, configName string, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to persist invalid thresholds: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE buffer_thresholds SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active thresholds for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO buffer_thresholds (
            version, config_name, is_active, activated_at, created_at,
            min_buffer_ratio, target_buffer_ratio, max_buffer_ratio
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING thresholds_id;`

	var thresholdsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		t.MinBufferRatio.String(), t.TargetBufferRatio.String(), t.MaxBufferRatio.String(),
	).Scan(&thresholdsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert buffer thresholds: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("thresholds_id", thresholdsID).
		Bool("active", makeActive).
		Msg("Saved buffer thresholds")
	return thresholdsID, nil
}

// LoadActiveBufferThresholds loads the currently active buffer thresholds.
func LoadActiveBufferThresholds(configName string) (*config.BufferThresholds, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT min_buffer_ratio, target_buffer_ratio, max_buffer_ratio
        FROM buffer_thresholds
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var minRaw, targetRaw, maxRaw string
	row := DB.QueryRow(query, configName)
	err := row.Scan(&minRaw, &targetRaw, &maxRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active buffer thresholds found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active buffer thresholds for config '%s': %w", configName, err)
	}

	t := &config.BufferThresholds{}
	if t.MinBufferRatio, err = math.LegacyNewDecFromStr(minRaw); err != nil {
		return nil, fmt.Errorf("failed to parse min buffer ratio %q: %w", minRaw, err)
	}
	if t.TargetBufferRatio, err = math.LegacyNewDecFromStr(targetRaw); err != nil {
		return nil, fmt.Errorf("failed to parse target buffer ratio %q: %w", targetRaw, err)
	}
	if t.MaxBufferRatio, err = math.LegacyNewDecFromStr(maxRaw); err != nil {
		return nil, fmt.Errorf("failed to parse max buffer ratio %q: %w", maxRaw, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("stored thresholds for config '%s' are invalid: %w", configName, err)
	}

	log.Info().Str("config", configName).Msg("Loaded active buffer thresholds")
	return t, nil
}
