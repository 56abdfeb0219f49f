// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS buffer_thresholds (
			thresholds_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			min_buffer_ratio DECIMAL(20, 18) NOT NULL,
			target_buffer_ratio DECIMAL(20, 18) NOT NULL,
			max_buffer_ratio DECIMAL(20, 18) NOT NULL,
			CONSTRAINT uq_buffer_thresholds_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_buffer_thresholds_config_active ON buffer_thresholds(config_name, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS pool_yield_states (
			pool_id VARCHAR(255) PRIMARY KEY,
			asset_a VARCHAR(255) NOT NULL,
			asset_b VARCHAR(255) NOT NULL,
			has_vault_a BOOLEAN NOT NULL,
			has_vault_b BOOLEAN NOT NULL,
			idle_balance_a NUMERIC(78, 0) NOT NULL,
			idle_balance_b NUMERIC(78, 0) NOT NULL,
			share_balance_a NUMERIC(78, 0) NOT NULL,
			share_balance_b NUMERIC(78, 0) NOT NULL,
			tracked_principal_a NUMERIC(78, 0) NOT NULL,
			tracked_principal_b NUMERIC(78, 0) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS yield_events (
			event_id SERIAL PRIMARY KEY,
			event_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			operation_id VARCHAR(64) NOT NULL,
			event_type VARCHAR(50) NOT NULL,
			pool_id VARCHAR(255) NOT NULL,
			asset VARCHAR(255),
			amount NUMERIC(78, 0),
			detail JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_yield_events_timestamp ON yield_events(event_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_yield_events_pool_id ON yield_events(pool_id);
		CREATE INDEX IF NOT EXISTS idx_yield_events_type ON yield_events(event_type);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
