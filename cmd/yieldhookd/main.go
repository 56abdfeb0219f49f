package main

import (
	"context"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/config"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/controller"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/host"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/logger"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/registry"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/sim"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/state"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/vault"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/web"
)

const (
	DEFAULT_CYCLE_SECONDS = 15
)

// main is the entry point for the yield hook service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Yield hook service starting...")

	// Initialize database connection for the journal
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load buffer thresholds
	thresholds, err := state.LoadActiveBufferThresholds(config.DefaultThresholdsConfigName)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active buffer thresholds, using defaults and saving.")
		defaults := config.DefaultBufferThresholds
		if _, err := state.SaveBufferThresholds(defaults, config.DefaultThresholdsConfigName, config.DefaultThresholdsConfigVersion, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default buffer thresholds.")
		}
		thresholds = &defaults
	}
	log.Info().Msg("Buffer thresholds loaded successfully.")

	// --- Start Web Server ---
	webServer := web.NewWebServer(config.WebPort)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting status API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 2. Host and Vault Initialization (with Safety Switch) ---
	//
	// The service currently supports only simulated execution. The mode
	// switch keeps a future live wiring from starting by accident.
	if os.Getenv("HOOK_MODE") != "sim" {
		log.Fatal().Msg("HOOK_MODE is not set to 'sim'. Halting to prevent accidental execution. Set HOOK_MODE=sim to run.")
	}

	hostSim := host.NewSim()
	vaults := make(map[types.AssetID]*vault.Sim, len(config.VaultBindings))
	bindings := make(map[types.AssetID]vault.Vault, len(config.VaultBindings))
	for asset, vaultName := range config.VaultBindings {
		v := vault.NewSim(vaultName)
		vaults[types.AssetID(asset)] = v
		bindings[types.AssetID(asset)] = v
	}
	log.Info().Int("vaults", len(vaults)).Msg("Simulated vaults initialized")

	// --- 3. Create Controller with Dependency Injection ---
	ctrl, err := controller.NewController(controller.Config{
		Host:       hostSim,
		Registry:   registry.NewStatic(bindings),
		Thresholds: *thresholds,
		Manager:    config.ManagerPrincipal,
		Journal:    state.DBJournal{},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create yield controller")
	}
	log.Info().Msg("Yield controller created successfully")

	// --- 4. Start Simulation Loop ---
	pools := simPools()
	driver, err := sim.NewDriver(ctrl, hostSim, vaults, pools, time.Now().UnixNano())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create simulation driver")
	}
	if err := driver.Bootstrap(); err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap simulated pools")
	}

	interval := time.Duration(config.GetEnvAsInt("SIM_CYCLE_SECONDS", DEFAULT_CYCLE_SECONDS)) * time.Second
	log.Info().Str("interval", interval.String()).Msg("Starting simulation loop")
	driver.RunLoop(context.Background(), interval)
}

// simPools derives the pool roster from the configured vault bindings: one
// pool per adjacent asset pair, so every bound vault sees traffic.
func simPools() []sim.PoolSpec {
	assets := make([]types.AssetID, 0, len(config.VaultBindings))
	for asset := range config.VaultBindings {
		assets = append(assets, types.AssetID(asset))
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })

	// Fall back to a canonical pair when fewer than two assets are bound,
	// skipping names already present so a pool never pairs an asset with
	// itself. Fallback assets without bindings stay idle-only, which is
	// itself a scenario worth exercising.
	for _, fallback := range []types.AssetID{"USDC", "WETH"} {
		if len(assets) >= 2 {
			break
		}
		duplicate := false
		for _, a := range assets {
			if a == fallback {
				duplicate = true
				break
			}
		}
		if !duplicate {
			assets = append(assets, fallback)
		}
	}

	pools := make([]sim.PoolSpec, 0, len(assets)-1)
	for i := 0; i+1 < len(assets); i += 2 {
		pools = append(pools, sim.PoolSpec{
			PoolID: types.PoolID("pool-" + strconv.Itoa(i/2)),
			AssetA: assets[i],
			AssetB: assets[i+1],
		})
	}
	return pools
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
