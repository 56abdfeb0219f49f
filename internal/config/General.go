package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ManagerPrincipal is the only identity allowed to change buffer
	// thresholds at runtime.
	ManagerPrincipal string

	// VaultBindings maps asset identifiers to the vault each asset deploys
	// into. Assets absent from the map stay idle-only.
	VaultBindings map[string]string

	// WebPort is the port for the HTTP status API.
	WebPort string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ManagerPrincipal, err = getEnv("HOOK_MANAGER")
	if err != nil {
		return err
	}

	// HOOK_VAULT_BINDINGS is a comma-separated list of asset=vault pairs,
	// e.g. "USDC=yvUSDC,WETH=yvWETH". Empty is valid: all assets idle-only.
	VaultBindings = map[string]string{}
	if raw := os.Getenv("HOOK_VAULT_BINDINGS"); raw != "" {
		for _, pair := range strings.Split(raw, ",") {
			parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return errors.New("HOOK_VAULT_BINDINGS entry must be asset=vault, got: " + pair)
			}
			VaultBindings[parts[0]] = parts[1]
		}
	}

	WebPort = os.Getenv("WEB_PORT")
	if WebPort == "" {
		WebPort = "8080"
	}

	log.Debug().
		Str("Manager", ManagerPrincipal).
		Int("VaultBindings", len(VaultBindings)).
		Str("WebPort", WebPort).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// GetEnvAsInt retrieves an environment variable as an int, falling back to a
// default when unset or invalid.
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr, err := getEnv(key)
	if err != nil {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
