package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/core-coin/go-core/v2/common"
	"github.com/joho/godotenv"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// Blockchain configuration
	ChainEnabled               bool
	ChainRPCURL                string
	CollectibleContractAddress string
	MintSignerKey              string
	NetworkID                  *big.Int
	// Mint coordinator tuning
	MintPickupInterval    time.Duration
	MintConfirmAttempts   int
	MintConfirmBackoff    time.Duration
	MintReconcileInterval time.Duration

	// Operator alerting configuration
	TelegramBotToken       string
	TelegramOperatorChatID int64
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:                getEnvAsBool("DEVELOPMENT", false),
		PostgresUser:               getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:           getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:               getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:               getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:                 getEnv("POSTGRES_DB", "geomark"),
		ChainEnabled:               getEnvAsBool("CHAIN_ENABLED", false),
		ChainRPCURL:                getEnv("CHAIN_RPC_URL", "http://localhost:8545"),
		CollectibleContractAddress: getEnv("COLLECTIBLE_CONTRACT_ADDRESS", ""),
		MintSignerKey:              getEnv("MINT_SIGNER_KEY", ""),
		NetworkID:                  getEnvAsBigInt("NETWORK_ID", big.NewInt(1)), // Default to Mainnet ID
		MintPickupInterval:         getEnvAsDuration("MINT_PICKUP_INTERVAL", 15*time.Second),
		MintConfirmAttempts:        getEnvAsInt("MINT_CONFIRM_ATTEMPTS", 10),
		MintConfirmBackoff:         getEnvAsDuration("MINT_CONFIRM_BACKOFF", 6*time.Second),
		MintReconcileInterval:      getEnvAsDuration("MINT_RECONCILE_INTERVAL", 5*time.Minute),
		TelegramBotToken:           getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramOperatorChatID:     getEnvAsInt64("TELEGRAM_OPERATOR_CHAT_ID", 0),

		APIPort: getEnvAsInt("API_PORT", 6532),
	}

	// Set default network ID before validation (required for address validation)
	common.DefaultNetworkID = common.NetworkID(cfg.NetworkID.Int64())

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set.
// Chain fields are only required when the chain integration is enabled.
func (c *Config) Validate() error {
	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}

	if !c.ChainEnabled {
		return nil
	}

	if c.ChainRPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL is required when CHAIN_ENABLED is true")
	}

	if c.CollectibleContractAddress == "" {
		return fmt.Errorf("COLLECTIBLE_CONTRACT_ADDRESS is required when CHAIN_ENABLED is true")
	}

	// Validate collectible contract address format
	if _, err := common.HexToAddress(c.CollectibleContractAddress); err != nil {
		return fmt.Errorf("invalid COLLECTIBLE_CONTRACT_ADDRESS format: %w", err)
	}

	if c.MintSignerKey == "" {
		return fmt.Errorf("MINT_SIGNER_KEY is required when CHAIN_ENABLED is true")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt64(name string, defaultValue int64) int64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBigInt(name string, defaultValue *big.Int) *big.Int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, ok := new(big.Int).SetString(valueStr, 10); ok {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
