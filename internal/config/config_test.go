package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.ChainEnabled {
		t.Fatal("chain must be disabled by default")
	}
	if cfg.PostgresDB != "geomark" {
		t.Fatalf("PostgresDB = %s, want geomark", cfg.PostgresDB)
	}
	if cfg.MintConfirmAttempts != 10 {
		t.Fatalf("MintConfirmAttempts = %d, want 10", cfg.MintConfirmAttempts)
	}
	if cfg.MintPickupInterval != 15*time.Second {
		t.Fatalf("MintPickupInterval = %s, want 15s", cfg.MintPickupInterval)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DB", "geomark_test")
	t.Setenv("API_PORT", "9999")
	t.Setenv("MINT_CONFIRM_BACKOFF", "2s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.PostgresDB != "geomark_test" {
		t.Fatalf("PostgresDB = %s, want geomark_test", cfg.PostgresDB)
	}
	if cfg.APIPort != 9999 {
		t.Fatalf("APIPort = %d, want 9999", cfg.APIPort)
	}
	if cfg.MintConfirmBackoff != 2*time.Second {
		t.Fatalf("MintConfirmBackoff = %s, want 2s", cfg.MintConfirmBackoff)
	}
}

func TestValidate_ChainDisabledSkipsChainFields(t *testing.T) {
	cfg := &Config{
		PostgresDB:   "geomark",
		PostgresHost: "localhost",
		ChainEnabled: false,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}

func TestValidate_ChainEnabledRequiresChainFields(t *testing.T) {
	cfg := &Config{
		PostgresDB:   "geomark",
		PostgresHost: "localhost",
		ChainEnabled: true,
		ChainRPCURL:  "http://localhost:8545",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for the missing contract address")
	}

	cfg.CollectibleContractAddress = "not-an-address"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a malformed contract address")
	}

	cfg.CollectibleContractAddress = "cb3318244e897a450f61e1bb8d589cd2e69e6c8924f9"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for the missing signer key")
	}

	cfg.MintSignerKey = "69bb68c3a00a0cd9cbf2cab316476228c758329bbfe0b1759e8634694a9497afea05bcbf24e2aa0627eac4240484bb71de646a9296872a3c0e"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}
