/*
Package config loads runtime settings from the environment.

A .env file in the working directory is honored for local development
(godotenv); real deployments set plain environment variables. Flags in
cmd/server override the environment for port and data directory.
*/
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	// Port for the HTTP server.
	Port int

	// DataDir holds every engine file: voucher table, registries, audit
	// logs, generated assets.
	DataDir string

	// Backend selects the voucher store: "flatfile" or "sqlite".
	Backend string

	// StrictRedemption restricts redemption to approved vouchers
	// (ENFORCE_PHASES=1).
	StrictRedemption bool

	// OpsToken guards operator endpoints when non-empty.
	OpsToken string

	// SupplierToken authenticates the supplier's per-voucher view.
	SupplierToken string

	// BaseURL is the public prefix encoded into QR artifacts.
	BaseURL string
}

// Load reads configuration from .env and the process environment.
func Load() *Config {
	godotenv.Load()

	return &Config{
		Port:             envInt("PORT", 8080),
		DataDir:          envOr("DATA_DIR", "data"),
		Backend:          envOr("PERSISTENCE_BACKEND", "flatfile"),
		StrictRedemption: os.Getenv("ENFORCE_PHASES") == "1",
		OpsToken:         os.Getenv("OPS_TOKEN"),
		SupplierToken:    os.Getenv("SUPPLIER_API_TOKEN"),
		BaseURL:          envOr("BASE_URL", "http://localhost:8080"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
