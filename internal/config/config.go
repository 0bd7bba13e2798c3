package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Backend selects where RuntimeState and the trade log live.
const (
	BackendPostgres = "postgres"
	BackendFile     = "file"
)

// Config holds process-level settings: secrets, infrastructure coordinates
// and file paths. The trading parameters themselves live in the runtime
// config file (see runtime.go) so they can be changed over the API without a
// restart.
type Config struct {
	// Secrets (from .env)
	RPCURL          string
	PrivateKey      string
	ZeroXAPIKey     string
	AdminToken      string
	WebhookURL      string
	BotName         string
	CORSAllowOrigin string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Persistence backend
	StateBackend  string
	RuntimePath   string
	StatePath     string
	TradesCSVPath string

	// Execution
	GasLimit              int
	GasMultiplier         float64
	ReceiptTimeoutSeconds int

	// API
	APIPort int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		RPCURL:          envStr("RPC_URL", ""),
		PrivateKey:      envStr("PRIVATE_KEY", ""),
		ZeroXAPIKey:     envStr("ZEROX_API_KEY", ""),
		AdminToken:      envStr("ADMIN_TOKEN", ""),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		BotName:         envStr("BOT_NAME", "RebalAgent"),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "rebal_agent"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		// Persistence
		StateBackend:  envStr("STATE_BACKEND", BackendPostgres),
		RuntimePath:   envStr("CONFIG_PATH", "config/runtime.json"),
		StatePath:     envStr("STATE_PATH", "state/agent_state.json"),
		TradesCSVPath: envStr("TRADES_PATH", "state/trades.csv"),

		// Execution
		GasLimit:              envInt("GAS_LIMIT", 350000),
		GasMultiplier:         envFloat("GAS_MULTIPLIER", 1.2),
		ReceiptTimeoutSeconds: envInt("RECEIPT_TIMEOUT_SECONDS", 120),

		// API
		APIPort: envInt("API_PORT", 8787),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.RPCURL == "" {
		errs = append(errs, "RPC_URL is required")
	}
	if c.PrivateKey == "" {
		errs = append(errs, "PRIVATE_KEY is required")
	}
	switch c.StateBackend {
	case BackendPostgres, BackendFile:
	default:
		errs = append(errs, fmt.Sprintf("STATE_BACKEND must be %q or %q, got %q",
			BackendPostgres, BackendFile, c.StateBackend))
	}
	if c.StateBackend == BackendPostgres && c.DBUser == "" {
		errs = append(errs, "DB_USER is required for the postgres backend")
	}
	if c.ReceiptTimeoutSeconds <= 0 {
		errs = append(errs, "RECEIPT_TIMEOUT_SECONDS must be positive")
	}

	if c.AdminToken == "" {
		fmt.Println("[WARN] ADMIN_TOKEN not set — falling back to the runtime config adminToken")
	}
	if c.ZeroXAPIKey == "" {
		fmt.Println("[WARN] ZEROX_API_KEY not set — 0x quotes will be rate-limited")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Portfolio Rebalancing Agent Configuration ===")
	fmt.Printf("State Backend: %s\n", c.StateBackend)
	if c.StateBackend == BackendPostgres {
		fmt.Printf("Database: %s:%d/%s\n", c.DBHost, c.DBPort, c.DBName)
	} else {
		fmt.Printf("State File: %s\n", c.StatePath)
		fmt.Printf("Trades CSV: %s\n", c.TradesCSVPath)
	}
	fmt.Printf("Runtime Config: %s\n", c.RuntimePath)
	fmt.Printf("Receipt Timeout: %ds\n", c.ReceiptTimeoutSeconds)
	fmt.Printf("Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Println("=================================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
