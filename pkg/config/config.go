package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the strategy engine.
type Config struct {
	Port string

	// Persistence
	StorePath string // JSON strategy store (per-process file)
	DBPath    string // sqlite history/revenue database

	// Price oracle
	UseMockOracle   bool
	OracleBaseURL   string
	OracleRateLimit float64 // requests per second against the oracle
	QuoteSymbol     string  // quote asset ticker, e.g. SOL

	// Execution
	LiveExecution bool // global switch; strategies still opt in per record

	// Simulated fills
	SimSlippageBps float64 // max random slippage applied to simulated fills (bps)

	// Fees (defaults; overridden by the fee schedule file when present)
	FeeSchedulePath string
	FeePercent      float64
	FeeMin          float64
	FeeMax          float64

	// Monitoring
	TickInterval  time.Duration // per-strategy evaluation interval
	MinExitAge    time.Duration // profit/stop-loss checks are inert before this
	SaveDebounce  time.Duration // store writer debounce window
	HistoryFlush  time.Duration // history batch writer flush interval
	HistoryBuffer int           // history batch writer max buffered ops

	// Auth
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		StorePath:       getEnv("STORE_PATH", "./data/strategies.json"),
		DBPath:          getEnv("DB_PATH", "./data/history.db"),
		UseMockOracle:   getEnv("USE_MOCK_ORACLE", "true") == "true",
		OracleBaseURL:   getEnv("ORACLE_BASE_URL", "https://price.jup.ag/v4"),
		OracleRateLimit: getEnvFloat("ORACLE_RATE_LIMIT", 10),
		QuoteSymbol:     getEnv("QUOTE_SYMBOL", "SOL"),
		LiveExecution:   getEnv("LIVE_EXECUTION", "false") == "true",
		SimSlippageBps:  getEnvFloat("SIM_SLIPPAGE_BPS", 20),
		FeeSchedulePath: getEnv("FEE_SCHEDULE_PATH", "./fees.yaml"),
		FeePercent:      getEnvFloat("FEE_PERCENT", 1.0),
		FeeMin:          getEnvFloat("FEE_MIN", 0.0001),
		FeeMax:          getEnvFloat("FEE_MAX", 1.0),
		TickInterval:    getEnvDuration("TICK_INTERVAL", 30*time.Second),
		MinExitAge:      getEnvDuration("MIN_EXIT_AGE", 60*time.Second),
		SaveDebounce:    getEnvDuration("SAVE_DEBOUNCE", 500*time.Millisecond),
		HistoryFlush:    getEnvDuration("HISTORY_FLUSH", 500*time.Millisecond),
		HistoryBuffer:   getEnvInt("HISTORY_BUFFER", 50),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
