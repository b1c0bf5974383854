package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Broker credentials
	BrokerBaseURL  string
	BrokerUsername string
	BrokerAPIKey   string
	AccountID      string

	// Paper mode: simulate execution while streaming real market data.
	// Broker credentials are not required for order placement, only for
	// the market data stream.
	PaperMode   bool
	PaperEquity float64

	// Instrument & aggregation
	Symbol          string
	BarIntervalSec  int
	TradeOnly       bool // when true, only trade ticks populate bars
	Lookback        int
	ThresholdFactor float64

	// Orders & risk
	OrderQty     int64
	ProfitTarget float64 // unrealized PnL at which an open position is force-closed
	StopLoss     float64 // negative unrealized PnL bound (stored as a negative number)
	EquityFloor  float64

	// Session cutover: no new entries after this wall-clock deadline.
	SessionCutover string // "2006-01-02 15:04" in SessionTZ, empty = no cutover
	SessionTZ      string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	JournalPath   string
	MetricsAddr   string
	AlertWebhook  string
	TelegramToken string
	TelegramChat  string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	return &Config{
		BrokerBaseURL:  getEnv("BROKER_BASE_URL", "https://live.ironbeamapi.com"),
		BrokerUsername: mustEnv("BROKER_USERNAME"),
		BrokerAPIKey:   mustEnv("BROKER_API_KEY"),
		AccountID:      mustEnv("BROKER_ACCOUNT_ID"),

		PaperMode:   getEnvBool("PAPER_MODE", false),
		PaperEquity: getEnvFloat("PAPER_EQUITY", 1000),

		Symbol:          getEnv("SYMBOL", "XCME:MNQ.Z25"),
		BarIntervalSec:  getEnvInt("BAR_INTERVAL_SEC", 1),
		TradeOnly:       getEnvBool("TRADE_ONLY", true),
		Lookback:        getEnvInt("LOOKBACK", 120),
		ThresholdFactor: getEnvFloat("THRESHOLD_FACTOR", 0.00075),

		OrderQty:     int64(getEnvInt("ORDER_QTY", 1)),
		ProfitTarget: getEnvFloat("PROFIT_TARGET", 25),
		StopLoss:     getEnvFloat("STOP_LOSS", -25),
		EquityFloor:  getEnvFloat("EQUITY_FLOOR", 650),

		SessionCutover: getEnv("SESSION_CUTOVER", ""),
		SessionTZ:      getEnv("SESSION_TZ", "America/New_York"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		JournalPath:   getEnv("JOURNAL_PATH", "data/orders.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		AlertWebhook:  getEnv("ALERT_WEBHOOK_URL", ""),
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChat:  getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using default %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using default %v", key, v, fallback)
		return fallback
	}
	return b
}
