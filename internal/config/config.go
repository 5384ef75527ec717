package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Engine   EngineConfig
	Venues   map[string]VenueConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka/Redpanda configuration
type KafkaConfig struct {
	Brokers       []string
	SignalsTopic  string
	ReportsTopic  string
	ConsumerGroup string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// EngineConfig holds cycle scheduling and I/O behavior
type EngineConfig struct {
	ExecutionInterval time.Duration // how often the scheduler invokes the execution stage
	ExitInterval      time.Duration // how often the scheduler invokes the exit stage
	CallTimeout       time.Duration // per network call (oracle, broker)
	MaxRetries        uint64        // retries on transient I/O failures
	MetricsWindowDays int           // rolling window for performance metrics
	CryptoSuffixes    []string      // quote suffixes that classify a symbol as crypto
	PriceCacheTTL     time.Duration
	SlippageBps       int64 // paper broker fill slippage, basis points

	// PaperPrices seeds the static price oracle ("SYM:price,SYM:price").
	// Used for dry runs without a live price cache.
	PaperPrices map[string]float64
}

// RiskConfig holds per-venue risk gating and sizing parameters. Percentages
// are expressed as whole numbers (2 means 2%).
type RiskConfig struct {
	MinConfidence        float64
	MaxSignalAge         time.Duration
	MaxPortfolioRiskPct  float64
	MaxDailyLossPct      float64
	DefaultStopLossPct   float64
	DefaultTakeProfitPct float64
	KellyFraction        float64
	MaxPositionSizePct   float64
}

// TradingHours is the daily window in which an equity venue accepts orders,
// expressed as minutes from midnight. Weekends are always closed.
type TradingHours struct {
	OpenMinute  int
	CloseMinute int
}

// VenueConfig describes one trading destination with its own cash balance,
// risk configuration, and (for equities) market hours.
type VenueConfig struct {
	Name         string
	AssetClass   string // "equity" or "crypto"
	InitialCash  float64
	Risk         RiskConfig
	TradingHours *TradingHours // nil for venues that trade around the clock
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8082"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "trader"),
			Password: getEnv("DB_PASSWORD", "trader5"),
			DBName:   getEnv("DB_NAME", "paper_trading"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:       parseList(getEnv("KAFKA_BROKERS", "localhost:19092")),
			SignalsTopic:  getEnv("KAFKA_SIGNALS_TOPIC", "trading.signals"),
			ReportsTopic:  getEnv("KAFKA_REPORTS_TOPIC", "trading.cycle-reports"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "paper-engine"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Engine: EngineConfig{
			ExecutionInterval: getDuration("ENGINE_EXECUTION_INTERVAL", time.Minute),
			ExitInterval:      getDuration("ENGINE_EXIT_INTERVAL", time.Minute),
			CallTimeout:       getDuration("ENGINE_CALL_TIMEOUT", 10*time.Second),
			MaxRetries:        uint64(getInt("ENGINE_MAX_RETRIES", 3)),
			MetricsWindowDays: getInt("ENGINE_METRICS_WINDOW_DAYS", 30),
			CryptoSuffixes:    parseList(getEnv("ENGINE_CRYPTO_SUFFIXES", "USDT,USDC,-USD")),
			PriceCacheTTL:     getDuration("ENGINE_PRICE_CACHE_TTL", 30*time.Second),
			SlippageBps:       int64(getInt("ENGINE_SLIPPAGE_BPS", 5)),
			PaperPrices:       parsePrices(getEnv("ENGINE_PAPER_PRICES", "")),
		},
		Venues: map[string]VenueConfig{
			"alpaca": {
				Name:        "alpaca",
				AssetClass:  "equity",
				InitialCash: getFloat("ALPACA_INITIAL_CASH", 100000),
				Risk: RiskConfig{
					MinConfidence:        getFloat("ALPACA_MIN_CONFIDENCE", 0.65),
					MaxSignalAge:         getDuration("ALPACA_MAX_SIGNAL_AGE", 30*time.Minute),
					MaxPortfolioRiskPct:  getFloat("ALPACA_MAX_PORTFOLIO_RISK_PCT", 50),
					MaxDailyLossPct:      getFloat("ALPACA_MAX_DAILY_LOSS_PCT", 5),
					DefaultStopLossPct:   getFloat("ALPACA_STOP_LOSS_PCT", 2),
					DefaultTakeProfitPct: getFloat("ALPACA_TAKE_PROFIT_PCT", 6),
					KellyFraction:        getFloat("ALPACA_KELLY_FRACTION", 0.25),
					MaxPositionSizePct:   getFloat("ALPACA_MAX_POSITION_SIZE_PCT", 10),
				},
				// 09:30-16:00 exchange local time
				TradingHours: &TradingHours{OpenMinute: 9*60 + 30, CloseMinute: 16 * 60},
			},
			"binance": {
				Name:        "binance",
				AssetClass:  "crypto",
				InitialCash: getFloat("BINANCE_INITIAL_CASH", 10000),
				Risk: RiskConfig{
					MinConfidence:        getFloat("BINANCE_MIN_CONFIDENCE", 0.70),
					MaxSignalAge:         getDuration("BINANCE_MAX_SIGNAL_AGE", 30*time.Minute),
					MaxPortfolioRiskPct:  getFloat("BINANCE_MAX_PORTFOLIO_RISK_PCT", 50),
					MaxDailyLossPct:      getFloat("BINANCE_MAX_DAILY_LOSS_PCT", 5),
					DefaultStopLossPct:   getFloat("BINANCE_STOP_LOSS_PCT", 3),
					DefaultTakeProfitPct: getFloat("BINANCE_TAKE_PROFIT_PCT", 9),
					KellyFraction:        getFloat("BINANCE_KELLY_FRACTION", 0.25),
					MaxPositionSizePct:   getFloat("BINANCE_MAX_POSITION_SIZE_PCT", 10),
				},
			},
		},
	}
}

// VenueForAssetClass returns the venue configured for an asset class.
func (c *Config) VenueForAssetClass(assetClass string) (VenueConfig, bool) {
	for _, v := range c.Venues {
		if v.AssetClass == assetClass {
			return v, true
		}
	}
	return VenueConfig{}, false
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parsePrices parses a "SYMBOL:price" comma-separated list
func parsePrices(raw string) map[string]float64 {
	prices := make(map[string]float64)
	for _, entry := range parseList(raw) {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if price, err := strconv.ParseFloat(parts[1], 64); err == nil && price > 0 {
			prices[strings.TrimSpace(parts[0])] = price
		}
	}
	return prices
}

// parseList splits a comma-separated list
func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
