package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Economy EconomyConfig
	Cache   CacheConfig
	StoreDB StoreDBConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"bazaar-economy-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	AdminKey    string `envconfig:"ADMIN_KEY" default:""` // Admin endpoint access key
}

// EconomyConfig holds marketplace tuning. Rates are fractions, money
// amounts are minor units of the configured currency.
type EconomyConfig struct {
	DefaultCurrency  string  `envconfig:"ECONOMY_DEFAULT_CURRENCY" default:"coins"`
	CurrencyEnabled  bool    `envconfig:"ECONOMY_CURRENCY_ENABLED" default:"true"`
	ShopTaxRate      float64 `envconfig:"ECONOMY_SHOP_TAX_RATE" default:"0.05"`
	AuctionFeeRate   float64 `envconfig:"ECONOMY_AUCTION_FEE_RATE" default:"0.05"`
	ListingFee       int64   `envconfig:"ECONOMY_LISTING_FEE" default:"0"`
	MinStartingPrice int64   `envconfig:"ECONOMY_MIN_STARTING_PRICE" default:"1"`
	MaxOpenListings  int64   `envconfig:"ECONOMY_MAX_OPEN_LISTINGS" default:"10"`

	SweepInterval   time.Duration `envconfig:"ECONOMY_SWEEP_INTERVAL" default:"30s"`
	SweepBatchSize  int           `envconfig:"ECONOMY_SWEEP_BATCH_SIZE" default:"50"`
	ClaimBatchLimit int           `envconfig:"ECONOMY_CLAIM_BATCH_LIMIT" default:"25"`

	StoreWorkers int64  `envconfig:"ECONOMY_STORE_WORKERS" default:"16"`
	CatalogPath  string `envconfig:"ECONOMY_CATALOG_PATH" default:""`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"`
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"1m"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	EventChannel string `envconfig:"REDIS_EVENT_CHANNEL" default:"bazaar:events"`
}

// StoreDBConfig holds durable marketplace store settings.
type StoreDBConfig struct {
	Type string `envconfig:"STORE_DB_TYPE" default:"sqlite"` // sqlite, mysql, or memory
	Path string `envconfig:"STORE_DB_PATH" default:"./data/bazaar.db"`
	// MySQL settings
	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"3306"`
	Name     string `envconfig:"STORE_DB_NAME" default:"bazaar"`
	User     string `envconfig:"STORE_DB_USER" default:"root"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate rejects settings the economy cannot run with.
func (c *Config) Validate() error {
	if c.Economy.ShopTaxRate < 0 || c.Economy.ShopTaxRate >= 1 {
		return fmt.Errorf("ECONOMY_SHOP_TAX_RATE must be in [0,1), got %v", c.Economy.ShopTaxRate)
	}
	if c.Economy.AuctionFeeRate < 0 || c.Economy.AuctionFeeRate >= 1 {
		return fmt.Errorf("ECONOMY_AUCTION_FEE_RATE must be in [0,1), got %v", c.Economy.AuctionFeeRate)
	}
	if c.Economy.ListingFee < 0 {
		return fmt.Errorf("ECONOMY_LISTING_FEE must not be negative, got %d", c.Economy.ListingFee)
	}
	if c.Economy.MinStartingPrice < 1 {
		return fmt.Errorf("ECONOMY_MIN_STARTING_PRICE must be at least 1, got %d", c.Economy.MinStartingPrice)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
