package models

import "time"

// Config represents the application configuration
type Config struct {
	Store    StoreConfig
	Database DatabaseConfig
	Document DocumentConfig
	Http     HttpConfig
	Auth     AuthConfig
	Pricing  PricingConfig
	Redis    RedisConfig
	Formance FormanceConfig
	Prime    PrimeConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Backend    string // sqlite or document
	AssetsFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	SeedDemoUsers   bool
}

// DocumentConfig holds the single-document backend paths
type DocumentConfig struct {
	Path          string
	SessionPath   string
	SeedDemoUsers bool
}

type HttpConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	JwtSecret  string
	SessionTTL time.Duration
}

// PricingConfig holds price feed settings
type PricingConfig struct {
	CoinGeckoURL    string
	RefreshInterval time.Duration
	ForexInterval   time.Duration
	HttpTimeout     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QuoteTTL time.Duration
}

// FormanceConfig enables the ledger mirror when all credentials are set
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

func (c FormanceConfig) Enabled() bool {
	return c.StackURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// PrimeConfig enables custody address resolution when credentials are set
type PrimeConfig struct {
	AccessKey   string
	Passphrase  string
	SigningKey  string
	PortfolioId string
}

func (c PrimeConfig) Enabled() bool {
	return c.AccessKey != "" && c.Passphrase != "" && c.SigningKey != "" && c.PortfolioId != ""
}

type LogConfig struct {
	File  string
	Level string
}

type MetricsConfig struct {
	Namespace string
}
