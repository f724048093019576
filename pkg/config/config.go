package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SWITCHLY_DATABASE_PASSWORD.
const EnvPrefix = "SWITCHLY"

// Config represents the settlement monitor configuration
type Config struct {
	Server     ServerConfig           `mapstructure:"server"`
	Database   DatabaseConfig         `mapstructure:"database"`
	Bridge     BridgeConfig           `mapstructure:"bridge"`
	Chains     map[string]ChainConfig `mapstructure:"chains" validate:"required,min=1,dive"`
	Settlement SettlementConfig       `mapstructure:"settlement"`
	Memo       MemoConfig             `mapstructure:"memo"`
	Fees       FeesConfig             `mapstructure:"fees"`
	Assets     AssetsConfig           `mapstructure:"assets"`
	Auth       AuthConfig             `mapstructure:"auth"`
	Monitoring MonitoringConfig       `mapstructure:"monitoring"`
	Logging    LoggingConfig          `mapstructure:"logging"`
}

// ServerConfig contains HTTP and gRPC server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host" default:"0.0.0.0"`
	Port            int           `mapstructure:"port" default:"8080" validate:"min=1,max=65535"`
	GRPCPort        int           `mapstructure:"grpc_port" default:"9091" validate:"min=0,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" default:"30s"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"30s"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host" default:"localhost" validate:"required"`
	Port     int    `mapstructure:"port" default:"5432"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database" default:"switchly_settlement"`
	SSLMode  string `mapstructure:"ssl_mode" default:"disable"`
}

// BridgeConfig contains the bridge network REST API settings
type BridgeConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	APIPrefix      string        `mapstructure:"api_prefix" default:"switchly"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" default:"10s"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps" default:"10"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst" default:"5"`
	PoolCacheTTL   time.Duration `mapstructure:"pool_cache_ttl" default:"15s"`
}

// ChainConfig describes one chain the monitor probes, keyed by chain id (e.g. ETH, XLM).
type ChainConfig struct {
	Kind              string        `mapstructure:"kind" validate:"required,oneof=account ledger"`
	URL               string        `mapstructure:"url" validate:"required,url"`
	NativeAsset       string        `mapstructure:"native_asset"`
	PayoutLookback    uint64        `mapstructure:"payout_lookback" default:"64"`
	PayoutLimit       int           `mapstructure:"payout_limit" default:"50"`
	FinalityCacheSize int           `mapstructure:"finality_cache_size" default:"1024"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" default:"10s"`
}

// SettlementConfig contains settlement session cadence and limits
type SettlementConfig struct {
	FastInterval        time.Duration `mapstructure:"fast_interval" default:"5s" validate:"gt=0"`
	SlowInterval        time.Duration `mapstructure:"slow_interval" default:"30s" validate:"gt=0"`
	ErrorBackoffInitial time.Duration `mapstructure:"error_backoff_initial" default:"2s"`
	ErrorBackoffMax     time.Duration `mapstructure:"error_backoff_max" default:"2m"`
	ProbeTimeout        time.Duration `mapstructure:"probe_timeout" default:"10s" validate:"gt=0"`
	SessionTimeout      time.Duration `mapstructure:"session_timeout" default:"30m" validate:"gt=0"`
	MaxSessions         int           `mapstructure:"max_sessions" default:"1000" validate:"min=1"`
}

// MemoConfig controls truncated-hash matching
type MemoConfig struct {
	PrefixLen int `mapstructure:"prefix_len" default:"8" validate:"min=1"`
	SuffixLen int `mapstructure:"suffix_len" default:"12" validate:"min=1"`
}

// FeesConfig selects the outbound fee estimator
type FeesConfig struct {
	Estimator      string            `mapstructure:"estimator" default:"pool" validate:"oneof=pool approximate"`
	BridgePriceUSD string            `mapstructure:"bridge_price_usd"`
	PricesUSD      map[string]string `mapstructure:"prices_usd"`
}

// AssetsConfig points at an optional asset table overriding the embedded one
type AssetsConfig struct {
	File string `mapstructure:"file"`
}

// AuthConfig holds the shared secret for mutating API routes
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer" default:"switchly-settlement"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled" default:"true"`
	MetricsPath string `mapstructure:"metrics_path" default:"/metrics"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" default:"info"`
	Format     string `mapstructure:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path" default:"stdout"`
}

// envKeys are bound explicitly so they can be set without appearing in the file.
var envKeys = []string{
	"database.host",
	"database.port",
	"database.user",
	"database.password",
	"database.database",
	"bridge.base_url",
	"auth.jwt_secret",
	"logging.level",
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to set defaults: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// viper lower-cases map keys; chain ids are upper-case everywhere else.
	chains := make(map[string]ChainConfig, len(cfg.Chains))
	for id, chain := range cfg.Chains {
		if err := defaults.Set(&chain); err != nil {
			return nil, fmt.Errorf("failed to set defaults for chain %s: %w", id, err)
		}
		chains[strings.ToUpper(id)] = chain
	}
	cfg.Chains = chains

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	if cfg.Settlement.SlowInterval < cfg.Settlement.FastInterval {
		return fmt.Errorf("settlement.slow_interval must not be shorter than settlement.fast_interval")
	}
	if cfg.Fees.Estimator == "approximate" && cfg.Fees.BridgePriceUSD == "" {
		return fmt.Errorf("fees.bridge_price_usd is required for the approximate estimator")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
