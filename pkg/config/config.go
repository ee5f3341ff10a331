package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	Billing    BillingConfig
	Reports    ReportsConfig
	Bridge     BridgeConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret of access tokens minted by the identity service.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig controls occurrence expansion and join windows.
type SchedulingConfig struct {
	Timezone              string
	Location              *time.Location
	LookaheadDays         int
	GenerationHorizonDays int
	DefaultJoinWindow     int
}

// BillingConfig holds the pricing terms applied on top of class prices.
type BillingConfig struct {
	TaxRate         decimal.Decimal
	PlatformFee     decimal.Decimal
	DefaultCurrency string
	PaymentTermDays int
}

// ReportsConfig controls ledger report caching.
type ReportsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// BridgeConfig signs join tokens handed to the session bridge.
type BridgeConfig struct {
	TokenSecret string
	TokenIssuer string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	timezone := v.GetString("SCHEDULING_TIMEZONE")
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	cfg.Scheduling = SchedulingConfig{
		Timezone:              timezone,
		Location:              loc,
		LookaheadDays:         positiveInt(v.GetInt("SCHEDULING_LOOKAHEAD_DAYS"), 14),
		GenerationHorizonDays: positiveInt(v.GetInt("SCHEDULING_GENERATION_HORIZON_DAYS"), 90),
		DefaultJoinWindow:     positiveInt(v.GetInt("SCHEDULING_DEFAULT_JOIN_WINDOW"), 15),
	}

	cfg.Billing = BillingConfig{
		TaxRate:         parseDecimal(v.GetString("BILLING_TAX_RATE"), decimal.Zero),
		PlatformFee:     parseDecimal(v.GetString("BILLING_PLATFORM_FEE"), decimal.Zero),
		DefaultCurrency: strings.ToUpper(v.GetString("BILLING_DEFAULT_CURRENCY")),
		PaymentTermDays: v.GetInt("BILLING_PAYMENT_TERM_DAYS"),
	}

	cfg.Reports = ReportsConfig{
		CacheEnabled: v.GetBool("ENABLE_REPORT_CACHE"),
		CacheTTL:     parseDuration(v.GetString("REPORT_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Bridge = BridgeConfig{
		TokenSecret: v.GetString("BRIDGE_TOKEN_SECRET"),
		TokenIssuer: v.GetString("BRIDGE_TOKEN_ISSUER"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tutor_class")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULING_TIMEZONE", "UTC")
	v.SetDefault("SCHEDULING_LOOKAHEAD_DAYS", 14)
	v.SetDefault("SCHEDULING_GENERATION_HORIZON_DAYS", 90)
	v.SetDefault("SCHEDULING_DEFAULT_JOIN_WINDOW", 15)

	v.SetDefault("BILLING_TAX_RATE", "0")
	v.SetDefault("BILLING_PLATFORM_FEE", "0")
	v.SetDefault("BILLING_DEFAULT_CURRENCY", "USD")
	v.SetDefault("BILLING_PAYMENT_TERM_DAYS", 7)

	v.SetDefault("ENABLE_REPORT_CACHE", true)
	v.SetDefault("REPORT_CACHE_TTL", "5m")

	v.SetDefault("BRIDGE_TOKEN_SECRET", "dev_bridge_secret")
	v.SetDefault("BRIDGE_TOKEN_ISSUER", "tutor-class-api")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func parseDecimal(raw string, fallback decimal.Decimal) decimal.Decimal {
	if raw == "" {
		return fallback
	}

	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || d.IsNegative() {
		return fallback
	}

	return d
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
