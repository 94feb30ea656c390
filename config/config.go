package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Ledger drivers
const (
	LedgerDriverPostgres = "postgres"
	LedgerDriverMemory   = "memory"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Ledger LedgerConfig
	Seed   SeedConfig
}

type AppConfig struct {
	Port     string
	Env      string
	LogLevel string
	Timezone string
	Location *time.Location
}

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	DoctorCacheTTL time.Duration
}

type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

type LedgerConfig struct {
	Driver          string
	MaxRetries      int
	DefaultPageSize int
	MaxPageSize     int
}

type SeedConfig struct {
	Doctors  int
	Patients int
}

// IsDevelopment reports whether the service runs in the development environment
func (c AppConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_LOG_LEVEL", "info")
	v.SetDefault("APP_TIMEZONE", "UTC")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DOCTOR_CACHE_TTL", "5m")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")

	v.SetDefault("LEDGER_DRIVER", LedgerDriverPostgres)
	v.SetDefault("LEDGER_MAX_RETRIES", 3)
	v.SetDefault("LEDGER_DEFAULT_PAGE_SIZE", 10)
	v.SetDefault("LEDGER_MAX_PAGE_SIZE", 100)

	v.SetDefault("SEED_DOCTORS", 20)
	v.SetDefault("SEED_PATIENTS", 5)
}

// LoadConfig reads the .env file if present, then overlays environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

// LoadConfigFrom is LoadConfig with an explicit env file path
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !isMissingFile(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	accessExpiry, err := time.ParseDuration(v.GetString("JWT_ACCESS_EXPIRY"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	cacheTTL, err := time.ParseDuration(v.GetString("DOCTOR_CACHE_TTL"))
	if err != nil {
		cacheTTL = 5 * time.Minute
	}

	config := &Config{
		App: AppConfig{
			Port:     v.GetString("APP_PORT"),
			Env:      v.GetString("APP_ENV"),
			LogLevel: v.GetString("APP_LOG_LEVEL"),
			Timezone: v.GetString("APP_TIMEZONE"),
		},
		DB: DBConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Enabled:        v.GetBool("REDIS_ENABLED"),
			Host:           v.GetString("REDIS_HOST"),
			Port:           v.GetString("REDIS_PORT"),
			Password:       v.GetString("REDIS_PASSWORD"),
			DB:             v.GetInt("REDIS_DB"),
			DoctorCacheTTL: cacheTTL,
		},
		JWT: JWTConfig{
			Secret:       v.GetString("JWT_SECRET"),
			AccessExpiry: accessExpiry,
		},
		Ledger: LedgerConfig{
			Driver:          strings.ToLower(v.GetString("LEDGER_DRIVER")),
			MaxRetries:      v.GetInt("LEDGER_MAX_RETRIES"),
			DefaultPageSize: v.GetInt("LEDGER_DEFAULT_PAGE_SIZE"),
			MaxPageSize:     v.GetInt("LEDGER_MAX_PAGE_SIZE"),
		},
		Seed: SeedConfig{
			Doctors:  v.GetInt("SEED_DOCTORS"),
			Patients: v.GetInt("SEED_PATIENTS"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.Ledger.Driver {
	case LedgerDriverPostgres, LedgerDriverMemory:
	default:
		return fmt.Errorf("invalid LEDGER_DRIVER %q: must be %s or %s", c.Ledger.Driver, LedgerDriverPostgres, LedgerDriverMemory)
	}

	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.App.Timezone, err)
	}
	c.App.Location = loc

	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if c.Ledger.MaxRetries < 0 {
		c.Ledger.MaxRetries = 0
	}

	return nil
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}
