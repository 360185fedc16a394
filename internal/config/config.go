// Package config loads the service configuration from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"workgenio/internal/infrastructure/storage/postgres"
	"workgenio/pkg/logger"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	DSN              string        `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	MaxConns         int32         `mapstructure:"max_conns" validate:"gte=1"`
	MinConns         int32         `mapstructure:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime" validate:"gte=0"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time" validate:"gte=0"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout" validate:"gte=0"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout" validate:"gte=0"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// SetDefaults registers the default of every key. Keys without a default are
// invisible to AutomaticEnv, so each one is listed here.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.statement_timeout", 30*time.Second)
	v.SetDefault("database.lock_timeout", 5*time.Second)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// Load reads workgenio.yaml (or the file named by the "config" key), overlays
// WORKGENIO_* environment variables and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("workgenio")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/workgenio")
	}

	v.SetEnvPrefix("WORKGENIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	return validator.New().Struct(c)
}

// PoolConfig converts the database section for postgres.NewPool.
func (d DatabaseConfig) PoolConfig() postgres.PoolConfig {
	cfg := postgres.DefaultPoolConfig(d.DSN)
	cfg.MaxConns = d.MaxConns
	cfg.MinConns = d.MinConns
	cfg.MaxConnLifetime = d.MaxConnLifetime
	cfg.MaxConnIdleTime = d.MaxConnIdleTime
	return cfg
}

// TxOptions converts the timeouts for postgres.NewTxManager.
func (d DatabaseConfig) TxOptions() postgres.TxOptions {
	opts := postgres.DefaultTxOptions()
	opts.StatementTimeout = d.StatementTimeout
	opts.LockTimeout = d.LockTimeout
	return opts
}

// LoggerConfig converts the logging section for logger.New.
func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: l.Level, Development: l.Development}
}
