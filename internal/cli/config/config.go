// Package config loads the tablemap configuration from tablemap.yml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/conduit-lang/tablemap/internal/cache"
	"github.com/conduit-lang/tablemap/internal/orm/dbal"
)

// EnvPrefix prefixes the environment variables overriding config keys.
// database.dsn is read from TABLEMAP_DATABASE_DSN.
const EnvPrefix = "TABLEMAP"

// Config represents the tablemap configuration
type Config struct {
	Database dbal.Options `mapstructure:"database"`
	ORM      ORMConfig    `mapstructure:"orm"`
	Log      LogConfig    `mapstructure:"log"`
	Cache    CacheConfig  `mapstructure:"cache"`
}

// ORMConfig represents mapping configuration
type ORMConfig struct {
	CreateTables bool `mapstructure:"create_tables"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// CacheConfig holds the driver configuration of each cache
type CacheConfig struct {
	Query    cache.Config `mapstructure:"query"`
	Result   cache.Config `mapstructure:"result"`
	Metadata cache.Config `mapstructure:"metadata"`
}

// Load loads the configuration from path, or from tablemap.yml or
// tablemap.yaml in the working directory when path is empty. A missing
// config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", ":memory:")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "0s")
	v.SetDefault("orm.create_tables", false)
	v.SetDefault("log.level", "info")

	defaults := cache.DefaultConfig()
	for _, name := range []string{"query", "result", "metadata"} {
		key := "cache." + name
		v.SetDefault(key+".driver", "")
		v.SetDefault(key+".addr", defaults.Addr)
		v.SetDefault(key+".password", "")
		v.SetDefault(key+".db", 0)
		v.SetDefault(key+".prefix", defaults.Prefix+name+":")
		v.SetDefault(key+".default_ttl", defaults.DefaultTTL)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tablemap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := dbal.ParseDialect(cfg.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if cfg.Database.MaxOpenConns < 0 || cfg.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database connection limits must not be negative")
	}
	if _, err := zap.ParseAtomicLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// NewLogger builds the logger for the configured level. The debug level
// selects the development encoder.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if level.Level() == zap.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}
