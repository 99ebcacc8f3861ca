// Package config loads shopstore settings from an optional YAML file with
// SHOP_-prefixed environment overrides, e.g. SHOP_STORAGE_DATA_DIR=/var/lib/shop.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dreamware/shopstore/internal/storage"
	"github.com/spf13/viper"
)

// Session backends
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release or test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig locates the data files and bounds their size
type StorageConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	CorruptPolicy string `mapstructure:"corrupt_policy"`
	MaxDocuments  int    `mapstructure:"max_documents"`
	MaxBytes      int64  `mapstructure:"max_bytes"`
}

// SessionsConfig selects the session backend and its expiry settings
type SessionsConfig struct {
	Backend       string        `mapstructure:"backend"`
	File          string        `mapstructure:"file"` // defaults to <data_dir>/sessions.json
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // 0 disables the sweeper
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
}

// OrdersConfig tunes order placement
type OrdersConfig struct {
	RejectOversell bool `mapstructure:"reject_oversell"`
}

// AuthConfig tunes password hashing and the login throttle
type AuthConfig struct {
	BcryptCost       int           `mapstructure:"bcrypt_cost"`
	MaxLoginFailures int           `mapstructure:"max_login_failures"`
	LockoutWindow    time.Duration `mapstructure:"lockout_window"`
}

// Config is the complete shopd configuration.
// Load fills it from defaults, the optional file, and the environment.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Orders   OrdersConfig   `mapstructure:"orders"`
	Auth     AuthConfig     `mapstructure:"auth"`
	SeedFile string         `mapstructure:"seed_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.corrupt_policy", string(storage.CorruptFail))
	v.SetDefault("storage.max_documents", 0)
	v.SetDefault("storage.max_bytes", 0)

	v.SetDefault("sessions.backend", BackendFile)
	v.SetDefault("sessions.file", "")
	v.SetDefault("sessions.ttl", 7*24*time.Hour)
	v.SetDefault("sessions.sweep_interval", time.Hour)
	v.SetDefault("sessions.redis_addr", "localhost:6379")
	v.SetDefault("sessions.redis_password", "")

	v.SetDefault("orders.reject_oversell", false)

	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.max_login_failures", 5)
	v.SetDefault("auth.lockout_window", 15*time.Minute)

	v.SetDefault("seed_file", "")
}

// Load reads the YAML file at path, if path is not empty, then applies
// environment overrides and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// environment overrides, e.g. SHOP_SESSIONS_TTL=1h
	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values that cannot be fixed by defaults
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		errs = append(errs, errors.New("storage.data_dir must not be empty"))
	}
	if _, err := storage.ParseCorruptPolicy(c.Storage.CorruptPolicy); err != nil {
		errs = append(errs, fmt.Errorf("storage.corrupt_policy: %w", err))
	}
	if c.Storage.MaxDocuments < 0 || c.Storage.MaxBytes < 0 {
		errs = append(errs, errors.New("storage limits must not be negative"))
	}
	switch c.Sessions.Backend {
	case BackendFile:
	case BackendRedis:
		if c.Sessions.RedisAddr == "" {
			errs = append(errs, errors.New("sessions.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("sessions.backend: unknown backend %q", c.Sessions.Backend))
	}
	if c.Sessions.SweepInterval < 0 {
		errs = append(errs, errors.New("sessions.sweep_interval must not be negative"))
	}
	return errors.Join(errs...)
}

// StorageOptions converts the storage section for the storage package
func (c *Config) StorageOptions() storage.Options {
	policy, _ := storage.ParseCorruptPolicy(c.Storage.CorruptPolicy)
	return storage.Options{CorruptPolicy: policy, MaxBytes: c.Storage.MaxBytes}
}

// SessionFile returns the session file path
func (c *Config) SessionFile() string {
	if c.Sessions.File != "" {
		return c.Sessions.File
	}
	return filepath.Join(c.Storage.DataDir, "sessions.json")
}
