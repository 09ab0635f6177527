// Package config loads daemon settings from defaults, an optional config file, a .env file
// and WARDLEDGER_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable.
const EnvPrefix = "WARDLEDGER"

// Config is the resolved daemon configuration.
type Config struct {
	Admin        common.Address
	DataDir      string
	TCPPort      string
	HTTPPort     string
	DisableTLS   bool
	LogLevel     string
	ChallengeTTL time.Duration
	MaxConns     int
}

// Options tell Load where to look.
type Options struct {
	// ConfigFile is an explicit path; when empty, wardledger.{yaml,toml,json} in Dir is tried.
	ConfigFile string
	// EnvFile is loaded into the process environment when it exists.
	EnvFile string
	// Dir is searched for the default config file.
	Dir string
}

// Setup returns a viper instance with defaults, env binding and the config file applied.
func Setup(opts Options) (*viper.Viper, error) {
	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			if err := godotenv.Load(opts.EnvFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", opts.EnvFile, err)
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("admin", "")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("tcp_port", "7001")
	v.SetDefault("http_port", "7002")
	v.SetDefault("disable_tls", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("challenge_ttl", "5m")
	v.SetDefault("max_conns", 100)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
		return v, nil
	}

	v.SetConfigName("wardledger")
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// FromViper resolves a Config and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	admin := strings.TrimSpace(v.GetString("admin"))
	if !common.IsHexAddress(admin) {
		return nil, fmt.Errorf("admin: %q is not a hex address", admin)
	}

	cfg := &Config{
		Admin:        common.HexToAddress(admin),
		DataDir:      v.GetString("data_dir"),
		TCPPort:      v.GetString("tcp_port"),
		HTTPPort:     v.GetString("http_port"),
		DisableTLS:   v.GetBool("disable_tls"),
		LogLevel:     strings.ToLower(v.GetString("log_level")),
		ChallengeTTL: v.GetDuration("challenge_ttl"),
		MaxConns:     v.GetInt("max_conns"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load runs Setup and FromViper.
func Load(opts Options) (*Config, error) {
	v, err := Setup(opts)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Validate checks the settings a daemon cannot run without.
func (c *Config) Validate() error {
	if c.Admin == (common.Address{}) {
		return errors.New("admin: zero address cannot administer the ledger")
	}
	if c.DataDir == "" {
		return errors.New("data_dir: must not be empty")
	}
	if c.TCPPort == "" || c.HTTPPort == "" {
		return errors.New("tcp_port and http_port must be set")
	}
	if c.ChallengeTTL <= 0 {
		return fmt.Errorf("challenge_ttl: %s must be positive", c.ChallengeTTL)
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max_conns: %d must be positive", c.MaxConns)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	return nil
}
