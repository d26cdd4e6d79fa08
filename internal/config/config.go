// Package config loads process configuration from environment variables
// and an optional YAML file via viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NodeConfig is this processor's identity and topology parameters, set
// from the environment per spec.md §6.4.
type NodeConfig struct {
	ID                int    `mapstructure:"id"`
	APIPort           int    `mapstructure:"api_port"`
	NumberOfNodes     int    `mapstructure:"number_of_nodes"`
	HostsPath         string `mapstructure:"hosts_path"`
	IntegrationTest   bool   `mapstructure:"integration_test"`
	InjectStartState  string `mapstructure:"inject_start_state"`
	NonSelfStab       bool   `mapstructure:"non_self_stab"`
}

// LogConfig controls slog construction (internal/logging).
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// CacheConfig controls the ABD register's optional Redis read-through
// cache. Addr == "" disables the cache entirely.
type CacheConfig struct {
	Addr string        `mapstructure:"addr"`
	DB   int           `mapstructure:"db"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// Config is the full process configuration.
type Config struct {
	Node  NodeConfig  `mapstructure:"node"`
	Log   LogConfig   `mapstructure:"log"`
	Cache CacheConfig `mapstructure:"cache"`
}

// Load reads configuration from environment variables (and configPath, a
// YAML file, if non-empty and present), applying defaults for anything
// unset.
func Load(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// bindEnv maps the bare environment variable names from spec.md §6.4 onto
// the mapstructure keys viper otherwise expects prefixed by section.
func bindEnv() {
	_ = viper.BindEnv("node.id", "ID")
	_ = viper.BindEnv("node.api_port", "API_PORT")
	_ = viper.BindEnv("node.number_of_nodes", "NUMBER_OF_NODES")
	_ = viper.BindEnv("node.hosts_path", "HOSTS_PATH")
	_ = viper.BindEnv("node.integration_test", "INTEGRATION_TEST")
	_ = viper.BindEnv("node.inject_start_state", "INJECT_START_STATE")
	_ = viper.BindEnv("node.non_self_stab", "NON_SELF_STAB")
}

func setDefaults() {
	viper.SetDefault("node.id", 0)
	viper.SetDefault("node.api_port", 8080)
	viper.SetDefault("node.number_of_nodes", 1)
	viper.SetDefault("node.hosts_path", "hosts.txt")
	viper.SetDefault("node.integration_test", false)
	viper.SetDefault("node.inject_start_state", "")
	viper.SetDefault("node.non_self_stab", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.filename", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("cache.addr", "")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.ttl", "1m")
}

// Validate rejects a topology that cannot produce a valid quorum.
func (c *Config) Validate() error {
	if c.Node.NumberOfNodes < 1 {
		return fmt.Errorf("node.number_of_nodes must be >= 1, got %d", c.Node.NumberOfNodes)
	}
	if c.Node.ID < 0 || c.Node.ID >= c.Node.NumberOfNodes {
		return fmt.Errorf("node.id %d out of range [0,%d)", c.Node.ID, c.Node.NumberOfNodes)
	}
	if c.Node.APIPort <= 0 || c.Node.APIPort > 65535 {
		return fmt.Errorf("node.api_port %d out of range", c.Node.APIPort)
	}
	return nil
}
