package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-level configuration surface.
type Config struct {
	// Lane toggles.
	EnableProduction    bool `mapstructure:"enable_production"`
	EnableShadow        bool `mapstructure:"enable_shadow"`
	EnableTraining      bool `mapstructure:"enable_training"`
	EnablePrevalidation bool `mapstructure:"enable_prevalidation"`

	PrevalidationThreshold float64 `mapstructure:"prevalidation_threshold"`
	QueueCapacity          int     `mapstructure:"queue_capacity"`
	DiscrepancyAlert       float64 `mapstructure:"discrepancy_alert"`

	// Pathfinding.
	MaxHops     int      `mapstructure:"max_hops"`
	StartTokens []string `mapstructure:"start_tokens"`

	// Pool registry.
	RegistryPath    string        `mapstructure:"registry_path"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	// Infrastructure.
	PostgresURL  string `mapstructure:"postgres_url"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`
}

const (
	DefaultPrevalidationThreshold = 0.6
	DefaultQueueCapacity          = 2000
	DefaultDiscrepancyAlert       = 10.0
	DefaultMaxHops                = 3
	DefaultRefreshInterval        = 5 * time.Minute
	DefaultMetricsAddr            = ":9090"
)

// Load reads configuration from the given file, applying defaults and
// DEXARB_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"enable_production":       false,
		"enable_shadow":           true,
		"enable_training":         true,
		"enable_prevalidation":    true,
		"prevalidation_threshold": DefaultPrevalidationThreshold,
		"queue_capacity":          DefaultQueueCapacity,
		"discrepancy_alert":       DefaultDiscrepancyAlert,
		"max_hops":                DefaultMaxHops,
		"refresh_interval":        DefaultRefreshInterval,
		"metrics_addr":            DefaultMetricsAddr,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("DEXARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, Validate(&cfg)
}

// Validate rejects configurations the engine cannot start with.
func Validate(cfg *Config) error {
	if cfg.QueueCapacity <= 0 {
		return errors.New("invalid queue_capacity")
	}
	if cfg.PrevalidationThreshold < 0 || cfg.PrevalidationThreshold > 1 {
		return errors.New("prevalidation_threshold must be within [0,1]")
	}
	if cfg.MaxHops < 1 {
		return errors.New("invalid max_hops")
	}
	if cfg.RefreshInterval <= 0 {
		return errors.New("invalid refresh_interval")
	}
	if cfg.RegistryPath == "" {
		return errors.New("missing registry_path in configuration")
	}
	if len(cfg.StartTokens) == 0 {
		return errors.New("start_tokens is empty")
	}
	return nil
}
