// Package config loads the service configuration from YAML and applies
// defaults for anything the file leaves out.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cream-quant/synthcore/internal/trigger"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	Redis      RedisConfig    `yaml:"redis"`
	Postgres   PostgresConfig `yaml:"postgres"`
	Trigger    trigger.Config `yaml:"trigger"`
	Thresholds Thresholds     `yaml:"thresholds"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr          string  `yaml:"addr"`            // default :8090
	RateLimitRPS  float64 `yaml:"rate_limit_rps"`  // default 25
	RateLimitBurst int    `yaml:"rate_limit_burst"` // default 50
}

// RedisConfig holds the indicator-registry connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty disables the redis registry
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig holds the report-archive connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"` // empty disables the archive
}

// Thresholds are the default gate thresholds applied when a request does
// not override them. Ranges follow the pipeline contract.
type Thresholds struct {
	DSRPValue      float64 `yaml:"dsr_p_value"`     // [0,1], default 0.95
	PBO            float64 `yaml:"pbo"`             // [0,1], default 0.5
	ICMean         float64 `yaml:"ic_mean"`         // default 0.02
	ICStd          float64 `yaml:"ic_std"`          // >= 0, default 0.03
	WFEfficiency   float64 `yaml:"wf_efficiency"`   // default 0.5
	MaxCorrelation float64 `yaml:"max_correlation"` // [0,1], default 0.7
	MaxVIF         float64 `yaml:"max_vif"`         // > 0, default 5.0
}

// Default returns the production configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8090",
			RateLimitRPS:   25,
			RateLimitBurst: 50,
		},
		Trigger: trigger.DefaultConfig(),
		Thresholds: Thresholds{
			DSRPValue:      0.95,
			PBO:            0.5,
			ICMean:         0.02,
			ICStd:          0.03,
			WFEfficiency:   0.5,
			MaxCorrelation: 0.7,
			MaxVIF:         5.0,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults untouched; a path that cannot be read is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	t := c.Thresholds
	if t.DSRPValue < 0 || t.DSRPValue > 1 {
		return fmt.Errorf("config: dsr_p_value %.4f outside [0,1]", t.DSRPValue)
	}
	if t.PBO < 0 || t.PBO > 1 {
		return fmt.Errorf("config: pbo %.4f outside [0,1]", t.PBO)
	}
	if t.ICStd < 0 {
		return fmt.Errorf("config: ic_std %.4f must be >= 0", t.ICStd)
	}
	if t.MaxCorrelation < 0 || t.MaxCorrelation > 1 {
		return fmt.Errorf("config: max_correlation %.4f outside [0,1]", t.MaxCorrelation)
	}
	if t.MaxVIF <= 0 {
		return fmt.Errorf("config: max_vif %.4f must be > 0", t.MaxVIF)
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("config: rate_limit_rps %.2f must be > 0", c.Server.RateLimitRPS)
	}
	return nil
}
