// Package config loads insightq settings from defaults, an optional config
// file and INSIGHTQ_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. INSIGHTQ_HTTP_ADDR
const EnvPrefix = "INSIGHTQ"

// Config is the full insightq configuration
type Config struct {
	HTTP   HTTPConfig   `mapstructure:"http"`
	Data   DataConfig   `mapstructure:"data"`
	Log    LogConfig    `mapstructure:"log"`
	Query  QueryConfig  `mapstructure:"query"`
	Geo    GeoConfig    `mapstructure:"geo"`
	Ingest IngestConfig `mapstructure:"ingest"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second per client, 0 disables
	RateBurst       int           `mapstructure:"rate_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type QueryConfig struct {
	Workers           int `mapstructure:"workers"` // 0 filters sequentially
	ParallelThreshold int `mapstructure:"parallel_threshold"`
}

type GeoConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Rate    float64       `mapstructure:"rate"` // lookups per second, 0 disables
}

type IngestConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// defaults also registers every key, which lets AutomaticEnv reach them
// during Unmarshal
var defaults = map[string]interface{}{
	"http.addr":                ":4321",
	"http.max_body_bytes":      10 << 20,
	"http.cors_origin":         "*",
	"http.rate_limit":          0,
	"http.rate_burst":          20,
	"http.shutdown_timeout":    "10s",
	"data.dir":                 "./data",
	"log.level":                "info",
	"log.format":               "logfmt",
	"query.workers":            0,
	"query.parallel_threshold": 10000,
	"geo.base_url":             "http://cs310.students.cs.ubc.ca:11316/api/v1/project_team048",
	"geo.timeout":              "5s",
	"geo.rate":                 0,
	"ingest.concurrency":       8,
}

// New returns a viper instance carrying defaults and environment bindings.
// Callers may bind command line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path (any format viper knows) and
// returns the merged configuration. An empty path skips the file.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr must be set")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.New("http.max_body_bytes must be positive")
	}
	if c.HTTP.RateLimit < 0 {
		return errors.New("http.rate_limit must not be negative")
	}
	if c.Query.Workers < 0 {
		return errors.New("query.workers must not be negative")
	}
	if c.Ingest.Concurrency < 1 {
		return errors.New("ingest.concurrency must be at least 1")
	}
	return nil
}
