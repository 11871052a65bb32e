package config

import (
	"embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed example.yaml
var exampleConfig embed.FS

// Config represents the complete reverb ingestion core configuration
type Config struct {
	Relay    Relay    `yaml:"relay"`
	Ingest   Ingest   `yaml:"ingest"`
	Dedup    Dedup    `yaml:"dedup"`
	Storage  Storage  `yaml:"storage"`
	Cache    Cache    `yaml:"cache"`
	Trending Trending `yaml:"trending"`
	Feed     Feed     `yaml:"feed"`
	Logging  Logging  `yaml:"logging"`
}

// Relay contains the upstream event relay connection settings
type Relay struct {
	URL                string `yaml:"url"`
	ReconnectDelaySecs int    `yaml:"reconnect_delay_secs"`
	ConnectTimeoutSecs int    `yaml:"connect_timeout_secs"`
}

// Ingest contains ingestion pipeline settings
type Ingest struct {
	// WatermarkKey names the ingest_state row holding the replay cursor
	WatermarkKey string `yaml:"watermark_key"`
	BufferSize   int    `yaml:"buffer_size"`
}

// Dedup contains deduplicator sizing
type Dedup struct {
	BloomCapacity  uint    `yaml:"bloom_capacity"`
	BloomFPRate    float64 `yaml:"bloom_fp_rate"`
	ExactCapacity  int     `yaml:"exact_capacity"`
	ResetThreshold uint64  `yaml:"reset_threshold"`
}

// Storage contains relational store settings
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Cache contains the ranked/feed cache (redis) settings
type Cache struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Trending contains ranking job settings
type Trending struct {
	IntervalSecs int             `yaml:"interval_secs"`
	TopN         int             `yaml:"top_n"`
	ScaleFactor  float64         `yaml:"scale_factor"`
	Weights      TrendingWeights `yaml:"weights"`
}

// TrendingWeights are the engagement signal weights
type TrendingWeights struct {
	ZapCount float64 `yaml:"zap_count"`
	Reaction float64 `yaml:"reaction"`
	View     float64 `yaml:"view"`
	Comment  float64 `yaml:"comment"`
	ZapLog   float64 `yaml:"zap_log"`
}

// Feed contains personalized feed settings
type Feed struct {
	FollowBoost  float64 `yaml:"follow_boost"`
	CacheTTLSecs int     `yaml:"cache_ttl_secs"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ReconnectDelay returns the relay reconnect delay as a duration
func (r *Relay) ReconnectDelay() time.Duration {
	return time.Duration(r.ReconnectDelaySecs) * time.Second
}

// ConnectTimeout returns the relay connect timeout as a duration
func (r *Relay) ConnectTimeout() time.Duration {
	return time.Duration(r.ConnectTimeoutSecs) * time.Second
}

// Interval returns the trending recompute interval as a duration
func (t *Trending) Interval() time.Duration {
	return time.Duration(t.IntervalSecs) * time.Second
}

// CacheTTL returns the personalized cache TTL as a duration
func (f *Feed) CacheTTL() time.Duration {
	return time.Duration(f.CacheTTLSecs) * time.Second
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Relay: Relay{
			ReconnectDelaySecs: 5,
			ConnectTimeoutSecs: 30,
		},
		Ingest: Ingest{
			WatermarkKey: "relay_watermark",
			BufferSize:   1000,
		},
		Dedup: Dedup{
			BloomCapacity:  100000,
			BloomFPRate:    0.01,
			ExactCapacity:  5000,
			ResetThreshold: 100000,
		},
		Storage: Storage{
			SQLitePath: "reverb.db",
		},
		Cache: Cache{
			Addr: "localhost:6379",
		},
		Trending: Trending{
			IntervalSecs: 300,
			TopN:         100,
			ScaleFactor:  100,
			Weights: TrendingWeights{
				ZapCount: 10,
				Reaction: 3,
				View:     1,
				Comment:  5,
				ZapLog:   2,
			},
		},
		Feed: Feed{
			FollowBoost:  6,
			CacheTTLSecs: 3600,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDefaults fills in missing configuration fields with sensible defaults
func applyDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Relay.ReconnectDelaySecs == 0 {
		cfg.Relay.ReconnectDelaySecs = defaults.Relay.ReconnectDelaySecs
	}
	if cfg.Relay.ConnectTimeoutSecs == 0 {
		cfg.Relay.ConnectTimeoutSecs = defaults.Relay.ConnectTimeoutSecs
	}

	if cfg.Ingest.WatermarkKey == "" {
		cfg.Ingest.WatermarkKey = defaults.Ingest.WatermarkKey
	}
	if cfg.Ingest.BufferSize == 0 {
		cfg.Ingest.BufferSize = defaults.Ingest.BufferSize
	}

	if cfg.Dedup.BloomCapacity == 0 {
		cfg.Dedup.BloomCapacity = defaults.Dedup.BloomCapacity
	}
	if cfg.Dedup.BloomFPRate == 0 {
		cfg.Dedup.BloomFPRate = defaults.Dedup.BloomFPRate
	}
	if cfg.Dedup.ExactCapacity == 0 {
		cfg.Dedup.ExactCapacity = defaults.Dedup.ExactCapacity
	}
	if cfg.Dedup.ResetThreshold == 0 {
		cfg.Dedup.ResetThreshold = defaults.Dedup.ResetThreshold
	}

	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = defaults.Storage.SQLitePath
	}
	if cfg.Cache.Addr == "" {
		cfg.Cache.Addr = defaults.Cache.Addr
	}

	if cfg.Trending.IntervalSecs == 0 {
		cfg.Trending.IntervalSecs = defaults.Trending.IntervalSecs
	}
	if cfg.Trending.TopN == 0 {
		cfg.Trending.TopN = defaults.Trending.TopN
	}
	if cfg.Trending.ScaleFactor == 0 {
		cfg.Trending.ScaleFactor = defaults.Trending.ScaleFactor
	}
	if cfg.Trending.Weights == (TrendingWeights{}) {
		cfg.Trending.Weights = defaults.Trending.Weights
	}

	if cfg.Feed.FollowBoost == 0 {
		cfg.Feed.FollowBoost = defaults.Feed.FollowBoost
	}
	if cfg.Feed.CacheTTLSecs == 0 {
		cfg.Feed.CacheTTLSecs = defaults.Feed.CacheTTLSecs
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
}

// Validate checks a configuration for invalid values
func Validate(cfg *Config) error {
	if cfg.Relay.URL == "" {
		return fmt.Errorf("relay.url is required")
	}
	if cfg.Dedup.BloomCapacity == 0 {
		return fmt.Errorf("dedup.bloom_capacity must be greater than zero")
	}
	if cfg.Dedup.BloomFPRate <= 0 || cfg.Dedup.BloomFPRate >= 1 {
		return fmt.Errorf("dedup.bloom_fp_rate must be in (0, 1)")
	}
	if cfg.Dedup.ExactCapacity <= 0 {
		return fmt.Errorf("dedup.exact_capacity must be greater than zero")
	}
	if cfg.Trending.TopN <= 0 {
		return fmt.Errorf("trending.top_n must be greater than zero")
	}
	if cfg.Feed.FollowBoost < 1 {
		return fmt.Errorf("feed.follow_boost must be at least 1")
	}
	return nil
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// GetExampleConfig returns the embedded example configuration
func GetExampleConfig() ([]byte, error) {
	return exampleConfig.ReadFile("example.yaml")
}
