package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Data      DataConfig      `mapstructure:"data"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DataConfig selects the acquisition source. Path is a directory for csv and
// a database file for sqlite; the generator fields apply to generator only.
type DataConfig struct {
	Source     string `mapstructure:"source"`
	Path       string `mapstructure:"path"`
	Seed       int64  `mapstructure:"seed"`
	Orders     int    `mapstructure:"orders"`
	Deliveries int    `mapstructure:"deliveries"`
	Routes     int    `mapstructure:"routes"`
	Start      string `mapstructure:"start"`
}

// StartDate parses Data.Start.
func (d DataConfig) StartDate() (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, d.Start, time.UTC)
}

// CacheConfig enables the shared Redis memo when RedisAddr is set.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type RiskConfig struct {
	Weights        map[string]float64 `mapstructure:"weights"`
	AlertThreshold float64            `mapstructure:"alert_threshold"`
	HighRiskLimit  int                `mapstructure:"high_risk_limit"`
}

type AnalyticsConfig struct {
	Backend        string `mapstructure:"backend"`
	Dir            string `mapstructure:"dir"`
	SnapshotDir    string `mapstructure:"snapshot_dir"`
	RestoreOnStart bool   `mapstructure:"restore_on_start"`
	ManifestSink   string `mapstructure:"manifest_sink"`
	ManifestSource string `mapstructure:"manifest_source"`
	ManifestTopic  string `mapstructure:"manifest_topic"`
	ManifestKey    string `mapstructure:"manifest_key"`
}

type AlertsConfig struct {
	Sink  string `mapstructure:"sink"`
	Path  string `mapstructure:"path"`
	Topic string `mapstructure:"topic"`
}

type KafkaConfig struct {
	Bootstrap   string `mapstructure:"bootstrap"`
	InputTopic  string `mapstructure:"input_topic"`
	OutputTopic string `mapstructure:"output_topic"`
	GroupID     string `mapstructure:"group_id"`
	TxID        string `mapstructure:"tx_id"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pdo")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allow_origins", []string{"*"})

	v.SetDefault("data.source", "generator")
	v.SetDefault("data.path", "data")
	v.SetDefault("data.seed", 42)
	v.SetDefault("data.orders", 200)
	v.SetDefault("data.deliveries", 150)
	v.SetDefault("data.routes", 150)
	v.SetDefault("data.start", "2024-01-01")

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("risk.weights", map[string]float64{
		"priority": 0.30,
		"traffic":  0.20,
		"weather":  0.20,
		"distance": 0.15,
		"product":  0.15,
	})
	v.SetDefault("risk.alert_threshold", 0.6)
	v.SetDefault("risk.high_risk_limit", 5)

	v.SetDefault("analytics.backend", "memory")
	v.SetDefault("analytics.dir", "state")
	v.SetDefault("analytics.snapshot_dir", "snapshots")
	v.SetDefault("analytics.restore_on_start", false)
	v.SetDefault("analytics.manifest_sink", "file")
	v.SetDefault("analytics.manifest_source", "file")
	v.SetDefault("analytics.manifest_topic", "pdo.manifest")
	v.SetDefault("analytics.manifest_key", "pdo-manifest-latest")

	v.SetDefault("alerts.sink", "none")
	v.SetDefault("alerts.path", "alerts.jsonl")
	v.SetDefault("alerts.topic", "pdo.alerts")

	v.SetDefault("kafka.bootstrap", "localhost:9092")
	v.SetDefault("kafka.input_topic", "pdo.records")
	v.SetDefault("kafka.output_topic", "pdo.assessments")
	v.SetDefault("kafka.group_id", "pdo-scorer")
	v.SetDefault("kafka.tx_id", "pdo-scorer-1")
}

// Load reads the YAML file at path (optional) over the defaults, then applies
// PDO_ environment overrides, e.g. PDO_HTTP_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PDO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	return &cfg, nil
}

func oneOf(field, val string, allowed ...string) error {
	if !slices.Contains(allowed, val) {
		return fmt.Errorf("%w: %s must be one of %v, got %q", ErrInvalidConfig, field, allowed, val)
	}
	return nil
}

// Validate rejects unknown enum values and negative counts.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("%w: app.name is required", ErrInvalidConfig)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http.addr is required", ErrInvalidConfig)
	}
	checks := []error{
		oneOf("data.source", c.Data.Source, "generator", "csv", "sqlite"),
		oneOf("analytics.backend", c.Analytics.Backend, "memory", "pebble", "badger"),
		oneOf("analytics.manifest_sink", c.Analytics.ManifestSink, "none", "file", "kafka", "both"),
		oneOf("analytics.manifest_source", c.Analytics.ManifestSource, "file", "kafka"),
		oneOf("alerts.sink", c.Alerts.Sink, "none", "file", "kafka", "both"),
	}
	if err := errors.Join(checks...); err != nil {
		return err
	}
	if c.Data.Source != "generator" && c.Data.Path == "" {
		return fmt.Errorf("%w: data.path is required for %s", ErrInvalidConfig, c.Data.Source)
	}
	if c.Data.Orders < 0 || c.Data.Deliveries < 0 || c.Data.Routes < 0 {
		return fmt.Errorf("%w: data counts must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Data.StartDate(); err != nil {
		return fmt.Errorf("%w: data.start: %v", ErrInvalidConfig, err)
	}
	if c.Risk.AlertThreshold < 0 || c.Risk.AlertThreshold > 1 {
		return fmt.Errorf("%w: risk.alert_threshold must be within [0,1]", ErrInvalidConfig)
	}
	if c.Risk.HighRiskLimit < 0 {
		return fmt.Errorf("%w: risk.high_risk_limit must not be negative", ErrInvalidConfig)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative", ErrInvalidConfig)
	}
	return nil
}
