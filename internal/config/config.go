// Package config loads and validates the decision core's typed
// configuration document (server.toml by convention) and serves
// lock-free, immutable snapshots to the rest of the process.
package config

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/riskcore/decisioncore/internal/decisionerr"
)

// Config is the full, validated configuration document (§4.1).
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Performance PerformanceConfig `mapstructure:"performance" validate:"required"`
	Features   FeaturesConfig   `mapstructure:"features" validate:"required"`
	Logging    LoggingConfig    `mapstructure:"logging" validate:"required"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" validate:"required"`
}

// ServerConfig: host/port/threading knobs for the transport collaborator.
type ServerConfig struct {
	Host              string `mapstructure:"host" validate:"required"`
	Port              int    `mapstructure:"port" validate:"min=1,max=65535"`
	Threads           int    `mapstructure:"threads" validate:"min=1,max=64"`
	KeepAliveTimeoutS int    `mapstructure:"keep_alive_timeout" validate:"min=1,max=3600"`
	MaxConnections    int    `mapstructure:"max_connections" validate:"min=1,max=100000"`
}

// PerformanceConfig: operating budgets the orchestrator may enforce.
type PerformanceConfig struct {
	TargetP99Ms     float64 `mapstructure:"target_p99_ms" validate:"gt=0,lte=10000"`
	TargetQPS       float64 `mapstructure:"target_qps" validate:"gt=0,lte=1000000"`
	MaxMemoryGB     float64 `mapstructure:"max_memory_gb" validate:"gt=0,lte=128"`
	MaxCPUPercent   float64 `mapstructure:"max_cpu_percent" validate:"gt=0,lte=100"`
}

// FeaturesConfig: feature-cache tiers (§4.1). L1/L2/L3 ceilings match the
// source's validation ranges exactly (16GB/1h, 4GB/2h, 32GB/24h) per the
// Open Question resolution recorded in DESIGN.md — not softened.
type FeaturesConfig struct {
	EnableCache    bool    `mapstructure:"enable_cache"`
	CacheSizeMB    int     `mapstructure:"cache_size_mb" validate:"min=0"`
	CacheTTLSec    int     `mapstructure:"cache_ttl_seconds" validate:"min=0"`
	L1SizeMB       int     `mapstructure:"l1_size_mb" validate:"min=0,lte=16384"`
	L1TTLSec       int     `mapstructure:"l1_ttl_seconds" validate:"min=0,lte=3600"`
	L2SizeMB       int     `mapstructure:"l2_size_mb" validate:"min=0,lte=4096"`
	L2TTLSec       int     `mapstructure:"l2_ttl_seconds" validate:"min=0,lte=7200"`
	L3SizeMB       int     `mapstructure:"l3_size_mb" validate:"min=0,lte=32768"`
	L3TTLSec       int     `mapstructure:"l3_ttl_seconds" validate:"min=0,lte=86400"`
	EnableRedis    bool    `mapstructure:"enable_redis"`
	RedisHost      string  `mapstructure:"redis_host"`
	RedisPort      int     `mapstructure:"redis_port" validate:"omitempty,min=1,max=65535"`
}

// LoggingConfig drives both the slog handler and the lumberjack rotation
// writer in internal/telemetry.
type LoggingConfig struct {
	Level         string `mapstructure:"level" validate:"required,oneof=trace debug info warn error critical off"`
	FilePath      string `mapstructure:"file_path" validate:"required"`
	MaxSizeMB     int    `mapstructure:"max_size_mb" validate:"gt=0,lte=1024"`
	MaxFiles      int    `mapstructure:"max_files" validate:"gt=0,lte=100"`
	EnableConsole bool   `mapstructure:"enable_console"`
	EnableFile    bool   `mapstructure:"enable_file"`
}

// MonitoringConfig drives the Prometheus exporter in internal/telemetry.
type MonitoringConfig struct {
	EnablePrometheus       bool   `mapstructure:"enable_prometheus"`
	PrometheusPort         int    `mapstructure:"prometheus_port" validate:"omitempty,min=1,max=65535"`
	MetricsIntervalSeconds int    `mapstructure:"metrics_interval_seconds" validate:"gt=0,lte=3600"`
	MetricsPath            string `mapstructure:"metrics_path" validate:"required"`
}

var validate = validator.New()

// Store holds the active configuration snapshot behind an atomic pointer,
// permitting many concurrent lock-free readers (§5). Each replacement is a
// single atomic store; concurrent Reload calls are not serialized, and the
// last one to finish wins. A running decision never observes a half-loaded
// configuration.
type Store struct {
	current  atomic.Pointer[Config]
	path     string
	observer func(*Config)
}

// Load reads, parses and validates path, returning a ready Store.
func Load(path string) (*Store, error) {
	cfg, err := parseAndValidate(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.current.Store(cfg)
	return s, nil
}

// Get returns the current immutable snapshot. Safe for concurrent use
// without locking; the returned value is never mutated in place.
func (s *Store) Get() *Config {
	return s.current.Load()
}

// OnChange registers an observer invoked after every successful reload.
func (s *Store) OnChange(fn func(*Config)) {
	s.observer = fn
}

// Reload re-parses and validates s.path, swapping the snapshot atomically
// on success. On failure the existing snapshot is retained untouched and
// the error is returned for the caller to log and count — never a partial
// application (§4.1).
func (s *Store) Reload() error {
	cfg, err := parseAndValidate(s.path)
	if err != nil {
		return err
	}
	s.current.Store(cfg)
	if s.observer != nil {
		s.observer(cfg)
	}
	return nil
}

func parseAndValidate(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	v.SetEnvPrefix("DECISIONCORE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, decisionerr.Wrap("config", decisionerr.ConfigError, "config file not found: "+path, err)
		}
		return nil, decisionerr.Wrap("config", decisionerr.ConfigError, "parse failure", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, decisionerr.Wrap("config", decisionerr.ConfigError, "decode failure", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, validationError(err)
	}
	return &cfg, nil
}

func validationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return decisionerr.Wrap("config", decisionerr.ConfigError,
			fmt.Sprintf("%s.%s failed %s", fe.StructNamespace(), fe.Field(), fe.Tag()), err)
	}
	return decisionerr.Wrap("config", decisionerr.ConfigError, "validation failed", err)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.threads", 8)
	v.SetDefault("server.keep_alive_timeout", 60)
	v.SetDefault("server.max_connections", 10000)

	v.SetDefault("performance.target_p99_ms", 50)
	v.SetDefault("performance.target_qps", 10000)
	v.SetDefault("performance.max_memory_gb", 4)
	v.SetDefault("performance.max_cpu_percent", 80)

	v.SetDefault("features.enable_cache", true)
	v.SetDefault("features.cache_size_mb", 256)
	v.SetDefault("features.cache_ttl_seconds", 300)
	v.SetDefault("features.l1_size_mb", 512)
	v.SetDefault("features.l1_ttl_seconds", 60)
	v.SetDefault("features.l2_size_mb", 2048)
	v.SetDefault("features.l2_ttl_seconds", 900)
	v.SetDefault("features.l3_size_mb", 8192)
	v.SetDefault("features.l3_ttl_seconds", 3600)
	v.SetDefault("features.enable_redis", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file_path", "decisioncore.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_files", 10)
	v.SetDefault("logging.enable_console", true)
	v.SetDefault("logging.enable_file", true)

	v.SetDefault("monitoring.enable_prometheus", true)
	v.SetDefault("monitoring.prometheus_port", 9090)
	v.SetDefault("monitoring.metrics_interval_seconds", 15)
	v.SetDefault("monitoring.metrics_path", "/metrics")
}

// ReloadInterval is a convenience default for callers wiring this Store
// into internal/reload's poll loop.
const ReloadInterval = 10 * time.Second
