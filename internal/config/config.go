// Package config loads and validates liveness service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // schedule and report zones must load on minimal images

	"github.com/spf13/viper"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/prober"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Auth       AuthConfig        `mapstructure:"auth"`
	CORS       CORSConfig        `mapstructure:"cors"`
	Logging    LoggingConfig     `mapstructure:"logging"`
	Probe      ProbeConfig       `mapstructure:"probe"`
	Controller ControllerConfig  `mapstructure:"controller"`
	RateLimit  RateLimitConfig   `mapstructure:"ratelimit"`
	DB         DBConfig          `mapstructure:"db"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
	PubSub     PubSubConfig      `mapstructure:"pubsub"`
	Archive    ArchiveConfig     `mapstructure:"archive"`
	Webhooks   []WebhookConfig   `mapstructure:"webhooks"`
	Schedule   ScheduleConfig    `mapstructure:"schedule"`
	Report     ReportConfig      `mapstructure:"report"`
	Channels   []channel.Channel `mapstructure:"channels"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig toggles zap development features and optional file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// ProbeConfig configures a single URL reachability check.
type ProbeConfig struct {
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int    `mapstructure:"read_timeout_seconds"`
	MaxBytes              int64  `mapstructure:"max_bytes"`
	MaxRedirects          int    `mapstructure:"max_redirects"`
	UserAgent             string `mapstructure:"user_agent"`
	InsecureSkipVerify    bool   `mapstructure:"insecure_skip_verify"`
}

// ControllerConfig governs run batching.
type ControllerConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// RateLimitConfig enables per-host probe throttling.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// DBConfig controls access to the relational database. An empty DSN keeps
// channels in memory.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// KafkaConfig configures the probe result topic.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// PubSubConfig holds metadata for publish-subscribe report notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ArchiveConfig sets where rendered reports are kept.
type ArchiveConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	Dir       string `mapstructure:"dir"`
}

// WebhookConfig describes one chat webhook target.
type WebhookConfig struct {
	Name    string `mapstructure:"name"`
	Type    string `mapstructure:"type"`
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// ScheduleConfig controls the daily automatic run.
type ScheduleConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Time     string `mapstructure:"time"`
	Timezone string `mapstructure:"timezone"`
}

// ReportConfig controls report rendering and delivery.
type ReportConfig struct {
	Timezone        string `mapstructure:"timezone"`
	NotifySpacingMs int    `mapstructure:"notify_spacing_ms"`
}

var webhookTypes = map[string]bool{"wechat": true, "dingtalk": true, "feishu": true, "custom": true}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LIVENESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 30)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("probe.connect_timeout_seconds", int(prober.DefaultConnectTimeout/time.Second))
	v.SetDefault("probe.read_timeout_seconds", int(prober.DefaultReadTimeout/time.Second))
	v.SetDefault("probe.max_bytes", prober.DefaultMaxBytes)
	v.SetDefault("probe.max_redirects", prober.DefaultMaxRedirects)
	v.SetDefault("probe.user_agent", prober.DefaultUserAgent)
	v.SetDefault("controller.batch_size", 20)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 2)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("kafka.topic", "channel-probe-results")
	v.SetDefault("archive.prefix", "reports")
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.time", "02:00")
	v.SetDefault("schedule.timezone", "Asia/Shanghai")
	v.SetDefault("report.timezone", "Asia/Shanghai")
	v.SetDefault("report.notify_spacing_ms", 200)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Probe.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("probe.connect_timeout_seconds must be > 0")
	}
	if c.Probe.ReadTimeoutSeconds <= 0 {
		return fmt.Errorf("probe.read_timeout_seconds must be > 0")
	}
	if c.Probe.MaxBytes <= 0 {
		return fmt.Errorf("probe.max_bytes must be > 0")
	}
	if c.Probe.MaxRedirects < 0 {
		return fmt.Errorf("probe.max_redirects must be >= 0")
	}
	if c.Controller.BatchSize <= 0 {
		return fmt.Errorf("controller.batch_size must be > 0")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("ratelimit.rps must be > 0 when rate limiting is enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic must be set when kafka is enabled")
	}
	for i, wh := range c.Webhooks {
		if !webhookTypes[wh.Type] {
			return fmt.Errorf("webhooks[%d].type %q is not supported", i, wh.Type)
		}
		if wh.URL == "" {
			return fmt.Errorf("webhooks[%d].url must be set", i)
		}
	}
	if _, err := c.ScheduleLocation(); err != nil {
		return err
	}
	if _, _, err := c.ScheduleClock(); err != nil {
		return err
	}
	if _, err := c.ReportLocation(); err != nil {
		return err
	}
	for i, ch := range c.Channels {
		if ch.ID == "" || ch.URL == "" {
			return fmt.Errorf("channels[%d] must have id and url", i)
		}
	}
	return nil
}

// ProberConfig converts the probe section into prober settings.
func (c Config) ProberConfig() prober.Config {
	return prober.Config{
		ConnectTimeout:     time.Duration(c.Probe.ConnectTimeoutSeconds) * time.Second,
		ReadTimeout:        time.Duration(c.Probe.ReadTimeoutSeconds) * time.Second,
		MaxBytes:           c.Probe.MaxBytes,
		MaxRedirects:       c.Probe.MaxRedirects,
		UserAgent:          c.Probe.UserAgent,
		InsecureSkipVerify: c.Probe.InsecureSkipVerify,
	}
}

// ScheduleLocation loads the scheduler time zone.
func (c Config) ScheduleLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

// ScheduleClock parses schedule.time as hour and minute.
func (c Config) ScheduleClock() (int, int, error) {
	t, err := time.Parse("15:04", c.Schedule.Time)
	if err != nil {
		return 0, 0, fmt.Errorf("schedule.time must be HH:mm: %w", err)
	}
	return t.Hour(), t.Minute(), nil
}

// ReportLocation loads the time zone used for report timestamps.
func (c Config) ReportLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("report.timezone: %w", err)
	}
	return loc, nil
}

// NotifySpacing is the pause between consecutive notifier deliveries.
func (c Config) NotifySpacing() time.Duration {
	return time.Duration(c.Report.NotifySpacingMs) * time.Millisecond
}

// RequestTimeout bounds API handler execution.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
