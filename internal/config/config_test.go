package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/channel-liveness/internal/channel"
	"github.com/JakeFAU/channel-liveness/internal/prober"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 20, cfg.Controller.BatchSize)
	require.Equal(t, prober.DefaultConfig(), cfg.ProberConfig())
	require.False(t, cfg.Schedule.Enabled)
	require.Equal(t, "02:00", cfg.Schedule.Time)
	require.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	require.Equal(t, 200*time.Millisecond, cfg.NotifySpacing())
	require.Equal(t, time.Minute, cfg.RequestTimeout())

	loc, err := cfg.ReportLocation()
	require.NoError(t, err)
	require.Equal(t, "Asia/Shanghai", loc.String())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
probe:
  connect_timeout_seconds: 3
  read_timeout_seconds: 4
  max_bytes: 1024
  max_redirects: 2
controller:
  batch_size: 5
kafka:
  enabled: true
  brokers: ["localhost:9092"]
webhooks:
  - name: ops
    type: dingtalk
    url: https://oapi.dingtalk.com/robot/send?access_token=x
    enabled: true
schedule:
  enabled: true
  time: "06:30"
  timezone: UTC
channels:
  - id: "1"
    name: CCTV-1
    url: http://example.com/cctv1.m3u8
  - id: "2"
    name: CCTV-2
    url: http://example.com/cctv2.m3u8
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.Equal(t, 5, cfg.Controller.BatchSize)

	pc := cfg.ProberConfig()
	require.Equal(t, 3*time.Second, pc.ConnectTimeout)
	require.Equal(t, 4*time.Second, pc.ReadTimeout)
	require.Equal(t, int64(1024), pc.MaxBytes)
	require.Equal(t, 2, pc.MaxRedirects)

	require.Equal(t, "channel-probe-results", cfg.Kafka.Topic)
	require.Len(t, cfg.Webhooks, 1)
	require.Equal(t, "dingtalk", cfg.Webhooks[0].Type)

	hour, minute, err := cfg.ScheduleClock()
	require.NoError(t, err)
	require.Equal(t, 6, hour)
	require.Equal(t, 30, minute)

	require.Len(t, cfg.Channels, 2)
	require.Equal(t, "CCTV-2", cfg.Channels[1].Name)
	require.Equal(t, "http://example.com/cctv2.m3u8", cfg.Channels[1].URL)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "auth missing api key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "connect timeout", mutate: func(c *Config) { c.Probe.ConnectTimeoutSeconds = 0 }, want: "probe.connect_timeout_seconds"},
		{name: "read timeout", mutate: func(c *Config) { c.Probe.ReadTimeoutSeconds = 0 }, want: "probe.read_timeout_seconds"},
		{name: "max bytes", mutate: func(c *Config) { c.Probe.MaxBytes = 0 }, want: "probe.max_bytes"},
		{name: "max redirects", mutate: func(c *Config) { c.Probe.MaxRedirects = -1 }, want: "probe.max_redirects"},
		{name: "batch size", mutate: func(c *Config) { c.Controller.BatchSize = 0 }, want: "controller.batch_size"},
		{name: "rate limit", mutate: func(c *Config) { c.RateLimit = RateLimitConfig{Enabled: true} }, want: "ratelimit.rps"},
		{name: "kafka brokers", mutate: func(c *Config) { c.Kafka.Enabled = true }, want: "kafka.brokers"},
		{
			name:   "webhook type",
			mutate: func(c *Config) { c.Webhooks = []WebhookConfig{{Type: "slack", URL: "http://x"}} },
			want:   "not supported",
		},
		{
			name:   "webhook url",
			mutate: func(c *Config) { c.Webhooks = []WebhookConfig{{Type: "feishu"}} },
			want:   "webhooks[0].url",
		},
		{name: "schedule time", mutate: func(c *Config) { c.Schedule.Time = "25:99" }, want: "schedule.time"},
		{name: "schedule zone", mutate: func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, want: "schedule.timezone"},
		{name: "report zone", mutate: func(c *Config) { c.Report.Timezone = "Nowhere/Land" }, want: "report.timezone"},
		{
			name:   "channel without url",
			mutate: func(c *Config) { c.Channels = []channel.Channel{{ID: "x", Name: "X"}} },
			want:   "channels[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Webhooks = nil
			cfg.Channels = nil
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
