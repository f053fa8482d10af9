// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapEnv 构造隔离的环境变量读取函数
func mapEnv(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 网关默认值
	assert.Equal(t, "https://api.maxgent.ai", cfg.API.BaseURL)
	assert.Equal(t, "/api/fal", cfg.API.RoutePrefix)
	assert.Equal(t, 120*time.Second, cfg.API.Timeout)
	assert.Empty(t, cfg.API.Key)

	// 队列默认值
	assert.Equal(t, 20*time.Minute, cfg.Queue.MaxWait)
	assert.Equal(t, 3*time.Second, cfg.Queue.PollInterval)
	assert.Equal(t, 2, cfg.Queue.StatusRetries)

	// 下载与媒体默认值
	assert.Equal(t, 32*1024, cfg.Download.BufferSize)
	assert.Equal(t, "google/gemini-2.5-pro", cfg.Media.Model)
	assert.Equal(t, 4096, cfg.Media.MaxTokens)
	assert.InDelta(t, 0.2, cfg.Media.Temperature, 0.0001)

	// 缓存默认关闭
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache.ResultTTL)
	assert.Equal(t, 50, cfg.Cache.HistorySize)

	// 日志默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
}

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEqual(t, APIConfig{}, cfg.API)
	assert.NotEqual(t, QueueConfig{}, cfg.Queue)
	assert.NotEqual(t, DownloadConfig{}, cfg.Download)
	assert.NotEqual(t, MediaConfig{}, cfg.Media)
	assert.NotEqual(t, ChatConfig{}, cfg.Chat)
	assert.NotEqual(t, BatchConfig{}, cfg.Batch)
	assert.NotEqual(t, CacheConfig{}, cfg.Cache)
	assert.NotEqual(t, MetricsConfig{}, cfg.Metrics)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().WithEnvLookup(mapEnv(nil)).Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mediaflow.yaml")

	yamlContent := `
api:
  key: "yaml-key"
  base_url: "https://gateway.example.com/"
  timeout: 30s
queue:
  max_wait: 5m
  poll_interval: 1500ms
  status_retries: 4
download:
  buffer_size: 4096
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		WithEnvLookup(mapEnv(nil)).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "yaml-key", cfg.API.Key)
	assert.Equal(t, "https://gateway.example.com/", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Queue.MaxWait)
	assert.Equal(t, 1500*time.Millisecond, cfg.Queue.PollInterval)
	assert.Equal(t, 4, cfg.Queue.StatusRetries)
	assert.Equal(t, 4096, cfg.Download.BufferSize)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未出现在 YAML 中的字段保持默认值
	assert.Equal(t, "/api/fal", cfg.API.RoutePrefix)
	assert.Equal(t, "google/gemini-2.5-pro", cfg.Media.Model)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).
		WithEnvLookup(mapEnv(nil)).
		Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.maxgent.ai", cfg.API.BaseURL)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("api: [unterminated"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).WithEnvLookup(mapEnv(nil)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoader_EnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "mediaflow.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("api:\n  key: from-yaml\n"), 0o644))

	env := mapEnv(map[string]string{
		"MAX_API_KEY":              "from-env",
		"MAX_API_BASE_URL":         "http://localhost:9000",
		"MAX_QUEUE_POLL_INTERVAL":  "250ms",
		"MAX_QUEUE_STATUS_RETRIES": "0",
		"MAX_DOWNLOAD_BUFFER_SIZE": "1024",
		"MAX_MEDIA_TEMPERATURE":    "0.5",
		"MAX_CHAT_ENABLED":         "true",
		"MAX_CACHE_RESULT_TTL":     "1h",
		"MAX_LOG_OUTPUT_PATHS":     "stdout, /tmp/mediaflow.log",
	})

	cfg, err := NewLoader().WithConfigPath(configPath).WithEnvLookup(env).Load()
	require.NoError(t, err)

	// 环境变量优先于 YAML
	assert.Equal(t, "from-env", cfg.API.Key)
	assert.Equal(t, "http://localhost:9000", cfg.API.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Queue.PollInterval)
	assert.Equal(t, 0, cfg.Queue.StatusRetries)
	assert.Equal(t, 1024, cfg.Download.BufferSize)
	assert.InDelta(t, 0.5, cfg.Media.Temperature, 0.0001)
	assert.True(t, cfg.Chat.Enabled)
	assert.Equal(t, time.Hour, cfg.Cache.ResultTTL)
	assert.Equal(t, []string{"stdout", "/tmp/mediaflow.log"}, cfg.Log.OutputPaths)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	env := mapEnv(map[string]string{
		"MAX_API_KEY":     "ignored",
		"MYAPP_API_KEY":   "custom",
		"MYAPP_LOG_LEVEL": "warn",
	})

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").WithEnvLookup(env).Load()
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.API.Key)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	env := mapEnv(map[string]string{"MAX_QUEUE_MAX_WAIT": "forever"})

	_, err := NewLoader().WithEnvLookup(env).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_QUEUE_MAX_WAIT")
}

func TestLoader_ProcessEnv(t *testing.T) {
	t.Setenv("MAX_API_KEY", "process-key")
	t.Setenv("MAX_API_BASE_URL", "https://proxy.example.com")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "process-key", cfg.API.Key)
	assert.Equal(t, "https://proxy.example.com", cfg.API.BaseURL)
}

func TestLoader_WithValidator(t *testing.T) {
	_, err := NewLoader().
		WithEnvLookup(mapEnv(nil)).
		WithValidator(func(c *Config) error { return c.Validate() }).
		WithValidator(func(c *Config) error {
			if c.API.Key == "" {
				return assert.AnError
			}
			return nil
		}).
		Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "empty base url",
			mutate:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: "api.base_url must not be empty",
		},
		{
			name:    "base url without scheme",
			mutate:  func(c *Config) { c.API.BaseURL = "api.maxgent.ai" },
			wantErr: "api.base_url must start with",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Queue.PollInterval = 0 },
			wantErr: "queue.poll_interval must be positive",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Queue.StatusRetries = -1 },
			wantErr: "queue.status_retries must not be negative",
		},
		{
			name:    "zero buffer",
			mutate:  func(c *Config) { c.Download.BufferSize = 0 },
			wantErr: "download.buffer_size must be positive",
		},
		{
			name:    "cache without addr",
			mutate:  func(c *Config) { c.Cache.Enabled = true; c.Cache.Addr = "" },
			wantErr: "cache.addr must not be empty",
		},
		{
			name:   "disabled cache is not checked",
			mutate: func(c *Config) { c.Cache.Addr = ""; c.Cache.HistorySize = 0 },
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format must be json or console",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAPIConfig_GatewayBase(t *testing.T) {
	tests := []struct {
		base, prefix, want string
	}{
		{"https://api.maxgent.ai", "/api/fal", "https://api.maxgent.ai/api/fal"},
		{"https://api.maxgent.ai/", "/api/fal/", "https://api.maxgent.ai/api/fal"},
		{"http://127.0.0.1:8080//", "", "http://127.0.0.1:8080"},
		{"  https://x.example  ", "fal", "https://x.example/fal"},
	}
	for _, tt := range tests {
		got := APIConfig{BaseURL: tt.base, RoutePrefix: tt.prefix}.GatewayBase()
		assert.Equal(t, tt.want, got)
	}
}
