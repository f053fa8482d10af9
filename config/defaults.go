// =============================================================================
// 📦 mediaflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		API:       DefaultAPIConfig(),
		Queue:     DefaultQueueConfig(),
		Download:  DefaultDownloadConfig(),
		Media:     DefaultMediaConfig(),
		Chat:      DefaultChatConfig(),
		Batch:     DefaultBatchConfig(),
		Cache:     DefaultCacheConfig(),
		Log:       DefaultLogConfig(),
		Metrics:   DefaultMetricsConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultAPIConfig 返回默认网关配置
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		BaseURL:     "https://api.maxgent.ai",
		RoutePrefix: "/api/fal",
		Timeout:     120 * time.Second,
	}
}

// DefaultQueueConfig 返回默认队列配置
// 固定 3s 间隔、20 分钟上限
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxWait:       20 * time.Minute,
		PollInterval:  3 * time.Second,
		StatusRetries: 2,
	}
}

// DefaultDownloadConfig 返回默认下载配置
func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		BufferSize: 32 * 1024,
		Timeout:    0,
	}
}

// DefaultMediaConfig 返回默认媒体参数
func DefaultMediaConfig() MediaConfig {
	return MediaConfig{
		Model:             "google/gemini-2.5-pro",
		MaxTokens:         4096,
		Temperature:       0.2,
		ImageOutputFormat: "png",
		OutputDir:         ".",
	}
}

// DefaultChatConfig 返回默认直连配置
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		Enabled: false,
		BaseURL: "https://openrouter.ai/api/v1",
		Timeout: 120 * time.Second,
	}
}

// DefaultBatchConfig 返回默认批量配置
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Concurrency: 4,
		SubmitRPS:   2,
		SubmitBurst: 1,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:     false,
		Addr:        "localhost:6379",
		KeyPrefix:   "mediaflow:",
		ResultTTL:   24 * time.Hour,
		HistorySize: 50,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "console",
		OutputPaths:  []string{"stderr"},
		EnableCaller: false,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "mediaflow",
		Addr:      "",
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "mediaflow",
		SampleRate:   0.1,
	}
}
