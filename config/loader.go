// =============================================================================
// 📦 mediaflow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("mediaflow.yaml").
//	    WithEnvPrefix("MAX").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// 进程启动时读取一次，不支持热重载。
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 环境变量前缀，MAX_API_KEY / MAX_API_BASE_URL 由此而来
const DefaultEnvPrefix = "MAX"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 mediaflow 的完整配置结构
type Config struct {
	// API 网关访问配置
	API APIConfig `yaml:"api" env:"API"`

	// Queue 队列等待配置
	Queue QueueConfig `yaml:"queue" env:"QUEUE"`

	// Download 下载配置
	Download DownloadConfig `yaml:"download" env:"DOWNLOAD"`

	// Media 媒体生成/理解的默认参数
	Media MediaConfig `yaml:"media" env:"MEDIA"`

	// Chat 备用的 chat-completions 直连后端
	Chat ChatConfig `yaml:"chat" env:"CHAT"`

	// Batch 批量任务配置
	Batch BatchConfig `yaml:"batch" env:"BATCH"`

	// Cache 任务结果缓存与提交记录
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// APIConfig 网关配置
type APIConfig struct {
	// Bearer 凭证（必填）
	Key string `yaml:"key" env:"KEY"`
	// 网关地址，不含路由前缀
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 路由前缀，拼接在 BaseURL 之后
	RoutePrefix string `yaml:"route_prefix" env:"ROUTE_PREFIX"`
	// 单次 JSON 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// QueueConfig 队列轮询配置
type QueueConfig struct {
	// 最长等待时间
	MaxWait time.Duration `yaml:"max_wait" env:"MAX_WAIT"`
	// 固定轮询间隔
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	// 状态查询连续失败时的重试次数
	StatusRetries int `yaml:"status_retries" env:"STATUS_RETRIES"`
}

// DownloadConfig 下载配置
type DownloadConfig struct {
	// 流式拷贝缓冲区大小（字节）
	BufferSize int `yaml:"buffer_size" env:"BUFFER_SIZE"`
	// 整体下载超时，0 表示不限制
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// MediaConfig 媒体默认参数
type MediaConfig struct {
	// 多模态理解默认模型
	Model string `yaml:"model" env:"MODEL"`
	// 最大输出 Token
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 温度
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 图像输出格式: png, jpeg, webp
	ImageOutputFormat string `yaml:"image_output_format" env:"IMAGE_OUTPUT_FORMAT"`
	// 输出目录
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`
}

// ChatConfig chat-completions 直连配置
type ChatConfig struct {
	// 是否启用（启用后 understand 命令绕过网关 run 路由）
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// API Key，为空时复用 API.Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// OpenAI 兼容地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// BatchConfig 批量任务配置
type BatchConfig struct {
	// 并发上限
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`
	// 每秒提交数
	SubmitRPS float64 `yaml:"submit_rps" env:"SUBMIT_RPS"`
	// 突发提交数
	SubmitBurst int `yaml:"submit_burst" env:"SUBMIT_BURST"`
}

// CacheConfig Redis 任务存储配置
type CacheConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Redis 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// Redis 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// Redis 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 已完成结果的保存时间，0 表示不过期
	ResultTTL time.Duration `yaml:"result_ttl" env:"RESULT_TTL"`
	// 保留的提交记录条数
	HistorySize int `yaml:"history_size" env:"HISTORY_SIZE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// /metrics 监听地址，为空时不启动
	Addr string `yaml:"addr" env:"ADDR"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		lookupEnv:  os.LookupEnv,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithEnvLookup 替换环境变量读取函数，测试中用于隔离进程环境
func (l *Loader) WithEnvLookup(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := envTag
		if prefix != "" {
			envKey = prefix + "_" + envTag
		}

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := l.lookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
// 凭证缺失不在此处检查，由 gateway.NewClient 在首次网络调用前报告。
func (c *Config) Validate() error {
	var errs []string

	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url must not be empty")
	} else if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, "api.base_url must start with http:// or https://")
	}
	if c.API.Timeout < 0 {
		errs = append(errs, "api.timeout must not be negative")
	}
	if c.Queue.MaxWait <= 0 {
		errs = append(errs, "queue.max_wait must be positive")
	}
	if c.Queue.PollInterval <= 0 {
		errs = append(errs, "queue.poll_interval must be positive")
	}
	if c.Queue.StatusRetries < 0 {
		errs = append(errs, "queue.status_retries must not be negative")
	}
	if c.Download.BufferSize <= 0 {
		errs = append(errs, "download.buffer_size must be positive")
	}
	if c.Media.Temperature < 0 || c.Media.Temperature > 2 {
		errs = append(errs, "media.temperature must be between 0 and 2")
	}
	if c.Batch.Concurrency <= 0 {
		errs = append(errs, "batch.concurrency must be positive")
	}
	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			errs = append(errs, "cache.addr must not be empty when cache is enabled")
		}
		if c.Cache.ResultTTL < 0 {
			errs = append(errs, "cache.result_ttl must not be negative")
		}
		if c.Cache.HistorySize <= 0 {
			errs = append(errs, "cache.history_size must be positive")
		}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, "log.format must be json or console")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GatewayBase 返回 {base}：去掉尾部斜杠的 BaseURL 加上路由前缀
func (a APIConfig) GatewayBase() string {
	base := strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	prefix := strings.Trim(strings.TrimSpace(a.RoutePrefix), "/")
	if prefix == "" {
		return base
	}
	return base + "/" + prefix
}
