package gateway

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/internal/tlsutil"
	"github.com/BaSui01/mediaflow/types"
)

// DefaultBaseURL 网关地址加路由前缀
const DefaultBaseURL = "https://api.maxgent.ai/api/fal"

// ClientConfig 网关客户端配置
// 客户端不读取进程环境，所有输入都通过这里显式传入。
type ClientConfig struct {
	APIKey  string
	BaseURL string // {base}，已包含路由前缀

	Timeout       time.Duration // 单次 JSON 调用超时
	MaxWait       time.Duration
	PollInterval  time.Duration
	StatusRetries int
	BufferSize    int

	// DownloadTimeout 单次下载的整体超时，0 表示只受 ctx 控制
	DownloadTimeout time.Duration
}

// DefaultClientConfig 返回默认配置（不含凭证）
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:       DefaultBaseURL,
		Timeout:       120 * time.Second,
		MaxWait:       20 * time.Minute,
		PollInterval:  3 * time.Second,
		StatusRetries: 2,
		BufferSize:    32 * 1024,
	}
}

// ClientConfigFrom 从加载好的进程配置构造客户端配置
// queue.status_retries 为 0 时表示关闭重试。
func ClientConfigFrom(cfg *config.Config) ClientConfig {
	retries := cfg.Queue.StatusRetries
	if retries == 0 {
		retries = -1
	}
	return ClientConfig{
		APIKey:        cfg.API.Key,
		BaseURL:       cfg.API.GatewayBase(),
		Timeout:       cfg.API.Timeout,
		MaxWait:       cfg.Queue.MaxWait,
		PollInterval:  cfg.Queue.PollInterval,
		StatusRetries: retries,
		BufferSize:    cfg.Download.BufferSize,

		DownloadTimeout: cfg.Download.Timeout,
	}
}

// Recorder 接收客户端产生的指标事件
type Recorder interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordStatusChange(endpoint, status string)
	RecordTerminal(endpoint, outcome string)
	RecordTransfer(direction string, bytes int64)
}

// NopRecorder 丢弃所有指标事件
type NopRecorder struct{}

func (NopRecorder) RecordRequest(string, string, int, time.Duration) {}
func (NopRecorder) RecordStatusChange(string, string) {}
func (NopRecorder) RecordTerminal(string, string) {}
func (NopRecorder) RecordTransfer(string, int64) {}

// Client 网关客户端，可被多个任务并发使用
type Client struct {
	cfg        ClientConfig
	base       string
	transport  *Transport
	httpClient *http.Client
	logger     *zap.Logger
	recorder   Recorder
	clock      Clock
	blob       BlobOptions
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRecorder 设置指标接收器
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithClock 设置轮询使用的时钟
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithBlobOptions 设置下载的缓冲与文件工厂
func WithBlobOptions(opts BlobOptions) Option {
	return func(c *Client) { c.blob = opts }
}

// NewClient 创建网关客户端
// 凭证缺失时返回 CONFIGURATION 错误，不会发起任何网络调用。
func NewClient(cfg ClientConfig, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, types.NewError(types.ErrConfiguration, "Missing MAX_API_KEY environment variable")
	}

	defaults := DefaultClientConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, types.Errorf(types.ErrConfiguration, "invalid gateway base URL: %q", cfg.BaseURL).WithCause(err)
	}

	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	if cfg.DownloadTimeout < 0 {
		cfg.DownloadTimeout = 0
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaults.MaxWait
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	// 0 取默认值，负数关闭重试
	switch {
	case cfg.StatusRetries == 0:
		cfg.StatusRetries = defaults.StatusRetries
	case cfg.StatusRetries < 0:
		cfg.StatusRetries = 0
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}

	c := &Client{
		cfg:  cfg,
		base: base,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = tlsutil.SecureHTTPClient()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.recorder == nil {
		c.recorder = NopRecorder{}
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	c.blob = c.blob.withDefaults(cfg.BufferSize)
	c.transport = NewTransport(c.httpClient, c.logger, c.recorder)

	return c, nil
}

// BaseURL 返回 {base}
func (c *Client) BaseURL() string { return c.base }

// Config 返回生效的客户端配置
func (c *Client) Config() ClientConfig { return c.cfg }

func (c *Client) authHeader() http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+c.cfg.APIKey)
	return h
}

func (c *Client) jsonHeader() http.Header {
	h := c.authHeader()
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}
