// Package chatcompat 提供直连 OpenAI 兼容 chat-completions 后端的 Runner。
//
// 与 gateway.Client 的 run 路由遵守同一契约：一次 POST，不轮询，不重试，
// 错误统一为 *types.Error。
package chatcompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/internal/tlsutil"
	"github.com/BaSui01/mediaflow/types"
)

// DefaultPath endpoint 为空时使用的路径
const DefaultPath = "chat/completions"

// Config 后端配置
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// ConfigFrom 从进程配置构造
func ConfigFrom(cfg config.ChatConfig) Config {
	return Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}
}

// Option Runner 选项
type Option func(*Runner)

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Runner) { r.httpClient = hc }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// Runner 把 endpoint 解释为 base URL 之下的路径
type Runner struct {
	client     openai.Client
	httpClient *http.Client
	logger     *zap.Logger
	baseURL    string
}

var _ gateway.Runner = (*Runner)(nil)

// NewRunner 创建 Runner，凭证缺失时返回 CONFIGURATION 错误
func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, types.NewError(types.ErrConfiguration, "Missing chat API key")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, types.Errorf(types.ErrConfiguration, "invalid chat base URL: %q", cfg.BaseURL).WithCause(err)
	}

	r := &Runner{baseURL: base}
	for _, opt := range opts {
		opt(r)
	}
	if r.httpClient == nil {
		r.httpClient = tlsutil.SecureHTTPClient()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithBaseURL(base + "/"),
		option.WithHTTPClient(r.httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	r.client = openai.NewClient(reqOpts...)

	return r, nil
}

// Run 将 input 原样作为 JSON 请求体 POST 到 {baseURL}/{endpoint}
func (r *Runner) Run(ctx context.Context, endpoint string, input any) (any, error) {
	path := strings.Trim(endpoint, "/")
	if path == "" {
		path = DefaultPath
	}
	enc, err := gateway.EncodeEndpoint(path)
	if err != nil {
		return nil, err
	}

	body := []byte("{}")
	if input != nil {
		body, err = json.Marshal(input)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "failed to encode chat input").
				WithEndpoint(path).
				WithCause(err)
		}
	}

	start := time.Now()
	var raw []byte
	err = r.client.Post(ctx, enc, json.RawMessage(body), &raw)
	r.logger.Debug("chat request",
		zap.String("base_url", r.baseURL),
		zap.String("path", path),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return nil, mapError(err, path)
	}

	payload, parseErr := gateway.DecodeBody(http.StatusOK, raw)
	if parseErr != nil {
		return nil, parseErr.WithEndpoint(path)
	}
	return payload, nil
}

// mapError 将 SDK 错误映射为 *types.Error
func mapError(err error, endpoint string) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var payload any
		if raw := apiErr.RawJSON(); raw != "" {
			_ = json.Unmarshal([]byte(raw), &payload)
		}
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = gateway.ExtractErrorMessage(payload)
		}
		return gateway.MapHTTPError(apiErr.StatusCode, msg).
			WithEndpoint(endpoint).
			WithPayload(payload).
			WithCause(err)
	}

	return types.NewError(types.ErrUpstreamError, "chat request failed").
		WithRetryable(!errors.Is(err, context.Canceled)).
		WithEndpoint(endpoint).
		WithCause(err)
}
