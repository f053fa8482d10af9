// Package understand 多模态理解：识别媒体类别、暂存输入、
// 通过 chat-completions 路由提问并整理模型回答。
package understand

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/types"
)

// GatewayEndpoint 网关上的 OpenAI 兼容路由
const GatewayEndpoint = "openrouter/router/openai/v1/chat/completions"

// TokenRecorder 记录模型用量，metrics.Collector 实现该接口
type TokenRecorder interface {
	RecordTokens(model string, promptTokens, completionTokens int)
}

// Request 一次理解请求
type Request struct {
	Media       string
	Prompt      string
	Language    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// RequestFrom 用媒体配置填充默认值
func RequestFrom(cfg config.MediaConfig, media string) Request {
	return Request{
		Media:       media,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

func (r Request) withDefaults() Request {
	def := config.DefaultMediaConfig()
	if strings.TrimSpace(r.Prompt) == "" {
		r.Prompt = DefaultPrompt
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.Model == "" {
		r.Model = def.Model
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = def.MaxTokens
	}
	return r
}

// Result 理解结果
type Result struct {
	MediaType MediaType
	Model     string
	Text      string
	Usage     Usage
	HasUsage  bool
	Raw       any
}

// Analyzer 多模态理解执行器
type Analyzer struct {
	runner   gateway.Runner
	endpoint string
	uploader Uploader
	tokens   TokenRecorder
	logger   *zap.Logger
}

// Option 配置 Analyzer
type Option func(*Analyzer)

// WithEndpoint 覆盖调用路由，直连 chatcompat 时使用其默认路径
func WithEndpoint(endpoint string) Option {
	return func(a *Analyzer) { a.endpoint = endpoint }
}

// WithTokenRecorder 设置用量记录器
func WithTokenRecorder(r TokenRecorder) Option {
	return func(a *Analyzer) { a.tokens = r }
}

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// NewAnalyzer 创建执行器；runner 负责提问，uploader 负责上传本地文件
func NewAnalyzer(runner gateway.Runner, uploader Uploader, opts ...Option) *Analyzer {
	a := &Analyzer{
		runner:   runner,
		endpoint: GatewayEndpoint,
		uploader: uploader,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "understand"))
	return a
}

// Analyze 校验并暂存媒体，调用模型，返回整理后的文本与用量
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	req = req.withDefaults()

	mt, ok := DetectMediaType(req.Media)
	if !ok {
		return nil, types.Errorf(types.ErrInvalidRequest, "Unsupported media type: %s", req.Media)
	}
	if err := Validate(req.Media, mt); err != nil {
		return nil, err
	}

	ref, err := Stage(ctx, a.uploader, req.Media, mt)
	if err != nil {
		return nil, err
	}

	a.logger.Info("analyzing media",
		zap.String("media_type", string(mt)),
		zap.String("model", req.Model),
		zap.String("language", req.Language),
	)

	resp, err := a.runner.Run(ctx, a.endpoint, BuildPayload(req, ref))
	if err != nil {
		return nil, err
	}

	res := &Result{
		MediaType: mt,
		Model:     req.Model,
		Text:      ExtractText(resp),
		Raw:       resp,
	}
	res.Usage, res.HasUsage = ExtractUsage(resp)
	if res.HasUsage && a.tokens != nil {
		a.tokens.RecordTokens(req.Model, max(res.Usage.PromptTokens, 0), max(res.Usage.CompletionTokens, 0))
	}
	return res, nil
}
