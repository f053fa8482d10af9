// Package video 通过网关队列生成视频并下载到本地。
package video

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/media"
	"github.com/BaSui01/mediaflow/types"
)

const (
	// DefaultEndpoint 默认视频模型
	DefaultEndpoint = "fal-ai/veo3.1"
	// OutputPrefix 生成视频的文件名前缀
	OutputPrefix = "generated_video"

	defaultAspectRatio = "16:9"
	defaultDuration    = "8s"
)

// modelRoutes 别名对应的文生视频与图生视频端点
var modelRoutes = map[string][2]string{
	"veo-3.1":    {"fal-ai/veo3.1", "fal-ai/veo3.1/image-to-video"},
	"veo3.1":     {"fal-ai/veo3.1", "fal-ai/veo3.1/image-to-video"},
	"sora-2-pro": {"fal-ai/sora-2/text-to-video/pro", "fal-ai/sora-2/image-to-video/pro"},
}

// ResolveEndpoint 解析模型别名，未知值视为端点路径
func ResolveEndpoint(model string, hasInputImage bool) string {
	model = strings.TrimSpace(model)
	if model == "" {
		model = "veo-3.1"
	}
	routes, ok := modelRoutes[strings.ToLower(model)]
	if !ok {
		return model
	}
	if hasInputImage {
		return routes[1]
	}
	return routes[0]
}

// Request 一次视频生成请求
type Request struct {
	Prompt      string
	Model       string
	AspectRatio string
	// Duration 秒数，可写作 "8" 或 "8s"
	Duration   string
	Resolution string
	InputImage string
}

// NormalizeDuration 统一为带 s 后缀的形式
func NormalizeDuration(d string) string {
	d = strings.TrimSpace(strings.ToLower(d))
	if d == "" {
		return defaultDuration
	}
	if strings.HasSuffix(d, "s") {
		return d
	}
	return d + "s"
}

// BuildPayload 构造请求体
func BuildPayload(req Request, imageURL string) map[string]any {
	ar := req.AspectRatio
	if ar == "" {
		ar = defaultAspectRatio
	}
	payload := map[string]any{
		"prompt":       req.Prompt,
		"aspect_ratio": ar,
		"duration":     NormalizeDuration(req.Duration),
	}
	if req.Resolution != "" {
		payload["resolution"] = req.Resolution
	}
	if imageURL != "" {
		payload["image_url"] = imageURL
	}
	return payload
}

var videoURLRules = gateway.Rules{
	gateway.Nested("video", "url"),
	gateway.Field("video"),
	gateway.Nested("data", "video", "url"),
}

// videoEntryRules videos 数组元素：字符串或 {url}
var videoEntryRules = gateway.Rules{gateway.Self(), gateway.Field("url")}

// ExtractVideoURL 依次尝试 video.url、video、videos[0].url、data.video.url
func ExtractVideoURL(payload any) (string, bool) {
	if u, ok := videoURLRules[:2].First(payload); ok {
		return u, true
	}
	if v, ok := gateway.Lookup(payload, "videos"); ok {
		if list, ok := v.([]any); ok && len(list) > 0 {
			if u, ok := videoEntryRules.First(list[0]); ok {
				return u, true
			}
		}
	}
	return videoURLRules[2:].First(payload)
}

// Result 一次生成的结果
type Result struct {
	Endpoint string
	File     string
	URL      string
}

// Generator 视频生成器
type Generator struct {
	gw     media.Gateway
	logger *zap.Logger
	now    func() time.Time
}

// NewGenerator 创建视频生成器
func NewGenerator(gw media.Gateway, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{gw: gw, logger: logger.With(zap.String("component", "video")), now: time.Now}
}

// Generate 提交排队任务，等待完成后保存为 generated_video_<ms>.mp4
func (g *Generator) Generate(ctx context.Context, req Request, outDir string, opts gateway.WaitOptions) (*Result, error) {
	endpoint := ResolveEndpoint(req.Model, req.InputImage != "")

	imageURL, err := media.StageInput(ctx, g.gw, req.InputImage)
	if err != nil {
		return nil, err
	}
	dir, err := media.EnsureDir(outDir)
	if err != nil {
		return nil, err
	}

	g.logger.Info("generating video", zap.String("endpoint", endpoint))

	resp, err := g.gw.SubmitAndWait(ctx, endpoint, BuildPayload(req, imageURL), opts)
	if err != nil {
		return nil, err
	}

	u, ok := ExtractVideoURL(resp)
	if !ok {
		return nil, types.NewError(types.ErrInvalidResponse, "No video found in model response").
			WithEndpoint(endpoint).
			WithPayload(resp)
	}

	target := filepath.Join(dir, media.OutputName(OutputPrefix, g.now(), 0, 1, "mp4"))
	saved, err := media.SaveRemote(ctx, g.gw, u, target)
	if err != nil {
		return nil, fmt.Errorf("save video: %w", err)
	}
	return &Result{Endpoint: endpoint, File: saved, URL: u}, nil
}
