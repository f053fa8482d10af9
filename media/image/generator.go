package image

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/media"
	"github.com/BaSui01/mediaflow/types"
)

// OutputPrefix 生成图片的文件名前缀
const OutputPrefix = "generated_image"

// Result 一次生成的结果
type Result struct {
	Route media.Route
	Files []string
	// Skipped 保存失败的条目数
	Skipped int
}

// Generator 图像生成器
type Generator struct {
	gw     media.Gateway
	logger *zap.Logger
	now    func() time.Time
}

// NewGenerator 创建图像生成器
func NewGenerator(gw media.Gateway, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		gw:     gw,
		logger: logger.With(zap.String("component", "image")),
		now:    time.Now,
	}
}

// Generate 暂存输入图、调用模型并把返回的图片写入 outDir
//
// 单张保存失败只记录日志；一张都没保存下来时返回 IO 错误。
func (g *Generator) Generate(ctx context.Context, req Request, outDir string, opts gateway.WaitOptions) (*Result, error) {
	route := ResolveRoute(req.Model, req.InputImage != "")

	inputURL, err := media.StageInput(ctx, g.gw, req.InputImage)
	if err != nil {
		return nil, err
	}

	dir, err := media.EnsureDir(outDir)
	if err != nil {
		return nil, err
	}

	g.logger.Info("generating image",
		zap.String("route", route.String()),
		zap.Int("num_images", req.numImages()),
	)

	payload := BuildPayload(route.Endpoint, req, inputURL)
	resp, err := media.Invoke(ctx, g.gw, route, payload, opts)
	if err != nil {
		return nil, err
	}

	entries := ExtractEntries(resp)
	if len(entries) == 0 {
		return nil, types.NewError(types.ErrInvalidResponse, "No images found in model response").
			WithEndpoint(route.Endpoint).
			WithPayload(resp)
	}

	fallback := req.outputFormat()
	if fallback == "jpeg" {
		fallback = "jpg"
	}

	ts := g.now()
	result := &Result{Route: route}
	for i, e := range entries {
		name := media.OutputName(OutputPrefix, ts, i, len(entries), DetectExtension(e, fallback))
		saved, err := media.SaveRemote(ctx, g.gw, e.URL, filepath.Join(dir, name))
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			g.logger.Warn("failed to save image", zap.Int("index", i), zap.Error(err))
			result.Skipped++
			continue
		}
		result.Files = append(result.Files, saved)
	}

	if len(result.Files) == 0 {
		return nil, types.NewError(types.ErrIO, "No images could be saved from response").
			WithEndpoint(route.Endpoint)
	}
	return result, nil
}
