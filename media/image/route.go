package image

import (
	"strings"

	"github.com/BaSui01/mediaflow/media"
)

const (
	autoModel       = "auto"
	gptImageModel   = "fal-ai/gpt-image-1.5"
	nanoBananaModel = "fal-ai/nano-banana-pro"
	nanoBananaEdit  = "fal-ai/nano-banana-pro/edit"
	fluxDevModel    = "fal-ai/flux/dev"
)

// aliases 模型别名，键为小写
var aliases = map[string]string{
	"gemini-pro":           autoModel,
	"seedream":             autoModel,
	"gpt-image-1.5":        gptImageModel,
	"gpt-image":            gptImageModel,
	"nano-banana":          nanoBananaModel,
	"nano-banana-pro":      nanoBananaModel,
	"nano-banana-edit":     nanoBananaEdit,
	"nano-banana-pro/edit": nanoBananaEdit,
	"flux-dev":             fluxDevModel,
	"flux":                 fluxDevModel,
	"flux/dev":             fluxDevModel,
	"auto":                 autoModel,
	"default":              autoModel,
}

var (
	defaultTextRoute = media.Route{Endpoint: nanoBananaModel, Mode: media.ModeQueue}
	defaultEditRoute = media.Route{Endpoint: nanoBananaEdit, Mode: media.ModeQueue}
)

// ResolveRoute 将模型参数解析为端点与调用模式
//
// auto 按是否有输入图选择 nano-banana 文生图或编辑路由；flux/dev 走 run，
// 带输入图时改用编辑路由。未知端点默认排队，路径含 flux/dev 时直接运行。
func ResolveRoute(model string, hasInputImage bool) media.Route {
	if strings.TrimSpace(model) == "" {
		model = autoModel
	}
	alias, ok := aliases[strings.ToLower(model)]
	if !ok {
		alias = model
	}

	switch alias {
	case autoModel:
		if hasInputImage {
			return defaultEditRoute
		}
		return defaultTextRoute
	case gptImageModel, nanoBananaModel, nanoBananaEdit:
		return media.Route{Endpoint: alias, Mode: media.ModeQueue}
	case fluxDevModel:
		if hasInputImage {
			return defaultEditRoute
		}
		return media.Route{Endpoint: alias, Mode: media.ModeRun}
	}

	if strings.Contains(alias, "flux/dev") {
		return media.Route{Endpoint: alias, Mode: media.ModeRun}
	}
	return media.Route{Endpoint: alias, Mode: media.ModeQueue}
}

var supportedAspectRatios = map[string]bool{
	"1:1": true, "4:3": true, "3:4": true, "16:9": true, "9:16": true,
}

// NormalizeAspectRatio 不支持的比例回退为 1:1
func NormalizeAspectRatio(ar string) string {
	if supportedAspectRatios[ar] {
		return ar
	}
	return "1:1"
}

func gptImageSize(ar string) string {
	switch ar {
	case "4:3":
		return "1536x1024"
	case "3:4":
		return "1024x1536"
	case "16:9":
		return "1792x1024"
	case "9:16":
		return "1024x1792"
	}
	return "1024x1024"
}

func fluxImageSize(ar string) string {
	switch ar {
	case "4:3":
		return "landscape_4_3"
	case "3:4":
		return "portrait_4_3"
	case "16:9":
		return "landscape_16_9"
	case "9:16":
		return "portrait_16_9"
	}
	return "square_hd"
}
