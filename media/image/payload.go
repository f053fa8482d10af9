package image

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/BaSui01/mediaflow/gateway"
)

// Request 一次图像生成请求
type Request struct {
	Prompt       string
	Model        string
	AspectRatio  string
	NumImages    int
	OutputFormat string
	// InputImage 本地路径或远端地址，用于编辑类模型
	InputImage string

	Seed              *int64
	GuidanceScale     *float64
	NumInferenceSteps *int
}

func (r Request) numImages() int {
	if r.NumImages < 1 {
		return 1
	}
	return r.NumImages
}

func (r Request) outputFormat() string {
	f := strings.ToLower(strings.TrimSpace(r.OutputFormat))
	if f == "" {
		return "png"
	}
	return f
}

// BuildPayload 按模型家族构造请求体
func BuildPayload(endpoint string, req Request, inputImageURL string) map[string]any {
	payload := map[string]any{
		"prompt":        req.Prompt,
		"num_images":    req.numImages(),
		"output_format": req.outputFormat(),
	}

	switch {
	case strings.Contains(endpoint, "gpt-image-1.5"):
		payload["image_size"] = gptImageSize(req.AspectRatio)
		if inputImageURL != "" {
			payload["image_urls"] = []string{inputImageURL}
			payload["input_fidelity"] = "high"
		}
	case strings.Contains(endpoint, "nano-banana"):
		payload["aspect_ratio"] = NormalizeAspectRatio(req.AspectRatio)
		payload["resolution"] = "1K"
		if inputImageURL != "" {
			payload["image_urls"] = []string{inputImageURL}
		}
	case strings.Contains(endpoint, "flux/dev"):
		payload["image_size"] = fluxImageSize(req.AspectRatio)
	default:
		payload["aspect_ratio"] = NormalizeAspectRatio(req.AspectRatio)
		if inputImageURL != "" {
			payload["image_url"] = inputImageURL
		}
	}

	if req.Seed != nil {
		payload["seed"] = *req.Seed
	}
	if req.GuidanceScale != nil {
		payload["guidance_scale"] = *req.GuidanceScale
	}
	if req.NumInferenceSteps != nil {
		payload["num_inference_steps"] = *req.NumInferenceSteps
	}
	return payload
}

// Entry 响应中的一张图
type Entry struct {
	URL         string
	ContentType string
}

// ExtractEntries 依次收集 images[]、data.images[]、image、data.image
func ExtractEntries(payload any) []Entry {
	var entries []Entry
	add := func(item any) {
		if e, ok := toEntry(item); ok {
			entries = append(entries, e)
		}
	}

	for _, p := range [][]string{{"images"}, {"data", "images"}} {
		if v, ok := gateway.Lookup(payload, p...); ok {
			if list, ok := v.([]any); ok {
				for _, item := range list {
					add(item)
				}
			}
		}
	}
	for _, p := range [][]string{{"image"}, {"data", "image"}} {
		if v, ok := gateway.Lookup(payload, p...); ok {
			add(v)
		}
	}
	return entries
}

var entryURLRules = gateway.Rules{gateway.Self(), gateway.Field("url"), gateway.Nested("image_url", "url")}

func toEntry(item any) (Entry, bool) {
	u, ok := entryURLRules.First(item)
	if !ok {
		return Entry{}, false
	}
	e := Entry{URL: u}
	for _, key := range []string{"content_type", "mime_type"} {
		if v, ok := gateway.Field(key).Extract(item); ok {
			e.ContentType = v
			break
		}
	}
	return e, true
}

var dataURLImagePattern = regexp.MustCompile(`(?i)^data:image/(\w+);base64,`)

// DetectExtension 依次按 content type、data URL、URL 路径推断扩展名
func DetectExtension(e Entry, fallback string) string {
	ct := strings.ToLower(e.ContentType)
	switch {
	case strings.Contains(ct, "jpeg"):
		return "jpg"
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "webp"):
		return "webp"
	}

	if m := dataURLImagePattern.FindStringSubmatch(e.URL); m != nil {
		ext := strings.ToLower(m[1])
		if ext == "jpeg" {
			return "jpg"
		}
		return ext
	}

	if u, err := url.Parse(e.URL); err == nil && u.Scheme != "" && u.Scheme != "data" {
		if ext := strings.TrimPrefix(path.Ext(strings.ToLower(u.Path)), "."); ext != "" {
			return ext
		}
	}
	return fallback
}
