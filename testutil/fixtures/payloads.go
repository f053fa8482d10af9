// =============================================================================
// 📦 测试数据工厂 - 网关负载样例
// =============================================================================
// 提供各类网关响应形状，用于提取规则与调用方测试
// =============================================================================
package fixtures

import "bytes"

// PNGBytes 返回 1x1 PNG 的原始字节
func PNGBytes() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
		0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
		0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
		0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
}

// Payload 生成 n 字节的确定性数据
func Payload(n int) []byte {
	pattern := []byte("mediaflow-payload-")
	return bytes.Repeat(pattern, n/len(pattern)+1)[:n]
}

// =============================================================================
// 🖼️ 图像结果
// =============================================================================

// ImagesResult 返回 {"images":[{"url":..., "content_type":...}]}
func ImagesResult(contentType string, urls ...string) map[string]any {
	images := make([]any, 0, len(urls))
	for _, u := range urls {
		images = append(images, map[string]any{"url": u, "content_type": contentType})
	}
	return map[string]any{"images": images}
}

// NestedImagesResult 返回 {"data":{"images":[...]}}，元素为字符串
func NestedImagesResult(urls ...string) map[string]any {
	images := make([]any, 0, len(urls))
	for _, u := range urls {
		images = append(images, u)
	}
	return map[string]any{"data": map[string]any{"images": images}}
}

// SingleImageResult 返回 {"image":{"image_url":{"url":...}}}
func SingleImageResult(u string) map[string]any {
	return map[string]any{"image": map[string]any{"image_url": map[string]any{"url": u}}}
}

// VideoResult 返回 {"video":{"url":...}}
func VideoResult(u string) map[string]any {
	return map[string]any{"video": map[string]any{"url": u, "content_type": "video/mp4"}}
}

// =============================================================================
// 💬 Chat 响应
// =============================================================================

// ChatCompletion 返回 chat-completions 风格的响应
func ChatCompletion(text string, promptTokens, completionTokens int) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-001",
		"object": "chat.completion",
		"model":  "google/gemini-2.5-pro",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": text,
				},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	}
}

// ChatCompletionParts 返回 content 为文本片段数组的响应
func ChatCompletionParts(parts ...string) map[string]any {
	content := make([]any, 0, len(parts))
	for _, p := range parts {
		content = append(content, map[string]any{"type": "text", "text": p})
	}
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}
