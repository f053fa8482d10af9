package understand

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/mediaflow/gateway"
)

// DefaultPrompt 未指定提示词时使用
const DefaultPrompt = "Please describe this content"

// DefaultLanguage 默认回答语言
const DefaultLanguage = "chinese"

// SystemPrompt 按语言返回系统提示词
func SystemPrompt(language string) string {
	if language == DefaultLanguage {
		return "你是一个专业的多媒体分析助手。请用中文回答，内容准确、结构清晰。"
	}
	return "You are a professional multimedia analysis assistant. Answer clearly and accurately in English."
}

// BuildContent 用户消息内容：文本片段在前，媒体片段在后
func BuildContent(prompt string, ref MediaRef) []any {
	return []any{
		map[string]any{"type": "text", "text": prompt},
		map[string]any{"type": ref.Kind, ref.Kind: map[string]any{"url": ref.URL}},
	}
}

// BuildPayload 构造 chat-completions 请求体
func BuildPayload(req Request, ref MediaRef) map[string]any {
	return map[string]any{
		"model": req.Model,
		"messages": []any{
			map[string]any{"role": "system", "content": SystemPrompt(req.Language)},
			map[string]any{"role": "user", "content": BuildContent(req.Prompt, ref)},
		},
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
}

var (
	answerKeys = []string{"text", "answer", "caption", "output", "result", "response"}
	nestedKeys = []string{"data", "analysis", "message"}
)

// ExtractText 从多种响应形状中取出可读文本
//
// 顺序：字符串本身；transcript/analysis 组合；数组逐项提取后换行拼接；
// choices[0].message.content；常见文本字段；data/analysis/message 递归；
// 最后退化为缩进 JSON。
func ExtractText(payload any) string {
	if !truthy(payload) {
		return ""
	}

	switch v := payload.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := ExtractText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		return extractFromObject(v)
	default:
		return fmt.Sprint(v)
	}
}

func extractFromObject(obj map[string]any) string {
	if truthy(obj["transcript"]) || truthy(obj["analysis"]) {
		var b strings.Builder
		if truthy(obj["transcript"]) {
			fmt.Fprintf(&b, "Transcript:\n%v\n\n", obj["transcript"])
		}
		b.WriteString(ExtractText(obj["analysis"]))
		return strings.TrimSpace(b.String())
	}

	if s, ok := gateway.Choices().Extract(obj); ok {
		return s
	}

	for _, key := range answerKeys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	for _, key := range nestedKeys {
		if truthy(obj[key]) {
			if s := ExtractText(obj[key]); s != "" {
				return s
			}
		}
	}

	out, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Sprint(obj)
	}
	return string(out)
}

// truthy 空串、零值数字、false 与 nil 视为空
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	case json.Number:
		return x != "" && x != "0"
	default:
		return true
	}
}

// Usage token 用量，字段缺失时为 -1
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ExtractUsage 读取 usage.prompt_tokens 与 usage.completion_tokens
func ExtractUsage(payload any) (Usage, bool) {
	raw, ok := gateway.Lookup(payload, "usage")
	if !ok || !truthy(raw) {
		return Usage{}, false
	}
	return Usage{
		PromptTokens:     intField(raw, "prompt_tokens"),
		CompletionTokens: intField(raw, "completion_tokens"),
	}, true
}

func intField(obj any, key string) int {
	v, ok := gateway.Lookup(obj, key)
	if !ok {
		return -1
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return -1
}

// String 格式化为 "[Usage] Input tokens: X, Output tokens: Y"，缺失或为 0 时显示 n/a
func (u Usage) String() string {
	return fmt.Sprintf("[Usage] Input tokens: %s, Output tokens: %s", tokenText(u.PromptTokens), tokenText(u.CompletionTokens))
}

func tokenText(n int) string {
	if n <= 0 {
		return "n/a"
	}
	return strconv.Itoa(n)
}
