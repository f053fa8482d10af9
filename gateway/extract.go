package gateway

import (
	"strings"
)

// RuleKind 标记提取规则的种类
type RuleKind int

const (
	// RuleSelf 负载本身就是字符串
	RuleSelf RuleKind = iota
	// RuleField 顶层字符串字段
	RuleField
	// RuleNested 沿对象键路径取字符串
	RuleNested
	// RuleChoices choices[0].message.content，字符串或文本片段数组
	RuleChoices
)

// Rule 是一条响应形状提取规则
type Rule struct {
	Kind RuleKind
	Path []string
	// AllowEmpty 为 true 时空字符串也算匹配（仅字段规则）
	AllowEmpty bool
}

// Self 匹配字符串负载
func Self() Rule { return Rule{Kind: RuleSelf} }

// Field 匹配顶层字符串字段
func Field(key string) Rule { return Rule{Kind: RuleField, Path: []string{key}} }

// Nested 匹配嵌套对象中的字符串
func Nested(path ...string) Rule { return Rule{Kind: RuleNested, Path: path} }

// OrEmpty 返回同一规则，但任何字符串（包括空串）都算匹配
func (r Rule) OrEmpty() Rule {
	r.AllowEmpty = true
	return r
}

// Choices 匹配 chat-completions 风格的 choices[0].message.content
func Choices() Rule { return Rule{Kind: RuleChoices} }

// String 返回规则的可读描述
func (r Rule) String() string {
	switch r.Kind {
	case RuleSelf:
		return "self"
	case RuleField, RuleNested:
		kind := "field:"
		if r.Kind == RuleNested {
			kind = "nested:"
		}
		s := kind + strings.Join(r.Path, ".")
		if r.AllowEmpty {
			s += "?"
		}
		return s
	case RuleChoices:
		return "choices"
	default:
		return "unknown"
	}
}

// Extract 对负载应用规则，默认只有非空字符串才算匹配
func (r Rule) Extract(payload any) (string, bool) {
	switch r.Kind {
	case RuleSelf:
		return nonEmptyString(payload)
	case RuleField, RuleNested:
		v, ok := Lookup(payload, r.Path...)
		if !ok {
			return "", false
		}
		if r.AllowEmpty {
			s, ok := v.(string)
			return s, ok
		}
		return nonEmptyString(v)
	case RuleChoices:
		return extractChoices(payload)
	default:
		return "", false
	}
}

// Rules 是按优先级排列的规则列表
type Rules []Rule

// First 返回第一条匹配规则的结果
func (rs Rules) First(payload any) (string, bool) {
	for _, r := range rs {
		if s, ok := r.Extract(payload); ok {
			return s, true
		}
	}
	return "", false
}

// Lookup 沿对象键路径取值，任一层不是对象即失败
func Lookup(payload any, path ...string) (any, bool) {
	cur := payload
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func extractChoices(payload any) (string, bool) {
	choices, ok := Lookup(payload, "choices")
	if !ok {
		return "", false
	}
	list, ok := choices.([]any)
	if !ok || len(list) == 0 {
		return "", false
	}
	content, ok := Lookup(list[0], "message", "content")
	if !ok {
		return "", false
	}

	switch c := content.(type) {
	case string:
		return nonEmptyString(strings.TrimSpace(c))
	case []any:
		parts := make([]string, 0, len(c))
		for _, part := range c {
			if s, ok := part.(string); ok {
				parts = append(parts, s)
				continue
			}
			if s, ok := Field("text").Extract(part); ok {
				parts = append(parts, s)
			}
		}
		return nonEmptyString(strings.TrimSpace(strings.Join(parts, "\n")))
	}
	return "", false
}

// 常用规则集
var (
	// errorMessageRules 错误消息：字符串负载 > error 字符串 > error.message > message
	// error 需为非空字符串；error.message 与 message 只要是字符串即可，空串照样返回
	errorMessageRules = Rules{Self(), Field("error"), Nested("error", "message").OrEmpty(), Field("message").OrEmpty()}

	// handleRules 队列提交返回的任务句柄
	handleRules = Rules{Field("request_id"), Field("requestId"), Nested("data", "request_id")}

	// uploadURLRules 上传成功后的文件地址
	uploadURLRules = Rules{Field("file_url"), Field("url"), Nested("data", "url"), Nested("data", "file_url")}
)
