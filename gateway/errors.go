package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/mediaflow/types"
)

// maxErrorTextLen 解析失败时保留的原始文本长度
const maxErrorTextLen = 200

// ExtractErrorMessage 按优先级从负载中提取错误消息
// 字符串负载 > error 字符串 > error.message > message > JSON 序列化
func ExtractErrorMessage(payload any) string {
	if payload == nil {
		return "Unknown error"
	}
	if s, ok := payload.(string); ok && s == "" {
		return "Unknown error"
	}
	if msg, ok := errorMessageRules.First(payload); ok {
		return msg
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprint(payload)
	}
	return string(data)
}

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 types.Error
func MapHTTPError(status int, msg string) *types.Error {
	switch status {
	case http.StatusUnauthorized:
		return types.NewError(types.ErrUnauthorized, msg).WithHTTPStatus(status)
	case http.StatusForbidden:
		return types.NewError(types.ErrForbidden, msg).WithHTTPStatus(status)
	case http.StatusNotFound:
		return types.NewError(types.ErrNotFound, msg).WithHTTPStatus(status)
	case http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).WithHTTPStatus(status).WithRetryable(true)
	case http.StatusBadRequest, http.StatusPaymentRequired:
		// 检查配额/信用关键字
		msgLower := strings.ToLower(msg)
		if status == http.StatusPaymentRequired ||
			strings.Contains(msgLower, "quota") ||
			strings.Contains(msgLower, "credit") ||
			strings.Contains(msgLower, "balance") {
			return types.NewError(types.ErrQuotaExceeded, msg).WithHTTPStatus(status)
		}
		return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(status)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(true)
	case 529: // 模型过载
		return types.NewError(types.ErrModelOverloaded, msg).WithHTTPStatus(status).WithRetryable(true)
	default:
		if status >= 400 && status < 500 {
			return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(status)
		}
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(status >= 500)
	}
}

// DecodeBody 将响应体解析为 JSON
// 空响应体解析为空对象；非空且不是 JSON 时返回截断后的原始文本和 INVALID_RESPONSE 错误
func DecodeBody(status int, data []byte) (any, *types.Error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		text := truncate(string(data), maxErrorTextLen)
		return text, types.Errorf(types.ErrInvalidResponse, "Invalid JSON response (%d): %s", status, text).
			WithHTTPStatus(status).
			WithPayload(text).
			WithCause(err)
	}
	return payload, nil
}

// SafeCloseBody 读尽并关闭响应体，便于连接复用
func SafeCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

// annotate 为客户端产生的错误补充 endpoint
func annotate(err error, endpoint string) error {
	if e, ok := types.AsError(err); ok && e.Endpoint == "" {
		e.Endpoint = endpoint
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// 避免截断在多字节字符中间
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
