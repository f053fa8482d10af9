package gateway

import (
	"net/url"
	"strings"

	"github.com/BaSui01/mediaflow/types"
)

// EncodeEndpoint 对端点引用逐段做百分号编码，保留段间的 "/"
func EncodeEndpoint(endpoint string) (string, error) {
	if strings.TrimSpace(endpoint) == "" {
		return "", types.NewError(types.ErrInvalidRequest, "endpoint must not be empty")
	}
	if strings.Contains(endpoint, "://") {
		return "", types.Errorf(types.ErrInvalidRequest, "endpoint must not contain a scheme: %s", endpoint).
			WithEndpoint(endpoint)
	}

	segments := strings.Split(endpoint, "/")
	for i, seg := range segments {
		if seg == "" {
			return "", types.Errorf(types.ErrInvalidRequest, "endpoint has an empty path segment: %s", endpoint).
				WithEndpoint(endpoint)
		}
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/"), nil
}

// DecodeEndpoint 是 EncodeEndpoint 的逆操作
func DecodeEndpoint(encoded string) (string, error) {
	segments := strings.Split(encoded, "/")
	for i, seg := range segments {
		s, err := url.PathUnescape(seg)
		if err != nil {
			return "", types.NewError(types.ErrInvalidRequest, "invalid encoded endpoint").WithCause(err)
		}
		segments[i] = s
	}
	return strings.Join(segments, "/"), nil
}

// EncodeHandle 将任务句柄整体编码为一个路径段
func EncodeHandle(handle string) (string, error) {
	if handle == "" {
		return "", types.NewError(types.ErrInvalidRequest, "job handle must not be empty")
	}
	return url.PathEscape(handle), nil
}
