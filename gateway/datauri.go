package gateway

import (
	"encoding/base64"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BaSui01/mediaflow/types"
)

const defaultMimeType = "application/octet-stream"

var remoteURLPattern = regexp.MustCompile(`(?i)^https?://`)

// dataURLMimeTypes 内嵌数据 URL 支持的扩展名
var dataURLMimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
}

// IsRemoteURL 报告 s 是否为 http(s) 地址（大小写不敏感）
func IsRemoteURL(s string) bool {
	return remoteURLPattern.MatchString(s)
}

// IsDataURL 报告 s 是否为 data: URI
func IsDataURL(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}

// DataURLMimeType 按扩展名返回内嵌使用的 MIME 类型
func DataURLMimeType(path string) string {
	if t, ok := dataURLMimeTypes[extOf(path)]; ok {
		return t
	}
	return defaultMimeType
}

// FileToDataURL 读取本地文件并编码为 base64 data URL
func FileToDataURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", types.Errorf(types.ErrIO, "cannot resolve path %s", path).WithPath(path).WithCause(err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", types.Errorf(types.ErrFileNotFound, "File not found: %s", abs).WithPath(abs)
		}
		return "", types.Errorf(types.ErrIO, "cannot read %s", abs).WithPath(abs).WithCause(err)
	}
	return EncodeDataURL(DataURLMimeType(abs), data), nil
}

// EncodeDataURL 生成 data:<mime>;base64,<payload>
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL 解析 data URL，返回 MIME 类型与原始字节
// 支持 base64 与百分号编码两种负载。
func DecodeDataURL(s string) (string, []byte, error) {
	if !IsDataURL(s) {
		return "", nil, types.NewError(types.ErrInvalidRequest, "not a data URL")
	}
	meta, payload, ok := strings.Cut(s[5:], ",")
	if !ok {
		return "", nil, types.NewError(types.ErrInvalidRequest, "malformed data URL: missing ','")
	}

	isBase64 := false
	params := strings.Split(meta, ";")
	if n := len(params); n > 0 && strings.EqualFold(strings.TrimSpace(params[n-1]), "base64") {
		isBase64 = true
		params = params[:n-1]
	}
	mimeType := strings.TrimSpace(strings.Join(params, ";"))
	if mimeType == "" || strings.HasPrefix(mimeType, ";") {
		mimeType = "text/plain" + mimeType
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// 部分服务返回无填充的 base64
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return "", nil, types.NewError(types.ErrInvalidRequest, "malformed base64 data URL").WithCause(err)
			}
		}
		return mimeType, data, nil
	}

	text, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, types.NewError(types.ErrInvalidRequest, "malformed data URL payload").WithCause(err)
	}
	return mimeType, []byte(text), nil
}

func extOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
