package understand

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/types"
)

// MediaType 输入媒体类别
type MediaType string

const (
	MediaImage   MediaType = "image"
	MediaVideo   MediaType = "video"
	MediaAudio   MediaType = "audio"
	MediaYouTube MediaType = "youtube"
)

const (
	imageSizeLimit = 20 << 20
	mediaSizeLimit = 100 << 20
)

var youtubeHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

var extMediaTypes = map[string]MediaType{
	"jpg": MediaImage, "jpeg": MediaImage, "png": MediaImage, "gif": MediaImage, "webp": MediaImage,
	"mp4": MediaVideo, "mpeg": MediaVideo, "mov": MediaVideo, "webm": MediaVideo,
	"wav": MediaAudio, "mp3": MediaAudio, "aiff": MediaAudio, "aac": MediaAudio,
	"ogg": MediaAudio, "flac": MediaAudio, "m4a": MediaAudio,
}

// DetectMediaType 按 YouTube 主机名或扩展名判断媒体类别
func DetectMediaType(pathOrURL string) (MediaType, bool) {
	if pathOrURL == "" {
		return "", false
	}
	p := pathOrURL
	if gateway.IsRemoteURL(pathOrURL) {
		if u, err := url.Parse(pathOrURL); err == nil {
			if youtubeHosts[strings.ToLower(u.Hostname())] {
				return MediaYouTube, true
			}
			p = u.Path
		}
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")
	mt, ok := extMediaTypes[ext]
	return mt, ok
}

// Validate 检查本地文件存在且不超过大小限制，远端地址不检查
func Validate(pathOrURL string, mt MediaType) error {
	if mt == MediaYouTube || gateway.IsRemoteURL(pathOrURL) {
		return nil
	}
	info, err := os.Stat(pathOrURL)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.Errorf(types.ErrFileNotFound, "File not found: %s", pathOrURL).WithPath(pathOrURL)
		}
		return types.Errorf(types.ErrIO, "cannot stat %s", pathOrURL).WithPath(pathOrURL).WithCause(err)
	}

	limit := int64(mediaSizeLimit)
	if mt == MediaImage {
		limit = imageSizeLimit
	}
	if info.Size() > limit {
		return types.Errorf(types.ErrInvalidRequest, "File exceeds %dMB limit: %.2fMB",
			limit>>20, float64(info.Size())/(1<<20)).WithPath(pathOrURL)
	}
	return nil
}

// MediaRef 模型可访问的媒体引用
type MediaRef struct {
	// Kind 为 image_url、video_url 或 audio_url
	Kind string
	URL  string
}

func refKind(mt MediaType) string {
	switch mt {
	case MediaImage:
		return "image_url"
	case MediaVideo, MediaYouTube:
		return "video_url"
	default:
		return "audio_url"
	}
}

// Uploader 上传本地文件并返回可访问地址
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Stage 远端地址与 YouTube 链接原样使用，本地文件先上传
func Stage(ctx context.Context, up Uploader, pathOrURL string, mt MediaType) (MediaRef, error) {
	ref := MediaRef{Kind: refKind(mt), URL: pathOrURL}
	if mt == MediaYouTube || gateway.IsRemoteURL(pathOrURL) {
		return ref, nil
	}
	if up == nil {
		return MediaRef{}, types.NewError(types.ErrConfiguration, "no uploader configured for local media")
	}
	u, err := up.Upload(ctx, pathOrURL)
	if err != nil {
		return MediaRef{}, err
	}
	ref.URL = u
	return ref, nil
}
