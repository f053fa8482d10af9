// Package media 汇集图像、视频、理解与批处理调用方共用的部分：
// 网关能力接口、调用模式、输入文件暂存与输出命名。
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/types"
)

// Gateway 调用方依赖的网关能力，*gateway.Client 实现该接口
type Gateway interface {
	gateway.Runner
	SubmitAndWait(ctx context.Context, endpoint string, input any, opts gateway.WaitOptions) (any, error)
	Upload(ctx context.Context, localPath string) (string, error)
	Download(ctx context.Context, remoteURL, localPath string, opts ...gateway.DownloadOption) (string, error)
}

var _ Gateway = (*gateway.Client)(nil)

// Mode 调用模式
type Mode string

const (
	ModeRun   Mode = "run"
	ModeQueue Mode = "queue"
)

// ParseMode 解析模式字符串，空串视为 queue
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeQueue:
		return ModeQueue, nil
	case ModeRun:
		return ModeRun, nil
	}
	return "", types.Errorf(types.ErrInvalidRequest, "unknown mode %q (want run or queue)", s)
}

// Route 端点与调用模式
type Route struct {
	Endpoint string
	Mode     Mode
}

func (r Route) String() string {
	return fmt.Sprintf("%s (%s)", r.Endpoint, r.Mode)
}

// Invoke 按路由执行：run 直接调用，queue 走 Submit → Wait → Result
func Invoke(ctx context.Context, gw Gateway, route Route, payload any, opts gateway.WaitOptions) (any, error) {
	if route.Mode == ModeRun {
		return gw.Run(ctx, route.Endpoint, payload)
	}
	return gw.SubmitAndWait(ctx, route.Endpoint, payload, opts)
}

// StageInput 把输入文件转换为后端可访问的地址
// 远端地址原样返回；本地文件必须存在，随后上传。空输入返回空串。
func StageInput(ctx context.Context, gw Gateway, pathOrURL string) (string, error) {
	if pathOrURL == "" {
		return "", nil
	}
	if gateway.IsRemoteURL(pathOrURL) {
		return pathOrURL, nil
	}
	if _, err := os.Stat(pathOrURL); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", types.Errorf(types.ErrFileNotFound, "Input file not found: %s", pathOrURL).WithPath(pathOrURL)
		}
		return "", types.Errorf(types.ErrIO, "cannot stat %s", pathOrURL).WithPath(pathOrURL).WithCause(err)
	}
	return gw.Upload(ctx, pathOrURL)
}

// OutputName 生成 <prefix>_<毫秒时间戳>[_<序号>].<ext>
// total 为 1 时不带序号，序号从 1 开始。
func OutputName(prefix string, ts time.Time, index, total int, ext string) string {
	ms := ts.UnixMilli()
	if total <= 1 {
		return fmt.Sprintf("%s_%d.%s", prefix, ms, ext)
	}
	return fmt.Sprintf("%s_%d_%d.%s", prefix, ms, index+1, ext)
}

// EnsureDir 创建输出目录并返回绝对路径
func EnsureDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", types.Errorf(types.ErrIO, "cannot resolve %s", dir).WithPath(dir).WithCause(err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", types.Errorf(types.ErrIO, "cannot create %s", abs).WithPath(abs).WithCause(err)
	}
	return abs, nil
}

// SaveRemote 保存远端内容：data URL 直接解码写入，http(s) 地址流式下载
func SaveRemote(ctx context.Context, gw Gateway, ref, target string) (string, error) {
	if gateway.IsDataURL(ref) {
		_, data, err := gateway.DecodeDataURL(ref)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return "", types.Errorf(types.ErrIO, "cannot write %s", target).WithPath(target).WithCause(err)
		}
		return target, nil
	}
	return gw.Download(ctx, ref, target)
}
