package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/types"
)

// uploadRoute 上传路由，相对于 {base}
const uploadRoute = "/files/upload"

// BlobOptions 控制下载的缓冲区与目标文件
type BlobOptions struct {
	// BufferSize 流式拷贝使用的固定缓冲区大小
	BufferSize int
	// CreateFile 打开下载目标，默认 os.Create
	CreateFile func(path string) (io.WriteCloser, error)
	// Remove 出错时丢弃目标文件，默认 os.Remove
	Remove func(path string) error
}

func (o BlobOptions) withDefaults(bufferSize int) BlobOptions {
	if o.BufferSize <= 0 {
		o.BufferSize = bufferSize
	}
	if o.CreateFile == nil {
		o.CreateFile = func(path string) (io.WriteCloser, error) { return os.Create(path) }
	}
	if o.Remove == nil {
		o.Remove = os.Remove
	}
	return o
}

// Upload 以 multipart 上传本地文件，返回远端地址
//
// 文件不存在时在发起网络调用前返回 FILE_NOT_FOUND。
// 请求体经 io.Pipe 流式生成，Content-Type 由 multipart 编码器给出。
func (c *Client) Upload(ctx context.Context, localPath string) (string, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", types.Errorf(types.ErrIO, "cannot resolve path %s", localPath).WithPath(localPath).WithCause(err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", types.Errorf(types.ErrFileNotFound, "File not found: %s", abs).WithPath(abs)
		}
		return "", types.Errorf(types.ErrIO, "cannot stat %s", abs).WithPath(abs).WithCause(err)
	}
	if info.IsDir() {
		return "", types.Errorf(types.ErrIO, "%s is a directory", abs).WithPath(abs)
	}

	f, err := os.Open(abs)
	if err != nil {
		return "", types.Errorf(types.ErrIO, "cannot open %s", abs).WithPath(abs).WithCause(err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	counter := &countingReader{r: f}

	done := make(chan error, 1)
	go func() {
		err := writeFilePart(mw, "file", filepath.Base(abs), UploadContentType(abs), counter)
		pw.CloseWithError(err)
		done <- err
	}()

	header := c.authHeader()
	header.Set("Content-Type", mw.FormDataContentType())
	payload, sendErr := c.transport.Send(ctx, &Request{
		Method: http.MethodPost,
		URL:    c.base + uploadRoute,
		Header: header,
		Body:   pr,
		Route:  "files.upload",
	})
	// 服务端提前结束时解除写端阻塞
	_ = pr.Close()
	writeErr := <-done

	if writeErr != nil && !errors.Is(writeErr, io.ErrClosedPipe) {
		return "", types.Errorf(types.ErrIO, "failed to read %s", abs).WithPath(abs).WithCause(writeErr)
	}
	if sendErr != nil {
		return "", uploadError(sendErr, c.base+uploadRoute)
	}

	fileURL, ok := uploadURLRules.First(payload)
	if !ok {
		raw, _ := json.Marshal(payload)
		return "", types.Errorf(types.ErrProtocol, "Upload response missing file_url: %s", truncate(string(raw), maxErrorTextLen)).
			WithPayload(payload).
			WithPath(abs)
	}

	c.recorder.RecordTransfer("upload", counter.n)
	c.logger.Debug("file uploaded",
		zap.String("path", abs),
		zap.Int64("bytes", counter.n),
		zap.String("url", fileURL),
	)
	return fileURL, nil
}

func uploadError(err error, route string) error {
	e, ok := types.AsError(err)
	if !ok || e.HTTPStatus == 0 {
		return err
	}
	if e.HTTPStatus == http.StatusNotFound {
		return types.Errorf(types.ErrUploadUnavailable, "FAL upload proxy is not available. Expected endpoint: %s", route).
			WithHTTPStatus(e.HTTPStatus).
			WithPayload(e.Payload)
	}
	e.Message = "Upload failed: " + e.Message
	return e
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(mw *multipart.Writer, field, filename, contentType string, r io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// mediaMimeTypes 补充系统 MIME 表中不一定存在的音视频类型
var mediaMimeTypes = map[string]string{
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"pdf":  "application/pdf",
}

// UploadContentType 返回上传分片的 Content-Type
func UploadContentType(path string) string {
	ext := extOf(path)
	if t, ok := dataURLMimeTypes[ext]; ok {
		return t
	}
	if t, ok := mediaMimeTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return defaultMimeType
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// DownloadOption 下载选项
type DownloadOption func(*downloadOptions)

type downloadOptions struct {
	header http.Header
	auth   bool
}

// WithHeader 为下载请求添加请求头
func WithHeader(key, value string) DownloadOption {
	return func(o *downloadOptions) { o.header.Add(key, value) }
}

// WithAuth 为下载请求附带网关凭证，用于需要鉴权的网关文件地址
func WithAuth() DownloadOption {
	return func(o *downloadOptions) { o.auth = true }
}

// Download 将远端内容流式写入本地文件，返回绝对路径
//
// 使用固定大小的缓冲区逐块拷贝，每次写入阻塞到目标接受为止，
// 内存占用与文件大小无关。读写出错时关闭并删除目标文件。
// 配置了 DownloadTimeout 时整个下载（含响应体）受其限制。
func (c *Client) Download(ctx context.Context, remoteURL, localPath string, opts ...DownloadOption) (string, error) {
	if !IsRemoteURL(remoteURL) {
		return "", types.Errorf(types.ErrInvalidRequest, "download URL must be http(s): %s", remoteURL)
	}
	target, err := filepath.Abs(localPath)
	if err != nil {
		return "", types.Errorf(types.ErrIO, "cannot resolve path %s", localPath).WithPath(localPath).WithCause(err)
	}

	o := downloadOptions{header: make(http.Header)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.auth {
		o.header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DownloadTimeout)
		defer cancel()
	}

	resp, err := c.transport.Open(ctx, &Request{
		Method: http.MethodGet,
		URL:    remoteURL,
		Header: o.header,
		Route:  "download",
	})
	if err != nil {
		return "", err
	}
	defer SafeCloseBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", types.Errorf(types.ErrUpstreamError, "Download failed (%d) from %s", resp.StatusCode, remoteURL).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}
	if resp.Body == nil || resp.StatusCode == http.StatusNoContent {
		return "", types.Errorf(types.ErrProtocol, "Download response body is empty for %s", remoteURL)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", types.Errorf(types.ErrIO, "cannot create directory for %s", target).WithPath(target).WithCause(err)
	}
	dst, err := c.blob.CreateFile(target)
	if err != nil {
		return "", types.Errorf(types.ErrIO, "cannot create %s", target).WithPath(target).WithCause(err)
	}

	buf := make([]byte, c.blob.BufferSize)
	n, copyErr := io.CopyBuffer(writerOnly{dst}, readerOnly{resp.Body}, buf)
	closeErr := dst.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if rmErr := c.blob.Remove(target); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.logger.Warn("failed to discard partial download", zap.String("path", target), zap.Error(rmErr))
		}
		return "", types.Errorf(types.ErrIO, "download to %s failed", target).WithPath(target).WithCause(copyErr)
	}

	c.recorder.RecordTransfer("download", n)
	c.logger.Debug("file downloaded",
		zap.String("url", remoteURL),
		zap.String("path", target),
		zap.Int64("bytes", n),
	)
	return target, nil
}

// writerOnly 与 readerOnly 隐藏 ReaderFrom / WriterTo，
// 保证 io.CopyBuffer 始终使用调用方提供的固定缓冲区。
type writerOnly struct{ w io.Writer }

func (w writerOnly) Write(p []byte) (int, error) { return w.w.Write(p) }

type readerOnly struct{ r io.Reader }

func (r readerOnly) Read(p []byte) (int, error) { return r.r.Read(p) }
