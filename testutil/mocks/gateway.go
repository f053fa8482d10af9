// MockGateway 的网关测试模拟实现。
//
// 基于 httptest.Server，支持按端点配置响应、按任务句柄配置状态序列、
// 上传与下载，并记录每一次调用。
package mocks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// APIKey 模拟网关接受的凭证
const APIKey = "test-key"

// RoutePrefix 模拟网关的路由前缀
const RoutePrefix = "/api/fal"

// Response 预设响应；Body 为 string 时按原文输出，其余按 JSON 编码
type Response struct {
	Status int
	Body   any
}

// JSON 构造 200 JSON 响应
func JSON(body any) Response { return Response{Status: http.StatusOK, Body: body} }

// Upload 记录一次上传
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Call 记录单次调用
type Call struct {
	Method     string
	RawPath    string
	Kind       string // run, submit, status, result, upload, file
	Endpoint   string
	Handle     string
	Header     http.Header
	Body       []byte
	Upload     *Upload
	RequestURI string
}

// MockGateway 是网关的模拟实现
type MockGateway struct {
	mu     sync.Mutex
	server *httptest.Server

	runs     map[string]Response
	submits  map[string]Response
	statuses map[string][]Response
	results  map[string]Response
	upload   *Response
	files    map[string][]byte

	calls []Call
}

// NewMockGateway 创建并启动模拟网关，测试结束时自动关闭
func NewMockGateway(t testing.TB) *MockGateway {
	m := &MockGateway{
		runs:     make(map[string]Response),
		submits:  make(map[string]Response),
		statuses: make(map[string][]Response),
		results:  make(map[string]Response),
		files:    make(map[string][]byte),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.server.Close)
	return m
}

// --- Builder 方法 ---

// BaseURL 返回 {base}（含路由前缀）
func (m *MockGateway) BaseURL() string { return m.server.URL + RoutePrefix }

// ServerURL 返回不含前缀的服务地址
func (m *MockGateway) ServerURL() string { return m.server.URL }

// WithRun 设置直接运行的响应
func (m *MockGateway) WithRun(endpoint string, resp Response) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[endpoint] = resp
	return m
}

// WithSubmit 设置队列提交返回的任务句柄
func (m *MockGateway) WithSubmit(endpoint, handle string) *MockGateway {
	return m.WithSubmitResponse(endpoint, JSON(map[string]any{"request_id": handle, "status": "IN_QUEUE"}))
}

// WithSubmitResponse 设置队列提交的原始响应
func (m *MockGateway) WithSubmitResponse(endpoint string, resp Response) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submits[endpoint] = resp
	return m
}

// WithStatuses 设置状态序列，序列耗尽后重复最后一个
func (m *MockGateway) WithStatuses(handle string, statuses ...string) *MockGateway {
	resps := make([]Response, 0, len(statuses))
	for _, s := range statuses {
		resps = append(resps, JSON(map[string]any{"status": s}))
	}
	return m.WithStatusResponses(handle, resps...)
}

// WithStatusResponses 设置原始状态响应序列
func (m *MockGateway) WithStatusResponses(handle string, resps ...Response) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[handle] = append(m.statuses[handle], resps...)
	return m
}

// WithResult 设置任务结果
func (m *MockGateway) WithResult(handle string, resp Response) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[handle] = resp
	return m
}

// WithUpload 设置上传响应；未设置时上传路由返回 404
func (m *MockGateway) WithUpload(resp Response) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upload = &resp
	return m
}

// WithFile 注册可下载的文件，返回其地址
func (m *MockGateway) WithFile(name string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	return m.server.URL + "/blobs/" + url.PathEscape(name)
}

// --- 调用记录 ---

// Calls 返回全部调用的副本
func (m *MockGateway) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsOf 返回指定种类的调用
func (m *MockGateway) CallsOf(kind string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// --- HTTP 处理 ---

func (m *MockGateway) handle(w http.ResponseWriter, r *http.Request) {
	call := Call{
		Method:     r.Method,
		RawPath:    r.URL.EscapedPath(),
		Header:     r.Header.Clone(),
		RequestURI: r.RequestURI,
	}

	if strings.HasPrefix(call.RawPath, "/blobs/") {
		call.Kind = "file"
		name, _ := url.PathUnescape(strings.TrimPrefix(call.RawPath, "/blobs/"))
		m.record(call)
		m.mu.Lock()
		data, ok := m.files[name]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+APIKey {
		m.record(call)
		writeResponse(w, Response{Status: http.StatusUnauthorized, Body: map[string]any{
			"error": map[string]any{"message": "invalid api key"},
		}})
		return
	}

	path := strings.TrimPrefix(call.RawPath, RoutePrefix)
	switch {
	case path == "/files/upload" && r.Method == http.MethodPost:
		call.Kind = "upload"
		call.Upload = readUpload(r)
		m.record(call)
		m.mu.Lock()
		resp := m.upload
		m.mu.Unlock()
		if resp == nil {
			writeResponse(w, Response{Status: http.StatusNotFound, Body: "404 page not found"})
			return
		}
		writeResponse(w, *resp)

	case strings.HasPrefix(path, "/run/") && r.Method == http.MethodPost:
		call.Kind = "run"
		call.Endpoint = decodeEndpoint(strings.TrimPrefix(path, "/run/"))
		call.Body, _ = io.ReadAll(r.Body)
		m.record(call)
		m.reply(w, m.runs, call.Endpoint)

	case strings.HasPrefix(path, "/queue/"):
		rest := strings.TrimPrefix(path, "/queue/")
		idx := strings.LastIndex(rest, "/requests/")
		if idx < 0 {
			call.Kind = "submit"
			call.Endpoint = decodeEndpoint(rest)
			call.Body, _ = io.ReadAll(r.Body)
			m.record(call)
			m.reply(w, m.submits, call.Endpoint)
			return
		}
		call.Endpoint = decodeEndpoint(rest[:idx])
		tail := rest[idx+len("/requests/"):]
		if h, ok := strings.CutSuffix(tail, "/status"); ok {
			call.Kind = "status"
			call.Handle, _ = url.PathUnescape(h)
			m.record(call)
			m.replyStatus(w, call.Handle)
			return
		}
		call.Kind = "result"
		call.Handle, _ = url.PathUnescape(tail)
		m.record(call)
		m.reply(w, m.results, call.Handle)

	default:
		m.record(call)
		writeResponse(w, Response{Status: http.StatusNotFound, Body: map[string]any{"detail": "Not Found"}})
	}
}

func (m *MockGateway) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *MockGateway) reply(w http.ResponseWriter, table map[string]Response, key string) {
	m.mu.Lock()
	resp, ok := table[key]
	m.mu.Unlock()
	if !ok {
		writeResponse(w, Response{Status: http.StatusNotFound, Body: map[string]any{"detail": "unknown " + key}})
		return
	}
	writeResponse(w, resp)
}

func (m *MockGateway) replyStatus(w http.ResponseWriter, handle string) {
	m.mu.Lock()
	seq := m.statuses[handle]
	var resp Response
	ok := len(seq) > 0
	if ok {
		resp = seq[0]
		if len(seq) > 1 {
			m.statuses[handle] = seq[1:]
		}
	}
	m.mu.Unlock()

	if !ok {
		writeResponse(w, Response{Status: http.StatusNotFound, Body: map[string]any{"detail": "unknown request"}})
		return
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp Response) {
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	switch body := resp.Body.(type) {
	case nil:
		w.WriteHeader(status)
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func readUpload(r *http.Request) *Upload {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil
	}
	for field, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil
		}
		data, _ := io.ReadAll(f)
		_ = f.Close()
		return &Upload{
			Field:       field,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return nil
}

func decodeEndpoint(encoded string) string {
	segments := strings.Split(encoded, "/")
	for i, seg := range segments {
		if s, err := url.PathUnescape(seg); err == nil {
			segments[i] = s
		}
	}
	return strings.Join(segments, "/")
}
