package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/types"
)

const instrumentationName = "github.com/BaSui01/mediaflow/gateway"

// RequestIDHeader 每次调用携带的请求 ID 头
const RequestIDHeader = "X-Request-ID"

// Request 描述一次网关 HTTP 调用
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
	// Route 是低基数的路由标签（run、queue.submit 等），用于指标与 span
	Route string
	// Timeout 只作用于本次调用，0 表示仅受 ctx 控制
	Timeout time.Duration
}

// Transport 发送 HTTP 请求并把响应统一为 JSON 负载或 *types.Error
// 不做任何重试。
type Transport struct {
	httpClient *http.Client
	logger     *zap.Logger
	recorder   Recorder
	tracer     trace.Tracer
}

// NewTransport 创建 Transport
func NewTransport(httpClient *http.Client, logger *zap.Logger, recorder Recorder) *Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Transport{
		httpClient: httpClient,
		logger:     logger,
		recorder:   recorder,
		tracer:     otel.Tracer(instrumentationName),
	}
}

// Send 执行请求并解析 JSON 响应
// 空响应体返回空对象；非 2xx 按状态码映射错误，消息按优先级从负载中提取。
func (t *Transport) Send(ctx context.Context, req *Request) (any, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, err := t.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	defer SafeCloseBody(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to read response body").
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(true).
			WithCause(err)
	}

	payload, parseErr := DecodeBody(resp.StatusCode, data)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	if parseErr != nil {
		if ok {
			return nil, parseErr
		}
		// 非 2xx 且响应体不是 JSON：仍按状态码分类，消息保留解析失败说明
		return nil, MapHTTPError(resp.StatusCode, parseErr.Message).WithPayload(payload)
	}
	if !ok {
		return nil, MapHTTPError(resp.StatusCode, ExtractErrorMessage(payload)).WithPayload(payload)
	}
	return payload, nil
}

// Open 执行请求并返回未读取的响应，调用方负责关闭响应体
// 只有网络层失败才返回错误，状态码由调用方判断。
func (t *Transport) Open(ctx context.Context, req *Request) (*http.Response, error) {
	requestID := uuid.NewString()
	route := req.Route
	if route == "" {
		route = "other"
	}

	ctx, span := t.tracer.Start(ctx, "gateway."+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("gateway.route", route),
			attribute.String("gateway.request_id", requestID),
		))
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return nil, types.NewError(types.ErrInvalidRequest, "failed to create request").WithCause(err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	elapsed := time.Since(start)

	if err != nil {
		t.recorder.RecordRequest(req.Method, route, 0, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.Debug("gateway request failed",
			zap.String("request_id", requestID),
			zap.String("method", req.Method),
			zap.String("route", route),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, types.NewError(types.ErrUpstreamError, "request failed").
			WithRetryable(!errors.Is(err, context.Canceled)).
			WithCause(err)
	}

	t.recorder.RecordRequest(req.Method, route, resp.StatusCode, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, strings.TrimSpace(resp.Status))
	}
	t.logger.Debug("gateway request",
		zap.String("request_id", requestID),
		zap.String("method", req.Method),
		zap.String("route", route),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", elapsed),
	)
	return resp, nil
}
