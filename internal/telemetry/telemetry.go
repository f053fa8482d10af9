// =============================================================================
// mediaflow OpenTelemetry SDK 初始化
// =============================================================================
// 网关传输层与批处理通过全局 otel.Tracer 产生 span；此处负责安装
// 真实的 TracerProvider/MeterProvider，并把目标网关写进 resource，
// 同一 collector 里能区分指向不同网关的进程。
// 遥测关闭时不创建任何导出器，全局 provider 保持 noop。
// =============================================================================

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
)

// Resource 属性键
const (
	AttrGatewayHost        = attribute.Key("gateway.host")
	AttrGatewayRoutePrefix = attribute.Key("gateway.route_prefix")
	AttrQueuePollInterval  = attribute.Key("gateway.queue.poll_interval_ms")
	AttrQueueMaxWait       = attribute.Key("gateway.queue.max_wait_ms")
	AttrBatchConcurrency   = attribute.Key("mediaflow.batch.concurrency")
)

// Providers 持有 SDK 的 TracerProvider 与 MeterProvider
// 遥测关闭时两者均为 nil，Shutdown 为空操作。
type Providers struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Init 按进程配置初始化 OTel SDK
// cfg.Telemetry.Enabled 为 false 时返回 noop Providers，不连接任何外部服务。
func Init(cfg *config.Config, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tc := cfg.Telemetry
	if !tc.Enabled {
		logger.Debug("telemetry disabled, using noop providers")
		return &Providers{}, nil
	}

	ctx := context.Background()

	res, err := resource.New(ctx, resource.WithAttributes(ResourceAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(tc.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(tc.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	// 子 span 跟随父 span 的采样决定，根 span 按比例采样
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRate(tc.SampleRate)))),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		zap.String("endpoint", tc.OTLPEndpoint),
		zap.String("service_name", tc.ServiceName),
		zap.String("gateway", cfg.API.GatewayBase()),
		zap.Float64("sample_rate", clampRate(tc.SampleRate)),
	)

	return &Providers{tp: tp, mp: mp}, nil
}

// ResourceAttributes 描述本进程的 resource：服务信息、目标网关与轮询参数
// 不含凭证。
func ResourceAttributes(cfg *config.Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.Telemetry.ServiceName),
		semconv.ServiceVersionKey.String(buildVersion()),
	}
	if host := gatewayHost(cfg.API.BaseURL); host != "" {
		attrs = append(attrs, AttrGatewayHost.String(host))
	}
	if prefix := strings.Trim(strings.TrimSpace(cfg.API.RoutePrefix), "/"); prefix != "" {
		attrs = append(attrs, AttrGatewayRoutePrefix.String("/"+prefix))
	}
	return append(attrs,
		AttrQueuePollInterval.Int64(cfg.Queue.PollInterval.Milliseconds()),
		AttrQueueMaxWait.Int64(cfg.Queue.MaxWait.Milliseconds()),
		AttrBatchConcurrency.Int(cfg.Batch.Concurrency),
	)
}

// gatewayHost 只取 host[:port]，丢弃路径与 userinfo
func gatewayHost(baseURL string) string {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return ""
	}
	return u.Host
}

// Enabled 报告是否安装了真实的 provider
func (p *Providers) Enabled() bool {
	return p != nil && p.tp != nil
}

// Shutdown 刷新未导出的 span/指标并关闭导出器
// 对 noop Providers 与 nil 接收者均安全。
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func clampRate(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}

// buildVersion 从构建信息中读取模块版本，读取不到时返回 "dev"
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
