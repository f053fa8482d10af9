package batch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/media"
	"github.com/BaSui01/mediaflow/types"
)

const instrumentationName = "github.com/BaSui01/mediaflow/media/batch"

// Recorder 记录单个任务的结果，metrics.Collector 实现该接口
type Recorder interface {
	RecordBatchJob(mode string, ok bool)
}

// JobResult 单个任务的执行结果
type JobResult struct {
	Index    int
	Job      Job
	Response any
	// Output 结果文件的绝对路径，未配置输出时为空
	Output   string
	Err      error
	Duration time.Duration
}

// OK 任务是否成功
func (r JobResult) OK() bool { return r.Err == nil }

// Runner 批处理执行器
type Runner struct {
	gw          media.Gateway
	concurrency int
	limiter     *rate.Limiter
	baseDir     string
	recorder    Recorder
	tracer      trace.Tracer
	logger      *zap.Logger
}

// Option 配置 Runner
type Option func(*Runner)

// WithConcurrency 设置并发上限
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// WithRateLimit 设置提交速率；rps <= 0 表示不限速
func WithRateLimit(rps float64, burst int) Option {
	return func(r *Runner) { r.limiter = newLimiter(rps, burst) }
}

// WithBaseDir 设置相对输出路径的基准目录
func WithBaseDir(dir string) Option {
	return func(r *Runner) { r.baseDir = dir }
}

// WithRecorder 设置结果记录器
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// OptionsFrom 将批处理配置转换为选项
func OptionsFrom(cfg config.BatchConfig) []Option {
	return []Option{
		WithConcurrency(cfg.Concurrency),
		WithRateLimit(cfg.SubmitRPS, cfg.SubmitBurst),
	}
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// NewRunner 创建执行器
func NewRunner(gw media.Gateway, opts ...Option) *Runner {
	r := &Runner{
		gw:          gw,
		concurrency: 1,
		limiter:     newLimiter(0, 0),
		baseDir:     ".",
		tracer:      otel.Tracer(instrumentationName),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	r.logger = r.logger.With(zap.String("component", "batch"))
	return r
}

// Run 执行全部任务，结果顺序与输入一致
//
// 单个任务失败不影响其他任务；ctx 取消后尚未开始的任务以取消错误结束。
// wait 中的 Observer 会被多个 goroutine 并发调用。
func (r *Runner) Run(ctx context.Context, jobs []Job, wait gateway.WaitOptions) []JobResult {
	results := make([]JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.runJob(ctx, i, job, wait)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) runJob(ctx context.Context, index int, job Job, wait gateway.WaitOptions) JobResult {
	start := time.Now()
	res := JobResult{Index: index, Job: job}

	ctx, span := r.tracer.Start(ctx, "batch.job",
		trace.WithAttributes(
			attribute.Int("batch.index", index),
			attribute.String("batch.job", job.Name),
			attribute.String("gateway.endpoint", job.Endpoint),
			attribute.String("gateway.mode", string(job.Mode)),
		),
	)
	defer span.End()

	res.Err = r.execute(ctx, job, wait, &res)
	res.Duration = time.Since(start)

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		r.logger.Warn("batch job failed",
			zap.Int("index", index),
			zap.String("job", job.Name),
			zap.Error(res.Err),
		)
	} else {
		r.logger.Info("batch job completed",
			zap.Int("index", index),
			zap.String("job", job.Name),
			zap.Duration("duration", res.Duration),
		)
	}
	if r.recorder != nil {
		r.recorder.RecordBatchJob(string(job.Mode), res.Err == nil)
	}
	return res
}

func (r *Runner) execute(ctx context.Context, job Job, wait gateway.WaitOptions, res *JobResult) error {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.NewError(types.ErrInvalidRequest, "rate limiter rejected job").WithCause(err)
	}

	var input any
	if job.Input != nil {
		input = job.Input
	}
	resp, err := media.Invoke(ctx, r.gw, job.Route(), input, wait)
	if err != nil {
		return err
	}
	res.Response = resp

	if job.Output == "" {
		return nil
	}
	out, err := r.writeOutput(job.Output, resp)
	if err != nil {
		return err
	}
	res.Output = out
	return nil
}

// writeOutput 把响应以缩进 JSON 写入目标文件
func (r *Runner) writeOutput(path string, resp any) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return "", types.Errorf(types.ErrIO, "cannot resolve %s", path).WithPath(path).WithCause(err)
	}
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", types.NewError(types.ErrInvalidResponse, "cannot encode job result").WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", types.Errorf(types.ErrIO, "cannot create directory for %s", target).WithPath(target).WithCause(err)
	}
	if err := os.WriteFile(target, append(data, '\n'), 0o644); err != nil {
		return "", types.Errorf(types.ErrIO, "cannot write %s", target).WithPath(target).WithCause(err)
	}
	return target, nil
}

// Summary 统计成功与失败的任务数
func Summary(results []JobResult) (succeeded, failed int) {
	for _, r := range results {
		if r.OK() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
