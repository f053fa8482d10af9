package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/gateway/retry"
	"github.com/BaSui01/mediaflow/types"
)

// Clock 提供当前时间与可取消的等待
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock 使用真实时间
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Sleep 等待 d，ctx 取消时提前返回 ctx.Err()
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StatusChange 描述一次状态变化
type StatusChange struct {
	Endpoint string
	Handle   string
	Status   JobStatus
	Previous JobStatus
	Record   *StatusRecord
	Elapsed  time.Duration
}

// Observer 接收状态变化通知，每个新的非空状态只通知一次
type Observer interface {
	OnStatusChange(change StatusChange)
}

// ObserverFunc 将函数适配为 Observer
type ObserverFunc func(change StatusChange)

func (f ObserverFunc) OnStatusChange(change StatusChange) { f(change) }

// WaitOptions 等待参数，零值字段使用客户端配置
type WaitOptions struct {
	MaxWait  time.Duration
	Interval time.Duration
	Observer Observer
	Clock    Clock
	// StatusRetries 状态查询可重试失败的连续重试次数
	// 0 使用客户端配置，负数表示不重试
	StatusRetries int
}

func (c *Client) waitDefaults(opts WaitOptions) WaitOptions {
	if opts.MaxWait <= 0 {
		opts.MaxWait = c.cfg.MaxWait
	}
	if opts.Interval <= 0 {
		opts.Interval = c.cfg.PollInterval
	}
	if opts.Clock == nil {
		opts.Clock = c.clock
	}
	switch {
	case opts.StatusRetries == 0:
		opts.StatusRetries = c.cfg.StatusRetries
	case opts.StatusRetries < 0:
		opts.StatusRetries = 0
	}
	return opts
}

// Wait 以固定间隔轮询任务状态直到终态
//
// COMPLETED 立即返回，不先休眠；失败终态立即返回 JOB_FAILED，不重试；
// 预算耗尽返回 TIMEOUT。只有可重试的状态查询失败会按同一间隔有限重试。
func (c *Client) Wait(ctx context.Context, endpoint, handle string, opts WaitOptions) (*StatusRecord, error) {
	opts = c.waitDefaults(opts)
	clock := opts.Clock

	policy := retry.FixedIntervalPolicy(opts.StatusRetries, opts.Interval)
	policy.ShouldRetry = types.IsRetryable
	policy.Sleep = clock.Sleep
	retryer := retry.NewRetryer(policy, c.logger)

	logger := c.logger.With(zap.String("endpoint", endpoint), zap.String("request_id", handle))
	start := clock.Now()
	var last JobStatus

	for clock.Now().Sub(start) < opts.MaxWait {
		rec, err := retry.DoWithResultTyped(retryer, ctx, func() (*StatusRecord, error) {
			return c.Status(ctx, endpoint, handle)
		})
		if err != nil {
			return nil, err
		}

		if rec.Status != "" && rec.Status != last {
			elapsed := clock.Now().Sub(start)
			logger.Info("job status changed",
				zap.String("status", rec.Status.String()),
				zap.String("previous", last.String()),
				zap.Duration("elapsed", elapsed),
			)
			c.recorder.RecordStatusChange(endpoint, rec.Status.String())
			if opts.Observer != nil {
				opts.Observer.OnStatusChange(StatusChange{
					Endpoint: endpoint,
					Handle:   handle,
					Status:   rec.Status,
					Previous: last,
					Record:   rec,
					Elapsed:  elapsed,
				})
			}
			last = rec.Status
		}

		if rec.Status.IsSuccess() {
			c.recorder.RecordTerminal(endpoint, rec.Status.String())
			return rec, nil
		}
		if rec.Status.IsFailure() {
			c.recorder.RecordTerminal(endpoint, rec.Status.String())
			return nil, types.Errorf(types.ErrJobFailed, "Queue failed with status %s: %s", rec.Status, rec.ErrorMessage()).
				WithJobStatus(rec.Status.String()).
				WithEndpoint(endpoint).
				WithPayload(rec.Raw)
		}

		if err := clock.Sleep(ctx, opts.Interval); err != nil {
			return nil, fmt.Errorf("queue wait interrupted: %w", err)
		}
	}

	elapsed := clock.Now().Sub(start)
	c.recorder.RecordTerminal(endpoint, string(types.ErrTimeout))
	logger.Warn("job wait timed out", zap.Duration("elapsed", elapsed))
	return nil, types.Errorf(types.ErrTimeout, "Queue wait timeout after %dms (elapsed %dms, last status %q)",
		opts.MaxWait.Milliseconds(), elapsed.Milliseconds(), last.String()).
		WithEndpoint(endpoint).
		WithJobStatus(last.String())
}

// SubmitAndWait 组合 Submit → Wait → Result
func (c *Client) SubmitAndWait(ctx context.Context, endpoint string, input any, opts WaitOptions) (any, error) {
	sub, err := c.Submit(ctx, endpoint, input)
	if err != nil {
		return nil, err
	}
	if _, err := c.Wait(ctx, endpoint, sub.RequestID, opts); err != nil {
		return nil, err
	}
	return c.Result(ctx, endpoint, sub.RequestID)
}
