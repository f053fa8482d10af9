package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/internal/cache"
)

// =============================================================================
// 💾 任务存储
// =============================================================================

// recordSubmission 记录提交的句柄，存储不可用时忽略
func (e *cliEnv) recordSubmission(ctx context.Context, endpoint, handle string) {
	if e.store == nil {
		return
	}
	rec := cache.JobRecord{Endpoint: endpoint, Handle: handle, SubmittedAt: time.Now().UTC()}
	if err := e.store.RecordSubmission(ctx, rec); err != nil {
		e.logger.Warn("failed to record submission", zap.String("handle", handle), zap.Error(err))
	}
}

// cachedResult 读取已缓存的结果
func (e *cliEnv) cachedResult(ctx context.Context, endpoint, handle string) (any, bool) {
	if e.store == nil {
		return nil, false
	}
	resp, err := e.store.GetResult(ctx, endpoint, handle)
	if err != nil {
		if !cache.IsMiss(err) {
			e.logger.Warn("cache read failed", zap.String("handle", handle), zap.Error(err))
		}
		return nil, false
	}
	e.logger.Debug("result served from cache", zap.String("endpoint", endpoint), zap.String("handle", handle))
	return resp, true
}

// storeResult 缓存已完成任务的结果
func (e *cliEnv) storeResult(ctx context.Context, endpoint, handle string, resp any) {
	if e.store == nil {
		return
	}
	if err := e.store.PutResult(ctx, endpoint, handle, resp); err != nil {
		e.logger.Warn("cache write failed", zap.String("handle", handle), zap.Error(err))
	}
}

func runJobs(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	limit := fs.Int("limit", 20, "Number of jobs to list")
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 0, 0, "jobs [--limit 20]"); err != nil {
		return err
	}
	if *limit <= 0 {
		return usagef("--limit must be positive")
	}
	if err := env.setup(); err != nil {
		return err
	}
	if !env.cfg.Cache.Enabled {
		return usagef("job history requires cache.enabled (MAX_CACHE_ENABLED=true)")
	}
	if env.store == nil {
		return usagef("job store unavailable at %s", env.cfg.Cache.Addr)
	}

	ctx, cancel := env.context()
	defer cancel()

	jobs, err := env.store.RecentJobs(ctx, *limit)
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []cache.JobRecord{}
	}
	return env.printJSON(jobs)
}
