package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/internal/cache"
	"github.com/BaSui01/mediaflow/internal/metrics"
	"github.com/BaSui01/mediaflow/internal/server"
	"github.com/BaSui01/mediaflow/internal/telemetry"
)

// usageError 参数错误，退出码 2
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

var errHelp = errors.New("help requested")

// =============================================================================
// 🧰 命令运行环境
// =============================================================================

// cliEnv 单次命令的运行环境：配置、日志、网关客户端与可选的指标/遥测
type cliEnv struct {
	name   string
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string

	cfg       *config.Config
	logger    *zap.Logger
	client    *gateway.Client
	collector *metrics.Collector
	providers *telemetry.Providers
	metricSrv *server.Manager
	store     *cache.Store

	// lookupEnv 替换环境变量来源，测试使用
	lookupEnv func(string) (string, bool)
}

// newFlagSet 创建子命令的 FlagSet 并注册公共选项
func (e *cliEnv) newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet(e.name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.StringVar(&e.configPath, "config", "", "Path to config file")
	fs.StringVar(&e.logLevel, "log-level", "", "Override log level")
	return fs
}

// parse 解析参数，允许选项出现在位置参数之后
func (e *cliEnv) parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, errHelp
			}
			return nil, &usageError{msg: err.Error()}
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		if rest[0] == "--" {
			return append(positional, rest[1:]...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// setup 加载配置并初始化日志、遥测、指标、任务存储与网关客户端
func (e *cliEnv) setup() error {
	loader := config.NewLoader()
	if e.configPath != "" {
		loader = loader.WithConfigPath(e.configPath)
	}
	if e.lookupEnv != nil {
		loader = loader.WithEnvLookup(e.lookupEnv)
	}
	cfg, err := loader.Load()
	if err != nil {
		return &usageError{msg: fmt.Sprintf("Failed to load config: %v", err)}
	}
	if e.logLevel != "" {
		cfg.Log.Level = e.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return &usageError{msg: fmt.Sprintf("Invalid config: %v", err)}
	}
	e.cfg = cfg

	e.logger = initLogger(cfg.Log)
	e.logger.Debug("starting command",
		zap.String("command", e.name),
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
	)

	providers, err := telemetry.Init(cfg, e.logger)
	if err != nil {
		e.logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	e.providers = providers

	opts := []gateway.Option{gateway.WithLogger(e.logger)}
	if cfg.Metrics.Enabled {
		e.collector = metrics.NewCollector(cfg.Metrics.Namespace, e.logger)
		opts = append(opts, gateway.WithRecorder(e.collector))
		if cfg.Metrics.Addr != "" {
			srvCfg := server.DefaultConfig()
			srvCfg.Addr = cfg.Metrics.Addr
			e.metricSrv = server.NewManager(server.MetricsHandler(nil), srvCfg, e.logger)
			if err := e.metricSrv.Start(); err != nil {
				e.logger.Warn("metrics endpoint unavailable", zap.Error(err))
				e.metricSrv = nil
			}
		}
	}

	client, err := gateway.NewClient(gateway.ClientConfigFrom(cfg), opts...)
	if err != nil {
		return err
	}
	e.client = client

	// Redis 不可用时命令照常执行，只是没有缓存与提交记录
	if cfg.Cache.Enabled {
		store, err := cache.NewStore(cfg.Cache, e.logger)
		if err != nil {
			e.logger.Warn("job store unavailable", zap.Error(err))
		} else {
			e.store = store
		}
	}
	return nil
}

// close 释放命令期间创建的资源
func (e *cliEnv) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if e.store != nil {
		_ = e.store.Close()
	}
	if e.metricSrv != nil {
		_ = e.metricSrv.Shutdown(ctx)
	}
	if e.providers != nil {
		if err := e.providers.Shutdown(ctx); err != nil && e.logger != nil {
			e.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// context 返回在 SIGINT/SIGTERM 时取消的上下文
func (e *cliEnv) context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// observer 把状态变化输出到 stderr
func (e *cliEnv) observer() gateway.Observer {
	return gateway.ObserverFunc(func(c gateway.StatusChange) {
		line := fmt.Sprintf("[Queue] %s", c.Status)
		if c.Record != nil && c.Record.QueuePosition != nil {
			line += fmt.Sprintf(" (position %d)", *c.Record.QueuePosition)
		}
		fmt.Fprintln(e.stderr, line)
	})
}

// waitOptions 从公共选项构造轮询参数
func (e *cliEnv) waitOptions(maxWait time.Duration) gateway.WaitOptions {
	return gateway.WaitOptions{MaxWait: maxWait, Observer: e.observer()}
}

// requireArgs 检查位置参数数量
func requireArgs(args []string, lo, hi int, usage string) error {
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		return usagef("usage: mediaflow %s", usage)
	}
	return nil
}
