// =============================================================================
// mediaflow 主入口
// =============================================================================
// 媒体推理网关命令行客户端
//
// 使用方法:
//
//	mediaflow image "a cat on a sofa" --model flux    # 生成图片
//	mediaflow understand ./clip.mp4 "总结视频内容"      # 多模态理解
//	mediaflow video "ocean waves" --duration 8        # 生成视频
//	mediaflow run fal-ai/flux/dev --input '{...}'     # 直接调用
//	mediaflow submit / status / result / wait         # 队列操作
//	mediaflow upload ./a.png                          # 上传文件
//	mediaflow download <url> ./out.png                # 下载文件
//	mediaflow batch jobs.yaml                         # 批量执行
//	mediaflow jobs                                    # 最近提交的任务
//	mediaflow version                                 # 显示版本信息
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/mediaflow/config"
	"github.com/BaSui01/mediaflow/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 退出码
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// command 子命令入口
type command func(env *cliEnv, args []string) error

var commands = map[string]command{
	"image":      runImage,
	"understand": runUnderstand,
	"video":      runVideo,
	"run":        runDirect,
	"submit":     runSubmit,
	"status":     runStatus,
	"result":     runResult,
	"wait":       runWait,
	"upload":     runUpload,
	"download":   runDownload,
	"batch":      runBatch,
	"jobs":       runJobs,
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	switch args[0] {
	case "version":
		printVersion(stdout)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	env := &cliEnv{name: args[0], stdout: stdout, stderr: stderr}
	err := cmd(env, args[1:])
	env.close()

	if err != nil {
		if errors.Is(err, errHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %s\n", errorText(err))
		return exitCode(err)
	}
	return exitOK
}

// exitCode 用法与配置错误返回 2，其余失败返回 1
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ue *usageError
	if errors.As(err, &ue) || types.IsCode(err, types.ErrConfiguration) {
		return exitUsage
	}
	return exitFailure
}

// errorText 输出给用户的错误文本，types.Error 只显示消息
func errorText(err error) string {
	if e, ok := types.AsError(err); ok {
		return e.Message
	}
	return err.Error()
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "mediaflow %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `mediaflow - media inference gateway client

Usage:
  mediaflow <command> [arguments] [options]

Commands:
  image       <prompt>                 Generate images
  understand  <media> [prompt]         Ask a multimodal model about an image, video or audio
  video       <prompt>                 Generate a video (queued)
  run         <endpoint>               Call an endpoint directly
  submit      <endpoint>               Submit a queued job and print its handle
  status      <endpoint> <handle>      Show the status of a queued job
  result      <endpoint> <handle>      Fetch the result of a completed job
  wait        <endpoint> <handle>      Poll until the job finishes, then fetch the result
  upload      <file>                   Upload a local file and print its URL
  download    <url> <path>             Stream a remote file to disk
  batch       <file.yaml>              Run a YAML list of jobs
  jobs                                 List recently submitted jobs (needs cache)
  version                              Show version information
  help                                 Show this help message

Common options:
  --config <path>   Path to configuration file (YAML)
  --log-level <l>   Override log level (debug, info, warn, error)

Environment:
  MAX_API_KEY            Gateway bearer credential (required)
  MAX_API_BASE_URL       Gateway address
  MAX_API_ROUTE_PREFIX   Route prefix appended to the address
  MAX_CACHE_ENABLED      Keep results and job history in Redis (MAX_CACHE_ADDR)

Exit codes:
  0 success, 1 failure, 2 usage or configuration error

Examples:
  mediaflow image "a red fox in snow" --model gpt-image --aspect-ratio 16:9
  mediaflow understand https://youtu.be/xyz "summarize" --language english
  mediaflow run fal-ai/flux/dev --input '{"prompt":"a cat"}'
  mediaflow wait fal-ai/veo3.1 0b9c... --max-wait 30m
  mediaflow batch jobs.yaml --concurrency 4`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
