package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/gateway/chatcompat"
	"github.com/BaSui01/mediaflow/media/batch"
	"github.com/BaSui01/mediaflow/media/image"
	"github.com/BaSui01/mediaflow/media/understand"
	"github.com/BaSui01/mediaflow/media/video"
)

// =============================================================================
// 🖼️ image 命令
// =============================================================================

func runImage(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	model := fs.String("model", "auto", "Model alias or endpoint")
	aspect := fs.String("aspect-ratio", "1:1", "Aspect ratio: 1:1, 4:3, 3:4, 16:9, 9:16")
	num := fs.Int("num-images", 1, "Number of images")
	format := fs.String("format", "", "Output format: png, jpeg, webp")
	input := fs.String("input", "", "Input image path or URL (edit models)")
	outDir := fs.String("out", "", "Output directory")
	seed := fs.Int64("seed", -1, "Seed (-1 for random)")
	guidance := fs.Float64("guidance", 0, "Guidance scale (0 to omit)")
	steps := fs.Int("steps", 0, "Inference steps (0 to omit)")
	maxWait := fs.Duration("max-wait", 0, "Maximum queue wait")
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 1, 1, "image <prompt> [options]"); err != nil {
		return err
	}
	if strings.TrimSpace(pos[0]) == "" {
		return usagef("prompt must not be empty")
	}
	if err := env.setup(); err != nil {
		return err
	}

	req := image.Request{
		Prompt:       pos[0],
		Model:        *model,
		AspectRatio:  *aspect,
		NumImages:    *num,
		OutputFormat: firstNonEmpty(*format, env.cfg.Media.ImageOutputFormat),
		InputImage:   *input,
	}
	if *seed >= 0 {
		req.Seed = seed
	}
	if *guidance > 0 {
		req.GuidanceScale = guidance
	}
	if *steps > 0 {
		req.NumInferenceSteps = steps
	}

	ctx, cancel := env.context()
	defer cancel()

	res, err := image.NewGenerator(env.client, env.logger).
		Generate(ctx, req, firstNonEmpty(*outDir, env.cfg.Media.OutputDir), env.waitOptions(*maxWait))
	if err != nil {
		return err
	}

	fmt.Fprintf(env.stderr, "[Route] %s\n", res.Route)
	if res.Skipped > 0 {
		fmt.Fprintf(env.stderr, "[Warning] %d image(s) could not be saved\n", res.Skipped)
	}
	for _, f := range res.Files {
		fmt.Fprintln(env.stdout, f)
	}
	return nil
}

// =============================================================================
// 🔍 understand 命令
// =============================================================================

func runUnderstand(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	language := fs.String("language", understand.DefaultLanguage, "Answer language: chinese or english")
	model := fs.String("model", "", "Model id (default from config)")
	maxTokens := fs.Int("max-tokens", 0, "Max output tokens (default from config)")
	temperature := fs.Float64("temperature", -1, "Sampling temperature (default from config)")
	direct := fs.Bool("direct", false, "Call the chat-completions backend directly")
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 1, 2, "understand <media_path_or_url> [prompt] [options]"); err != nil {
		return err
	}
	if err := env.setup(); err != nil {
		return err
	}

	req := understand.RequestFrom(env.cfg.Media, pos[0])
	req.Language = *language
	if len(pos) > 1 {
		req.Prompt = pos[1]
	}
	if *model != "" {
		req.Model = *model
	}
	if *maxTokens > 0 {
		req.MaxTokens = *maxTokens
	}
	if *temperature >= 0 {
		req.Temperature = *temperature
	}

	opts := []understand.Option{understand.WithLogger(env.logger)}
	if env.collector != nil {
		opts = append(opts, understand.WithTokenRecorder(env.collector))
	}
	var runner gateway.Runner = env.client
	if *direct || env.cfg.Chat.Enabled {
		chatCfg := chatcompat.ConfigFrom(env.cfg.Chat)
		if chatCfg.APIKey == "" {
			chatCfg.APIKey = env.cfg.API.Key
		}
		r, err := chatcompat.NewRunner(chatCfg, chatcompat.WithLogger(env.logger))
		if err != nil {
			return err
		}
		runner = r
		opts = append(opts, understand.WithEndpoint(chatcompat.DefaultPath))
	}

	ctx, cancel := env.context()
	defer cancel()

	res, err := understand.NewAnalyzer(runner, env.client, opts...).Analyze(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.stderr, "[Config] Media type: %s\n", res.MediaType)
	fmt.Fprintf(env.stderr, "[Config] Model: %s\n", res.Model)
	text := res.Text
	if text == "" {
		text = "(No text output)"
	}
	fmt.Fprintln(env.stdout, text)
	if res.HasUsage {
		fmt.Fprintln(env.stderr, res.Usage.String())
	}
	return nil
}

// =============================================================================
// 🎬 video 命令
// =============================================================================

func runVideo(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	model := fs.String("model", "veo-3.1", "Model alias or endpoint: veo-3.1, sora-2-pro")
	aspect := fs.String("aspect-ratio", "16:9", "Aspect ratio")
	duration := fs.String("duration", "8", "Duration in seconds")
	resolution := fs.String("resolution", "", "Resolution, e.g. 720p or 1080p")
	input := fs.String("input", "", "Input image path or URL (image-to-video)")
	outDir := fs.String("out", "", "Output directory")
	maxWait := fs.Duration("max-wait", 0, "Maximum queue wait")
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 1, 1, "video <prompt> [options]"); err != nil {
		return err
	}
	if err := env.setup(); err != nil {
		return err
	}

	ctx, cancel := env.context()
	defer cancel()

	res, err := video.NewGenerator(env.client, env.logger).Generate(ctx, video.Request{
		Prompt:      pos[0],
		Model:       *model,
		AspectRatio: *aspect,
		Duration:    *duration,
		Resolution:  *resolution,
		InputImage:  *input,
	}, firstNonEmpty(*outDir, env.cfg.Media.OutputDir), env.waitOptions(*maxWait))
	if err != nil {
		return err
	}

	fmt.Fprintf(env.stderr, "[Route] %s\n", res.Endpoint)
	fmt.Fprintln(env.stdout, res.File)
	return nil
}

// =============================================================================
// 📚 batch 命令
// =============================================================================

func runBatch(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	concurrency := fs.Int("concurrency", 0, "Concurrent jobs (default from config)")
	rps := fs.Float64("rps", -1, "Job starts per second (default from config)")
	maxWait := fs.Duration("max-wait", 0, "Maximum queue wait per job")
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 1, 1, "batch <file.yaml> [options]"); err != nil {
		return err
	}

	jobs, err := batch.LoadFile(pos[0])
	if err != nil {
		return err
	}
	if err := env.setup(); err != nil {
		return err
	}

	cfg := env.cfg.Batch
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *rps >= 0 {
		cfg.SubmitRPS = *rps
	}

	opts := append(batch.OptionsFrom(cfg),
		batch.WithBaseDir(filepath.Dir(pos[0])),
		batch.WithLogger(env.logger),
	)
	if env.collector != nil {
		opts = append(opts, batch.WithRecorder(env.collector))
	}

	ctx, cancel := env.context()
	defer cancel()

	// 多个任务并发轮询，不输出逐条状态
	results := batch.NewRunner(env.client, opts...).Run(ctx, jobs, gatewayWait(*maxWait))

	summary := make([]map[string]any, 0, len(results))
	for _, r := range results {
		item := map[string]any{
			"name":     r.Job.Name,
			"endpoint": r.Job.Endpoint,
			"mode":     r.Job.Mode,
			"ok":       r.OK(),
		}
		if r.Output != "" {
			item["output"] = r.Output
		}
		if r.Err != nil {
			item["error"] = errorText(r.Err)
		}
		summary = append(summary, item)
	}
	if err := env.printJSON(summary); err != nil {
		return err
	}

	ok, failed := batch.Summary(results)
	env.logger.Info("batch finished", zap.Int("succeeded", ok), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(results))
	}
	return nil
}

func gatewayWait(maxWait time.Duration) gateway.WaitOptions {
	return gateway.WaitOptions{MaxWait: maxWait}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
