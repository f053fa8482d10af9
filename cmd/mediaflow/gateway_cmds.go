package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/types"
)

// =============================================================================
// 🔌 网关原语命令
// =============================================================================

// parseInput 解析 --input：JSON 文本，或 @path 从文件读取；空值返回 nil
func parseInput(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	data := []byte(s)
	if path, ok := strings.CutPrefix(s, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, types.Errorf(types.ErrFileNotFound, "Input file not found: %s", path).WithPath(path)
			}
			return nil, types.Errorf(types.ErrIO, "cannot read %s", path).WithPath(path).WithCause(err)
		}
		data = b
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, usagef("--input must be JSON or @file: %v", err)
	}
	return v, nil
}

// printJSON 以缩进 JSON 输出到 stdout
func (e *cliEnv) printJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func runDirect(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	input := fs.String("input", "", "JSON input or @file")
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 1, 1, "run <endpoint> [--input JSON|@file]"); err != nil {
		return err
	}
	payload, err := parseInput(*input)
	if err != nil {
		return err
	}
	if err := env.setup(); err != nil {
		return err
	}

	ctx, cancel := env.context()
	defer cancel()

	resp, err := env.client.Run(ctx, pos[0], payload)
	if err != nil {
		return err
	}
	return env.printJSON(resp)
}

func runSubmit(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	input := fs.String("input", "", "JSON input or @file")
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 1, 1, "submit <endpoint> [--input JSON|@file]"); err != nil {
		return err
	}
	payload, err := parseInput(*input)
	if err != nil {
		return err
	}
	if err := env.setup(); err != nil {
		return err
	}

	ctx, cancel := env.context()
	defer cancel()

	sub, err := env.client.Submit(ctx, pos[0], payload)
	if err != nil {
		return err
	}
	env.recordSubmission(ctx, pos[0], sub.RequestID)
	fmt.Fprintln(env.stdout, sub.RequestID)
	return nil
}

func runStatus(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 2, 2, "status <endpoint> <handle>"); err != nil {
		return err
	}
	if err := env.setup(); err != nil {
		return err
	}

	ctx, cancel := env.context()
	defer cancel()

	rec, err := env.client.Status(ctx, pos[0], pos[1])
	if err != nil {
		return err
	}
	out := map[string]any{"status": rec.Status}
	if rec.QueuePosition != nil {
		out["queue_position"] = *rec.QueuePosition
	}
	if msg := rec.ErrorMessage(); rec.Status.IsFailure() && msg != "" {
		out["error"] = msg
	}
	return env.printJSON(out)
}

func runResult(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 2, 2, "result <endpoint> <handle>"); err != nil {
		return err
	}
	if err := env.setup(); err != nil {
		return err
	}

	ctx, cancel := env.context()
	defer cancel()

	if resp, ok := env.cachedResult(ctx, pos[0], pos[1]); ok {
		return env.printJSON(resp)
	}
	resp, err := env.client.Result(ctx, pos[0], pos[1])
	if err != nil {
		return err
	}
	env.storeResult(ctx, pos[0], pos[1], resp)
	return env.printJSON(resp)
}

func runWait(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	maxWait := fs.Duration("max-wait", 0, "Maximum wait (default from config)")
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 2, 2, "wait <endpoint> <handle> [--max-wait 20m]"); err != nil {
		return err
	}
	if err := env.setup(); err != nil {
		return err
	}

	ctx, cancel := env.context()
	defer cancel()

	if resp, ok := env.cachedResult(ctx, pos[0], pos[1]); ok {
		return env.printJSON(resp)
	}
	if _, err := env.client.Wait(ctx, pos[0], pos[1], env.waitOptions(*maxWait)); err != nil {
		return err
	}
	resp, err := env.client.Result(ctx, pos[0], pos[1])
	if err != nil {
		return err
	}
	env.storeResult(ctx, pos[0], pos[1], resp)
	return env.printJSON(resp)
}

func runUpload(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 1, 1, "upload <file>"); err != nil {
		return err
	}
	if err := env.setup(); err != nil {
		return err
	}

	ctx, cancel := env.context()
	defer cancel()

	u, err := env.client.Upload(ctx, pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, u)
	return nil
}

func runDownload(env *cliEnv, args []string) error {
	fs := env.newFlagSet()
	auth := fs.Bool("auth", false, "Send the gateway credential with the request")
	pos, err := env.parse(fs, args)
	if err != nil {
		return err
	}
	if err := requireArgs(pos, 2, 2, "download <url> <path> [--auth]"); err != nil {
		return err
	}
	if err := env.setup(); err != nil {
		return err
	}

	ctx, cancel := env.context()
	defer cancel()

	var opts []gateway.DownloadOption
	if *auth {
		opts = append(opts, gateway.WithAuth())
	}

	start := time.Now()
	path, err := env.client.Download(ctx, pos[0], pos[1], opts...)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err == nil {
		fmt.Fprintf(env.stderr, "[Download] %.2f MB in %s\n", float64(info.Size())/(1<<20), time.Since(start).Round(time.Millisecond))
	}
	fmt.Fprintln(env.stdout, path)
	return nil
}
