// Package batch 从 YAML 文件读取一组网关任务，限并发、限速执行，
// 每个任务的结果按序号写回，任务之间不共享状态。
package batch

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/mediaflow/media"
	"github.com/BaSui01/mediaflow/types"
)

// Job 单个批处理任务
type Job struct {
	Name     string         `yaml:"name"`
	Endpoint string         `yaml:"endpoint"`
	Mode     media.Mode     `yaml:"mode"`
	Input    map[string]any `yaml:"input"`
	// Output 结果 JSON 的写入路径，相对路径基于批处理文件所在目录
	Output string `yaml:"output"`
}

// Route 任务的端点与模式
func (j Job) Route() media.Route {
	return media.Route{Endpoint: j.Endpoint, Mode: j.Mode}
}

type fileFormat struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadFile 读取并校验批处理文件
func LoadFile(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.Errorf(types.ErrFileNotFound, "Batch file not found: %s", path).WithPath(path)
		}
		return nil, types.Errorf(types.ErrIO, "cannot read %s", path).WithPath(path).WithCause(err)
	}
	jobs, err := Parse(data)
	if err != nil {
		if e, ok := types.AsError(err); ok {
			return nil, e.WithPath(path)
		}
		return nil, err
	}
	return jobs, nil
}

// Parse 解析批处理 YAML，顶层可以是任务列表，也可以是带 jobs 键的对象
func Parse(data []byte) ([]Job, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "invalid batch file").WithCause(err)
	}
	if len(doc.Content) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "batch file has no jobs")
	}

	var jobs []Job
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&jobs); err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "invalid batch job list").WithCause(err)
		}
	case yaml.MappingNode:
		var f fileFormat
		if err := root.Decode(&f); err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "invalid batch file").WithCause(err)
		}
		jobs = f.Jobs
	default:
		return nil, types.NewError(types.ErrInvalidRequest, "batch file must be a list of jobs or contain a jobs key")
	}

	if len(jobs) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "batch file has no jobs")
	}
	for i := range jobs {
		if err := normalize(&jobs[i], i); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func normalize(j *Job, index int) error {
	j.Endpoint = strings.TrimSpace(j.Endpoint)
	if j.Name == "" {
		j.Name = fmt.Sprintf("job-%d", index+1)
	}
	if j.Endpoint == "" {
		return types.Errorf(types.ErrInvalidRequest, "job %q: endpoint is required", j.Name)
	}
	mode, err := media.ParseMode(string(j.Mode))
	if err != nil {
		return types.Errorf(types.ErrInvalidRequest, "job %q: unknown mode %q (want run or queue)", j.Name, j.Mode)
	}
	j.Mode = mode
	return nil
}

// Marshal 把任务列表编码为 YAML，供 CLI 生成模板
func Marshal(jobs []Job) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fileFormat{Jobs: jobs}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
