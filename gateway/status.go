package gateway

import (
	"strings"
)

// JobStatus 队列任务状态（线上大小写不敏感，统一为大写）
type JobStatus string

const (
	StatusQueued     JobStatus = "QUEUED"
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
	StatusCancelled  JobStatus = "CANCELLED"
	StatusError      JobStatus = "ERROR"
)

// ParseJobStatus 规范化状态字符串
func ParseJobStatus(s string) JobStatus {
	return JobStatus(strings.ToUpper(strings.TrimSpace(s)))
}

// IsSuccess COMPLETED 是唯一的成功终态
func (s JobStatus) IsSuccess() bool { return s == StatusCompleted }

// IsFailure 报告是否为失败终态
func (s JobStatus) IsFailure() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusError:
		return true
	}
	return false
}

// IsTerminal 报告是否为终态；未知值与空状态都不是终态
func (s JobStatus) IsTerminal() bool { return s.IsSuccess() || s.IsFailure() }

func (s JobStatus) String() string { return string(s) }

// StatusRecord 是一次状态查询的结果
type StatusRecord struct {
	Status        JobStatus
	QueuePosition *int
	Raw           any
}

// ErrorMessage 返回状态记录中后端提供的错误消息
func (r *StatusRecord) ErrorMessage() string {
	return ExtractErrorMessage(r.Raw)
}

func newStatusRecord(payload any) *StatusRecord {
	rec := &StatusRecord{Raw: payload}
	if v, ok := Lookup(payload, "status"); ok {
		if s, ok := v.(string); ok {
			rec.Status = ParseJobStatus(s)
		}
	}
	if v, ok := Lookup(payload, "queue_position"); ok {
		if f, ok := v.(float64); ok {
			pos := int(f)
			rec.QueuePosition = &pos
		}
	}
	return rec
}

// Submission 是一次队列提交的结果
type Submission struct {
	RequestID string
	Raw       any
}
