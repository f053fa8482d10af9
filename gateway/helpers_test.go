package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/testutil/mocks"
)

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()

	c, err := NewClient(ClientConfig{
		APIKey:       mocks.APIKey,
		BaseURL:      baseURL,
		Timeout:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}, opts...)
	require.NoError(t, err)
	return c
}

// recordingObserver 记录所有状态变化
type recordingObserver struct {
	mu      sync.Mutex
	changes []StatusChange
}

func (o *recordingObserver) OnStatusChange(change StatusChange) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, change)
}

func (o *recordingObserver) statuses() []JobStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]JobStatus, 0, len(o.changes))
	for _, c := range o.changes {
		out = append(out, c.Status)
	}
	return out
}

// recordingRecorder 统计指标事件
type recordingRecorder struct {
	mu        sync.Mutex
	requests  []string
	changes   []string
	terminals []string
	transfers map[string]int64
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{transfers: make(map[string]int64)}
}

func (r *recordingRecorder) RecordRequest(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, method+" "+route)
}

func (r *recordingRecorder) RecordStatusChange(_, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, status)
}

func (r *recordingRecorder) RecordTerminal(_, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminals = append(r.terminals, outcome)
}

func (r *recordingRecorder) RecordTransfer(direction string, bytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[direction] += bytes
}
