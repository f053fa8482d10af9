package video

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/testutil"
	"github.com/BaSui01/mediaflow/testutil/fixtures"
	"github.com/BaSui01/mediaflow/testutil/mocks"
	"github.com/BaSui01/mediaflow/types"
)

func newGenerator(t *testing.T, gw *mocks.MockGateway) *Generator {
	t.Helper()
	c, err := gateway.NewClient(gateway.ClientConfig{
		APIKey:       mocks.APIKey,
		BaseURL:      gw.BaseURL(),
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)
	g := NewGenerator(c, nil)
	g.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return g
}

func TestResolveEndpoint(t *testing.T) {
	assert.Equal(t, "fal-ai/veo3.1", ResolveEndpoint("", false))
	assert.Equal(t, "fal-ai/veo3.1/image-to-video", ResolveEndpoint("veo3.1", true))
	assert.Equal(t, "fal-ai/sora-2/text-to-video/pro", ResolveEndpoint("Sora-2-Pro", false))
	assert.Equal(t, "fal-ai/sora-2/image-to-video/pro", ResolveEndpoint("sora-2-pro", true))
	assert.Equal(t, "fal-ai/kling-video/v2", ResolveEndpoint("fal-ai/kling-video/v2", true))
}

func TestBuildPayload(t *testing.T) {
	p := BuildPayload(Request{Prompt: "waves"}, "")
	assert.Equal(t, map[string]any{"prompt": "waves", "aspect_ratio": "16:9", "duration": "8s"}, p)

	p = BuildPayload(Request{Prompt: "w", AspectRatio: "9:16", Duration: "4", Resolution: "1080p"}, "https://cdn/in.png")
	assert.Equal(t, "9:16", p["aspect_ratio"])
	assert.Equal(t, "4s", p["duration"])
	assert.Equal(t, "1080p", p["resolution"])
	assert.Equal(t, "https://cdn/in.png", p["image_url"])
}

func TestNormalizeDuration(t *testing.T) {
	assert.Equal(t, "8s", NormalizeDuration(""))
	assert.Equal(t, "6s", NormalizeDuration(" 6S "))
	assert.Equal(t, "10s", NormalizeDuration("10"))
}

func TestExtractVideoURL(t *testing.T) {
	tests := []struct {
		payload any
		want    string
	}{
		{fixtures.VideoResult("https://cdn/a.mp4"), "https://cdn/a.mp4"},
		{map[string]any{"video": "https://cdn/b.mp4"}, "https://cdn/b.mp4"},
		{map[string]any{"videos": []any{map[string]any{"url": "https://cdn/c.mp4"}}}, "https://cdn/c.mp4"},
		{map[string]any{"videos": []any{"https://cdn/d.mp4"}}, "https://cdn/d.mp4"},
		{map[string]any{"data": map[string]any{"video": map[string]any{"url": "https://cdn/e.mp4"}}}, "https://cdn/e.mp4"},
	}
	for _, tt := range tests {
		got, ok := ExtractVideoURL(tt.payload)
		require.True(t, ok, tt.want)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []any{nil, "x", map[string]any{"videos": []any{}}, map[string]any{"video": map[string]any{}}} {
		_, ok := ExtractVideoURL(bad)
		assert.False(t, ok)
	}
}

func TestGenerate(t *testing.T) {
	gw := mocks.NewMockGateway(t)
	u := gw.WithFile("out.mp4", fixtures.Payload(64<<10))
	gw.WithSubmit("fal-ai/veo3.1", "v1").
		WithStatuses("v1", "IN_QUEUE", "IN_PROGRESS", "COMPLETED").
		WithResult("v1", mocks.JSON(fixtures.VideoResult(u)))

	dir := t.TempDir()
	var seen []gateway.JobStatus
	res, err := newGenerator(t, gw).Generate(context.Background(), Request{Prompt: "a cat"}, dir, gateway.WaitOptions{
		Observer: gateway.ObserverFunc(func(c gateway.StatusChange) { seen = append(seen, c.Status) }),
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "generated_video_1700000000123.mp4"), res.File)
	assert.Equal(t, u, res.URL)
	assert.Equal(t, fixtures.Payload(64<<10), testutil.ReadFile(t, res.File))
	assert.Len(t, seen, 3)

	var body map[string]any
	require.NoError(t, json.Unmarshal(gw.CallsOf("submit")[0].Body, &body))
	assert.Equal(t, "8s", body["duration"])
}

func TestGenerate_ImageToVideo(t *testing.T) {
	gw := mocks.NewMockGateway(t)
	u := gw.WithFile("v.mp4", []byte("mp4"))
	gw.WithUpload(mocks.JSON(map[string]any{"url": "https://cdn/in.png"})).
		WithSubmit("fal-ai/sora-2/image-to-video/pro", "v2").
		WithStatuses("v2", "COMPLETED").
		WithResult("v2", mocks.JSON(map[string]any{"videos": []any{u}}))

	in := testutil.WriteTempFile(t, "in.png", fixtures.PNGBytes())
	res, err := newGenerator(t, gw).Generate(context.Background(), Request{Prompt: "p", Model: "sora-2-pro", InputImage: in}, t.TempDir(), gateway.WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fal-ai/sora-2/image-to-video/pro", res.Endpoint)
	require.Len(t, gw.CallsOf("upload"), 1)
}

func TestGenerate_NoVideo(t *testing.T) {
	gw := mocks.NewMockGateway(t).
		WithSubmit("fal-ai/veo3.1", "v3").
		WithStatuses("v3", "COMPLETED").
		WithResult("v3", mocks.JSON(map[string]any{"status": "done"}))

	_, err := newGenerator(t, gw).Generate(context.Background(), Request{Prompt: "p"}, t.TempDir(), gateway.WaitOptions{})
	assert.True(t, types.IsCode(err, types.ErrInvalidResponse))
}

func TestGenerate_DownloadFails(t *testing.T) {
	gw := mocks.NewMockGateway(t)
	gw.WithSubmit("fal-ai/veo3.1", "v4").
		WithStatuses("v4", "COMPLETED").
		WithResult("v4", mocks.JSON(fixtures.VideoResult(gw.ServerURL()+"/blobs/missing.mp4")))

	_, err := newGenerator(t, gw).Generate(context.Background(), Request{Prompt: "p"}, t.TempDir(), gateway.WaitOptions{})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUpstreamError))
	assert.Contains(t, err.Error(), "save video")
}
