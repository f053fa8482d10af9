package image

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/gateway"
	"github.com/BaSui01/mediaflow/media"
	"github.com/BaSui01/mediaflow/testutil"
	"github.com/BaSui01/mediaflow/testutil/fixtures"
	"github.com/BaSui01/mediaflow/testutil/mocks"
	"github.com/BaSui01/mediaflow/types"
)

var fixedNow = time.UnixMilli(1700000000000)

func newGenerator(t *testing.T, gw *mocks.MockGateway) *Generator {
	t.Helper()
	c, err := gateway.NewClient(gateway.ClientConfig{
		APIKey:       mocks.APIKey,
		BaseURL:      gw.BaseURL(),
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)
	g := NewGenerator(c, nil)
	g.now = func() time.Time { return fixedNow }
	return g
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

// =============================================================================
// 🧪 路由解析
// =============================================================================

func TestResolveRoute(t *testing.T) {
	tests := []struct {
		model    string
		hasInput bool
		want     media.Route
	}{
		{"", false, media.Route{Endpoint: "fal-ai/nano-banana-pro", Mode: media.ModeQueue}},
		{"auto", true, media.Route{Endpoint: "fal-ai/nano-banana-pro/edit", Mode: media.ModeQueue}},
		{"Gemini-Pro", false, media.Route{Endpoint: "fal-ai/nano-banana-pro", Mode: media.ModeQueue}},
		{"seedream", true, media.Route{Endpoint: "fal-ai/nano-banana-pro/edit", Mode: media.ModeQueue}},
		{"gpt-image", false, media.Route{Endpoint: "fal-ai/gpt-image-1.5", Mode: media.ModeQueue}},
		{"gpt-image-1.5", true, media.Route{Endpoint: "fal-ai/gpt-image-1.5", Mode: media.ModeQueue}},
		{"nano-banana-edit", false, media.Route{Endpoint: "fal-ai/nano-banana-pro/edit", Mode: media.ModeQueue}},
		{"flux", false, media.Route{Endpoint: "fal-ai/flux/dev", Mode: media.ModeRun}},
		{"flux/dev", true, media.Route{Endpoint: "fal-ai/nano-banana-pro/edit", Mode: media.ModeQueue}},
		{"fal-ai/flux/dev", false, media.Route{Endpoint: "fal-ai/flux/dev", Mode: media.ModeRun}},
		{"acme/flux/dev-lora", false, media.Route{Endpoint: "acme/flux/dev-lora", Mode: media.ModeRun}},
		{"fal-ai/recraft-v3", false, media.Route{Endpoint: "fal-ai/recraft-v3", Mode: media.ModeQueue}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveRoute(tt.model, tt.hasInput), "%s input=%v", tt.model, tt.hasInput)
	}
}

func TestNormalizeAspectRatio(t *testing.T) {
	assert.Equal(t, "16:9", NormalizeAspectRatio("16:9"))
	assert.Equal(t, "1:1", NormalizeAspectRatio("21:9"))
	assert.Equal(t, "1:1", NormalizeAspectRatio(""))
}

// =============================================================================
// 🧪 负载构造
// =============================================================================

func TestBuildPayload_Families(t *testing.T) {
	req := Request{Prompt: "a cat", AspectRatio: "16:9", NumImages: 2, OutputFormat: "JPEG"}

	gpt := BuildPayload("fal-ai/gpt-image-1.5", req, "https://cdn/x.png")
	assert.Equal(t, "1792x1024", gpt["image_size"])
	assert.Equal(t, []string{"https://cdn/x.png"}, gpt["image_urls"])
	assert.Equal(t, "high", gpt["input_fidelity"])
	assert.Equal(t, "jpeg", gpt["output_format"])
	assert.Equal(t, 2, gpt["num_images"])

	nano := BuildPayload("fal-ai/nano-banana-pro", req, "")
	assert.Equal(t, "16:9", nano["aspect_ratio"])
	assert.Equal(t, "1K", nano["resolution"])
	assert.NotContains(t, nano, "image_urls")

	flux := BuildPayload("fal-ai/flux/dev", req, "")
	assert.Equal(t, "landscape_16_9", flux["image_size"])
	assert.NotContains(t, flux, "aspect_ratio")

	other := BuildPayload("fal-ai/recraft-v3", Request{Prompt: "p", AspectRatio: "2:1"}, "https://cdn/in.png")
	assert.Equal(t, "1:1", other["aspect_ratio"])
	assert.Equal(t, "https://cdn/in.png", other["image_url"])
	assert.Equal(t, 1, other["num_images"])
	assert.Equal(t, "png", other["output_format"])
}

func TestBuildPayload_OptionalFields(t *testing.T) {
	seed := int64(42)
	scale := 3.5
	steps := 28
	p := BuildPayload("fal-ai/flux/dev", Request{
		Prompt:            "p",
		Seed:              &seed,
		GuidanceScale:     &scale,
		NumInferenceSteps: &steps,
	}, "")
	assert.Equal(t, int64(42), p["seed"])
	assert.Equal(t, 3.5, p["guidance_scale"])
	assert.Equal(t, 28, p["num_inference_steps"])
	assert.Equal(t, "square_hd", p["image_size"])

	p = BuildPayload("fal-ai/flux/dev", Request{Prompt: "p"}, "")
	assert.NotContains(t, p, "seed")
	assert.NotContains(t, p, "guidance_scale")
}

func TestImageSizes(t *testing.T) {
	for ar, want := range map[string]string{
		"1:1": "1024x1024", "4:3": "1536x1024", "3:4": "1024x1536", "9:16": "1024x1792", "5:4": "1024x1024",
	} {
		assert.Equal(t, want, gptImageSize(ar), ar)
	}
	for ar, want := range map[string]string{
		"4:3": "landscape_4_3", "3:4": "portrait_4_3", "9:16": "portrait_16_9", "1:1": "square_hd",
	} {
		assert.Equal(t, want, fluxImageSize(ar), ar)
	}
}

// =============================================================================
// 🧪 结果解析
// =============================================================================

func TestExtractEntries(t *testing.T) {
	entries := ExtractEntries(fixtures.ImagesResult("image/webp", "https://cdn/a", "https://cdn/b"))
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{URL: "https://cdn/a", ContentType: "image/webp"}, entries[0])

	entries = ExtractEntries(fixtures.NestedImagesResult("https://cdn/c.png"))
	require.Len(t, entries, 1)
	assert.Equal(t, "https://cdn/c.png", entries[0].URL)

	entries = ExtractEntries(fixtures.SingleImageResult("https://cdn/d.jpg"))
	require.Len(t, entries, 1)
	assert.Equal(t, "https://cdn/d.jpg", entries[0].URL)

	mixed := map[string]any{
		"images": []any{"", map[string]any{"url": ""}, 7, "https://cdn/e"},
		"data":   map[string]any{"image": map[string]any{"url": "https://cdn/f", "mime_type": "image/png"}},
	}
	entries = ExtractEntries(mixed)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://cdn/e", entries[0].URL)
	assert.Equal(t, "image/png", entries[1].ContentType)

	assert.Empty(t, ExtractEntries("just text"))
	assert.Empty(t, ExtractEntries(nil))
}

func TestDetectExtension(t *testing.T) {
	tests := []struct {
		entry Entry
		want  string
	}{
		{Entry{URL: "https://cdn/x.png", ContentType: "image/jpeg"}, "jpg"},
		{Entry{URL: "https://cdn/x", ContentType: "image/PNG"}, "png"},
		{Entry{URL: "https://cdn/x", ContentType: "image/webp"}, "webp"},
		{Entry{URL: "data:image/jpeg;base64,AAAA"}, "jpg"},
		{Entry{URL: "data:image/gif;base64,AAAA"}, "gif"},
		{Entry{URL: "https://cdn/path/img.WEBP?sig=1"}, "webp"},
		{Entry{URL: "https://cdn/path/img"}, "png"},
		{Entry{URL: "data:application/octet-stream;base64,AAAA"}, "png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectExtension(tt.entry, "png"), tt.entry.URL)
	}
}

// =============================================================================
// 🧪 生成流程
// =============================================================================

func TestGenerate_RunDownloadsImages(t *testing.T) {
	gw := mocks.NewMockGateway(t)
	a := gw.WithFile("a.png", fixtures.PNGBytes())
	b := gw.WithFile("b", []byte("jpeg-bytes"))
	gw.WithRun("fal-ai/flux/dev", mocks.JSON(map[string]any{
		"images": []any{
			map[string]any{"url": a, "content_type": "image/png"},
			map[string]any{"url": b, "content_type": "image/jpeg"},
		},
	}))

	dir := t.TempDir()
	res, err := newGenerator(t, gw).Generate(context.Background(), Request{Prompt: "cat", Model: "flux", NumImages: 2}, dir, gateway.WaitOptions{})
	require.NoError(t, err)

	assert.Equal(t, media.Route{Endpoint: "fal-ai/flux/dev", Mode: media.ModeRun}, res.Route)
	require.Len(t, res.Files, 2)
	assert.Equal(t, filepath.Join(dir, "generated_image_1700000000000_1.png"), res.Files[0])
	assert.Equal(t, filepath.Join(dir, "generated_image_1700000000000_2.jpg"), res.Files[1])
	assert.Equal(t, fixtures.PNGBytes(), testutil.ReadFile(t, res.Files[0]))
	assert.Equal(t, "jpeg-bytes", string(testutil.ReadFile(t, res.Files[1])))

	runs := gw.CallsOf("run")
	require.Len(t, runs, 1)
	body := decodeBody(t, runs[0].Body)
	assert.Equal(t, "cat", body["prompt"])
	assert.Equal(t, "square_hd", body["image_size"])
}

func TestGenerate_QueueWithLocalInputAndDataURL(t *testing.T) {
	gw := mocks.NewMockGateway(t).
		WithUpload(mocks.JSON(map[string]any{"url": "https://cdn.example/in.png"})).
		WithSubmit("fal-ai/nano-banana-pro/edit", "job-1").
		WithStatuses("job-1", "IN_QUEUE", "COMPLETED").
		WithResult("job-1", mocks.JSON(map[string]any{
			"images": []any{gateway.EncodeDataURL("image/png", fixtures.PNGBytes())},
		}))

	input := testutil.WriteTempFile(t, "in.png", fixtures.PNGBytes())
	dir := filepath.Join(t.TempDir(), "out")

	res, err := newGenerator(t, gw).Generate(context.Background(), Request{Prompt: "edit it", InputImage: input}, dir, gateway.WaitOptions{})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, filepath.Join(dir, "generated_image_1700000000000.png"), res.Files[0])
	assert.Equal(t, fixtures.PNGBytes(), testutil.ReadFile(t, res.Files[0]))

	uploads := gw.CallsOf("upload")
	require.Len(t, uploads, 1)
	submits := gw.CallsOf("submit")
	require.Len(t, submits, 1)
	body := decodeBody(t, submits[0].Body)
	assert.Equal(t, []any{"https://cdn.example/in.png"}, body["image_urls"])
	assert.Equal(t, "1K", body["resolution"])
}

func TestGenerate_MissingInputFile(t *testing.T) {
	gw := mocks.NewMockGateway(t)
	_, err := newGenerator(t, gw).Generate(context.Background(),
		Request{Prompt: "p", InputImage: filepath.Join(t.TempDir(), "nope.png")}, t.TempDir(), gateway.WaitOptions{})
	assert.True(t, types.IsCode(err, types.ErrFileNotFound))
	assert.Empty(t, gw.Calls())
}

func TestGenerate_NoImages(t *testing.T) {
	gw := mocks.NewMockGateway(t).WithRun("fal-ai/flux/dev", mocks.JSON(map[string]any{"images": []any{}}))
	_, err := newGenerator(t, gw).Generate(context.Background(), Request{Prompt: "p", Model: "flux"}, t.TempDir(), gateway.WaitOptions{})
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrInvalidResponse, e.Code)
	assert.Equal(t, "No images found in model response", e.Message)
}

func TestGenerate_PartialAndTotalSaveFailure(t *testing.T) {
	gw := mocks.NewMockGateway(t)
	ok := gw.WithFile("ok.png", []byte("x"))
	missing := gw.ServerURL() + "/blobs/missing.png"

	gw.WithRun("fal-ai/flux/dev", mocks.JSON(map[string]any{"images": []any{missing, ok}}))
	res, err := newGenerator(t, gw).Generate(context.Background(), Request{Prompt: "p", Model: "flux"}, t.TempDir(), gateway.WaitOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Files, 1)
	assert.Equal(t, 1, res.Skipped)

	gw2 := mocks.NewMockGateway(t)
	gw2.WithRun("fal-ai/flux/dev", mocks.JSON(map[string]any{"images": []any{gw2.ServerURL() + "/blobs/gone.png"}}))
	dir := t.TempDir()
	_, err = newGenerator(t, gw2).Generate(context.Background(), Request{Prompt: "p", Model: "flux"}, dir, gateway.WaitOptions{})
	e, isErr := types.AsError(err)
	require.True(t, isErr)
	assert.Equal(t, types.ErrIO, e.Code)
	assert.Equal(t, "No images could be saved from response", e.Message)

	left, _ := os.ReadDir(dir)
	assert.Empty(t, left)
}

func TestGenerate_JobFailed(t *testing.T) {
	gw := mocks.NewMockGateway(t).
		WithSubmit("fal-ai/gpt-image-1.5", "job-2").
		WithStatusResponses("job-2", mocks.JSON(map[string]any{"status": "FAILED", "error": "blocked"}))

	_, err := newGenerator(t, gw).Generate(context.Background(), Request{Prompt: "p", Model: "gpt-image"}, t.TempDir(), gateway.WaitOptions{})
	assert.True(t, types.IsCode(err, types.ErrJobFailed))
	assert.Empty(t, gw.CallsOf("result"))
}
