package gateway

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/mediaflow/testutil"
	"github.com/BaSui01/mediaflow/testutil/fixtures"
	"github.com/BaSui01/mediaflow/types"
)

func TestIsRemoteURL(t *testing.T) {
	tests := map[string]bool{
		"https://x.example/a.png": true,
		"http://x":                true,
		"HTTPS://X.EXAMPLE":       true,
		"ftp://x":                 false,
		"./local.png":             false,
		"data:image/png;base64,":  false,
		" https://x":              false,
		"":                        false,
	}
	for in, want := range tests {
		assert.Equal(t, want, IsRemoteURL(in), in)
	}
}

func TestIsDataURL(t *testing.T) {
	assert.True(t, IsDataURL("data:image/png;base64,AAAA"))
	assert.True(t, IsDataURL("DATA:,hi"))
	assert.False(t, IsDataURL("dat"))
	assert.False(t, IsDataURL("https://x"))
}

func TestDataURLMimeType(t *testing.T) {
	assert.Equal(t, "image/jpeg", DataURLMimeType("/a/b.JPEG"))
	assert.Equal(t, "image/gif", DataURLMimeType("x.gif"))
	assert.Equal(t, "application/octet-stream", DataURLMimeType("x.bmp"))
}

func TestFileToDataURL(t *testing.T) {
	data := fixtures.PNGBytes()
	path := testutil.WriteTempFile(t, "pixel.png", data)

	u, err := FileToDataURL(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "data:image/png;base64,"))

	mimeType, decoded, err := DecodeDataURL(u)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, data, decoded)
}

func TestFileToDataURL_NotFound(t *testing.T) {
	_, err := FileToDataURL(filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, types.IsCode(err, types.ErrFileNotFound))
}

func TestDecodeDataURL(t *testing.T) {
	tests := []struct {
		in       string
		wantMime string
		wantData string
	}{
		{"data:,hello%20world", "text/plain", "hello world"},
		{"data:;charset=utf-8,hi", "text/plain;charset=utf-8", "hi"},
		{"data:image/png;base64,aGk=", "image/png", "hi"},
		{"data:image/png;base64,aGk", "image/png", "hi"},
		{"data:text/plain;charset=utf-8;base64,aGk=", "text/plain;charset=utf-8", "hi"},
	}
	for _, tt := range tests {
		mimeType, data, err := DecodeDataURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.wantMime, mimeType, tt.in)
		assert.Equal(t, tt.wantData, string(data), tt.in)
	}

	for _, bad := range []string{"https://x", "data:image/png;base64", "data:image/png;base64,@@@"} {
		_, _, err := DecodeDataURL(bad)
		assert.True(t, types.IsCode(err, types.ErrInvalidRequest), bad)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(rt, "data")
		mimeType := rapid.SampledFrom([]string{"image/png", "image/jpeg", "application/octet-stream"}).Draw(rt, "mime")

		gotMime, gotData, err := DecodeDataURL(EncodeDataURL(mimeType, data))
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if gotMime != mimeType {
			rt.Fatalf("mime: got %q want %q", gotMime, mimeType)
		}
		if string(gotData) != string(data) {
			rt.Fatalf("data mismatch: got %x want %x", gotData, data)
		}
	})
}
