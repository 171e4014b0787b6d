package cloudstorage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

func TestParseUploadURLOptions(t *testing.T) {
	opts, err := cloudstorage.ParseUploadURLOptions(map[string]any{
		"content_type":         "image/png",
		"content_disposition":  "attachment",
		"cache_control":        "no-cache",
		"meta_data":            map[string]any{"owner": "alice"},
		"expires":              float64(-10),
		"content_length_range": []any{float64(1), "2048"},
	})
	require.NoError(t, err)

	assert.Equal(t, "image/png", opts.ContentType)
	assert.Equal(t, "attachment", opts.ContentDisposition)
	assert.Equal(t, "no-cache", opts.CacheControl)
	assert.Equal(t, map[string]string{"owner": "alice"}, opts.Metadata)
	require.NotNil(t, opts.Expires)
	assert.Equal(t, -10*time.Second, *opts.Expires)
	assert.Equal(t, &cloudstorage.LengthRange{Min: 1, Max: 2048}, opts.ContentLength)
}

func TestParseUploadURLOptionsDefaults(t *testing.T) {
	opts, err := cloudstorage.ParseUploadURLOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, opts.Expires)
	assert.Equal(t, cloudstorage.DefaultExpires, cloudstorage.ResolveExpires(opts.Expires, cloudstorage.DefaultExpires))
}

func TestParseUploadURLOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"unknown key", map[string]any{"acl": "public-read"}},
		{"non-string content type", map[string]any{"content_type": 1}},
		{"non-map metadata", map[string]any{"meta_data": "owner=alice"}},
		{"non-string metadata value", map[string]any{"meta_data": map[string]any{"n": 1}}},
		{"invalid metadata key", map[string]any{"meta_data": map[string]string{"a b": "c"}}},
		{"fractional expires", map[string]any{"expires": 1.5}},
		{"text expires", map[string]any{"expires": "soon"}},
		{"overflowing expires", map[string]any{"expires": float64(10000000000)}},
		{"wrapping expires", map[string]any{"expires": int64(20000000000)}},
		{"underflowing expires", map[string]any{"expires": "-10000000000"}},
		{"metadata keys differing in case", map[string]any{"meta_data": map[string]string{"Owner": "a", "owner": "b"}}},
		{"inverted range", map[string]any{"content_length_range": []int64{10, 1}}},
		{"short range", map[string]any{"content_length_range": []any{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cloudstorage.ParseUploadURLOptions(tt.raw)
			assert.ErrorIs(t, err, cloudstorage.ErrValidation)
		})
	}
}

func TestParseDownloadURLOptions(t *testing.T) {
	opts, err := cloudstorage.ParseDownloadURLOptions(map[string]any{
		"content_disposition": "attachment; filename=report.pdf",
		"expires":             3600,
	})
	require.NoError(t, err)
	assert.Equal(t, "attachment; filename=report.pdf", opts.ContentDisposition)
	assert.Equal(t, time.Hour, *opts.Expires)

	_, err = cloudstorage.ParseDownloadURLOptions(map[string]any{"content_type": "text/plain"})
	assert.ErrorIs(t, err, cloudstorage.ErrValidation)

	_, err = cloudstorage.ParseDownloadURLOptions(map[string]any{"expires": float64(10000000000)})
	assert.ErrorIs(t, err, cloudstorage.ErrValidation)

	opts, err = cloudstorage.ParseDownloadURLOptions(map[string]any{"expires": float64(9223372036)})
	require.NoError(t, err)
	assert.Equal(t, 9223372036*time.Second, *opts.Expires)
}

func TestParseUploadURLOptionsLowercasesMetadata(t *testing.T) {
	opts, err := cloudstorage.ParseUploadURLOptions(map[string]any{
		"meta_data": map[string]any{"Owner-Id": "1"},
	})
	require.NoError(t, err)
	attrs, err := opts.Normalize()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"owner-id": "1"}, attrs.Metadata)
}

func TestBlobAttributesClone(t *testing.T) {
	attrs := cloudstorage.BlobAttributes{Metadata: map[string]string{"k": "v"}}
	clone := attrs.Clone()
	clone.Metadata["k"] = "changed"
	assert.Equal(t, "v", attrs.Metadata["k"])
}
