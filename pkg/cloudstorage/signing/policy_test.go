package signing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

func TestBuildUploadPolicy(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := BuildUploadPolicy("photos", "image.png", cloudstorage.UploadURLOptions{})
		require.NoError(t, err)
		assert.Equal(t, cloudstorage.DefaultExpires, p.ExpiresIn)
		assert.Equal(t, []Condition{Exact(FieldBucket, "photos"), Exact(FieldKey, "image.png")}, p.Conditions())
	})

	t.Run("all headers in canonical order", func(t *testing.T) {
		p, err := BuildUploadPolicy("photos", "image.png", cloudstorage.UploadURLOptions{
			BlobAttributes: cloudstorage.BlobAttributes{
				ContentType:        "image/png",
				ContentDisposition: "attachment",
				CacheControl:       "no-cache",
				Metadata:           map[string]string{"zeta": "z", "alpha": "a"},
			},
			Expires: cloudstorage.Expires(0),
		})
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), p.ExpiresIn)
		assert.Equal(t, []Condition{
			Exact(FieldBucket, "photos"),
			Exact(FieldKey, "image.png"),
			Exact(FieldCacheControl, "no-cache"),
			Exact(FieldContentDisposition, "attachment"),
			Exact(FieldContentType, "image/png"),
			Exact("x-amz-meta-alpha", "a"),
			Exact("x-amz-meta-zeta", "z"),
		}, p.Conditions())
	})

	t.Run("filename placeholder", func(t *testing.T) {
		p, err := BuildUploadPolicy("photos", "uploads/${filename}", cloudstorage.UploadURLOptions{})
		require.NoError(t, err)
		assert.Equal(t, Prefix(FieldKey, "uploads/"), p.Conditions()[1])
	})

	t.Run("metadata is copied", func(t *testing.T) {
		meta := map[string]string{"owner": "alice"}
		p, err := BuildUploadPolicy("photos", "image.png", cloudstorage.UploadURLOptions{
			BlobAttributes: cloudstorage.BlobAttributes{Metadata: meta},
		})
		require.NoError(t, err)
		meta["owner"] = "mallory"
		assert.Equal(t, "alice", p.Metadata["owner"])
	})

	t.Run("validation", func(t *testing.T) {
		_, err := BuildUploadPolicy("", "image.png", cloudstorage.UploadURLOptions{})
		assert.ErrorIs(t, err, cloudstorage.ErrValidation)

		_, err = BuildUploadPolicy("photos", "", cloudstorage.UploadURLOptions{})
		assert.ErrorIs(t, err, cloudstorage.ErrValidation)

		_, err = BuildUploadPolicy("photos", "image.png", cloudstorage.UploadURLOptions{
			ContentLength: &cloudstorage.LengthRange{Min: 10, Max: 1},
		})
		assert.ErrorIs(t, err, cloudstorage.ErrValidation)

		_, err = BuildUploadPolicy("photos", "image.png", cloudstorage.UploadURLOptions{
			BlobAttributes: cloudstorage.BlobAttributes{Metadata: map[string]string{"bad key": "v"}},
		})
		assert.ErrorIs(t, err, cloudstorage.ErrValidation)
	})
}

func TestConditionJSON(t *testing.T) {
	tests := []struct {
		cond Condition
		want string
	}{
		{Exact(FieldBucket, "photos"), `{"bucket":"photos"}`},
		{Prefix(FieldKey, "uploads/"), `["starts-with","$key","uploads/"]`},
		{Range(1, 10), `["content-length-range",1,10]`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			raw, err := json.Marshal(tt.cond)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))

			var got Condition
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, tt.cond, got)
		})
	}

	var c Condition
	assert.NoError(t, json.Unmarshal([]byte(`["eq","$Content-Type","image/png"]`), &c))
	assert.Equal(t, Exact(FieldContentType, "image/png"), c)

	for _, bad := range []string{`{"a":"1","b":"2"}`, `["between","$key","x"]`, `["eq","key","x"]`, `"x"`} {
		assert.ErrorIs(t, json.Unmarshal([]byte(bad), &c), ErrMalformedPolicy, bad)
	}

	_, err := json.Marshal(Condition{Match: "nope"})
	assert.Error(t, err)
}

func TestDecodeDocument(t *testing.T) {
	doc := Document{
		Expiration: testNow,
		Conditions: []Condition{Exact(FieldBucket, "photos")},
	}
	encoded, err := doc.Encode()
	require.NoError(t, err)

	decoded, err := DecodeDocument(encoded)
	require.NoError(t, err)
	assert.True(t, testNow.Equal(decoded.Expiration))
	assert.Equal(t, doc.Conditions, decoded.Conditions)

	_, err = DecodeDocument("!!not base64")
	assert.ErrorIs(t, err, ErrMalformedPolicy)

	_, err = DecodeDocument("e30=") // {}
	assert.ErrorIs(t, err, ErrMalformedPolicy)
}

func TestStateAt(t *testing.T) {
	assert.Equal(t, StateValid, StateAt(testNow.Add(time.Second), testNow))
	assert.Equal(t, StateExpired, StateAt(testNow, testNow))
	assert.Equal(t, StateExpired, StateAt(testNow.Add(-time.Second), testNow))
	assert.Equal(t, "valid", StateValid.String())
	assert.Equal(t, "expired", StateExpired.String())
}
