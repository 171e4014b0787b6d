package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

func TestAssembleFormPost(t *testing.T) {
	signer := New(WithClock(fixedClock(testNow)))
	policy, err := BuildUploadPolicy("photos", "image.png", cloudstorage.UploadURLOptions{
		BlobAttributes: cloudstorage.BlobAttributes{
			ContentType:        "image/png",
			ContentDisposition: "inline",
			CacheControl:       "max-age=60",
			Metadata:           map[string]string{"owner": "alice"},
		},
	})
	require.NoError(t, err)
	sig, err := signer.SignPolicy(policy, testCreds)
	require.NoError(t, err)

	post, err := AssembleFormPost("https://photos.s3.us-east-1.amazonaws.com/", policy, sig)
	require.NoError(t, err)

	assert.Equal(t, "https://photos.s3.us-east-1.amazonaws.com/", post.URL)
	assert.Equal(t, sig.Expiration, post.Expiration)
	assert.Equal(t, map[string]string{
		FieldKey:                "image.png",
		FieldPolicy:             sig.Policy,
		FieldAlgorithm:          Algorithm,
		FieldCredential:         sig.Credential,
		FieldDate:               sig.Date,
		FieldSignature:          sig.Value,
		FieldContentType:        "image/png",
		FieldContentDisposition: "inline",
		FieldCacheControl:       "max-age=60",
		"x-amz-meta-owner":      "alice",
	}, post.Fields)

	t.Run("invalid endpoint", func(t *testing.T) {
		for _, endpoint := range []string{"", "ftp://host/", "https:///path", "://bad"} {
			_, err := AssembleFormPost(endpoint, policy, sig)
			assert.ErrorIs(t, err, cloudstorage.ErrValidation, endpoint)
		}
	})

	t.Run("unsigned", func(t *testing.T) {
		_, err := AssembleFormPost("https://example.com/", policy, nil)
		assert.ErrorIs(t, err, cloudstorage.ErrValidation)
	})
}

func TestObjectURL(t *testing.T) {
	tests := []struct {
		endpoint string
		key      string
		want     string
	}{
		{"https://photos.s3.us-east-1.amazonaws.com", "image.png", "https://photos.s3.us-east-1.amazonaws.com/image.png"},
		{"https://photos.s3.us-east-1.amazonaws.com/", "a/b c.png", "https://photos.s3.us-east-1.amazonaws.com/a/b%20c.png"},
		{"http://localhost:9000/photos", "x+y=z", "http://localhost:9000/photos/x%2By%3Dz"},
		{"http://localhost:9000/photos/", "ünï", "http://localhost:9000/photos/%C3%BCn%C3%AF"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ObjectURL(tt.endpoint, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEscapeKey(t *testing.T) {
	assert.Equal(t, "a-b_c.d~e/f", EscapeKey("a-b_c.d~e/f"))
	assert.Equal(t, "%24%7Bfilename%7D", EscapeKey("${filename}"))
}
