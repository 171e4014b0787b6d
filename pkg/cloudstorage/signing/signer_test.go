package signing

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

var (
	testCreds = Credentials{Key: "AKIDEXAMPLE", Secret: "secret", Region: "us-east-1"}
	testNow   = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSigningKey(t *testing.T) {
	// Derivation example published in the AWS Signature Version 4 documentation.
	key := signingKey("wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY", "20120215", "us-east-1", "iam")
	assert.Equal(t, "f4780e2d9f65fa895f9c67b32ce1baf0b0d8a43505a000a1a9e090d414db404d", hex.EncodeToString(key))
}

func TestSignPolicy(t *testing.T) {
	signer := New(WithClock(fixedClock(testNow)))

	policy, err := BuildUploadPolicy("photos", "image.png", cloudstorage.UploadURLOptions{
		BlobAttributes: cloudstorage.BlobAttributes{
			ContentType: "image/png",
			Metadata:    map[string]string{"owner": "alice"},
		},
		ContentLength: &cloudstorage.LengthRange{Min: 1, Max: 1024},
	})
	require.NoError(t, err)

	sig, err := signer.SignPolicy(policy, testCreds)
	require.NoError(t, err)

	assert.Equal(t, Algorithm, sig.Algorithm)
	assert.Equal(t, "AKIDEXAMPLE/20240102/us-east-1/s3/aws4_request", sig.Credential)
	assert.Equal(t, "20240102T030405Z", sig.Date)
	assert.Equal(t, testNow.Add(time.Hour), sig.Expiration)
	assert.Equal(t, "a54c5dc758a09a53a6e066ebfb3d91d09f1d4851b50ec983d84c9c6247b381ef", sig.Value)

	doc, err := DecodeDocument(sig.Policy)
	require.NoError(t, err)
	assert.True(t, doc.Expiration.Equal(sig.Expiration))
	assert.Equal(t, []Condition{
		Exact(FieldBucket, "photos"),
		Exact(FieldKey, "image.png"),
		Exact(FieldContentType, "image/png"),
		Exact("x-amz-meta-owner", "alice"),
		Range(1, 1024),
		Exact(FieldAlgorithm, Algorithm),
		Exact(FieldCredential, sig.Credential),
		Exact(FieldDate, sig.Date),
	}, doc.Conditions)
}

func TestSignPolicyDeterministic(t *testing.T) {
	signer := New(WithClock(fixedClock(testNow)))
	opts := cloudstorage.UploadURLOptions{
		BlobAttributes: cloudstorage.BlobAttributes{
			Metadata: map[string]string{"b": "2", "a": "1", "c": "3"},
		},
	}

	var first string
	for i := 0; i < 10; i++ {
		policy, err := BuildUploadPolicy("photos", "image.png", opts)
		require.NoError(t, err)
		sig, err := signer.SignPolicy(policy, testCreds)
		require.NoError(t, err)
		if i == 0 {
			first = sig.Policy
			continue
		}
		assert.Equal(t, first, sig.Policy)
	}
}

func TestSignPolicyNegativeExpiry(t *testing.T) {
	signer := New(WithClock(fixedClock(testNow)))

	policy, err := BuildUploadPolicy("photos", "image.png", cloudstorage.UploadURLOptions{
		Expires: cloudstorage.Expires(-10 * time.Second),
	})
	require.NoError(t, err)

	sig, err := signer.SignPolicy(policy, testCreds)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(-10*time.Second), sig.Expiration)
	assert.Equal(t, StateExpired, signer.State(sig.Expiration))
}

func TestSignPolicyErrors(t *testing.T) {
	signer := New(WithClock(fixedClock(testNow)))
	policy, err := BuildUploadPolicy("photos", "image.png", cloudstorage.UploadURLOptions{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		creds Credentials
		is    error
	}{
		{"missing key", Credentials{Secret: "s", Region: "us-east-1"}, cloudstorage.ErrCredentials},
		{"missing secret", Credentials{Key: "k", Region: "us-east-1"}, cloudstorage.ErrCredentials},
		{"slash in key", Credentials{Key: "a/b", Secret: "s", Region: "us-east-1"}, cloudstorage.ErrCredentials},
		{"missing region", Credentials{Key: "k", Secret: "s"}, cloudstorage.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := signer.SignPolicy(policy, tt.creds)
			assert.Nil(t, sig)
			assert.ErrorIs(t, err, tt.is)
		})
	}

	_, err = signer.SignPolicy(nil, testCreds)
	assert.ErrorIs(t, err, cloudstorage.ErrValidation)
}

func TestCredentialsString(t *testing.T) {
	assert.NotContains(t, testCreds.String(), testCreds.Secret)
}

func TestParseCredential(t *testing.T) {
	scope, err := parseCredential("AKID/20240102/eu-west-1/s3/aws4_request")
	require.NoError(t, err)
	assert.Equal(t, credentialScope{AccessKey: "AKID", Date: "20240102", Region: "eu-west-1", Service: "s3"}, scope)

	for _, bad := range []string{"", "AKID", "AKID/20240102/eu-west-1/s3/other", "/20240102/eu-west-1/s3/aws4_request", "AKID/2024/eu-west-1/s3/aws4_request"} {
		_, err := parseCredential(bad)
		assert.ErrorIs(t, err, ErrMalformedCredential, bad)
	}
}
