package signing

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

// Query parameters of a presigned download URL.
const (
	QueryAlgorithm          = "X-Amz-Algorithm"
	QueryCredential         = "X-Amz-Credential"
	QueryDate               = "X-Amz-Date"
	QueryExpires            = "X-Amz-Expires"
	QuerySignedHeaders      = "X-Amz-SignedHeaders"
	QuerySignature          = "X-Amz-Signature"
	QueryContentDisposition = "response-content-disposition"
)

// UnsignedPayload is the payload hash of presigned requests.
const UnsignedPayload = "UNSIGNED-PAYLOAD"

// MaxPresignExpires is the longest lifetime S3 accepts for a presigned URL.
const MaxPresignExpires = 7 * 24 * time.Hour

// DownloadRequest describes a presigned GET.
type DownloadRequest struct {
	// ObjectURL is the unsigned object location, typically built with ObjectURL.
	ObjectURL string

	// ContentDisposition, when set, is returned by the provider as the
	// Content-Disposition header of the response.
	ContentDisposition string

	// ExpiresIn is added to the signing time. Non-positive values yield a URL
	// that is already expired.
	ExpiresIn time.Duration
}

// PresignDownload returns a query-signed GET URL and its expiration.
//
// X-Amz-Expires must be positive, so a non-positive lifetime is expressed by
// back-dating the signing time: X-Amz-Date + X-Amz-Expires always equals
// now + ExpiresIn.
func (s *Signer) PresignDownload(ctx context.Context, req DownloadRequest, creds Credentials) (string, time.Time, error) {
	if err := creds.Validate(); err != nil {
		return "", time.Time{}, err
	}
	u, err := parseEndpoint(req.ObjectURL)
	if err != nil {
		return "", time.Time{}, err
	}
	if req.ExpiresIn > MaxPresignExpires {
		return "", time.Time{}, cloudstorage.NewValidationError(cloudstorage.OptionExpires, "must not exceed %s", MaxPresignExpires)
	}

	now := s.now()
	seconds := int64(req.ExpiresIn / time.Second)
	headerExpires := max(seconds, 1)
	signingTime := now.Add(time.Duration(seconds-headerExpires) * time.Second)

	q := u.Query()
	if req.ContentDisposition != "" {
		q.Set(QueryContentDisposition, req.ContentDisposition)
	}
	q.Set(QueryExpires, strconv.FormatInt(headerExpires, 10))
	u.RawQuery = q.Encode()

	signed, err := s.presign(ctx, u.String(), creds.Key, creds.Secret, creds.Region, signingTime)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, now.Add(time.Duration(seconds) * time.Second), nil
}

func (s *Signer) presign(ctx context.Context, rawURL, key, secret, region string, signingTime time.Time) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", cloudstorage.NewValidationError("url", "%v", err)
	}
	signed, _, err := s.v4.PresignHTTP(ctx, aws.Credentials{
		AccessKeyID:     key,
		SecretAccessKey: secret,
	}, httpReq, UnsignedPayload, s.service, region, signingTime)
	if err != nil {
		return "", err
	}
	return signed, nil
}
