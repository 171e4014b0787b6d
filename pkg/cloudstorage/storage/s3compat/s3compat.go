// Package s3compat holds the pieces shared by drivers that speak the S3
// protocol: bucket addressing, descriptor signing and error code mapping.
package s3compat

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/signing"
)

// Endpoint addresses buckets on an S3 compatible service.
type Endpoint struct {
	base      *url.URL
	pathStyle bool
}

// AWSEndpoint returns the regional Amazon S3 endpoint using virtual-hosted addressing.
func AWSEndpoint(region string) Endpoint {
	return Endpoint{base: &url.URL{Scheme: "https", Host: "s3." + region + ".amazonaws.com"}}
}

// NewEndpoint parses a custom endpoint such as http://localhost:9000. A bare
// host:port is accepted and gets https, or http when secure is false.
func NewEndpoint(raw string, secure, pathStyle bool) (Endpoint, error) {
	if !strings.Contains(raw, "://") {
		scheme := "https"
		if !secure {
			scheme = "http"
		}
		raw = scheme + "://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Endpoint{}, cloudstorage.NewValidationError("endpoint", "invalid endpoint %q", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	return Endpoint{base: u, pathStyle: pathStyle}, nil
}

// Host returns host[:port] of the endpoint.
func (e Endpoint) Host() string {
	return e.base.Host
}

// Secure reports whether the endpoint uses TLS.
func (e Endpoint) Secure() bool {
	return e.base.Scheme == "https"
}

// BucketURL returns the URL of bucket with no trailing slash. Bucket names
// containing dots fall back to path-style addressing because they break
// the wildcard TLS certificate of virtual-hosted buckets.
func (e Endpoint) BucketURL(bucket string) string {
	u := *e.base
	if e.pathStyle || strings.Contains(bucket, ".") {
		u.Path = u.Path + "/" + bucket
	} else {
		u.Host = bucket + "." + u.Host
	}
	return u.String()
}

// ObjectURL returns the unsigned URL of key in bucket.
func (e Endpoint) ObjectURL(bucket, key string) (string, error) {
	return signing.ObjectURL(e.BucketURL(bucket), key)
}

// Signer produces upload and download descriptors for one driver. The
// provider is asked to confirm the credentials once before the first
// descriptor is signed; only a successful answer is cached.
type Signer struct {
	Driver   string
	Endpoint Endpoint
	Signer   *signing.Signer
	Logger   *slog.Logger

	// Credentials returns the key pair descriptors are signed with.
	Credentials func(ctx context.Context) (signing.Credentials, error)

	// Validate confirms the key pair with the provider.
	Validate func(ctx context.Context) error

	mu        sync.Mutex
	validated bool
}

// Validated runs Validate once and caches success.
func (s *Signer) Validated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.validated || s.Validate == nil {
		return nil
	}
	if err := s.Validate(ctx); err != nil {
		return err
	}
	s.validated = true
	return nil
}

// UploadPost signs a POST policy for blobName in container.
func (s *Signer) UploadPost(ctx context.Context, container, blobName string, opts cloudstorage.UploadURLOptions) (*cloudstorage.FormPost, error) {
	if err := s.Validated(ctx); err != nil {
		return nil, err
	}
	creds, err := s.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	policy, err := signing.BuildUploadPolicy(container, blobName, opts)
	if err != nil {
		return nil, err
	}
	sig, err := s.Signer.SignPolicy(policy, creds)
	if err != nil {
		return nil, err
	}
	post, err := signing.AssembleFormPost(s.Endpoint.BucketURL(container), policy, sig)
	if err != nil {
		return nil, err
	}
	s.logger().Debug("Signed upload policy", "driver", s.Driver, "container", container, "blob", blobName,
		"expires_at", post.Expiration, "state", s.Signer.State(post.Expiration))
	return post, nil
}

// DownloadURL presigns a GET of blobName in container.
func (s *Signer) DownloadURL(ctx context.Context, container, blobName string, opts cloudstorage.DownloadURLOptions) (string, error) {
	if err := s.Validated(ctx); err != nil {
		return "", err
	}
	creds, err := s.Credentials(ctx)
	if err != nil {
		return "", err
	}
	objectURL, err := s.Endpoint.ObjectURL(container, blobName)
	if err != nil {
		return "", err
	}
	signed, expiration, err := s.Signer.PresignDownload(ctx, signing.DownloadRequest{
		ObjectURL:          objectURL,
		ContentDisposition: opts.ContentDisposition,
		ExpiresIn:          cloudstorage.ResolveExpires(opts.Expires, cloudstorage.DefaultExpires),
	}, creds)
	if err != nil {
		return "", err
	}
	s.logger().Debug("Presigned download", "driver", s.Driver, "container", container, "blob", blobName,
		"expires_at", expiration, "state", s.Signer.State(expiration))
	return signed, nil
}

func (s *Signer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ChecksumFromETag returns the MD5 hex carried by a single-part ETag. Multipart
// ETags ("<hex>-<parts>") are not a digest of the content and yield "".
func ChecksumFromETag(etag string) string {
	etag = strings.Trim(etag, `"`)
	if strings.Contains(etag, "-") {
		return ""
	}
	return etag
}

// Translate maps an S3 error code to the cloudstorage error taxonomy. blob
// is empty for container operations.
func Translate(driver, op, container, blob, code, message string, err error) error {
	switch code {
	case "NoSuchBucket":
		return cloudstorage.ContainerNotFound(container)
	case "NoSuchKey", "NotFound":
		if blob == "" {
			return cloudstorage.ContainerNotFound(container)
		}
		return cloudstorage.BlobNotFound(container, blob)
	case "BucketNotEmpty":
		return &cloudstorage.IsNotEmptyError{Container: container}
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidToken", "ExpiredToken":
		if message == "" {
			message = code
		}
		return cloudstorage.NewCredentialsError(message, err)
	case "InvalidBucketName":
		return cloudstorage.NewValidationError("container_name", "%q is not a valid bucket name", container)
	}
	return cloudstorage.Wrap(driver, op, err)
}
