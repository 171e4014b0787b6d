// Package s3 implements cloudstorage.Driver against Amazon S3 and S3
// compatible services using the AWS SDK.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/signing"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/s3compat"
)

// DriverName is returned by Driver.Name
const DriverName = "s3"

const defaultRegion = "us-east-1"

// Config options for the S3 driver
type Config struct {
	Region          string // AWS region
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UseSSL          bool   // Use SSL for a custom endpoint given without scheme
	UsePathStyle    bool   // Use path-style addressing (default: false)

	Signer *signing.Signer
	Logger *slog.Logger
}

// API is the subset of *s3.Client used by the driver.
type API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient

	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Driver is an S3 implementation of cloudstorage.Driver
type Driver struct {
	api         API
	region      string
	provider    aws.CredentialsProvider
	endpoint    s3compat.Endpoint
	descriptors *s3compat.Signer
	logger      *slog.Logger
}

// New creates a new S3 driver
func New(config Config) (*Driver, error) {
	if config.Region == "" {
		config.Region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		endpoint, err := s3compat.NewEndpoint(config.Endpoint, config.UseSSL, config.UsePathStyle)
		if err != nil {
			return nil, err
		}
		scheme := "https://"
		if !endpoint.Secure() {
			scheme = "http://"
		}
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(scheme + endpoint.Host())
			o.UsePathStyle = config.UsePathStyle
		})
	}

	return newDriver(s3.NewFromConfig(awsCfg, s3Options...), awsCfg.Credentials, config)
}

func newDriver(api API, provider aws.CredentialsProvider, config Config) (*Driver, error) {
	if config.Region == "" {
		config.Region = defaultRegion
	}
	if config.Signer == nil {
		config.Signer = signing.New()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	endpoint := s3compat.AWSEndpoint(config.Region)
	if config.Endpoint != "" {
		var err error
		endpoint, err = s3compat.NewEndpoint(config.Endpoint, config.UseSSL, config.UsePathStyle)
		if err != nil {
			return nil, err
		}
	}

	d := &Driver{
		api:      api,
		region:   config.Region,
		provider: provider,
		endpoint: endpoint,
		logger:   config.Logger,
	}
	d.descriptors = &s3compat.Signer{
		Driver:      DriverName,
		Endpoint:    endpoint,
		Signer:      config.Signer,
		Logger:      config.Logger,
		Credentials: d.signingCredentials,
		Validate:    d.ValidateCredentials,
	}
	return d, nil
}

func (d *Driver) Name() string {
	return DriverName
}

// signingCredentials resolves the key pair descriptors are signed with.
// Temporary credentials cannot sign a POST policy without a security token
// field, which the form assembly does not emit.
func (d *Driver) signingCredentials(ctx context.Context) (signing.Credentials, error) {
	if d.provider == nil {
		return signing.Credentials{}, cloudstorage.NewCredentialsError("no credentials configured", nil)
	}
	creds, err := d.provider.Retrieve(ctx)
	if err != nil {
		return signing.Credentials{}, cloudstorage.NewCredentialsError("failed to resolve credentials", err)
	}
	if creds.SessionToken != "" {
		return signing.Credentials{}, cloudstorage.NewValidationError("credentials", "session credentials cannot sign upload policies")
	}
	return signing.Credentials{
		Key:    creds.AccessKeyID,
		Secret: creds.SecretAccessKey,
		Region: d.region,
	}, nil
}

// ValidateCredentials lists buckets, the cheapest call every key pair is
// allowed to make.
func (d *Driver) ValidateCredentials(ctx context.Context) error {
	if _, err := d.api.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		return d.translate("validate credentials", "", "", err)
	}
	return nil
}

func (d *Driver) CreateContainer(ctx context.Context, name string) (*cloudstorage.Container, error) {
	if err := cloudstorage.ValidateContainerName(name); err != nil {
		return nil, err
	}
	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if d.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(d.region),
		}
	}
	_, err := d.api.CreateBucket(ctx, input)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) && errorCode(err) != "BucketAlreadyOwnedByYou" {
			return nil, d.translate("create container", name, "", err)
		}
	}
	d.logger.Debug("Created container", "driver", DriverName, "container", name)
	return d.container(name), nil
}

func (d *Driver) GetContainer(ctx context.Context, name string) (*cloudstorage.Container, error) {
	if _, err := d.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err != nil {
		return nil, d.translate("get container", name, "", err)
	}
	return d.container(name), nil
}

func (d *Driver) DeleteContainer(ctx context.Context, name string) error {
	if _, err := d.api.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		return d.translate("delete container", name, "", err)
	}
	return nil
}

func (d *Driver) ListContainers(ctx context.Context) ([]*cloudstorage.Container, error) {
	out, err := d.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, d.translate("list containers", "", "", err)
	}
	containers := make([]*cloudstorage.Container, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		c := d.container(aws.ToString(b.Name))
		c.CreatedAt = aws.ToTime(b.CreationDate)
		containers = append(containers, c)
	}
	return containers, nil
}

func (d *Driver) UploadBlob(ctx context.Context, container, blobName string, r io.Reader, attrs cloudstorage.BlobAttributes) (*cloudstorage.Blob, error) {
	if err := cloudstorage.ValidateBlobName(blobName); err != nil {
		return nil, err
	}
	attrs, err := attrs.Normalize()
	if err != nil {
		return nil, err
	}

	sum := cloudstorage.NewChecksum()
	uploader := manager.NewUploader(d.api)
	out, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(container),
		Key:                aws.String(blobName),
		Body:               sum.TeeReader(r),
		ContentType:        optional(attrs.ContentType),
		ContentDisposition: optional(attrs.ContentDisposition),
		CacheControl:       optional(attrs.CacheControl),
		Metadata:           attrs.Metadata,
	})
	if err != nil {
		return nil, d.translate("upload blob", container, blobName, err)
	}

	return &cloudstorage.Blob{
		Name:               blobName,
		Container:          container,
		Size:               sum.Size(),
		Checksum:           sum.Sum(),
		ETag:               trimETag(out.ETag),
		ContentType:        attrs.ContentType,
		ContentDisposition: attrs.ContentDisposition,
		CacheControl:       attrs.CacheControl,
		Metadata:           attrs.Metadata,
	}, nil
}

func (d *Driver) GetBlob(ctx context.Context, container, blobName string) (*cloudstorage.Blob, error) {
	out, err := d.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(blobName),
	})
	if err != nil {
		return nil, d.translate("get blob", container, blobName, err)
	}
	etag := trimETag(out.ETag)
	return &cloudstorage.Blob{
		Name:               blobName,
		Container:          container,
		Size:               aws.ToInt64(out.ContentLength),
		Checksum:           s3compat.ChecksumFromETag(etag),
		ETag:               etag,
		ContentType:        aws.ToString(out.ContentType),
		ContentDisposition: aws.ToString(out.ContentDisposition),
		CacheControl:       aws.ToString(out.CacheControl),
		Metadata:           out.Metadata,
		ModifiedAt:         aws.ToTime(out.LastModified),
	}, nil
}

func (d *Driver) DownloadBlob(ctx context.Context, container, blobName string, w io.Writer) error {
	out, err := d.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(blobName),
	})
	if err != nil {
		return d.translate("download blob", container, blobName, err)
	}
	defer out.Body.Close()
	if _, err := io.Copy(w, out.Body); err != nil {
		return cloudstorage.Wrap(DriverName, "download blob", err)
	}
	return nil
}

// DeleteBlob removes the blob. S3 deletes are idempotent, so existence is
// checked first to report a missing blob.
func (d *Driver) DeleteBlob(ctx context.Context, container, blobName string) error {
	if _, err := d.GetBlob(ctx, container, blobName); err != nil {
		return err
	}
	_, err := d.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(blobName),
	})
	if err != nil {
		return d.translate("delete blob", container, blobName, err)
	}
	return nil
}

func (d *Driver) ListBlobs(ctx context.Context, container, prefix string) ([]*cloudstorage.Blob, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(container)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var blobs []*cloudstorage.Blob
	paginator := s3.NewListObjectsV2Paginator(d.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, d.translate("list blobs", container, "", err)
		}
		for _, obj := range page.Contents {
			etag := trimETag(obj.ETag)
			blobs = append(blobs, &cloudstorage.Blob{
				Name:       aws.ToString(obj.Key),
				Container:  container,
				Size:       aws.ToInt64(obj.Size),
				Checksum:   s3compat.ChecksumFromETag(etag),
				ETag:       etag,
				ModifiedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	return blobs, nil
}

// EnableContainerCDN is a no-op: exposing a bucket publicly is a policy
// decision left to the account owner.
func (d *Driver) EnableContainerCDN(ctx context.Context, container string) (bool, error) {
	return false, nil
}

func (d *Driver) DisableContainerCDN(ctx context.Context, container string) (bool, error) {
	return false, nil
}

func (d *Driver) ContainerCDNURL(ctx context.Context, container string) (string, error) {
	return d.endpoint.BucketURL(container), nil
}

func (d *Driver) BlobCDNURL(ctx context.Context, container, blobName string) (string, error) {
	return d.endpoint.ObjectURL(container, blobName)
}

func (d *Driver) GenerateContainerUploadURL(ctx context.Context, container, blobName string, opts cloudstorage.UploadURLOptions) (*cloudstorage.FormPost, error) {
	return d.descriptors.UploadPost(ctx, container, blobName, opts)
}

func (d *Driver) GenerateBlobDownloadURL(ctx context.Context, container, blobName string, opts cloudstorage.DownloadURLOptions) (string, error) {
	return d.descriptors.DownloadURL(ctx, container, blobName, opts)
}

func (d *Driver) container(name string) *cloudstorage.Container {
	return &cloudstorage.Container{Name: name, Driver: DriverName}
}

func (d *Driver) translate(op, container, blob string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return s3compat.Translate(DriverName, op, container, blob, apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return cloudstorage.Wrap(DriverName, op, err)
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func trimETag(etag *string) string {
	return strings.Trim(aws.ToString(etag), `"`)
}

var _ cloudstorage.Driver = (*Driver)(nil)
