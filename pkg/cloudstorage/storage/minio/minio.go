// Package minio implements cloudstorage.Driver for MinIO servers with the
// minio-go client. Buckets are always addressed path-style.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/signing"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/s3compat"
)

// DriverName is returned by Driver.Name
const DriverName = "minio"

const defaultRegion = "us-east-1"

// Config options for the MinIO driver
type Config struct {
	Endpoint        string // host:port or URL of the MinIO server
	AccessKeyID     string
	SecretAccessKey string
	Region          string // default us-east-1
	UseSSL          bool   // used when Endpoint has no scheme

	Signer *signing.Signer
	Logger *slog.Logger
}

// API is the subset of the MinIO client used by the driver. GetObject
// returns a plain ReadCloser so tests can stub it.
type API interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	RemoveBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

type client struct {
	*minio.Client
}

func (c client) GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucket, object, opts)
}

// Driver is a MinIO implementation of cloudstorage.Driver
type Driver struct {
	api         API
	region      string
	creds       signing.Credentials
	endpoint    s3compat.Endpoint
	descriptors *s3compat.Signer
	logger      *slog.Logger
}

// New creates a MinIO driver
func New(config Config) (*Driver, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.Region == "" {
		config.Region = defaultRegion
	}
	endpoint, err := s3compat.NewEndpoint(config.Endpoint, config.UseSSL, true)
	if err != nil {
		return nil, err
	}

	mc, err := minio.New(endpoint.Host(), &minio.Options{
		Creds:        credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure:       endpoint.Secure(),
		Region:       config.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return newDriver(client{mc}, endpoint, config), nil
}

func newDriver(api API, endpoint s3compat.Endpoint, config Config) *Driver {
	if config.Region == "" {
		config.Region = defaultRegion
	}
	if config.Signer == nil {
		config.Signer = signing.New()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	d := &Driver{
		api:    api,
		region: config.Region,
		creds: signing.Credentials{
			Key:    config.AccessKeyID,
			Secret: config.SecretAccessKey,
			Region: config.Region,
		},
		endpoint: endpoint,
		logger:   config.Logger,
	}
	d.descriptors = &s3compat.Signer{
		Driver:   DriverName,
		Endpoint: endpoint,
		Signer:   config.Signer,
		Logger:   config.Logger,
		Credentials: func(context.Context) (signing.Credentials, error) {
			return d.creds, nil
		},
		Validate: d.ValidateCredentials,
	}
	return d
}

func (d *Driver) Name() string {
	return DriverName
}

func (d *Driver) ValidateCredentials(ctx context.Context) error {
	if err := d.creds.Validate(); err != nil {
		return err
	}
	if _, err := d.api.ListBuckets(ctx); err != nil {
		return d.translate("validate credentials", "", "", err)
	}
	return nil
}

func (d *Driver) CreateContainer(ctx context.Context, name string) (*cloudstorage.Container, error) {
	if err := cloudstorage.ValidateContainerName(name); err != nil {
		return nil, err
	}
	err := d.api.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: d.region})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return nil, d.translate("create container", name, "", err)
	}
	d.logger.Debug("Created container", "driver", DriverName, "container", name)
	return d.container(name), nil
}

func (d *Driver) GetContainer(ctx context.Context, name string) (*cloudstorage.Container, error) {
	exists, err := d.api.BucketExists(ctx, name)
	if err != nil {
		return nil, d.translate("get container", name, "", err)
	}
	if !exists {
		return nil, cloudstorage.ContainerNotFound(name)
	}
	return d.container(name), nil
}

func (d *Driver) DeleteContainer(ctx context.Context, name string) error {
	if err := d.api.RemoveBucket(ctx, name); err != nil {
		return d.translate("delete container", name, "", err)
	}
	return nil
}

func (d *Driver) ListContainers(ctx context.Context) ([]*cloudstorage.Container, error) {
	buckets, err := d.api.ListBuckets(ctx)
	if err != nil {
		return nil, d.translate("list containers", "", "", err)
	}
	containers := make([]*cloudstorage.Container, 0, len(buckets))
	for _, b := range buckets {
		c := d.container(b.Name)
		c.CreatedAt = b.CreationDate
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
	info, err := d.api.PutObject(ctx, container, blobName, sum.TeeReader(r), -1, minio.PutObjectOptions{
		ContentType:        attrs.ContentType,
		ContentDisposition: attrs.ContentDisposition,
		CacheControl:       attrs.CacheControl,
		UserMetadata:       attrs.Metadata,
	})
	if err != nil {
		return nil, d.translate("upload blob", container, blobName, err)
	}

	return &cloudstorage.Blob{
		Name:               blobName,
		Container:          container,
		Size:               sum.Size(),
		Checksum:           sum.Sum(),
		ETag:               strings.Trim(info.ETag, `"`),
		ContentType:        attrs.ContentType,
		ContentDisposition: attrs.ContentDisposition,
		CacheControl:       attrs.CacheControl,
		Metadata:           attrs.Metadata,
	}, nil
}

func (d *Driver) GetBlob(ctx context.Context, container, blobName string) (*cloudstorage.Blob, error) {
	info, err := d.api.StatObject(ctx, container, blobName, minio.StatObjectOptions{})
	if err != nil {
		return nil, d.translate("get blob", container, blobName, err)
	}
	return d.blob(container, info), nil
}

// DownloadBlob streams the blob into w. The MinIO client defers the request
// until the first read, so errors surface from the copy.
func (d *Driver) DownloadBlob(ctx context.Context, container, blobName string, w io.Writer) error {
	obj, err := d.api.GetObject(ctx, container, blobName, minio.GetObjectOptions{})
	if err != nil {
		return d.translate("download blob", container, blobName, err)
	}
	defer obj.Close()
	if _, err := io.Copy(w, obj); err != nil {
		return d.translate("download blob", container, blobName, err)
	}
	return nil
}

func (d *Driver) DeleteBlob(ctx context.Context, container, blobName string) error {
	if _, err := d.GetBlob(ctx, container, blobName); err != nil {
		return err
	}
	if err := d.api.RemoveObject(ctx, container, blobName, minio.RemoveObjectOptions{}); err != nil {
		return d.translate("delete blob", container, blobName, err)
	}
	return nil
}

func (d *Driver) ListBlobs(ctx context.Context, container, prefix string) ([]*cloudstorage.Blob, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var blobs []*cloudstorage.Blob
	for info := range d.api.ListObjects(ctx, container, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, d.translate("list blobs", container, "", info.Err)
		}
		blobs = append(blobs, d.blob(container, info))
	}
	return blobs, nil
}

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

func (d *Driver) blob(container string, info minio.ObjectInfo) *cloudstorage.Blob {
	etag := strings.Trim(info.ETag, `"`)
	blob := &cloudstorage.Blob{
		Name:        info.Key,
		Container:   container,
		Size:        info.Size,
		Checksum:    s3compat.ChecksumFromETag(etag),
		ETag:        etag,
		ContentType: info.ContentType,
		ModifiedAt:  info.LastModified,
	}
	if info.Metadata != nil {
		blob.ContentDisposition = info.Metadata.Get("Content-Disposition")
		blob.CacheControl = info.Metadata.Get("Cache-Control")
	}
	if len(info.UserMetadata) > 0 {
		blob.Metadata = make(map[string]string, len(info.UserMetadata))
		for k, v := range info.UserMetadata {
			blob.Metadata[strings.ToLower(k)] = v
		}
	}
	return blob
}

func (d *Driver) translate(op, container, blob string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" {
		return cloudstorage.Wrap(DriverName, op, err)
	}
	return s3compat.Translate(DriverName, op, container, blob, resp.Code, resp.Message, err)
}

var _ cloudstorage.Driver = (*Driver)(nil)
