package cloudstorage

import (
	"context"
	"io"
)

// Driver is implemented by every provider backend. Each method resolves the
// container (and blob) by name on every call; drivers keep no handle state.
type Driver interface {
	// Name identifies the driver kind, e.g. "s3", "minio", "local".
	Name() string

	// ValidateCredentials returns a *CredentialsError when the configured
	// key and secret are rejected by the provider.
	ValidateCredentials(ctx context.Context) error

	// Container operations
	CreateContainer(ctx context.Context, name string) (*Container, error)
	GetContainer(ctx context.Context, name string) (*Container, error)
	DeleteContainer(ctx context.Context, name string) error
	ListContainers(ctx context.Context) ([]*Container, error)

	// Blob operations
	UploadBlob(ctx context.Context, container, blobName string, r io.Reader, attrs BlobAttributes) (*Blob, error)
	GetBlob(ctx context.Context, container, blobName string) (*Blob, error)
	DownloadBlob(ctx context.Context, container, blobName string, w io.Writer) error
	DeleteBlob(ctx context.Context, container, blobName string) error
	ListBlobs(ctx context.Context, container, prefix string) ([]*Blob, error)

	// CDN exposure. Enable and Disable report whether the provider changed anything.
	EnableContainerCDN(ctx context.Context, container string) (bool, error)
	DisableContainerCDN(ctx context.Context, container string) (bool, error)
	ContainerCDNURL(ctx context.Context, container string) (string, error)
	BlobCDNURL(ctx context.Context, container, blobName string) (string, error)

	// Signed descriptors. Already-expired descriptors are generated without error.
	GenerateContainerUploadURL(ctx context.Context, container, blobName string, opts UploadURLOptions) (*FormPost, error)
	GenerateBlobDownloadURL(ctx context.Context, container, blobName string, opts DownloadURLOptions) (string, error)
}

// ObjectStore is the raw capability set of a storage provider. The local
// driver and the presigned HTTP handlers are built on top of it.
type ObjectStore interface {
	CreateBucket(ctx context.Context, name string) (*Container, error)
	HeadBucket(ctx context.Context, name string) (*Container, error)
	DeleteBucket(ctx context.Context, name string) error
	ListBuckets(ctx context.Context) ([]*Container, error)

	PutObject(ctx context.Context, bucket, key string, r io.Reader, attrs BlobAttributes) (*Blob, error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, *Blob, error)
	HeadObject(ctx context.Context, bucket, key string) (*Blob, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]*Blob, error)
}
