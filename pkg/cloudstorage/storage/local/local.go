// Package local serves containers from an ObjectStore held by this process
// (memory or filesystem) and signs descriptors for the presigned handlers
// mounted at Endpoint.
package local

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/signing"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/s3compat"
)

// DriverName is returned by Driver.Name
const DriverName = "local"

// Config options for the local driver
type Config struct {
	// Store holds the containers and blobs.
	Store cloudstorage.ObjectStore

	// Endpoint is the absolute URL the presigned handlers are mounted at,
	// e.g. http://localhost:8080/storage.
	Endpoint string

	// Credentials sign every descriptor.
	Credentials signing.Credentials

	// Keyring is consulted by ValidateCredentials and by the handlers'
	// verifier. Nil accepts exactly Credentials.
	Keyring signing.Keyring

	Signer *signing.Signer
	Logger *slog.Logger
}

// Driver implements cloudstorage.Driver on top of a local ObjectStore.
type Driver struct {
	store       cloudstorage.ObjectStore
	endpoint    s3compat.Endpoint
	creds       signing.Credentials
	keys        signing.Keyring
	signer      *signing.Signer
	descriptors *s3compat.Signer

	mu  sync.RWMutex
	cdn map[string]bool
}

// New creates a local driver
func New(config Config) (*Driver, error) {
	if config.Store == nil {
		return nil, errors.New("object store is required")
	}
	if !strings.HasPrefix(config.Endpoint, "http://") && !strings.HasPrefix(config.Endpoint, "https://") {
		return nil, cloudstorage.NewValidationError("endpoint", "must be an absolute http(s) URL")
	}
	endpoint, err := s3compat.NewEndpoint(config.Endpoint, true, true)
	if err != nil {
		return nil, err
	}
	if config.Credentials.Region == "" {
		config.Credentials.Region = "local"
	}
	if config.Keyring == nil {
		config.Keyring = signing.NewKeyring(config.Credentials)
	}
	if config.Signer == nil {
		config.Signer = signing.New()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	d := &Driver{
		store:    config.Store,
		endpoint: endpoint,
		creds:    config.Credentials,
		keys:     config.Keyring,
		signer:   config.Signer,
		cdn:      make(map[string]bool),
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
	return d, nil
}

func (d *Driver) Name() string {
	return DriverName
}

// Store returns the underlying object store for the presigned handlers.
func (d *Driver) Store() cloudstorage.ObjectStore {
	return d.store
}

// Verifier returns a verifier that accepts descriptors signed by this driver.
func (d *Driver) Verifier() *signing.Verifier {
	return signing.NewVerifier(d.keys, d.signer)
}

// ValidateCredentials checks the configured key pair against the keyring.
func (d *Driver) ValidateCredentials(ctx context.Context) error {
	if err := d.creds.Validate(); err != nil {
		return err
	}
	secret, ok := d.keys.Secret(d.creds.Key)
	if !ok {
		return cloudstorage.NewCredentialsError("The AWS Access Key Id you provided does not exist in our records.", nil)
	}
	if secret != d.creds.Secret {
		return cloudstorage.NewCredentialsError("The request signature we calculated does not match the signature you provided.", nil)
	}
	return nil
}

func (d *Driver) CreateContainer(ctx context.Context, name string) (*cloudstorage.Container, error) {
	c, err := d.store.CreateBucket(ctx, name)
	if err != nil {
		return nil, cloudstorage.Wrap(DriverName, "create container", err)
	}
	return d.decorate(c), nil
}

func (d *Driver) GetContainer(ctx context.Context, name string) (*cloudstorage.Container, error) {
	c, err := d.store.HeadBucket(ctx, name)
	if err != nil {
		return nil, cloudstorage.Wrap(DriverName, "get container", err)
	}
	return d.decorate(c), nil
}

func (d *Driver) DeleteContainer(ctx context.Context, name string) error {
	if err := d.store.DeleteBucket(ctx, name); err != nil {
		return cloudstorage.Wrap(DriverName, "delete container", err)
	}
	d.mu.Lock()
	delete(d.cdn, name)
	d.mu.Unlock()
	return nil
}

func (d *Driver) ListContainers(ctx context.Context) ([]*cloudstorage.Container, error) {
	containers, err := d.store.ListBuckets(ctx)
	if err != nil {
		return nil, cloudstorage.Wrap(DriverName, "list containers", err)
	}
	for _, c := range containers {
		d.decorate(c)
	}
	return containers, nil
}

func (d *Driver) UploadBlob(ctx context.Context, container, blobName string, r io.Reader, attrs cloudstorage.BlobAttributes) (*cloudstorage.Blob, error) {
	attrs, err := attrs.Normalize()
	if err != nil {
		return nil, err
	}
	blob, err := d.store.PutObject(ctx, container, blobName, r, attrs)
	if err != nil {
		return nil, cloudstorage.Wrap(DriverName, "upload blob", err)
	}
	return blob, nil
}

func (d *Driver) GetBlob(ctx context.Context, container, blobName string) (*cloudstorage.Blob, error) {
	blob, err := d.store.HeadObject(ctx, container, blobName)
	if err != nil {
		return nil, cloudstorage.Wrap(DriverName, "get blob", err)
	}
	return blob, nil
}

func (d *Driver) DownloadBlob(ctx context.Context, container, blobName string, w io.Writer) error {
	rc, _, err := d.store.GetObject(ctx, container, blobName)
	if err != nil {
		return cloudstorage.Wrap(DriverName, "download blob", err)
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		return cloudstorage.Wrap(DriverName, "download blob", err)
	}
	return nil
}

func (d *Driver) DeleteBlob(ctx context.Context, container, blobName string) error {
	if err := d.store.DeleteObject(ctx, container, blobName); err != nil {
		return cloudstorage.Wrap(DriverName, "delete blob", err)
	}
	return nil
}

func (d *Driver) ListBlobs(ctx context.Context, container, prefix string) ([]*cloudstorage.Blob, error) {
	blobs, err := d.store.ListObjects(ctx, container, prefix)
	if err != nil {
		return nil, cloudstorage.Wrap(DriverName, "list blobs", err)
	}
	return blobs, nil
}

// EnableContainerCDN makes the container readable without a signature.
func (d *Driver) EnableContainerCDN(ctx context.Context, container string) (bool, error) {
	return d.setCDN(ctx, container, true)
}

// DisableContainerCDN requires signatures again.
func (d *Driver) DisableContainerCDN(ctx context.Context, container string) (bool, error) {
	return d.setCDN(ctx, container, false)
}

// IsPublic reports whether unsigned reads of container are allowed.
func (d *Driver) IsPublic(container string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cdn[container]
}

func (d *Driver) ContainerCDNURL(ctx context.Context, container string) (string, error) {
	if _, err := d.GetContainer(ctx, container); err != nil {
		return "", err
	}
	return d.endpoint.BucketURL(container), nil
}

func (d *Driver) BlobCDNURL(ctx context.Context, container, blobName string) (string, error) {
	if _, err := d.GetBlob(ctx, container, blobName); err != nil {
		return "", err
	}
	return d.endpoint.ObjectURL(container, blobName)
}

func (d *Driver) GenerateContainerUploadURL(ctx context.Context, container, blobName string, opts cloudstorage.UploadURLOptions) (*cloudstorage.FormPost, error) {
	return d.descriptors.UploadPost(ctx, container, blobName, opts)
}

func (d *Driver) GenerateBlobDownloadURL(ctx context.Context, container, blobName string, opts cloudstorage.DownloadURLOptions) (string, error) {
	return d.descriptors.DownloadURL(ctx, container, blobName, opts)
}

func (d *Driver) setCDN(ctx context.Context, container string, enabled bool) (bool, error) {
	if _, err := d.store.HeadBucket(ctx, container); err != nil {
		return false, cloudstorage.Wrap(DriverName, "set container cdn", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if enabled {
		d.cdn[container] = true
	} else {
		delete(d.cdn, container)
	}
	return true, nil
}

func (d *Driver) decorate(c *cloudstorage.Container) *cloudstorage.Container {
	c.Driver = DriverName
	c.CDNEnabled = d.IsPublic(c.Name)
	return c
}

var _ cloudstorage.Driver = (*Driver)(nil)
