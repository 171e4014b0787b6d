package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

type object struct {
	data []byte
	blob cloudstorage.Blob
}

type bucket struct {
	container cloudstorage.Container
	objects   map[string]*object
}

// Backend is an in-memory implementation of the cloudstorage.ObjectStore interface
type Backend struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	now     func() time.Time
}

// New creates a new in-memory object store
func New() *Backend {
	return &Backend{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// CreateBucket creates an empty bucket. Creating an existing bucket returns it unchanged.
func (b *Backend) CreateBucket(ctx context.Context, name string) (*cloudstorage.Container, error) {
	if err := cloudstorage.ValidateContainerName(name); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.buckets[name]; ok {
		c := existing.container
		return &c, nil
	}
	bk := &bucket{
		container: cloudstorage.Container{Name: name, CreatedAt: b.now().UTC()},
		objects:   make(map[string]*object),
	}
	b.buckets[name] = bk
	c := bk.container
	return &c, nil
}

// HeadBucket returns the bucket or a NotFoundError
func (b *Backend) HeadBucket(ctx context.Context, name string) (*cloudstorage.Container, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bk, ok := b.buckets[name]
	if !ok {
		return nil, cloudstorage.ContainerNotFound(name)
	}
	c := bk.container
	return &c, nil
}

// DeleteBucket removes an empty bucket
func (b *Backend) DeleteBucket(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bk, ok := b.buckets[name]
	if !ok {
		return cloudstorage.ContainerNotFound(name)
	}
	if len(bk.objects) > 0 {
		return &cloudstorage.IsNotEmptyError{Container: name}
	}
	delete(b.buckets, name)
	return nil
}

// ListBuckets returns all buckets sorted by name
func (b *Backend) ListBuckets(ctx context.Context) ([]*cloudstorage.Container, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*cloudstorage.Container, 0, len(b.buckets))
	for _, bk := range b.buckets {
		c := bk.container
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PutObject stores the content of r under key, replacing any previous object
func (b *Backend) PutObject(ctx context.Context, bucketName, key string, r io.Reader, attrs cloudstorage.BlobAttributes) (*cloudstorage.Blob, error) {
	if err := cloudstorage.ValidateBlobName(key); err != nil {
		return nil, err
	}
	sum := cloudstorage.NewChecksum()
	data, err := io.ReadAll(sum.TeeReader(r))
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bk, ok := b.buckets[bucketName]
	if !ok {
		return nil, cloudstorage.ContainerNotFound(bucketName)
	}

	now := b.now().UTC()
	blob := cloudstorage.Blob{
		Name:               key,
		Container:          bucketName,
		Size:               int64(len(data)),
		Checksum:           sum.Sum(),
		ETag:               uuid.NewString(),
		ContentType:        attrs.ContentType,
		ContentDisposition: attrs.ContentDisposition,
		CacheControl:       attrs.CacheControl,
		Metadata:           attrs.Clone().Metadata,
		CreatedAt:          now,
		ModifiedAt:         now,
	}
	if blob.ContentType == "" {
		blob.ContentType = "application/octet-stream"
	}
	if prev, exists := bk.objects[key]; exists {
		blob.CreatedAt = prev.blob.CreatedAt
	}
	bk.objects[key] = &object{data: data, blob: blob}
	return copyBlob(&blob), nil
}

// GetObject returns a reader over the object content and its attributes
func (b *Backend) GetObject(ctx context.Context, bucketName, key string) (io.ReadCloser, *cloudstorage.Blob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, err := b.lookup(bucketName, key)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(bytes.NewReader(obj.data)), copyBlob(&obj.blob), nil
}

// HeadObject returns the object attributes
func (b *Backend) HeadObject(ctx context.Context, bucketName, key string) (*cloudstorage.Blob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, err := b.lookup(bucketName, key)
	if err != nil {
		return nil, err
	}
	return copyBlob(&obj.blob), nil
}

// DeleteObject removes an object
func (b *Backend) DeleteObject(ctx context.Context, bucketName, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.lookup(bucketName, key); err != nil {
		return err
	}
	delete(b.buckets[bucketName].objects, key)
	return nil
}

// ListObjects returns the objects whose key starts with prefix, sorted by key
func (b *Backend) ListObjects(ctx context.Context, bucketName, prefix string) ([]*cloudstorage.Blob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bk, ok := b.buckets[bucketName]
	if !ok {
		return nil, cloudstorage.ContainerNotFound(bucketName)
	}
	out := make([]*cloudstorage.Blob, 0, len(bk.objects))
	for key, obj := range bk.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, copyBlob(&obj.blob))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// lookup must be called with the lock held
func (b *Backend) lookup(bucketName, key string) (*object, error) {
	bk, ok := b.buckets[bucketName]
	if !ok {
		return nil, cloudstorage.ContainerNotFound(bucketName)
	}
	obj, ok := bk.objects[key]
	if !ok {
		return nil, cloudstorage.BlobNotFound(bucketName, key)
	}
	return obj, nil
}

func copyBlob(blob *cloudstorage.Blob) *cloudstorage.Blob {
	out := *blob
	out.Metadata = blob.Attributes().Metadata
	return &out
}

var _ cloudstorage.ObjectStore = (*Backend)(nil)
