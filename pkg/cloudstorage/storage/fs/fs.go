package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

const (
	bucketMetaFile = ".bucket.json"
	dataSuffix     = ".data"
	metaSuffix     = ".json"
)

// Backend is a filesystem implementation of the cloudstorage.ObjectStore interface.
//
// Each bucket is a directory under BaseDir. Objects are stored as a data file
// and a JSON sidecar holding the blob attributes, both named by the SHA-256
// of the key so arbitrary keys never escape the bucket directory.
type Backend struct {
	mu      sync.RWMutex
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing buckets
}

// New creates a new filesystem object store
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Backend{baseDir: config.BaseDir}, nil
}

// CreateBucket creates the bucket directory. Creating an existing bucket returns it unchanged.
func (b *Backend) CreateBucket(ctx context.Context, name string) (*cloudstorage.Container, error) {
	if err := cloudstorage.ValidateContainerName(name); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if c, err := b.readBucket(name); err == nil {
		return c, nil
	}
	if err := os.MkdirAll(b.bucketDir(name), 0755); err != nil {
		return nil, fmt.Errorf("failed to create bucket directory: %w", err)
	}
	c := &cloudstorage.Container{Name: name, CreatedAt: time.Now().UTC()}
	if err := writeJSON(filepath.Join(b.bucketDir(name), bucketMetaFile), c); err != nil {
		return nil, err
	}
	return c, nil
}

// HeadBucket returns the bucket or a NotFoundError
func (b *Backend) HeadBucket(ctx context.Context, name string) (*cloudstorage.Container, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.readBucket(name)
}

// DeleteBucket removes an empty bucket
func (b *Backend) DeleteBucket(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.readBucket(name); err != nil {
		return err
	}
	entries, err := os.ReadDir(b.bucketDir(name))
	if err != nil {
		return fmt.Errorf("failed to read bucket directory: %w", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), dataSuffix) {
			return &cloudstorage.IsNotEmptyError{Container: name}
		}
	}
	if err := os.RemoveAll(b.bucketDir(name)); err != nil {
		return fmt.Errorf("failed to delete bucket directory: %w", err)
	}
	return nil
}

// ListBuckets returns all buckets sorted by name
func (b *Backend) ListBuckets(ctx context.Context) ([]*cloudstorage.Container, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries, err := os.ReadDir(b.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read base directory: %w", err)
	}
	var out []*cloudstorage.Container
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c, err := b.readBucket(e.Name())
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PutObject writes the content of r under key, replacing any previous object
func (b *Backend) PutObject(ctx context.Context, bucket, key string, r io.Reader, attrs cloudstorage.BlobAttributes) (*cloudstorage.Blob, error) {
	if err := cloudstorage.ValidateBlobName(key); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.readBucket(bucket); err != nil {
		return nil, err
	}

	dataPath := b.objectPath(bucket, key, dataSuffix)
	tmp, err := os.CreateTemp(b.bucketDir(bucket), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	sum := cloudstorage.NewChecksum()
	if _, err := io.Copy(tmp, sum.TeeReader(r)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	now := time.Now().UTC()
	blob := &cloudstorage.Blob{
		Name:               key,
		Container:          bucket,
		Size:               sum.Size(),
		Checksum:           sum.Sum(),
		ETag:               sum.Sum(),
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
	if prev, err := b.readObject(bucket, key); err == nil {
		blob.CreatedAt = prev.CreatedAt
	}

	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	if err := writeJSON(b.objectPath(bucket, key, metaSuffix), blob); err != nil {
		return nil, err
	}
	return blob, nil
}

// GetObject opens the object content. The caller must close the reader.
func (b *Backend) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, *cloudstorage.Blob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	blob, err := b.readObject(bucket, key)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(b.objectPath(bucket, key, dataSuffix))
	if os.IsNotExist(err) {
		return nil, nil, cloudstorage.BlobNotFound(bucket, key)
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, blob, nil
}

// HeadObject returns the object attributes
func (b *Backend) HeadObject(ctx context.Context, bucket, key string) (*cloudstorage.Blob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.readObject(bucket, key)
}

// DeleteObject removes the data file and its sidecar
func (b *Backend) DeleteObject(ctx context.Context, bucket, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.readObject(bucket, key); err != nil {
		return err
	}
	if err := os.Remove(b.objectPath(bucket, key, dataSuffix)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(b.objectPath(bucket, key, metaSuffix)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ListObjects returns the objects whose key starts with prefix, sorted by key
func (b *Backend) ListObjects(ctx context.Context, bucket, prefix string) ([]*cloudstorage.Blob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, err := b.readBucket(bucket); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.bucketDir(bucket))
	if err != nil {
		return nil, fmt.Errorf("failed to read bucket directory: %w", err)
	}

	out := []*cloudstorage.Blob{}
	for _, e := range entries {
		name := e.Name()
		if name == bucketMetaFile || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		var blob cloudstorage.Blob
		if err := readJSON(filepath.Join(b.bucketDir(bucket), name), &blob); err != nil {
			return nil, err
		}
		if strings.HasPrefix(blob.Name, prefix) {
			out = append(out, &blob)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *Backend) bucketDir(name string) string {
	return filepath.Join(b.baseDir, name)
}

func (b *Backend) objectPath(bucket, key, suffix string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(b.bucketDir(bucket), hex.EncodeToString(sum[:])+suffix)
}

func (b *Backend) readBucket(name string) (*cloudstorage.Container, error) {
	if cloudstorage.ValidateContainerName(name) != nil {
		return nil, cloudstorage.ContainerNotFound(name)
	}
	var c cloudstorage.Container
	if err := readJSON(filepath.Join(b.bucketDir(name), bucketMetaFile), &c); err != nil {
		if os.IsNotExist(err) {
			return nil, cloudstorage.ContainerNotFound(name)
		}
		return nil, err
	}
	return &c, nil
}

func (b *Backend) readObject(bucket, key string) (*cloudstorage.Blob, error) {
	if _, err := b.readBucket(bucket); err != nil {
		return nil, err
	}
	var blob cloudstorage.Blob
	if err := readJSON(b.objectPath(bucket, key, metaSuffix), &blob); err != nil {
		if os.IsNotExist(err) {
			return nil, cloudstorage.BlobNotFound(bucket, key)
		}
		return nil, err
	}
	return &blob, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

var _ cloudstorage.ObjectStore = (*Backend)(nil)
