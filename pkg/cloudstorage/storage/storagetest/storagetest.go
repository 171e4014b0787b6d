// Package storagetest holds behaviour checks shared by the ObjectStore implementations.
package storagetest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

// RunObjectStoreTests exercises store from an empty state.
func RunObjectStoreTests(t *testing.T, store cloudstorage.ObjectStore) {
	ctx := context.Background()
	const bucket = "photos"
	const data = "Hello, World! This is test data."

	t.Run("CreateBucket", func(t *testing.T) {
		c, err := store.CreateBucket(ctx, bucket)
		require.NoError(t, err)
		assert.Equal(t, bucket, c.Name)

		again, err := store.CreateBucket(ctx, bucket)
		require.NoError(t, err)
		assert.Equal(t, c.CreatedAt, again.CreatedAt)

		_, err = store.CreateBucket(ctx, "?!<>container-name<>!?")
		assert.ErrorIs(t, err, cloudstorage.ErrValidation)
	})

	t.Run("HeadBucket", func(t *testing.T) {
		c, err := store.HeadBucket(ctx, bucket)
		require.NoError(t, err)
		assert.Equal(t, bucket, c.Name)

		_, err = store.HeadBucket(ctx, "missing-bucket")
		assert.ErrorIs(t, err, cloudstorage.ErrNotFound)
	})

	attrs := cloudstorage.BlobAttributes{
		ContentType:        "text/plain",
		ContentDisposition: "attachment; filename=hello.txt",
		CacheControl:       "no-cache",
		Metadata:           map[string]string{"owner": "alice"},
	}

	t.Run("PutObject", func(t *testing.T) {
		blob, err := store.PutObject(ctx, bucket, "dir/../hello.txt", strings.NewReader(data), attrs)
		require.NoError(t, err)
		assert.Equal(t, "dir/../hello.txt", blob.Name)
		assert.Equal(t, bucket, blob.Container)
		assert.Equal(t, int64(len(data)), blob.Size)
		assert.Len(t, blob.Checksum, 32)
		assert.Equal(t, attrs, blob.Attributes())

		_, err = store.PutObject(ctx, "missing-bucket", "x", strings.NewReader(data), attrs)
		assert.ErrorIs(t, err, cloudstorage.ErrNotFound)

		_, err = store.PutObject(ctx, bucket, "", strings.NewReader(data), attrs)
		assert.ErrorIs(t, err, cloudstorage.ErrValidation)
	})

	t.Run("PutObjectDefaultContentType", func(t *testing.T) {
		blob, err := store.PutObject(ctx, bucket, "raw.bin", strings.NewReader("x"), cloudstorage.BlobAttributes{})
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", blob.ContentType)
	})

	t.Run("GetObject", func(t *testing.T) {
		rc, blob, err := store.GetObject(ctx, bucket, "dir/../hello.txt")
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, data, string(got))
		assert.Equal(t, attrs, blob.Attributes())

		_, _, err = store.GetObject(ctx, bucket, "missing.txt")
		assert.ErrorIs(t, err, cloudstorage.ErrNotFound)
	})

	t.Run("HeadObjectIsolated", func(t *testing.T) {
		blob, err := store.HeadObject(ctx, bucket, "dir/../hello.txt")
		require.NoError(t, err)
		blob.Metadata["owner"] = "mallory"

		again, err := store.HeadObject(ctx, bucket, "dir/../hello.txt")
		require.NoError(t, err)
		assert.Equal(t, "alice", again.Metadata["owner"])
	})

	t.Run("ListObjects", func(t *testing.T) {
		blobs, err := store.ListObjects(ctx, bucket, "")
		require.NoError(t, err)
		require.Len(t, blobs, 2)
		assert.Equal(t, "dir/../hello.txt", blobs[0].Name)
		assert.Equal(t, "raw.bin", blobs[1].Name)

		blobs, err = store.ListObjects(ctx, bucket, "raw")
		require.NoError(t, err)
		assert.Len(t, blobs, 1)

		_, err = store.ListObjects(ctx, "missing-bucket", "")
		assert.ErrorIs(t, err, cloudstorage.ErrNotFound)
	})

	t.Run("DeleteBucketNotEmpty", func(t *testing.T) {
		err := store.DeleteBucket(ctx, bucket)
		assert.ErrorIs(t, err, cloudstorage.ErrNotEmpty)
	})

	t.Run("DeleteObject", func(t *testing.T) {
		require.NoError(t, store.DeleteObject(ctx, bucket, "dir/../hello.txt"))
		require.NoError(t, store.DeleteObject(ctx, bucket, "raw.bin"))

		err := store.DeleteObject(ctx, bucket, "raw.bin")
		assert.ErrorIs(t, err, cloudstorage.ErrNotFound)
	})

	t.Run("ListBuckets", func(t *testing.T) {
		_, err := store.CreateBucket(ctx, "archive")
		require.NoError(t, err)

		buckets, err := store.ListBuckets(ctx)
		require.NoError(t, err)
		require.Len(t, buckets, 2)
		assert.Equal(t, "archive", buckets[0].Name)
		assert.Equal(t, bucket, buckets[1].Name)
	})

	t.Run("DeleteBucket", func(t *testing.T) {
		require.NoError(t, store.DeleteBucket(ctx, bucket))
		require.NoError(t, store.DeleteBucket(ctx, "archive"))

		err := store.DeleteBucket(ctx, bucket)
		assert.ErrorIs(t, err, cloudstorage.ErrNotFound)
	})
}
