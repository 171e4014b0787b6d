package memory_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	memorystorage "github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/memory"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/storagetest"
)

func TestMemoryBackend(t *testing.T) {
	storagetest.RunObjectStoreTests(t, memorystorage.New())
}

func TestMemoryBackendConcurrentPuts(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	_, err := backend.CreateBucket(ctx, "photos")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := backend.PutObject(ctx, "photos", fmt.Sprintf("obj-%02d", i), strings.NewReader("data"), cloudstorage.BlobAttributes{})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	blobs, err := backend.ListObjects(ctx, "photos", "obj-")
	require.NoError(t, err)
	assert.Len(t, blobs, 20)
}
