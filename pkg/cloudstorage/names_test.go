package cloudstorage_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

func TestValidateContainerName(t *testing.T) {
	valid := []string{"abc", "photos", "my-bucket.v2", "0123456789", strings.Repeat("a", 63)}
	for _, name := range valid {
		assert.NoError(t, cloudstorage.ValidateContainerName(name), name)
	}

	invalid := []string{
		"",
		"ab",
		strings.Repeat("a", 64),
		"?!<>container-name<>!?",
		"Photos",
		"-photos",
		"photos.",
		"my..bucket",
		"192.168.0.1",
		"under_score",
	}
	for _, name := range invalid {
		err := cloudstorage.ValidateContainerName(name)
		assert.ErrorIs(t, err, cloudstorage.ErrValidation, name)
		assert.ErrorIs(t, err, cloudstorage.ErrCloudStorage, name)
	}
}

func TestValidateBlobName(t *testing.T) {
	assert.NoError(t, cloudstorage.ValidateBlobName("image.png"))
	assert.NoError(t, cloudstorage.ValidateBlobName("dir/sub dir/ünïcode ✓.txt"))
	assert.NoError(t, cloudstorage.ValidateBlobName(strings.Repeat("a", 1024)))

	for _, name := range []string{"", strings.Repeat("a", 1025), "bad\x00name", "tab\tname", string([]byte{0xff, 0xfe})} {
		assert.ErrorIs(t, cloudstorage.ValidateBlobName(name), cloudstorage.ErrValidation, name)
	}
}

func TestValidateMetadataKey(t *testing.T) {
	assert.NoError(t, cloudstorage.ValidateMetadataKey("owner"))
	assert.NoError(t, cloudstorage.ValidateMetadataKey("x-trace_id.1"))

	for _, key := range []string{"", "with space", "a/b", "k=v", "ü"} {
		assert.ErrorIs(t, cloudstorage.ValidateMetadataKey(key), cloudstorage.ErrValidation, key)
	}
}
