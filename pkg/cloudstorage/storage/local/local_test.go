package local_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/signing"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/local"
	memorystorage "github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/memory"
)

var creds = signing.Credentials{Key: "AKIDLOCAL", Secret: "local-secret", Region: "local"}

func newDriver(t *testing.T, keys signing.Keyring) *local.Driver {
	t.Helper()
	d, err := local.New(local.Config{
		Store:       memorystorage.New(),
		Endpoint:    "http://localhost:8080/storage/",
		Credentials: creds,
		Keyring:     keys,
	})
	require.NoError(t, err)
	return d
}

func TestNew(t *testing.T) {
	_, err := local.New(local.Config{Endpoint: "http://localhost/storage"})
	assert.Error(t, err)

	_, err = local.New(local.Config{Store: memorystorage.New(), Endpoint: "localhost/storage"})
	assert.ErrorIs(t, err, cloudstorage.ErrValidation)
}

func TestValidateCredentials(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, newDriver(t, nil).ValidateCredentials(ctx))

	wrongSecret := newDriver(t, signing.StaticKeyring{creds.Key: "other"})
	err := wrongSecret.ValidateCredentials(ctx)
	var credErr *cloudstorage.CredentialsError
	require.ErrorAs(t, err, &credErr)
	assert.NotEmpty(t, credErr.Message)

	unknown := newDriver(t, signing.StaticKeyring{})
	assert.ErrorIs(t, unknown.ValidateCredentials(ctx), cloudstorage.ErrCredentials)

	_, err = unknown.CreateContainer(ctx, "photos")
	require.NoError(t, err)
	post, err := unknown.GenerateContainerUploadURL(ctx, "photos", "image.png", cloudstorage.UploadURLOptions{})
	assert.Nil(t, post)
	assert.ErrorIs(t, err, cloudstorage.ErrCredentials)

	_, err = unknown.GenerateBlobDownloadURL(ctx, "photos", "image.png", cloudstorage.DownloadURLOptions{})
	assert.ErrorIs(t, err, cloudstorage.ErrCredentials)
}

func TestContainerLifecycle(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t, nil)

	_, err := d.CreateContainer(ctx, "?!<>container-name<>!?")
	assert.ErrorIs(t, err, cloudstorage.ErrCloudStorage)

	c, err := d.CreateContainer(ctx, "photos")
	require.NoError(t, err)
	assert.Equal(t, "local", c.Driver)

	_, err = d.GetContainer(ctx, "missing")
	assert.ErrorIs(t, err, cloudstorage.ErrNotFound)

	blob, err := d.UploadBlob(ctx, "photos", "a.txt", strings.NewReader("data"), cloudstorage.BlobAttributes{})
	require.NoError(t, err)
	assert.Equal(t, "8d777f385d3dfec8815d20f7496026dc", blob.Checksum)

	err = d.DeleteContainer(ctx, "photos")
	var notEmpty *cloudstorage.IsNotEmptyError
	assert.ErrorAs(t, err, &notEmpty)

	var buf bytes.Buffer
	require.NoError(t, d.DownloadBlob(ctx, "photos", "a.txt", &buf))
	assert.Equal(t, "data", buf.String())

	blobs, err := d.ListBlobs(ctx, "photos", "")
	require.NoError(t, err)
	assert.Len(t, blobs, 1)

	require.NoError(t, d.DeleteBlob(ctx, "photos", "a.txt"))
	assert.ErrorIs(t, d.DeleteBlob(ctx, "photos", "a.txt"), cloudstorage.ErrNotFound)
	assert.ErrorIs(t, d.DownloadBlob(ctx, "photos", "a.txt", &buf), cloudstorage.ErrNotFound)

	require.NoError(t, d.DeleteContainer(ctx, "photos"))
	containers, err := d.ListContainers(ctx)
	require.NoError(t, err)
	assert.Empty(t, containers)
}

func TestCDN(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t, nil)

	_, err := d.EnableContainerCDN(ctx, "photos")
	assert.ErrorIs(t, err, cloudstorage.ErrNotFound)

	_, err = d.CreateContainer(ctx, "photos")
	require.NoError(t, err)
	_, err = d.UploadBlob(ctx, "photos", "dir/a b.txt", strings.NewReader("x"), cloudstorage.BlobAttributes{})
	require.NoError(t, err)

	changed, err := d.EnableContainerCDN(ctx, "photos")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, d.IsPublic("photos"))

	c, err := d.GetContainer(ctx, "photos")
	require.NoError(t, err)
	assert.True(t, c.CDNEnabled)

	url, err := d.ContainerCDNURL(ctx, "photos")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/storage/photos", url)

	url, err = d.BlobCDNURL(ctx, "photos", "dir/a b.txt")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/storage/photos/dir/a%20b.txt", url)

	changed, err = d.DisableContainerCDN(ctx, "photos")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, d.IsPublic("photos"))
}

func TestGenerateContainerUploadURL(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t, nil)
	_, err := d.CreateContainer(ctx, "photos")
	require.NoError(t, err)

	post, err := d.GenerateContainerUploadURL(ctx, "photos", "image.png", cloudstorage.UploadURLOptions{
		BlobAttributes: cloudstorage.BlobAttributes{ContentType: "image/png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/storage/photos", post.URL)
	assert.Equal(t, "image.png", post.Fields[signing.FieldKey])
	assert.Equal(t, "image/png", post.Fields[signing.FieldContentType])
	assert.NotEmpty(t, post.Fields[signing.FieldSignature])
	assert.NotEmpty(t, post.Fields[signing.FieldPolicy])

	_, err = d.GenerateContainerUploadURL(ctx, "photos", "", cloudstorage.UploadURLOptions{})
	assert.ErrorIs(t, err, cloudstorage.ErrValidation)
}
