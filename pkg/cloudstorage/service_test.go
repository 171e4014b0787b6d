package cloudstorage_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

type mockDriver struct {
	mock.Mock
}

func (m *mockDriver) Name() string { return "mock" }

func (m *mockDriver) ValidateCredentials(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDriver) CreateContainer(ctx context.Context, name string) (*cloudstorage.Container, error) {
	args := m.Called(ctx, name)
	c, _ := args.Get(0).(*cloudstorage.Container)
	return c, args.Error(1)
}

func (m *mockDriver) GetContainer(ctx context.Context, name string) (*cloudstorage.Container, error) {
	args := m.Called(ctx, name)
	c, _ := args.Get(0).(*cloudstorage.Container)
	return c, args.Error(1)
}

func (m *mockDriver) DeleteContainer(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockDriver) ListContainers(ctx context.Context) ([]*cloudstorage.Container, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).([]*cloudstorage.Container)
	return c, args.Error(1)
}

func (m *mockDriver) UploadBlob(ctx context.Context, container, blobName string, r io.Reader, attrs cloudstorage.BlobAttributes) (*cloudstorage.Blob, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(ctx, container, blobName, string(data), attrs)
	b, _ := args.Get(0).(*cloudstorage.Blob)
	return b, args.Error(1)
}

func (m *mockDriver) GetBlob(ctx context.Context, container, blobName string) (*cloudstorage.Blob, error) {
	args := m.Called(ctx, container, blobName)
	b, _ := args.Get(0).(*cloudstorage.Blob)
	return b, args.Error(1)
}

func (m *mockDriver) DownloadBlob(ctx context.Context, container, blobName string, w io.Writer) error {
	return m.Called(ctx, container, blobName, w).Error(0)
}

func (m *mockDriver) DeleteBlob(ctx context.Context, container, blobName string) error {
	return m.Called(ctx, container, blobName).Error(0)
}

func (m *mockDriver) ListBlobs(ctx context.Context, container, prefix string) ([]*cloudstorage.Blob, error) {
	args := m.Called(ctx, container, prefix)
	b, _ := args.Get(0).([]*cloudstorage.Blob)
	return b, args.Error(1)
}

func (m *mockDriver) EnableContainerCDN(ctx context.Context, container string) (bool, error) {
	args := m.Called(ctx, container)
	return args.Bool(0), args.Error(1)
}

func (m *mockDriver) DisableContainerCDN(ctx context.Context, container string) (bool, error) {
	args := m.Called(ctx, container)
	return args.Bool(0), args.Error(1)
}

func (m *mockDriver) ContainerCDNURL(ctx context.Context, container string) (string, error) {
	args := m.Called(ctx, container)
	return args.String(0), args.Error(1)
}

func (m *mockDriver) BlobCDNURL(ctx context.Context, container, blobName string) (string, error) {
	args := m.Called(ctx, container, blobName)
	return args.String(0), args.Error(1)
}

func (m *mockDriver) GenerateContainerUploadURL(ctx context.Context, container, blobName string, opts cloudstorage.UploadURLOptions) (*cloudstorage.FormPost, error) {
	args := m.Called(ctx, container, blobName, opts)
	p, _ := args.Get(0).(*cloudstorage.FormPost)
	return p, args.Error(1)
}

func (m *mockDriver) GenerateBlobDownloadURL(ctx context.Context, container, blobName string, opts cloudstorage.DownloadURLOptions) (string, error) {
	args := m.Called(ctx, container, blobName, opts)
	return args.String(0), args.Error(1)
}

func TestNew(t *testing.T) {
	_, err := cloudstorage.New()
	assert.Error(t, err)

	svc, err := cloudstorage.New(cloudstorage.WithDriver("only", &mockDriver{}))
	require.NoError(t, err)
	assert.Equal(t, "only", svc.DefaultDriver())

	_, err = cloudstorage.New(
		cloudstorage.WithDriver("a", &mockDriver{}),
		cloudstorage.WithDriver("b", &mockDriver{}),
	)
	assert.Error(t, err, "ambiguous default must be rejected")

	svc, err = cloudstorage.New(
		cloudstorage.WithDriver("b", &mockDriver{}),
		cloudstorage.WithDriver("a", &mockDriver{}),
		cloudstorage.WithDefaultDriver("b"),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, svc.Drivers())

	_, err = svc.GetDriver("missing")
	assert.ErrorIs(t, err, cloudstorage.ErrDriverNotFound)

	svc.RegisterDriver("c", &mockDriver{})
	_, err = svc.GetDriver("c")
	assert.NoError(t, err)
}

func TestGenerateUploadURL(t *testing.T) {
	ctx := context.Background()
	opts := cloudstorage.UploadURLOptions{BlobAttributes: cloudstorage.BlobAttributes{ContentType: "image/png"}}

	t.Run("resolves container then signs", func(t *testing.T) {
		driver := &mockDriver{}
		svc, err := cloudstorage.New(cloudstorage.WithDriver("mock", driver))
		require.NoError(t, err)

		want := &cloudstorage.FormPost{URL: "https://photos.example.com/", Fields: map[string]string{"key": "image.png"}}
		driver.On("GetContainer", ctx, "photos").Return(&cloudstorage.Container{Name: "photos"}, nil)
		driver.On("GenerateContainerUploadURL", ctx, "photos", "image.png", opts).Return(want, nil)

		post, err := svc.GenerateUploadURL(ctx, cloudstorage.UploadURLRequest{Container: "photos", BlobName: "image.png", Options: opts})
		require.NoError(t, err)
		assert.Same(t, want, post)
		driver.AssertExpectations(t)
	})

	t.Run("missing container", func(t *testing.T) {
		driver := &mockDriver{}
		svc, err := cloudstorage.New(cloudstorage.WithDriver("mock", driver))
		require.NoError(t, err)

		driver.On("GetContainer", ctx, "nope").Return(nil, cloudstorage.ContainerNotFound("nope"))

		_, err = svc.GenerateUploadURL(ctx, cloudstorage.UploadURLRequest{Container: "nope", BlobName: "image.png"})
		assert.ErrorIs(t, err, cloudstorage.ErrNotFound)
		driver.AssertNotCalled(t, "GenerateContainerUploadURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty blob name", func(t *testing.T) {
		driver := &mockDriver{}
		svc, err := cloudstorage.New(cloudstorage.WithDriver("mock", driver))
		require.NoError(t, err)

		_, err = svc.GenerateUploadURL(ctx, cloudstorage.UploadURLRequest{Container: "photos"})
		assert.ErrorIs(t, err, cloudstorage.ErrValidation)
		driver.AssertExpectations(t)
	})

	t.Run("credentials rejected", func(t *testing.T) {
		driver := &mockDriver{}
		svc, err := cloudstorage.New(cloudstorage.WithDriver("mock", driver))
		require.NoError(t, err)

		driver.On("GetContainer", ctx, "photos").Return(&cloudstorage.Container{Name: "photos"}, nil)
		driver.On("GenerateContainerUploadURL", ctx, "photos", "image.png", opts).
			Return(nil, cloudstorage.NewCredentialsError("secret rejected", nil))

		post, err := svc.GenerateUploadURL(ctx, cloudstorage.UploadURLRequest{Container: "photos", BlobName: "image.png", Options: opts})
		assert.Nil(t, post)
		var credErr *cloudstorage.CredentialsError
		require.ErrorAs(t, err, &credErr)
		assert.NotEmpty(t, credErr.Message)
	})
}

func TestGenerateDownloadURL(t *testing.T) {
	ctx := context.Background()
	driver := &mockDriver{}
	svc, err := cloudstorage.New(cloudstorage.WithDriver("mock", driver))
	require.NoError(t, err)

	opts := cloudstorage.DownloadURLOptions{ContentDisposition: "attachment"}
	driver.On("GetBlob", ctx, "photos", "image.png").Return(&cloudstorage.Blob{Name: "image.png"}, nil)
	driver.On("GenerateBlobDownloadURL", ctx, "photos", "image.png", opts).Return("https://signed", nil)
	driver.On("GetBlob", ctx, "photos", "missing.png").Return(nil, cloudstorage.BlobNotFound("photos", "missing.png"))

	url, err := svc.GenerateDownloadURL(ctx, cloudstorage.DownloadURLRequest{Container: "photos", BlobName: "image.png", Options: opts})
	require.NoError(t, err)
	assert.Equal(t, "https://signed", url)

	_, err = svc.GenerateDownloadURL(ctx, cloudstorage.DownloadURLRequest{Container: "photos", BlobName: "missing.png"})
	assert.ErrorIs(t, err, cloudstorage.ErrNotFound)

	_, err = svc.GenerateDownloadURL(ctx, cloudstorage.DownloadURLRequest{Driver: "other", Container: "photos", BlobName: "image.png"})
	assert.ErrorIs(t, err, cloudstorage.ErrDriverNotFound)
}

func TestValidateCredentials(t *testing.T) {
	ctx := context.Background()
	driver := &mockDriver{}
	svc, err := cloudstorage.New(cloudstorage.WithDriver("mock", driver))
	require.NoError(t, err)

	driver.On("ValidateCredentials", ctx).Return(cloudstorage.NewCredentialsError("", nil)).Once()
	assert.ErrorIs(t, svc.ValidateCredentials(ctx, ""), cloudstorage.ErrCredentials)

	driver.On("ValidateCredentials", ctx).Return(nil).Once()
	assert.NoError(t, svc.ValidateCredentials(ctx, "mock"))
}

func TestPurgeContainers(t *testing.T) {
	ctx := context.Background()
	driver := &mockDriver{}
	svc, err := cloudstorage.New(cloudstorage.WithDriver("mock", driver))
	require.NoError(t, err)

	driver.On("ListContainers", ctx).Return([]*cloudstorage.Container{
		{Name: "test-1"}, {Name: "keep"}, {Name: "test-2"},
	}, nil)
	driver.On("ListBlobs", ctx, "test-1", "").Return([]*cloudstorage.Blob{{Name: "a"}, {Name: "b"}}, nil)
	driver.On("ListBlobs", ctx, "test-2", "").Return([]*cloudstorage.Blob{}, nil)
	driver.On("DeleteBlob", ctx, "test-1", "a").Return(nil)
	driver.On("DeleteBlob", ctx, "test-1", "b").Return(cloudstorage.BlobNotFound("test-1", "b"))
	driver.On("DeleteContainer", ctx, "test-1").Return(nil)
	driver.On("DeleteContainer", ctx, "test-2").Return(nil)

	removed, err := svc.PurgeContainers(ctx, "", "test-")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	driver.AssertNotCalled(t, "ListBlobs", ctx, "keep", "")
	driver.AssertExpectations(t)

	failing := &mockDriver{}
	svc, err = cloudstorage.New(cloudstorage.WithDriver("mock", failing))
	require.NoError(t, err)
	failing.On("ListContainers", ctx).Return(nil, errors.New("boom"))
	_, err = svc.PurgeContainers(ctx, "", "test-")
	assert.Error(t, err)
}

func TestUploadFromPath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	driver := &mockDriver{}
	attrs := cloudstorage.BlobAttributes{ContentType: "text/plain"}
	driver.On("UploadBlob", ctx, "docs", "report.txt", "hello", attrs).Return(&cloudstorage.Blob{Name: "report.txt"}, nil)

	blob, err := cloudstorage.UploadFromPath(ctx, driver, "docs", "", path, attrs)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", blob.Name)

	_, err = cloudstorage.UploadFromPath(ctx, driver, "docs", "x", filepath.Join(t.TempDir(), "missing"), attrs)
	assert.ErrorIs(t, err, cloudstorage.ErrValidation)
}

func TestChecksum(t *testing.T) {
	c := cloudstorage.NewChecksum()
	_, err := io.Copy(io.Discard, c.TeeReader(strings.NewReader("hello")))
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", c.Sum())
	assert.Equal(t, int64(5), c.Size())
}
