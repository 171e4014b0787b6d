package cloudstorage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"
)

// UploadFromPath uploads the file at path as blobName. An empty blobName
// uses the base name of the file.
func UploadFromPath(ctx context.Context, d Driver, container, blobName, path string, attrs BlobAttributes) (*Blob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewValidationError("path", "%v", err)
	}
	defer f.Close()

	if blobName == "" {
		blobName = filepath.Base(path)
	}
	return d.UploadBlob(ctx, container, blobName, f, attrs)
}

// Checksum accumulates the MD5 of everything written to it. Drivers report
// this value as Blob.Checksum.
type Checksum struct {
	h hash.Hash
	n int64
}

// NewChecksum returns an empty Checksum.
func NewChecksum() *Checksum {
	return &Checksum{h: md5.New()}
}

func (c *Checksum) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return c.h.Write(p)
}

// Size is the number of bytes written.
func (c *Checksum) Size() int64 {
	return c.n
}

// Sum returns the hex encoded digest.
func (c *Checksum) Sum() string {
	return hex.EncodeToString(c.h.Sum(nil))
}

// TeeReader returns a reader that feeds everything read from r into c.
func (c *Checksum) TeeReader(r io.Reader) io.Reader {
	return io.TeeReader(r, c)
}
