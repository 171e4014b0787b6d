package cloudstorage

import (
	"strings"
	"time"
)

// DefaultExpires is the lifetime of a signed descriptor when the caller does not pick one.
const DefaultExpires = time.Hour

// Container is a named bucket-like namespace holding blobs.
type Container struct {
	Name       string            `json:"name"`
	Driver     string            `json:"driver"`
	CDNEnabled bool              `json:"cdn_enabled"`
	CreatedAt  time.Time         `json:"created_at,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Blob is a named object stored within a container.
type Blob struct {
	Name               string            `json:"name"`
	Container          string            `json:"container"`
	Size               int64             `json:"size"`
	// Checksum is the MD5 hex of the content. S3-compatible drivers derive it
	// from the ETag and leave it empty for multipart uploads, whose ETag is
	// not a content digest.
	Checksum           string            `json:"checksum"`
	ETag               string            `json:"etag,omitempty"`
	ContentType        string            `json:"content_type,omitempty"`
	ContentDisposition string            `json:"content_disposition,omitempty"`
	CacheControl       string            `json:"cache_control,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at,omitempty"`
	ModifiedAt         time.Time         `json:"modified_at,omitempty"`
}

// BlobAttributes are the stored headers of a blob.
type BlobAttributes struct {
	ContentType        string            `json:"content_type,omitempty"`
	ContentDisposition string            `json:"content_disposition,omitempty"`
	CacheControl       string            `json:"cache_control,omitempty"`
	Metadata           map[string]string `json:"meta_data,omitempty"`
}

// LengthRange bounds the size of an uploaded file in bytes, inclusive.
type LengthRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// UploadURLOptions enumerates every option accepted when generating an upload descriptor.
type UploadURLOptions struct {
	BlobAttributes

	// ContentLength, when set, adds a content-length-range constraint.
	ContentLength *LengthRange

	// Expires is the descriptor lifetime. Nil selects DefaultExpires; zero or
	// negative values produce a descriptor that is already expired.
	Expires *time.Duration
}

// DownloadURLOptions enumerates every option accepted when generating a download URL.
type DownloadURLOptions struct {
	// ContentDisposition overrides the Content-Disposition header of the response.
	ContentDisposition string

	// Expires follows the same rules as UploadURLOptions.Expires.
	Expires *time.Duration
}

// FormPost is a signed upload descriptor consumed by a multipart form POST.
type FormPost struct {
	URL        string            `json:"url"`
	Fields     map[string]string `json:"fields"`
	Expiration time.Time         `json:"-"`
}

// Expires returns a pointer to d for use in option structs.
func Expires(d time.Duration) *time.Duration {
	return &d
}

// ResolveExpires returns the lifetime selected by expires, falling back to def.
func ResolveExpires(expires *time.Duration, def time.Duration) time.Duration {
	if expires == nil {
		return def
	}
	return *expires
}

// Clone returns a deep copy of the attributes.
func (a BlobAttributes) Clone() BlobAttributes {
	out := a
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Normalize returns a copy of a with metadata keys lowercased, the form
// providers store them in. Keys that collide once lowercased are rejected.
func (a BlobAttributes) Normalize() (BlobAttributes, error) {
	out := a
	if a.Metadata == nil {
		return out, nil
	}
	out.Metadata = make(map[string]string, len(a.Metadata))
	for k, v := range a.Metadata {
		if err := ValidateMetadataKey(k); err != nil {
			return BlobAttributes{}, err
		}
		lower := strings.ToLower(k)
		if _, dup := out.Metadata[lower]; dup {
			return BlobAttributes{}, NewValidationError(OptionMetaData, "metadata key %q is duplicated ignoring case", k)
		}
		out.Metadata[lower] = v
	}
	return out, nil
}

// Attributes returns the stored headers of b.
func (b *Blob) Attributes() BlobAttributes {
	return BlobAttributes{
		ContentType:        b.ContentType,
		ContentDisposition: b.ContentDisposition,
		CacheControl:       b.CacheControl,
		Metadata:           b.Metadata,
	}.Clone()
}
