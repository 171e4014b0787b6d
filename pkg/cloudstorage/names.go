package cloudstorage

import (
	"net"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minContainerName = 3
	maxContainerName = 63
	maxBlobName      = 1024
)

// ValidateContainerName applies the S3 bucket naming rules, which are the
// strictest of the supported providers.
func ValidateContainerName(name string) error {
	if len(name) < minContainerName || len(name) > maxContainerName {
		return NewValidationError("container_name", "%q must be between %d and %d characters", name, minContainerName, maxContainerName)
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '.') {
			return NewValidationError("container_name", "%q contains invalid character %q", name, r)
		}
	}
	if !isAlnum(name[0]) || !isAlnum(name[len(name)-1]) {
		return NewValidationError("container_name", "%q must start and end with a letter or digit", name)
	}
	if strings.Contains(name, "..") {
		return NewValidationError("container_name", "%q must not contain consecutive dots", name)
	}
	if net.ParseIP(name) != nil {
		return NewValidationError("container_name", "%q must not be formatted as an IP address", name)
	}
	return nil
}

// ValidateBlobName rejects empty names, names over 1024 bytes, invalid UTF-8
// and control characters.
func ValidateBlobName(name string) error {
	if name == "" {
		return NewValidationError("blob_name", "must not be empty")
	}
	if len(name) > maxBlobName {
		return NewValidationError("blob_name", "must not exceed %d bytes", maxBlobName)
	}
	if !utf8.ValidString(name) {
		return NewValidationError("blob_name", "must be valid UTF-8")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return NewValidationError("blob_name", "contains control character %U", r)
		}
	}
	return nil
}

// ValidateMetadataKey accepts the header-token characters S3 allows in x-amz-meta-* names.
func ValidateMetadataKey(key string) error {
	if key == "" {
		return NewValidationError("meta_data", "metadata key must not be empty")
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c <= ' ' || c >= 0x7f || strings.IndexByte("()<>@,;:\\\"/[]?={}", c) >= 0 {
			return NewValidationError("meta_data", "metadata key %q contains invalid character %q", key, c)
		}
	}
	return nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
