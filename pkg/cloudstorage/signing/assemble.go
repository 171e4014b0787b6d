package signing

import (
	"net/url"
	"strings"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

// AssembleFormPost combines a signed policy with the provider endpoint into an
// upload descriptor. The bucket is addressed by endpoint, so it is carried as
// a policy condition only.
func AssembleFormPost(endpoint string, p *Policy, sig *Signature) (*cloudstorage.FormPost, error) {
	if p == nil || sig == nil {
		return nil, cloudstorage.NewValidationError("policy", "must be signed before assembly")
	}
	if _, err := parseEndpoint(endpoint); err != nil {
		return nil, err
	}

	fields := map[string]string{
		FieldKey:        p.Key,
		FieldPolicy:     sig.Policy,
		FieldAlgorithm:  sig.Algorithm,
		FieldCredential: sig.Credential,
		FieldDate:       sig.Date,
		FieldSignature:  sig.Value,
	}
	for _, h := range p.headers() {
		fields[h[0]] = h[1]
	}

	return &cloudstorage.FormPost{
		URL:        endpoint,
		Fields:     fields,
		Expiration: sig.Expiration,
	}, nil
}

// ObjectURL joins an endpoint and an object key. The key is escaped with EscapeKey.
func ObjectURL(endpoint, key string) (string, error) {
	u, err := parseEndpoint(endpoint)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(u.EscapedPath(), "/")
	escaped := base + "/" + EscapeKey(key)
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return "", cloudstorage.NewValidationError("blob_name", "%v", err)
	}
	u.Path = path
	u.RawPath = escaped
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// EscapeKey percent-encodes every byte of key outside the unreserved set,
// keeping '/' as the segment separator.
func EscapeKey(key string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, cloudstorage.NewValidationError("endpoint", "%v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, cloudstorage.NewValidationError("endpoint", "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, cloudstorage.NewValidationError("endpoint", "missing host")
	}
	return u, nil
}
