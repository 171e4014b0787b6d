package signing

import (
	"strings"
	"time"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

// Credentials are the long-lived key pair a driver signs with. They are
// copied into the driver at construction and never mutated afterwards.
type Credentials struct {
	Key    string
	Secret string
	Region string
}

// Validate reports missing parts of the key pair as a *cloudstorage.CredentialsError.
func (c Credentials) Validate() error {
	switch {
	case c.Key == "":
		return cloudstorage.NewCredentialsError("access key is required", nil)
	case c.Secret == "":
		return cloudstorage.NewCredentialsError("secret key is required", nil)
	case strings.Contains(c.Key, "/"):
		return cloudstorage.NewCredentialsError("access key must not contain '/'", nil)
	case c.Region == "":
		return cloudstorage.NewValidationError("region", "must not be empty")
	}
	return nil
}

// String never includes the secret.
func (c Credentials) String() string {
	return c.Key + "@" + c.Region
}

func (c Credentials) scope(t time.Time, service string) string {
	return strings.Join([]string{t.UTC().Format(shortDateFormat), c.Region, service, scopeTerminator}, "/")
}

func (c Credentials) credential(t time.Time, service string) string {
	return c.Key + "/" + c.scope(t, service)
}

// Keyring resolves the secret of an access key on the verifying side.
type Keyring interface {
	Secret(accessKey string) (string, bool)
}

// StaticKeyring is a fixed access key to secret mapping.
type StaticKeyring map[string]string

// NewKeyring builds a StaticKeyring from credentials.
func NewKeyring(creds ...Credentials) StaticKeyring {
	k := make(StaticKeyring, len(creds))
	for _, c := range creds {
		k[c.Key] = c.Secret
	}
	return k
}

// Secret implements Keyring.
func (k StaticKeyring) Secret(accessKey string) (string, bool) {
	secret, ok := k[accessKey]
	return secret, ok
}

// credentialScope is a parsed X-Amz-Credential value.
type credentialScope struct {
	AccessKey string
	Date      string
	Region    string
	Service   string
}

func parseCredential(value string) (credentialScope, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 5 || parts[4] != scopeTerminator || parts[0] == "" || len(parts[1]) != len(shortDateFormat) {
		return credentialScope{}, ErrMalformedCredential
	}
	return credentialScope{
		AccessKey: parts[0],
		Date:      parts[1],
		Region:    parts[2],
		Service:   parts[3],
	}, nil
}
