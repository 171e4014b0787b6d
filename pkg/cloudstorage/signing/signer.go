package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

// Algorithm is the only signature algorithm produced and accepted.
const Algorithm = "AWS4-HMAC-SHA256"

const (
	amzDateFormat   = "20060102T150405Z"
	shortDateFormat = "20060102"
	scopeTerminator = "aws4_request"
	defaultService  = "s3"
)

// Signer derives Signature Version 4 signatures for upload policies and
// download URLs. It holds no mutable state and is safe for concurrent use.
type Signer struct {
	clock   func() time.Time
	service string
	v4      *v4.Signer
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		clock:   time.Now,
		service: defaultService,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.v4 = v4.NewSigner(func(o *v4.SignerOptions) {
		// object keys are escaped once by EscapeKey
		o.DisableURIPathEscaping = true
	})
	return s
}

// Signature is the output of SignPolicy.
type Signature struct {
	Algorithm  string
	Credential string
	Date       string // x-amz-date, e.g. 20240102T030405Z
	Policy     string // base64 policy document
	Value      string // hex encoded HMAC-SHA256
	SignedAt   time.Time
	Expiration time.Time
}

// SignPolicy serializes p with an expiration of now+p.ExpiresIn and signs it
// with a key derived from creds. An expiration in the past is a valid result.
func (s *Signer) SignPolicy(p *Policy, creds Credentials) (*Signature, error) {
	if p == nil {
		return nil, cloudstorage.NewValidationError("policy", "must not be nil")
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if p.Bucket == "" {
		return nil, cloudstorage.NewValidationError("container_name", "must not be empty")
	}
	if err := cloudstorage.ValidateBlobName(p.Key); err != nil {
		return nil, err
	}

	now := s.now()
	sig := &Signature{
		Algorithm:  Algorithm,
		Credential: creds.credential(now, s.service),
		Date:       now.Format(amzDateFormat),
		SignedAt:   now,
		Expiration: now.Add(p.ExpiresIn),
	}

	doc := Document{
		Expiration: sig.Expiration,
		Conditions: append(p.Conditions(),
			Exact(FieldAlgorithm, sig.Algorithm),
			Exact(FieldCredential, sig.Credential),
			Exact(FieldDate, sig.Date),
		),
	}
	encoded, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	sig.Policy = encoded
	sig.Value = s.signString(creds.Secret, now.Format(shortDateFormat), creds.Region, encoded)
	return sig, nil
}

// Now returns the signer's clock reading truncated to whole seconds, the
// resolution of x-amz-date.
func (s *Signer) Now() time.Time {
	return s.now()
}

func (s *Signer) now() time.Time {
	return s.clock().UTC().Truncate(time.Second)
}

func (s *Signer) signString(secret, date, region, payload string) string {
	key := signingKey(secret, date, region, s.service)
	return hex.EncodeToString(hmacSHA256(key, []byte(payload)))
}

// signingKey derives the SigV4 key: HMAC("AWS4"+secret, date) chained over
// region, service and the scope terminator.
func signingKey(secret, date, region, service string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), []byte(date))
	k = hmacSHA256(k, []byte(region))
	k = hmacSHA256(k, []byte(service))
	return hmacSHA256(k, []byte(scopeTerminator))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
