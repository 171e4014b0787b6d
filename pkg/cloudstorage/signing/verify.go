package signing

import (
	"crypto/hmac"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Form fields that are never covered by a policy condition.
const (
	fieldFile          = "file"
	ignoredFieldPrefix = "x-ignore-"
)

// Verifier re-validates signed descriptors on the serving side. Checks run in
// order: signature, expiry, then policy conditions.
type Verifier struct {
	keys   Keyring
	signer *Signer
}

// NewVerifier creates a Verifier resolving secrets through keys. The signer
// supplies the clock and service name; nil selects New().
func NewVerifier(keys Keyring, signer *Signer) *Verifier {
	if signer == nil {
		signer = New()
	}
	return &Verifier{keys: keys, signer: signer}
}

// VerifyForm checks a multipart POST upload addressed to bucket. fields holds
// the non-file form values and size is the length of the uploaded file.
// The decoded policy is returned on success.
func (v *Verifier) VerifyForm(bucket string, fields map[string]string, size int64) (*Document, error) {
	lower := make(map[string]string, len(fields))
	for k, val := range fields {
		lower[strings.ToLower(k)] = val
	}

	var missing []string
	for _, name := range []string{FieldPolicy, FieldAlgorithm, FieldCredential, FieldDate, FieldSignature} {
		if _, ok := lower[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	if lower[FieldAlgorithm] != Algorithm {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, lower[FieldAlgorithm])
	}

	scope, err := parseCredential(lower[FieldCredential])
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(lower[FieldDate], scope.Date+"T") {
		return nil, fmt.Errorf("%w: %s %q is outside the credential scope date %s",
			ErrInvalidSignature, FieldDate, lower[FieldDate], scope.Date)
	}
	secret, ok := v.keys.Secret(scope.AccessKey)
	if !ok {
		return nil, ErrUnknownAccessKey
	}

	expected := signingKey(secret, scope.Date, scope.Region, scope.Service)
	mac := hmacSHA256(expected, []byte(lower[FieldPolicy]))
	if !hmac.Equal([]byte(hex.EncodeToString(mac)), []byte(strings.ToLower(lower[FieldSignature]))) {
		return nil, ErrInvalidSignature
	}

	doc, err := DecodeDocument(lower[FieldPolicy])
	if err != nil {
		return nil, err
	}
	if StateAt(doc.Expiration, v.signer.clock()) == StateExpired {
		return nil, fmt.Errorf("%w at %s", ErrExpired, doc.Expiration.UTC().Format(time.RFC3339))
	}

	_, bucketSent := lower[FieldBucket]
	if !bucketSent {
		lower[FieldBucket] = bucket
	} else if lower[FieldBucket] != bucket {
		return nil, fmt.Errorf("%w: bucket %q does not match %q", ErrPolicyViolation, lower[FieldBucket], bucket)
	}

	covered := map[string]bool{}
	for _, c := range doc.Conditions {
		if err := checkCondition(c, lower, size); err != nil {
			return nil, err
		}
		if c.Match != MatchRange {
			covered[strings.ToLower(c.Field)] = true
		}
	}
	for name := range lower {
		if name == FieldPolicy || name == FieldSignature || name == fieldFile ||
			strings.HasPrefix(name, ignoredFieldPrefix) || covered[name] {
			continue
		}
		if name == FieldBucket && !bucketSent {
			continue
		}
		return nil, fmt.Errorf("%w: field %q is not covered by the policy", ErrPolicyViolation, name)
	}
	return doc, nil
}

func checkCondition(c Condition, fields map[string]string, size int64) error {
	switch c.Match {
	case MatchRange:
		if size < c.Min || size > c.Max {
			return fmt.Errorf("%w: size %d outside [%d, %d]", ErrPolicyViolation, size, c.Min, c.Max)
		}
		return nil
	case MatchExact, MatchPrefix:
		got, ok := fields[strings.ToLower(c.Field)]
		if !ok {
			return fmt.Errorf("%w: missing field %q", ErrPolicyViolation, c.Field)
		}
		if c.Match == MatchExact && got != c.Value {
			return fmt.Errorf("%w: field %q must equal %q", ErrPolicyViolation, c.Field, c.Value)
		}
		if c.Match == MatchPrefix && !strings.HasPrefix(got, c.Value) {
			return fmt.Errorf("%w: field %q must start with %q", ErrPolicyViolation, c.Field, c.Value)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown condition %q", ErrMalformedPolicy, c.Match)
	}
}

// VerifyDownload checks a presigned GET request. The request URL is rebuilt
// from the Host header and the escaped path, then signed again at the
// original signing time.
func (v *Verifier) VerifyDownload(r *http.Request) error {
	q := r.URL.Query()
	for _, name := range []string{QueryAlgorithm, QueryCredential, QueryDate, QueryExpires, QuerySignature} {
		if q.Get(name) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}
	if q.Get(QueryAlgorithm) != Algorithm {
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, q.Get(QueryAlgorithm))
	}

	scope, err := parseCredential(q.Get(QueryCredential))
	if err != nil {
		return err
	}
	secret, ok := v.keys.Secret(scope.AccessKey)
	if !ok {
		return ErrUnknownAccessKey
	}
	signedAt, err := time.Parse(amzDateFormat, q.Get(QueryDate))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMissingField, QueryDate)
	}
	expires, err := strconv.ParseInt(q.Get(QueryExpires), 10, 64)
	if err != nil || expires < 1 {
		return fmt.Errorf("%w: %s", ErrMissingField, QueryExpires)
	}

	signature := q.Get(QuerySignature)
	q.Del(QuerySignature)
	rebuilt := url.URL{
		Scheme:   "http",
		Host:     r.Host,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: q.Encode(),
	}
	resigned, err := v.signer.presign(r.Context(), rebuilt.String(), scope.AccessKey, secret, scope.Region, signedAt)
	if err != nil {
		return err
	}
	ru, err := url.Parse(resigned)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(ru.Query().Get(QuerySignature)), []byte(signature)) {
		return ErrInvalidSignature
	}

	expiration := signedAt.Add(time.Duration(expires) * time.Second)
	if StateAt(expiration, v.signer.clock()) == StateExpired {
		return fmt.Errorf("%w at %s", ErrExpired, expiration.UTC().Format(time.RFC3339))
	}
	return nil
}
