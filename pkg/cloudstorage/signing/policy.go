package signing

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

// Condition match kinds.
const (
	MatchExact  = "eq"
	MatchPrefix = "starts-with"
	MatchRange  = "content-length-range"
)

// Form field names shared by the policy conditions and the assembled form.
const (
	FieldBucket             = "bucket"
	FieldKey                = "key"
	FieldCacheControl       = "Cache-Control"
	FieldContentDisposition = "Content-Disposition"
	FieldContentType        = "Content-Type"
	FieldPolicy             = "policy"
	FieldAlgorithm          = "x-amz-algorithm"
	FieldCredential         = "x-amz-credential"
	FieldDate               = "x-amz-date"
	FieldSignature          = "x-amz-signature"
	MetaPrefix              = "x-amz-meta-"

	// FilenamePlaceholder in a key is replaced by the uploaded file name.
	FilenamePlaceholder = "${filename}"
)

const policyExpirationFormat = "2006-01-02T15:04:05.000Z"

// Policy is the set of constraints attached to a signed upload.
type Policy struct {
	Bucket             string
	Key                string
	ContentType        string
	ContentDisposition string
	CacheControl       string
	Metadata           map[string]string
	ContentLength      *cloudstorage.LengthRange

	// ExpiresIn is added to the signing time. Negative values are allowed
	// and produce a policy that is already expired.
	ExpiresIn time.Duration
}

// BuildUploadPolicy validates the inputs and assembles a Policy. A nil
// opts.Expires selects cloudstorage.DefaultExpires.
func BuildUploadPolicy(bucket, blobName string, opts cloudstorage.UploadURLOptions) (*Policy, error) {
	if bucket == "" {
		return nil, cloudstorage.NewValidationError("container_name", "must not be empty")
	}
	if err := cloudstorage.ValidateBlobName(blobName); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	// Metadata keys are signed lowercased, as providers store them.
	attrs, err := opts.BlobAttributes.Normalize()
	if err != nil {
		return nil, err
	}
	p := &Policy{
		Bucket:             bucket,
		Key:                blobName,
		ContentType:        attrs.ContentType,
		ContentDisposition: attrs.ContentDisposition,
		CacheControl:       attrs.CacheControl,
		Metadata:           attrs.Metadata,
		ExpiresIn:          cloudstorage.ResolveExpires(opts.Expires, cloudstorage.DefaultExpires),
	}
	if opts.ContentLength != nil {
		r := *opts.ContentLength
		p.ContentLength = &r
	}
	return p, nil
}

// Conditions returns the policy constraints in canonical order: bucket, key,
// Cache-Control, Content-Disposition, Content-Type, metadata sorted by key,
// then the content length range.
func (p *Policy) Conditions() []Condition {
	conds := []Condition{Exact(FieldBucket, p.Bucket)}

	if prefix, ok := strings.CutSuffix(p.Key, FilenamePlaceholder); ok {
		conds = append(conds, Prefix(FieldKey, prefix))
	} else {
		conds = append(conds, Exact(FieldKey, p.Key))
	}

	for _, h := range p.headers() {
		conds = append(conds, Exact(h[0], h[1]))
	}
	if p.ContentLength != nil {
		conds = append(conds, Range(p.ContentLength.Min, p.ContentLength.Max))
	}
	return conds
}

// headers returns the exact-match form fields other than key, in canonical order.
func (p *Policy) headers() [][2]string {
	var out [][2]string
	if p.CacheControl != "" {
		out = append(out, [2]string{FieldCacheControl, p.CacheControl})
	}
	if p.ContentDisposition != "" {
		out = append(out, [2]string{FieldContentDisposition, p.ContentDisposition})
	}
	if p.ContentType != "" {
		out = append(out, [2]string{FieldContentType, p.ContentType})
	}
	keys := make([]string, 0, len(p.Metadata))
	for k := range p.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, [2]string{MetaPrefix + k, p.Metadata[k]})
	}
	return out
}

// Condition is one entry of a policy document.
type Condition struct {
	Match string
	Field string
	Value string
	Min   int64
	Max   int64
}

// Exact requires field to equal value.
func Exact(field, value string) Condition {
	return Condition{Match: MatchExact, Field: field, Value: value}
}

// Prefix requires field to start with value.
func Prefix(field, value string) Condition {
	return Condition{Match: MatchPrefix, Field: field, Value: value}
}

// Range bounds the uploaded file size.
func Range(lo, hi int64) Condition {
	return Condition{Match: MatchRange, Min: lo, Max: hi}
}

// MarshalJSON encodes exact matches in object form and the rest in array form.
func (c Condition) MarshalJSON() ([]byte, error) {
	switch c.Match {
	case MatchPrefix:
		return json.Marshal([]any{MatchPrefix, "$" + c.Field, c.Value})
	case MatchRange:
		return json.Marshal([]any{MatchRange, c.Min, c.Max})
	case MatchExact:
		return json.Marshal(map[string]string{c.Field: c.Value})
	default:
		return nil, fmt.Errorf("unknown condition %q", c.Match)
	}
}

// UnmarshalJSON accepts both object and array forms.
func (c *Condition) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrMalformedPolicy
	}

	if data[0] == '{' {
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil || len(m) != 1 {
			return fmt.Errorf("%w: condition %s", ErrMalformedPolicy, data)
		}
		for k, v := range m {
			*c = Exact(k, v)
		}
		return nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil || len(parts) != 3 {
		return fmt.Errorf("%w: condition %s", ErrMalformedPolicy, data)
	}
	var op string
	if err := json.Unmarshal(parts[0], &op); err != nil {
		return fmt.Errorf("%w: condition %s", ErrMalformedPolicy, data)
	}

	switch strings.ToLower(op) {
	case MatchRange:
		var lo, hi int64
		if json.Unmarshal(parts[1], &lo) != nil || json.Unmarshal(parts[2], &hi) != nil {
			return fmt.Errorf("%w: condition %s", ErrMalformedPolicy, data)
		}
		*c = Range(lo, hi)
	case MatchExact, MatchPrefix:
		var field, value string
		if json.Unmarshal(parts[1], &field) != nil || json.Unmarshal(parts[2], &value) != nil || !strings.HasPrefix(field, "$") {
			return fmt.Errorf("%w: condition %s", ErrMalformedPolicy, data)
		}
		*c = Condition{Match: strings.ToLower(op), Field: field[1:], Value: value}
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrMalformedPolicy, op)
	}
	return nil
}

// Document is the policy as signed: an expiration plus conditions.
type Document struct {
	Expiration time.Time
	Conditions []Condition
}

type documentJSON struct {
	Expiration string      `json:"expiration"`
	Conditions []Condition `json:"conditions"`
}

// MarshalJSON produces the canonical serialization that is base64 encoded and signed.
func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentJSON{
		Expiration: d.Expiration.UTC().Format(policyExpirationFormat),
		Conditions: d.Conditions,
	})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	exp, err := time.Parse(time.RFC3339, raw.Expiration)
	if err != nil {
		return fmt.Errorf("%w: expiration %q", ErrMalformedPolicy, raw.Expiration)
	}
	d.Expiration = exp
	d.Conditions = raw.Conditions
	return nil
}

// Encode returns the base64 form sent as the "policy" field.
func (d Document) Encode() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeDocument reverses Document.Encode.
func DecodeDocument(encoded string) (*Document, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPolicy, err)
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		if errors.Is(err, ErrMalformedPolicy) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedPolicy, err)
	}
	return &d, nil
}
