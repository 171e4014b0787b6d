package cloudstorage

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Option keys accepted by ParseUploadURLOptions and ParseDownloadURLOptions.
const (
	OptionContentType        = "content_type"
	OptionContentDisposition = "content_disposition"
	OptionCacheControl       = "cache_control"
	OptionMetaData           = "meta_data"
	OptionExpires            = "expires"
	OptionContentLength      = "content_length_range"
)

// ParseUploadURLOptions converts a loosely typed option map, as received from
// JSON or query strings, into UploadURLOptions. Unknown keys are rejected.
func ParseUploadURLOptions(raw map[string]any) (UploadURLOptions, error) {
	var opts UploadURLOptions
	for _, key := range sortedKeys(raw) {
		value := raw[key]
		var err error
		switch key {
		case OptionContentType:
			opts.ContentType, err = asString(key, value)
		case OptionContentDisposition:
			opts.ContentDisposition, err = asString(key, value)
		case OptionCacheControl:
			opts.CacheControl, err = asString(key, value)
		case OptionMetaData:
			opts.Metadata, err = asStringMap(key, value)
		case OptionExpires:
			var d time.Duration
			d, err = asSeconds(key, value)
			opts.Expires = &d
		case OptionContentLength:
			opts.ContentLength, err = asLengthRange(key, value)
		default:
			return UploadURLOptions{}, NewValidationError(key, "unknown upload option")
		}
		if err != nil {
			return UploadURLOptions{}, err
		}
	}
	return opts, opts.Validate()
}

// ParseDownloadURLOptions is the download counterpart of ParseUploadURLOptions.
func ParseDownloadURLOptions(raw map[string]any) (DownloadURLOptions, error) {
	var opts DownloadURLOptions
	for _, key := range sortedKeys(raw) {
		value := raw[key]
		var err error
		switch key {
		case OptionContentDisposition:
			opts.ContentDisposition, err = asString(key, value)
		case OptionExpires:
			var d time.Duration
			d, err = asSeconds(key, value)
			opts.Expires = &d
		default:
			return DownloadURLOptions{}, NewValidationError(key, "unknown download option")
		}
		if err != nil {
			return DownloadURLOptions{}, err
		}
	}
	return opts, nil
}

// Validate checks metadata keys and the content length range.
func (o UploadURLOptions) Validate() error {
	if _, err := o.BlobAttributes.Normalize(); err != nil {
		return err
	}
	if r := o.ContentLength; r != nil {
		if r.Min < 0 || r.Max < r.Min {
			return NewValidationError(OptionContentLength, "invalid range [%d, %d]", r.Min, r.Max)
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", NewValidationError(key, "expected string, got %T", v)
	}
	return s, nil
}

func asStringMap(key string, v any) (map[string]string, error) {
	switch m := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, nil
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, val := range m {
			s, ok := val.(string)
			if !ok {
				return nil, NewValidationError(key, "value of %q must be a string, got %T", k, val)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, NewValidationError(key, "expected mapping, got %T", v)
	}
}

func asInt64(key string, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, NewValidationError(key, "expected integer, got %v", n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, NewValidationError(key, "expected integer, got %q", n)
		}
		return i, nil
	case fmt.Stringer:
		return asInt64(key, n.String())
	default:
		return 0, NewValidationError(key, "expected integer, got %T", v)
	}
}

// maxSeconds is the largest whole-second count a time.Duration holds.
const maxSeconds = int64(math.MaxInt64 / time.Second)

func asSeconds(key string, v any) (time.Duration, error) {
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}
	n, err := asInt64(key, v)
	if err != nil {
		return 0, err
	}
	if n > maxSeconds || n < -maxSeconds {
		return 0, NewValidationError(key, "%d seconds is out of range", n)
	}
	return time.Duration(n) * time.Second, nil
}

func asLengthRange(key string, v any) (*LengthRange, error) {
	switch r := v.(type) {
	case LengthRange:
		return &r, nil
	case *LengthRange:
		return r, nil
	case []int64:
		if len(r) == 2 {
			return &LengthRange{Min: r[0], Max: r[1]}, nil
		}
	case []any:
		if len(r) == 2 {
			lo, err := asInt64(key, r[0])
			if err != nil {
				return nil, err
			}
			hi, err := asInt64(key, r[1])
			if err != nil {
				return nil, err
			}
			return &LengthRange{Min: lo, Max: hi}, nil
		}
	}
	return nil, NewValidationError(key, "expected [min, max] pair")
}
