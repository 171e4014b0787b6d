package signing

import "errors"

// Verification errors returned by Verifier. Generating a descriptor never
// returns ErrExpired; expiry is only enforced when the descriptor is used.
var (
	// ErrMissingField is returned when a required signature field or query parameter is absent
	ErrMissingField = errors.New("signing: missing field")

	// ErrUnsupportedAlgorithm is returned for any algorithm other than AWS4-HMAC-SHA256
	ErrUnsupportedAlgorithm = errors.New("signing: unsupported algorithm")

	// ErrMalformedCredential is returned when the credential scope cannot be parsed
	ErrMalformedCredential = errors.New("signing: malformed credential")

	// ErrUnknownAccessKey is returned when the access key is not in the keyring
	ErrUnknownAccessKey = errors.New("signing: unknown access key")

	// ErrInvalidSignature is returned when the signature does not match
	ErrInvalidSignature = errors.New("signing: invalid signature")

	// ErrExpired is returned when the descriptor is used at or after its expiration
	ErrExpired = errors.New("signing: descriptor has expired")

	// ErrMalformedPolicy is returned when the policy document cannot be decoded
	ErrMalformedPolicy = errors.New("signing: malformed policy")

	// ErrPolicyViolation is returned when a form field breaks a policy condition
	ErrPolicyViolation = errors.New("signing: policy condition violated")
)

// IsAuthError returns true if the error should be answered with 403 Forbidden
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnknownAccessKey) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrPolicyViolation)
}
