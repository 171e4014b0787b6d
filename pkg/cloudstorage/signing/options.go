package signing

import "time"

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithClock replaces the wall clock. Signatures are deterministic for a fixed clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Signer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithService sets the service name used in the credential scope
// Default is "s3"
func WithService(service string) Option {
	return func(s *Signer) {
		s.service = service
	}
}
