package signing

import "time"

// State of a signed descriptor relative to a point in time.
type State int

const (
	StateValid State = iota
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// StateAt reports whether a descriptor expiring at expiration is still usable
// at now. A descriptor is expired from its expiration instant onwards.
func StateAt(expiration, now time.Time) State {
	if now.Before(expiration) {
		return StateValid
	}
	return StateExpired
}

// State evaluates expiration against the signer's clock.
func (s *Signer) State(expiration time.Time) State {
	return StateAt(expiration, s.clock())
}
