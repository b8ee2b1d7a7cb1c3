package analysis

import "errors"

// Rejected requests. None of these are retried.
var (
	ErrInvalidReference = errors.New("invalid polymarket reference")
	ErrNotFound         = errors.New("not found")
	ErrIndexOutOfRange  = errors.New("market index out of range")
	ErrNoMarketsInEvent = errors.New("event has no markets attached")
	ErrInvalidOptions   = errors.New("invalid analysis options")
)

// IsConfigurationError reports whether err rejects the request itself rather
// than reporting a remote or internal failure.
func IsConfigurationError(err error) bool {
	for _, target := range []error{
		ErrInvalidReference,
		ErrNotFound,
		ErrIndexOutOfRange,
		ErrNoMarketsInEvent,
		ErrInvalidOptions,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
