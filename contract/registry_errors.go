package contract

import "errors"

// Error taxonomy of the registry. Every public operation that fails returns
// one of these sentinels wrapped with context, so callers can match the kind
// with errors.Is while still seeing what happened.
var (
	// ErrUnauthorized: the caller lacks the required role or ownership relation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument: empty or malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound: unknown certificate or institution identifier.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyRevoked: second revocation attempt on the same certificate.
	ErrAlreadyRevoked = errors.New("certificate already revoked")
	// ErrCapacityExceeded: certificate identifier space exhausted.
	ErrCapacityExceeded = errors.New("certificate identifier space exhausted")
)
