package strategy

import "errors"

// Sentinel errors to be used with errors.Is
var (
	// ErrInvalidConfiguration is returned for an unknown strategy name or a malformed parameter
	ErrInvalidConfiguration = errors.New("invalid strategy configuration")
	// ErrIncompatibleEndpoints is returned if block transfer was requested but
	// source and destination do not share a dump format
	ErrIncompatibleEndpoints = errors.New("endpoints are not compatible with block transfer")
	// ErrNotImplemented is returned by New for a kind without a registered constructor.
	// It indicates a programming error, not a user error.
	ErrNotImplemented = errors.New("strategy not implemented")
	// ErrUnsupportedType is returned by Copy for keys holding a value type that cannot be replayed
	ErrUnsupportedType = errors.New("unsupported value type")
	// ErrVerificationFailed is returned by callers that treat failed verifications as fatal
	ErrVerificationFailed = errors.New("verification failed")
)
