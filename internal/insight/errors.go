package insight

import "errors"

// Sentinel errors surfaced across subsystem boundaries. Callers match
// with errors.Is; wrapped variants carry the underlying cause.
var (
	// ErrNotFound signals an absent conversation, or one owned by a
	// different user on read/delete.
	ErrNotFound = errors.New("conversation not found")

	// ErrForbidden signals an owner mismatch on append. No write occurs.
	ErrForbidden = errors.New("conversation owned by another user")

	// ErrOracleUnavailable signals that the recommendation call failed
	// or timed out. Fatal to the request; no automatic retry.
	ErrOracleUnavailable = errors.New("recommendation oracle unavailable")

	// ErrPersistenceFailed signals that the oracle succeeded but the
	// history write did not. The recommendation is still returned.
	ErrPersistenceFailed = errors.New("conversation write failed")
)
