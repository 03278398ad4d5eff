package errors

import "errors"

// Wire codes surfaced to connected clients inside error frames.
// Anything unmapped becomes CodeInternal so internal details never leak.
const (
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeInvalidRecipient = "INVALID_RECIPIENT"
	CodeMalformedContent = "MALFORMED_CONTENT"
	CodeTransientStorage = "TRANSIENT_STORAGE_FAILURE"
	CodeInternal         = "INTERNAL"
)

// MapToWireCode converts a domain error into its transport error code.
func MapToWireCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidCredentials):
		return CodeUnauthenticated
	case errors.Is(err, ErrInvalidRecipient):
		return CodeInvalidRecipient
	case errors.Is(err, ErrMalformedContent):
		return CodeMalformedContent
	case errors.Is(err, ErrStorageUnavailable):
		return CodeTransientStorage
	default:
		return CodeInternal
	}
}
