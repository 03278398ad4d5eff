package errors

import "fmt"

var (
	ErrUnauthenticated    = fmt.Errorf("missing, invalid or expired credential")
	ErrInvalidRecipient   = fmt.Errorf("recipient is unknown")
	ErrMalformedContent   = fmt.Errorf("content is empty or exceeds the maximum length")
	ErrStorageUnavailable = fmt.Errorf("storage is temporarily unavailable")
	ErrSessionReplaced    = fmt.Errorf("session replaced by a newer connection")

	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrIllegalStatusChange = fmt.Errorf("illegal delivery status transition")
	ErrMessageNotFound     = fmt.Errorf("message not found")
	ErrWorkerPanic         = fmt.Errorf("worker panic")
)
