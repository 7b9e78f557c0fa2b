package domain

import "errors"

// Domain errors
var (
	ErrBusy              = errors.New("another operation is in progress")
	ErrCancelled         = errors.New("operation cancelled")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrEncryptedDocument = errors.New("document is password protected")
	ErrCorruptDocument   = errors.New("document is corrupt")
	ErrUnreadableImage   = errors.New("image cannot be decoded")
	ErrFileTooLarge      = errors.New("file too large")
	ErrOutsideRoot       = errors.New("path outside scratch root")
	ErrCapabilityMissing = errors.New("capability unavailable")
)
