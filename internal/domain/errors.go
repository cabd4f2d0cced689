package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrIntegrity marks a fingerprint mismatch on stored content. It is a
	// security-relevant fault, never auto-resolved, and always blocks publish.
	ErrIntegrity = errors.New("integrity violation")
)
