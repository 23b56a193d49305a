package identity

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrClinicNotFound = errors.New("clinic not found")
	ErrUserExists     = errors.New("user already exists")

	// ErrIDGenerationExhausted means every collision retry for a generated
	// public user id produced an id already in use.
	ErrIDGenerationExhausted = errors.New("failed to generate a unique user id")
)

// ValidationError carries a user-facing message for a 400 response.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }
