package patient

import "errors"

var (
	ErrPatientNotFound       = errors.New("patient not found")
	ErrVisitNotFound         = errors.New("visit not found")
	ErrAccessDenied          = errors.New("patient belongs to another clinic")
	ErrIDGenerationExhausted = errors.New("patient id generation exhausted retries")
)

// ValidationError reports a missing or invalid field in a request payload.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }
