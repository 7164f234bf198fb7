package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request failed domain validation.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a state conflict, e.g. posting an already posted receipt.
	ErrConflict = errors.New("conflict")
	// ErrSchemaUnavailable indicates the organisation's storage schema is not provisioned.
	ErrSchemaUnavailable = errors.New("storage schema unavailable")
)
