package apperr

import "errors"

// Sentinel errors for the core error taxonomy. Services wrap these with %w and
// the HTTP layer maps them to status codes in one place.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrValidation          = errors.New("validation failed")
	ErrAuth                = errors.New("authentication failed")
	ErrUnparseableURL      = errors.New("unparseable post url")
	ErrRPCTransient        = errors.New("rpc transient failure")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrAdapterMissing      = errors.New("no adapter registered for platform")
)

func IsNotFound(err error) bool          { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool         { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool          { return errors.Is(err, ErrConflict) }
func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }
func IsValidation(err error) bool        { return errors.Is(err, ErrValidation) }
