package errors

import (
	"errors"
)

// Kinds of failure a release pipeline can end in. Specific errors
// wrap one of these, so callers can test for the kind with errors.Is
// while still seeing the specific message.
var (
	NotFound           = errors.New("not found")
	AccessDenied       = errors.New("access denied")
	InvalidDescriptor  = errors.New("invalid descriptor")
	RegistrationFailed = errors.New("registration failed")
	UpdateFailed       = errors.New("update failed")
	PreconditionFailed = errors.New("precondition failed")
)

var kinds = []error{
	NotFound,
	AccessDenied,
	InvalidDescriptor,
	RegistrationFailed,
	UpdateFailed,
	PreconditionFailed,
}

// WithKind classifies err as being of the given kind. The result
// unwraps to err, so the collaborator's own error (e.g., an AWS API
// error with its code and request ID) stays reachable.
func WithKind(kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

// Is matches the kind itself, and anything the kind wraps; e.g., a
// failure classified as ErrFamilyNotFound is also NotFound.
func (e *kindError) Is(target error) bool {
	return errors.Is(e.kind, target)
}

func (e *kindError) Unwrap() error {
	return e.err
}

func (e *kindError) Cause() error {
	return e.err
}

// KindOf returns the outermost kind in err's chain, or nil if the
// error has not been classified. A failure classified as UpdateFailed
// is of that kind even if its cause was classified as something else.
func KindOf(err error) error {
	for ; err != nil; err = errors.Unwrap(err) {
		if ke, ok := err.(*kindError); ok {
			return baseKind(ke.kind)
		}
		for _, k := range kinds {
			if err == k {
				return k
			}
		}
	}
	return nil
}

// baseKind maps a specific error, e.g., ErrFamilyNotFound, to the kind
// it wraps.
func baseKind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return err
}
