// Package errors has the kinds of failure a release can end in, and
// the Error type used to present a failure to the operator.
package errors

import (
	"errors"
)

// Error is a failure as shown to the operator. Failures are divided
// into a few types, essentially by whose fault they are; i.e., is
// this error:
//   - a problem with the platform, so worth trying again?
//   - not going to work until the user does something else first, e.g.,
//     pushes the image, or fixes the task definition?
type Error struct {
	Type Type
	// what to print for the user; says which step failed and what
	// might be done about it
	Help string
	// the underlying error, with the collaborator's diagnostics
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the underlying error, so that its kind can still be
// tested with errors.Is.
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause is the github.com/pkg/errors equivalent of Unwrap.
func (e *Error) Cause() error {
	return e.Err
}

type Type string

const (
	// The release looked fine on paper, but the platform failed it
	Server Type = "server"
	// The thing you mentioned, whatever it is, just doesn't exist
	Missing Type = "missing"
	// The release can't happen as asked (e.g., because the tag is
	// mutable, or the task definition is unusable)
	User Type = "user"
)

// As finds the *Error in err's chain, if there is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsMissing is true if err is, or wraps, an Error of type Missing.
func IsMissing(err error) bool {
	e, ok := As(err)
	return ok && e.Type == Missing
}
