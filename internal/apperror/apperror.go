package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies failures that cross the request boundary.
type Kind int

const (
	Internal Kind = iota
	Validation
	Unauthorized
	Forbidden
	NotFound
	Conflict
	InvalidToken
	ExpiredToken
	Delivery
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case InvalidToken:
		return "invalid_token"
	case ExpiredToken:
		return "expired_token"
	case Delivery:
		return "delivery"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// KindOf reports the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Message returns the user-facing message of err, or a generic one for
// anything that is not an *Error.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != Internal {
		return ae.Message
	}
	return "internal server error"
}

func ValidationFailed(field, message string) *Error {
	return &Error{Kind: Validation, Field: field, Message: message}
}

func Unauthenticated() *Error {
	return &Error{Kind: Unauthorized, Message: "authentication required"}
}

func NotOwner(resource string) *Error {
	return &Error{Kind: Forbidden, Message: fmt.Sprintf("%s belongs to another user", resource)}
}

func Missing(resource string) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func Duplicate(resource, field string) *Error {
	return &Error{Kind: Conflict, Field: field, Message: fmt.Sprintf("%s already exists", resource)}
}

func TokenInvalid() *Error {
	return &Error{Kind: InvalidToken, Message: "sign-in link is invalid or has already been used"}
}

func TokenExpired() *Error {
	return &Error{Kind: ExpiredToken, Message: "sign-in link has expired"}
}

func DeliveryFailed(err error) *Error {
	return &Error{Kind: Delivery, Message: "could not send sign-in email", Err: err}
}

func Wrap(err error, message string) *Error {
	return &Error{Kind: Internal, Message: message, Err: err}
}
