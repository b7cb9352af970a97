package apperrors

import "errors"

// Kind classifies a failure independently of the transport that reports it.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindDataAccess     Kind = "data_access"
	KindConfiguration  Kind = "configuration"
	KindForbidden      Kind = "forbidden"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
)

// Error carries a Kind, a user-facing message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so callers can write
// errors.Is(err, apperrors.ErrAuthentication).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrDataAccess     = &Error{Kind: KindDataAccess}
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrInvalidInput   = &Error{Kind: KindInvalidInput}
)

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap annotates err with a kind. An err that already carries a kind keeps it.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		kind = existing.Kind
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Authentication wraps an identity provider failure; the provider message is
// kept as the user-facing text.
func Authentication(msg string, err error) error {
	return &Error{Kind: KindAuthentication, Message: msg, Err: err}
}

// DataAccess wraps a failed backend read or write.
func DataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindDataAccess, Message: op + ": " + err.Error(), Err: err}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
