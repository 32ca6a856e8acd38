package access

import (
	"context"
	"errors"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotFoundOrDenied     = errors.New("not found or access denied")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrInvalidInput         = errors.New("invalid input")
	ErrStorage              = errors.New("storage failure")
	ErrNotification         = errors.New("notification failure")
)

// Error carries the kind of an access failure together with the entity and
// operation it happened on.
type Error struct {
	Kind    error
	Entity  string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("access")
	if e.Entity != "" || e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.Op != "" {
			b.WriteString(".")
			b.WriteString(e.Op)
		}
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// PublicMessage is safe to show to end users. Storage failures never expose
// the driver's text.
func (e *Error) PublicMessage() string {
	if errors.Is(e.Kind, ErrStorage) {
		return "the request could not be completed"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "the request could not be completed"
}

// PublicMessage extracts the user-facing message from err.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.PublicMessage()
	}
	return "the request could not be completed"
}

// KindOf returns the error kind of err, or nil when err is not an access
// error.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrUnauthenticated, ErrUnauthorized, ErrNotFoundOrDenied,
		ErrUnsupportedOperation, ErrInvalidInput, ErrStorage, ErrNotification,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// StorageFailure wraps a persistence error. Errors that already carry an
// access kind, and context cancellations, are returned untouched.
func StorageFailure(entity, op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: ErrStorage, Entity: entity, Op: op, Err: err}
}

// InvalidInput reports a request the caller must correct.
func InvalidInput(entity, op, message string) error {
	return &Error{Kind: ErrInvalidInput, Entity: entity, Op: op, Message: message}
}

// NotFoundOrDenied reports a row that does not exist or is not visible.
func NotFoundOrDenied(entity, op string) error {
	return &Error{Kind: ErrNotFoundOrDenied, Entity: entity, Op: op}
}

// Unsupported reports an operation the entity's configuration cannot serve.
func Unsupported(entity, op, message string) error {
	return &Error{Kind: ErrUnsupportedOperation, Entity: entity, Op: op, Message: message}
}
