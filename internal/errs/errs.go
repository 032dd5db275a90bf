// Package errs defines the error kinds an export run can fail or degrade with.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can decide between aborting, warning
// and continuing without string matching.
type Kind string

const (
	KindUnknown  Kind = "UNKNOWN"
	KindInternal Kind = "INTERNAL"

	// KindValidation marks a malformed target record, package or setting.
	KindValidation Kind = "VALIDATION"
	// KindVendorFilesLost means neither the current file nor its backup is
	// an original vendor file. The only fix is re-verifying the installation.
	KindVendorFilesLost Kind = "VENDOR_FILES_LOST"
	KindPermission      Kind = "PERMISSION_DENIED"
	// KindMissingDependency marks an absent input, e.g. the compiler dir.
	KindMissingDependency Kind = "MISSING_DEPENDENCY"
	// KindSoftExport is an optional step failing without failing the run.
	KindSoftExport Kind = "SOFT_EXPORT"
	KindCancelled  Kind = "CANCELLED"
)

// Error is a Kind-tagged error with optional structured details.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
	}
	return e.Message
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a kind and message. It returns nil if err is nil.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Wrapped: err}
}

// Wrapf wraps err with a kind and formatted message.
func Wrapf(err error, kind Kind, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// WithDetail attaches a detail value and returns e.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsKind reports whether any error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Detail returns a detail value from the outermost *Error in err's chain.
func Detail(err error, key string) (interface{}, bool) {
	var e *Error
	if errors.As(err, &e) && e.Details != nil {
		v, ok := e.Details[key]
		return v, ok
	}
	return nil, false
}
