// Package linkerr defines the error kinds shared by the serial link manager,
// the configuration translator and the profile store.
//
// Every failure is reported as an *Error carrying a Kind, a human readable
// message and, for configuration problems, the offending field name.
package linkerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors that carry no Kind.
	KindUnknown Kind = iota
	ConfigInvalid
	PortUnavailable
	PermissionDenied
	AlreadyOpen
	NotOpen
	IOReadError
	IOWriteError
	DeviceRemoved
	Timeout
	Unsupported
	SchemaError
	NameRequired
)

var kindNames = map[Kind]string{
	KindUnknown:      "Unknown",
	ConfigInvalid:    "ConfigInvalid",
	PortUnavailable:  "PortUnavailable",
	PermissionDenied: "PermissionDenied",
	AlreadyOpen:      "AlreadyOpen",
	NotOpen:          "NotOpen",
	IOReadError:      "IOReadError",
	IOWriteError:     "IOWriteError",
	DeviceRemoved:    "DeviceRemoved",
	Timeout:          "Timeout",
	Unsupported:      "Unsupported",
	SchemaError:      "SchemaError",
	NameRequired:     "NameRequired",
}

// String returns the kind name
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText renders the kind as its name so records serialize readably.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsFatal reports whether an error of this kind ends the link.
func (k Kind) IsFatal() bool {
	return k == DeviceRemoved || k == IOReadError
}

// Error is the record attached to a failed operation.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Err     error  `json:"-"`
}

// New creates an error record of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error record with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// InvalidField creates a ConfigInvalid record for a single field.
func InvalidField(field, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    ConfigInvalid,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and, when set on the target, by field.
// This lets callers write errors.Is(err, &linkerr.Error{Kind: linkerr.NotOpen}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

// KindOf returns the kind of the first *Error found in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, &Error{Kind: kind})
}

// Join combines records into a single error. It returns nil for an empty slice.
func Join(records []*Error) error {
	if len(records) == 0 {
		return nil
	}
	if len(records) == 1 {
		return records[0]
	}
	errs := make([]error, len(records))
	for i, r := range records {
		errs[i] = r
	}
	return errors.Join(errs...)
}

// Records flattens err into the *Error records it contains, in order.
func Records(err error) []*Error {
	if err == nil {
		return nil
	}

	var out []*Error
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if r, ok := e.(*Error); ok {
			out = append(out, r)
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		walk(errors.Unwrap(e))
	}
	walk(err)

	return out
}

// Fields returns the distinct invalid field names carried by err.
func Fields(err error) []string {
	var fields []string
	seen := make(map[string]bool)
	for _, r := range Records(err) {
		if r.Field == "" || seen[r.Field] {
			continue
		}
		seen[r.Field] = true
		fields = append(fields, r.Field)
	}
	return fields
}
