// Package errs defines the closed set of error kinds an organize event can
// fail with (spec.md §7). They are not exception classes: every event
// failure is caught inside the engine and recorded on the Result, never
// thrown to the caller.
package errs

import "fmt"

// Kind is one of the closed set of error kinds an event may fail with.
type Kind string

const (
	BadSignature      Kind = "BadSignature"
	Replay            Kind = "Replay"
	ExpiredDescriptor Kind = "ExpiredDescriptor"
	Bogon             Kind = "Bogon"
	NameConflict      Kind = "NameConflict"
	IPConflict        Kind = "IpConflict"
	PkConflict        Kind = "PkConflict"
	GatewayConflict   Kind = "GatewayConflict"
	SchemaErr         Kind = "SchemaError"
	NotFound          Kind = "NotFound"
	DescriptorTooLarge Kind = "DescriptorTooLarge"
	CorruptState      Kind = "CorruptState"
)

// Error is the wrapper type every event/action/codec failure is raised as.
// Its Error() string renders "<kind>: <detail>", matching Result.summary's
// "ERROR: <kind>: <detail>" format.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes errors.Is match any *Error target of the same Kind, such as the
// bare *Error that Sentinel returns.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a bare *Error for a kind, suitable for errors.Is
// comparisons in tests: errors.Is(err, errs.Sentinel(errs.Replay)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
