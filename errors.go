package lambdaroute

import (
	"github.com/joomcode/errorx"
)

// Errors is the namespace for every error type raised by the router.
var Errors = errorx.NewNamespace("lambdaroute")

var (
	// ErrUnmatched is raised when a payload matches no known envelope shape.
	ErrUnmatched = Errors.NewType("unmatched", errorx.NotFound())

	// ErrNotFound is raised when no handler is registered for a routing key.
	ErrNotFound = Errors.NewType("not_found", errorx.NotFound())

	// ErrDuplicateRegistration is raised when two handlers claim the same
	// kind and routing key.
	ErrDuplicateRegistration = Errors.NewType("duplicate_registration", errorx.Duplicate())

	// ErrRegistrySealed is raised when a handler is registered after the
	// router started dispatching.
	ErrRegistrySealed = Errors.NewType("registry_sealed")

	// ErrDecode is raised when an embedded payload cannot be decoded into
	// the handler's payload type.
	ErrDecode = Errors.NewType("decode")

	// ErrInvalidHandlerResult is raised when a handler returns something that
	// cannot be turned into a response.
	ErrInvalidHandlerResult = Errors.NewType("invalid_handler_result")

	// ErrHandler wraps an error returned by a handler.
	ErrHandler = Errors.NewType("handler")

	// ErrSink wraps an error returned by the fallback sink.
	ErrSink = Errors.NewType("sink")

	// ErrInternal is raised for unexpected failures, including recovered panics.
	ErrInternal = Errors.NewType("internal")
)

// Properties attached to router errors for diagnostics.
var (
	PropertyKind   = errorx.RegisterProperty("kind")
	PropertyKey    = errorx.RegisterProperty("key")
	PropertyValue  = errorx.RegisterProperty("value")
	PropertyTarget = errorx.RegisterProperty("target")
	PropertyRecord = errorx.RegisterProperty("record")
)

// errorName returns the short type name of a router error, or "internal" for
// anything else.
func errorName(err error) string {
	types := []*errorx.Type{
		ErrUnmatched,
		ErrNotFound,
		ErrDuplicateRegistration,
		ErrRegistrySealed,
		ErrDecode,
		ErrInvalidHandlerResult,
		ErrHandler,
		ErrSink,
	}
	names := []string{
		"unmatched",
		"not_found",
		"duplicate_registration",
		"registry_sealed",
		"decode",
		"invalid_handler_result",
		"handler",
		"sink",
	}
	for i, t := range types {
		if errorx.IsOfType(err, t) {
			return names[i]
		}
	}
	return "internal"
}

// errorMessage returns the message of a router error without the type
// prefix, followed by its cause if it wraps one.
func errorMessage(err error) string {
	e := errorx.Cast(err)
	if e == nil || e.Message() == "" {
		return err.Error()
	}
	if cause := e.Cause(); cause != nil {
		return e.Message() + ": " + cause.Error()
	}
	return e.Message()
}
