// Package shared defines the mission dispatcher's error taxonomy (§7).
//
// Errors are categorized by functional area the way the teacher's
// shared/errors.go groups robot-management errors, but each category here
// is a typed DispatchError carrying a Kind, rather than a flat list of
// errors.New sentinels — per the design note, error_code is modeled as
// per-Kind static metadata instead of a base-class attribute shared across
// instances. github.com/pkg/errors.Wrap is used where an adapter error
// (store/broker) needs folding into one of these with its cause preserved.
package shared

import (
	"errors"
	"fmt"
)

// Kind classifies a DispatchError per §7's taxonomy.
type Kind string

const (
	// KindUsage: invalid mission tree, invalid update target, cancel on a
	// terminal mission. Surfaced to the API with a 4xx-equivalent status.
	KindUsage Kind = "usage"
	// KindServer: internal invariant violation. Surfaced as 5xx.
	KindServer Kind = "server"
	// KindTransient: broker/store connection lost or MQTT hostname
	// unresolved. Recovered with bounded-retry reconnect.
	KindTransient Kind = "transient"
	// KindRobotProtocol: FATAL VDA5050 error from a robot. Propagated as
	// mission FAILURE with the raw errorDescription joined into
	// failure_reason.
	KindRobotProtocol Kind = "robot_protocol"
	// KindTimeout: mission or notify timeout.
	KindTimeout Kind = "timeout"
	// KindCanceled: user-initiated cancellation.
	KindCanceled Kind = "canceled"
)

// codes holds the per-Kind static error code, replacing the base-error
// class attribute the Python original reused across every instance.
var codes = map[Kind]string{
	KindUsage:         "E_USAGE",
	KindServer:        "E_SERVER",
	KindTransient:     "E_TRANSIENT",
	KindRobotProtocol: "E_ROBOT_PROTOCOL",
	KindTimeout:       "E_TIMEOUT",
	KindCanceled:      "E_CANCELED",
}

// HTTPStatus returns the 4xx/5xx-equivalent status for a Kind, used by the
// gateway to translate dispatch errors into responses.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUsage:
		return 400
	case KindTimeout:
		return 408
	case KindCanceled:
		return 409
	case KindTransient:
		return 503
	case KindRobotProtocol, KindServer:
		return 500
	default:
		return 500
	}
}

// DispatchError is the single error type that crosses component
// boundaries in the dispatcher. Agents never let errors escape as panics
// or bare returns to the dispatcher loop; they translate every failure
// into one of these and fold it into a state transition on the owned
// mission/robot (§7's propagation policy).
type DispatchError struct {
	Kind  Kind
	Code  string
	Msg   string
	Cause error
}

func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Msg)
}

func (e *DispatchError) Unwrap() error { return e.Cause }

func newError(kind Kind, cause error, format string, args ...interface{}) *DispatchError {
	return &DispatchError{
		Kind:  kind,
		Code:  codes[kind],
		Msg:   fmt.Sprintf(format, args...),
		Cause: cause,
	}
}

// NewUsageError builds a KindUsage DispatchError.
func NewUsageError(format string, args ...interface{}) *DispatchError {
	return newError(KindUsage, nil, format, args...)
}

// NewServerError builds a KindServer DispatchError, optionally wrapping an
// underlying cause (e.g. a nil-pointer guard tripped, an invariant check
// failed).
func NewServerError(cause error, format string, args ...interface{}) *DispatchError {
	return newError(KindServer, cause, format, args...)
}

// NewTransientError builds a KindTransient DispatchError wrapping the
// underlying store/broker connection failure.
func NewTransientError(cause error, format string, args ...interface{}) *DispatchError {
	return newError(KindTransient, cause, format, args...)
}

// NewRobotProtocolError builds a KindRobotProtocol DispatchError from a
// VDA5050 FATAL error description.
func NewRobotProtocolError(format string, args ...interface{}) *DispatchError {
	return newError(KindRobotProtocol, nil, format, args...)
}

// NewTimeoutError builds a KindTimeout DispatchError.
func NewTimeoutError(format string, args ...interface{}) *DispatchError {
	return newError(KindTimeout, nil, format, args...)
}

// NewCanceledError builds a KindCanceled DispatchError.
func NewCanceledError(format string, args ...interface{}) *DispatchError {
	return newError(KindCanceled, nil, format, args...)
}

// AsDispatchError unwraps err looking for a *DispatchError, mirroring the
// standard errors.As pattern.
func AsDispatchError(err error) (*DispatchError, bool) {
	var de *DispatchError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Store/gateway sentinel errors — kept flat like the teacher's list since
// callers match them with errors.Is rather than inspecting a Kind.
var (
	// ErrNotFound indicates the requested Robot or Mission does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrAlreadyExists indicates a create collided with an existing name.
	ErrAlreadyExists = errors.New("object already exists")
	// ErrLifecycleConflict indicates a lifecycle transition was attempted
	// from a state that does not permit it (e.g. DELETED -> ALIVE, or
	// PENDING_DELETE -> DELETED while not idle).
	ErrLifecycleConflict = errors.New("lifecycle transition not permitted")
)
