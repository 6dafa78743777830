package mendz

import (
	"errors"
	"fmt"
)

// Sentinel errors for the synthesis pipeline.
var (
	// ErrUnsupportedType indicates the target type contains a construct
	// with no structural representation (func, chan, interface, unsafe
	// pointer, or a self-referential nesting). Surfaced at construction;
	// synthesis is impossible for such types.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrTimeout indicates the deadline elapsed before the backend responded.
	ErrTimeout = errors.New("model call timed out")

	// ErrUnreachable indicates a transport-level failure reaching the backend.
	ErrUnreachable = errors.New("model backend unreachable")

	// ErrBackendRejected indicates the backend itself reported an error status.
	ErrBackendRejected = errors.New("model backend rejected request")
)

// BackendError carries the backend's error status alongside its message.
// Providers return it so the engine can classify the failure as
// ErrBackendRejected while hooks still see the raw status code.
type BackendError struct {
	Status  int    // HTTP status code reported by the backend
	Message string // Error message from the backend, if any
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error: status %d", e.Status)
	}
	return fmt.Sprintf("backend error (%d): %s", e.Status, e.Message)
}

// Is reports ErrBackendRejected so callers can classify with errors.Is.
func (*BackendError) Is(target error) bool {
	return target == ErrBackendRejected
}

// Rejection describes why a model response failed validation. The path of
// the first failing field is reported so the next attempt can ask the model
// to correct that specific violation.
type Rejection struct {
	Path string // JSON path of the offending value ("" for the root)
	Want string // Expected kind at that path
	Got  string // Observed kind, or a parse error description
}

func (r *Rejection) Error() string {
	path := r.Path
	if path == "" {
		path = "$"
	}
	return fmt.Sprintf("response rejected at %s: want %s, got %s", path, r.Want, r.Got)
}

// Unparseable reports whether the rejection came from the syntactic gate
// rather than the structural conformance check.
func (r *Rejection) Unparseable() bool {
	return r.Want == "json"
}

// MaterializationError indicates a validated structural value violated a
// finer-grained invariant while converting into the target type (numeric
// range, precision, or the type's own Validate).
type MaterializationError struct {
	Path   string // Field path where conversion failed ("" for the root)
	Reason string // Human-readable violation description
}

func (e *MaterializationError) Error() string {
	path := e.Path
	if path == "" {
		path = "$"
	}
	return fmt.Sprintf("materialization failed at %s: %s", path, e.Reason)
}
