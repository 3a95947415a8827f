package vecset

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine. Callers should use errors.Is to
// test for them rather than comparing against *OpError directly.
var (
	// ErrInvalidParams is returned when Params fails validation.
	ErrInvalidParams = errors.New("vecset: invalid parameters")

	// ErrDimensionMismatch is returned when a vector's length does not
	// match the index's configured dimension.
	ErrDimensionMismatch = errors.New("vecset: vector dimension mismatch")

	// ErrQuantizationMismatch is returned when a reload's stored
	// quantization mode, dimension, or projection dimension disagrees with
	// the Params supplied to Load.
	ErrQuantizationMismatch = errors.New("vecset: quantization mode mismatch")

	// ErrNodeNotFound is returned when an operation references a node ID
	// that is not present in the index.
	ErrNodeNotFound = errors.New("vecset: node not found")

	// ErrCorruptGraph is returned by Load when the serialized graph fails
	// the duplicate-link, layer-monotonicity, or reciprocity audit.
	ErrCorruptGraph = errors.New("vecset: corrupt serialized graph")

	// ErrContention is returned by TryCommitInsert when the index's
	// version fence advanced between Prepare and commit. The caller must
	// retry with the blocking Insert.
	ErrContention = errors.New("vecset: optimistic insert lost the race, retry with a blocking insert")

	// ErrAlreadyCommitted is returned when TryCommitInsert is called
	// twice on the same InsertContext.
	ErrAlreadyCommitted = errors.New("vecset: insert context already committed")
)

// OpError wraps an error with the name of the operation that produced it,
// so callers and logs can tell "search" failures from "insert" failures
// without string-matching the message.
type OpError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vecset: %v", e.Err)
	}
	return fmt.Sprintf("vecset: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// Is reports whether the wrapped error matches target.
func (e *OpError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}
