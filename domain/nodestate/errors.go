package nodestate

import "github.com/pkg/errors"

// ErrInternalConsistency is matched by every error caused by the node's own
// state rather than by its input. Once one is returned, the NodeState
// refuses further mutations.
var ErrInternalConsistency = errors.New("internal consistency failure")

// InternalConsistencyError wraps the failure that halted a NodeState.
type InternalConsistencyError struct {
	Err error
}

// Error satisfies the error interface and prints human-readable errors.
func (e InternalConsistencyError) Error() string {
	return ErrInternalConsistency.Error() + ": " + e.Err.Error()
}

// Unwrap satisfies the errors.Unwrap interface
func (e InternalConsistencyError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInternalConsistency
func (e InternalConsistencyError) Is(target error) bool {
	return target == ErrInternalConsistency
}

// IsInternalConsistencyError returns whether err halted a NodeState.
func IsInternalConsistencyError(err error) bool {
	return errors.Is(err, ErrInternalConsistency)
}
