package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while synchronising a scene.
//
// Runtime errors include:
//   - Construction failure: a native factory failed (retried lazily)
//   - Delete failure: the engine refused a queued deletion
//   - Retired node: a handle was requested after the node was deleted
//   - Inactive scope: a child was attached to a scope already tearing down
//   - Closed root: the root was used after Close
//
// Dependency-not-ready is a code for logging only; Settle never returns it.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Root identifies the scene root.
	Root string

	// Node names the native object or component involved.
	Node string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeConstructionFailed indicates a native factory failed.
	ErrCodeConstructionFailed RuntimeErrorCode = "CONSTRUCTION_FAILED"

	// ErrCodeDependencyNotReady indicates an upstream handle does not exist
	// yet. Treated as a silent no-op.
	ErrCodeDependencyNotReady RuntimeErrorCode = "DEPENDENCY_NOT_READY"

	// ErrCodeDeleteFailed indicates the engine refused a deletion.
	ErrCodeDeleteFailed RuntimeErrorCode = "DELETE_FAILED"

	// ErrCodeNodeRetired indicates the node's handle was already deleted.
	ErrCodeNodeRetired RuntimeErrorCode = "NODE_RETIRED"

	// ErrCodeScopeInactive indicates a scope no longer accepts children.
	ErrCodeScopeInactive RuntimeErrorCode = "SCOPE_INACTIVE"

	// ErrCodeRootClosed indicates the root was used after Close.
	ErrCodeRootClosed RuntimeErrorCode = "ROOT_CLOSED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Root != "" && e.Node != "":
		msg += fmt.Sprintf(" (root=%s, node=%s)", e.Root, e.Node)
	case e.Node != "":
		msg += fmt.Sprintf(" (node=%s)", e.Node)
	case e.Root != "":
		msg += fmt.Sprintf(" (root=%s)", e.Root)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsConstructionError reports whether err is a construction failure.
// Uses errors.As to handle wrapped and joined errors.
func IsConstructionError(err error) bool {
	return hasCode(err, ErrCodeConstructionFailed)
}

// IsNotReady reports whether err marks a dependency that does not exist yet.
func IsNotReady(err error) bool {
	return hasCode(err, ErrCodeDependencyNotReady)
}

// IsDeleteError reports whether err is a refused deletion.
func IsDeleteError(err error) bool {
	return hasCode(err, ErrCodeDeleteFailed)
}

// IsRetired reports whether err marks a retired node.
func IsRetired(err error) bool {
	return hasCode(err, ErrCodeNodeRetired)
}

// IsBudgetError reports whether err is a pass budget overrun.
func IsBudgetError(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}

// NewConstructionError wraps a factory failure.
func NewConstructionError(node string, attempts int, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeConstructionFailed,
		Message: "native construction failed",
		Node:    node,
		Details: map[string]string{"attempts": fmt.Sprintf("%d", attempts)},
		Err:     cause,
	}
}

// NewNotReadyError reports that node is waiting on dependency.
func NewNotReadyError(node, dependency string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDependencyNotReady,
		Message: fmt.Sprintf("waiting for %s", dependency),
		Node:    node,
	}
}

// NewDeleteError wraps a deletion the engine refused.
func NewDeleteError(node string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDeleteFailed,
		Message: "native delete failed",
		Node:    node,
		Err:     cause,
	}
}
