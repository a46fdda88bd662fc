// Package engineerr implements the closed error-kind taxonomy used for
// internal signalling throughout the rebalancing engine (spec.md §7).
package engineerr

import "fmt"

// Kind is one of the closed set of error kinds spec.md §7 names. Every
// component that can fail reports one of these; pure code never panics
// (the Tree Evaluator returns a typed Error, the Indicator Kernel an
// explicit ok=false no-value signal).
type Kind string

const (
	// Tree-validation failures (spec.md §4.3).
	KindParse     Kind = "Parse"
	KindStructure Kind = "Structure"
	KindBounds    Kind = "Bounds"
	KindMetric    Kind = "Metric"
	KindCycle     Kind = "Cycle"

	// Data and evaluation failures.
	KindDataUnavailable Kind = "DataUnavailable"
	KindEvalError       Kind = "EvalError"

	// Planning and execution failures.
	KindPlanOverBudget    Kind = "PlanOverBudget"
	KindBrokerRejected    Kind = "BrokerRejected"
	KindBrokerUnreachable Kind = "BrokerUnreachable"
	KindBrokerAuth        Kind = "BrokerAuth"
	KindTimeout           Kind = "Timeout"

	// Post-window reconciliation failure.
	KindReconcileDivergence Kind = "ReconcileDivergence"
)

// Error is the engine's typed error: a stable code string plus message
// and optional wrapped cause, per spec.md §7 ("All errors carry a stable
// code string for operators").
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, engineerr.New(kind, "")) style checks: any
// *Error target with the same Kind matches. Callers more commonly use
// KindOf below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if asErr, ok := err.(*Error); ok {
			e = asErr
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	if e == nil {
		return "", false
	}
	return e.Kind, true
}
