package core

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates every failure class the engine can produce or
// route on. Components never compare error strings; they compare kinds.
type ErrorKind int

const (
	// KindUnknown is the zero value; it never matches a sentinel.
	KindUnknown ErrorKind = iota
	// KindAgentNotFound indicates a Create call for an unregistered agent.
	KindAgentNotFound
	// KindNoMatchingAgent indicates no agent scored above zero for a query.
	KindNoMatchingAgent
	// KindInvalidPlan indicates a plan that violates build-time invariants.
	KindInvalidPlan
	// KindDuplicateAgent indicates a second registration under the same name.
	KindDuplicateAgent
	// KindMissingDependency indicates a binding referencing an output key
	// no step produces.
	KindMissingDependency
	// KindCyclicPlan indicates a dependency cycle between steps.
	KindCyclicPlan
	// KindAdaptationLimitExceeded indicates the adaptation round bound was hit.
	KindAdaptationLimitExceeded
	// KindBudgetExceeded indicates an analysis input over the token ceiling
	// even after truncation.
	KindBudgetExceeded
	// KindTimeout indicates a per-step or per-call timeout.
	KindTimeout
	// KindCancelled indicates cancellation by the plan deadline or caller.
	KindCancelled
	// KindDataSource indicates a data provider failure.
	KindDataSource
	// KindCompletionService indicates a completion provider failure.
	KindCompletionService
	// KindRateLimited indicates provider throttling.
	KindRateLimited
	// KindAuth indicates rejected provider credentials.
	KindAuth
)

// String returns the canonical name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindAgentNotFound:
		return "AgentNotFound"
	case KindNoMatchingAgent:
		return "NoMatchingAgent"
	case KindInvalidPlan:
		return "InvalidPlan"
	case KindDuplicateAgent:
		return "DuplicateAgent"
	case KindMissingDependency:
		return "MissingDependency"
	case KindCyclicPlan:
		return "CyclicPlanError"
	case KindAdaptationLimitExceeded:
		return "AdaptationLimitExceeded"
	case KindBudgetExceeded:
		return "BudgetExceeded"
	case KindTimeout:
		return "Timeout"
	case KindCancelled:
		return "Cancelled"
	case KindDataSource:
		return "DataSourceError"
	case KindCompletionService:
		return "CompletionServiceError"
	case KindRateLimited:
		return "RateLimited"
	case KindAuth:
		return "AuthError"
	default:
		return "Unknown"
	}
}

// Error is the typed error carried across component boundaries. Kind is
// what callers route on; Message and Cause retain diagnostic detail that
// ends up in warnings, never in the response body.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return e.Kind.String()
	}
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same kind, so
// errors.Is(err, core.ErrRateLimited) works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds an *Error from a kind and printf-style message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the ErrorKind from err, or KindUnknown if err carries no
// *Error anywhere in its chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Kind-matching sentinels for use with errors.Is.
var (
	ErrAgentNotFound           = &Error{Kind: KindAgentNotFound}
	ErrNoMatchingAgent         = &Error{Kind: KindNoMatchingAgent}
	ErrInvalidPlan             = &Error{Kind: KindInvalidPlan}
	ErrDuplicateAgent          = &Error{Kind: KindDuplicateAgent}
	ErrMissingDependency       = &Error{Kind: KindMissingDependency}
	ErrCyclicPlan              = &Error{Kind: KindCyclicPlan}
	ErrAdaptationLimitExceeded = &Error{Kind: KindAdaptationLimitExceeded}
	ErrBudgetExceeded          = &Error{Kind: KindBudgetExceeded}
	ErrTimeout                 = &Error{Kind: KindTimeout}
	ErrCancelled               = &Error{Kind: KindCancelled}
	ErrDataSource              = &Error{Kind: KindDataSource}
	ErrCompletionService       = &Error{Kind: KindCompletionService}
	ErrRateLimited             = &Error{Kind: KindRateLimited}
	ErrAuth                    = &Error{Kind: KindAuth}
)
