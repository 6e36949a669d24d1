package domain

import "fmt"

type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindNetworkFailure        ErrorKind = "NetworkFailure"
	KindAuthFailure           ErrorKind = "AuthFailure"
	KindRateLimited           ErrorKind = "RateLimited"
	KindServerError           ErrorKind = "ServerError"
	KindBridgeUnavailable     ErrorKind = "BridgeUnavailable"
	KindUnhandledRuntimeFault ErrorKind = "UnhandledRuntimeFault"
)

// APIResponse is the single envelope every backend call is normalized to.
// Data is nil whenever Success is false and Error is empty whenever it is true.
type APIResponse[T any] struct {
	Success bool      `json:"success"`
	Data    *T        `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"-"`
}

func Ok[T any](v T) APIResponse[T] {
	return APIResponse[T]{Success: true, Data: &v}
}

func Fail[T any](kind ErrorKind, msg string) APIResponse[T] {
	return APIResponse[T]{Success: false, Error: msg, Kind: kind}
}

// Err converts a failed envelope into a *CallError, nil on success.
func (r APIResponse[T]) Err() error {
	if r.Success {
		return nil
	}
	return &CallError{Kind: r.Kind, Message: r.Error}
}

type CallError struct {
	Kind    ErrorKind
	Message string
}

func (e *CallError) Error() string {
	if e.Kind == KindNone {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *CallError target with the same Kind.
func (e *CallError) Is(target error) bool {
	t, ok := target.(*CallError)
	return ok && t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrBridgeUnavailable = &CallError{Kind: KindBridgeUnavailable, Message: "NUI bridge is not available"}
	ErrAccessDenied      = &CallError{Kind: KindAuthFailure, Message: "Access denied - Insufficient permissions"}
)
