package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrEngineUnavailable = errors.New("search engine unavailable")
	ErrStore             = errors.New("store error")
)

// Kind classifies an error for the boundary layer. Callers switch on the
// kind instead of matching concrete error types.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindEngineUnavailable
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindNotFound:
		return "NOT_FOUND"
	case KindEngineUnavailable:
		return "ENGINE_UNAVAILABLE"
	case KindStore:
		return "STORE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Status returns the HTTP status code a kind maps to.
func (k Kind) Status() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindEngineUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    kind.String(),
		Message: message,
		Status:  kind.Status(),
		Err:     err,
	}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return newError(KindNotFound, fmt.Sprintf("%s with id %s not found", resource, id), ErrNotFound)
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return newError(KindInvalidInput, message, ErrInvalidInput)
}

// EngineUnavailable creates a 503 error for an unreachable search engine.
func EngineUnavailable(err error) *AppError {
	return newError(KindEngineUnavailable, "search engine unavailable", errors.Join(ErrEngineUnavailable, err))
}

// Store creates a 500 error for a failed read from the relational store.
func Store(err error) *AppError {
	return newError(KindStore, "an internal error occurred", errors.Join(ErrStore, err))
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return newError(KindInternal, "an internal error occurred", err)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// KindOf returns the kind of the outermost AppError in the chain, falling
// back to sentinel matching and finally KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrEngineUnavailable):
		return KindEngineUnavailable
	case errors.Is(err, ErrStore):
		return KindStore
	default:
		return KindInternal
	}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return KindOf(err).Status()
}
