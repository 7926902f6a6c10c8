package core

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline failures so callers can map them to the
// right HTTP status and user-facing behavior.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"
	KindEmbeddingFailure  ErrorKind = "embedding_failure"
	KindGenerationFailure ErrorKind = "generation_failure"
	KindNotFound          ErrorKind = "not_found"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindInternal          ErrorKind = "internal"
)

// DomainError is a structured error carrying its kind and an optional cause.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches two DomainErrors by kind, so sentinel comparisons with
// errors.Is work regardless of the wrapped cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func NewDomainError(kind ErrorKind, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Err: err}
}

var (
	ErrEmptyQuery      = NewDomainError(KindInvalidInput, "query cannot be empty", nil)
	ErrEmptyDocument   = NewDomainError(KindInvalidInput, "document contains no extractable text", nil)
	ErrSessionNotFound = NewDomainError(KindNotFound, "chat session not found", nil)
)

// KindOf extracts the ErrorKind from err, or KindInternal if err is not a
// DomainError.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
