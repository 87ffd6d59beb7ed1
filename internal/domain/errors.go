package domain

import (
	"context"
	"errors"
)

// Kind classifies an error for callers that need to branch on failure type
// without matching individual sentinels.
type Kind string

const (
	KindInvalidSession  Kind = "invalid_session"
	KindEmptyInput      Kind = "empty_input"
	KindSessionBusy     Kind = "session_busy"
	KindInvalidQuery    Kind = "invalid_query"
	KindNotFound        Kind = "not_found"
	KindFileTooLarge    Kind = "file_too_large"
	KindUnsupportedType Kind = "unsupported_type"
	KindUnauthenticated Kind = "unauthenticated"
	KindTransport       Kind = "transport"
	KindUnknown         Kind = "unknown"
)

var (
	ErrInvalidSession  = errors.New("invalid session")
	ErrEmptyInput      = errors.New("empty input")
	ErrSessionBusy     = errors.New("session busy")
	ErrInvalidQuery    = errors.New("invalid query")
	ErrNotFound        = errors.New("not found")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTransport       = errors.New("transport error")
	ErrUnknown         = errors.New("unknown error")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidSession, KindInvalidSession},
	{ErrEmptyInput, KindEmptyInput},
	{ErrSessionBusy, KindSessionBusy},
	{ErrInvalidQuery, KindInvalidQuery},
	{ErrNotFound, KindNotFound},
	{ErrFileTooLarge, KindFileTooLarge},
	{ErrUnsupportedType, KindUnsupportedType},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrTransport, KindTransport},
}

// KindOf reports the taxonomy kind of err. Context deadline and cancellation
// count as transport failures. Anything unclassified is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	return KindUnknown
}

// Retryable reports whether the caller may safely try the same operation again.
func Retryable(err error) bool {
	return KindOf(err) == KindTransport
}

// IsValidation reports whether err was raised by local input checks, before
// any state was touched.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindEmptyInput, KindInvalidQuery, KindFileTooLarge, KindUnsupportedType:
		return true
	}
	return false
}
