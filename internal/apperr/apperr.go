// Package apperr defines the closed set of failure kinds an analysis can end in.
package apperr

import (
	"errors"
	"fmt"
)

// Kind tags a failure with the pipeline stage and cause that produced it.
type Kind int

const (
	// KindUnknown is reported for errors that carry no Kind.
	KindUnknown Kind = iota
	// KindEmptyInput rejects blank text before anything is sent upstream.
	KindEmptyInput
	// KindClassifierUnavailable covers transport failures and non-2xx LLM responses.
	KindClassifierUnavailable
	// KindContentBlocked means the LLM safety layer refused to answer.
	KindContentBlocked
	// KindMalformedModelOutput means a response arrived but was not a usable verdict.
	KindMalformedModelOutput
	// KindEvidenceLookupFailed is logged and degraded to empty evidence.
	KindEvidenceLookupFailed
	// KindPersistenceFailed is logged and never surfaced.
	KindPersistenceFailed
)

func (k Kind) String() string {
	switch k {
	case KindEmptyInput:
		return "empty_input"
	case KindClassifierUnavailable:
		return "classifier_unavailable"
	case KindContentBlocked:
		return "content_blocked"
	case KindMalformedModelOutput:
		return "malformed_model_output"
	case KindEvidenceLookupFailed:
		return "evidence_lookup_failed"
	case KindPersistenceFailed:
		return "persistence_failed"
	default:
		return "unknown"
	}
}

// Error is a tagged failure. Status and Detail carry upstream diagnostics for
// operator logs; they are never meant for end users.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a tagged error wrapping err (which may be nil).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a tagged error with a formatted detail and no wrapped cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
