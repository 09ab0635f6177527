// Package ledger defines the error taxonomy shared by the ledger core, its transports and the SDK.
package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyReference is returned when a proposal URI is empty or whitespace-only.
	ErrEmptyReference = errors.New("empty content reference")
	// ErrReportRequired is returned when completing a record without a report URI.
	ErrReportRequired = errors.New("report reference required to complete")
	// ErrIllegalTransition is returned when the lifecycle forbids the requested status change.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrNotFound is returned for an identifier that has not been assigned.
	ErrNotFound = errors.New("record not found")
	// ErrEmptyStore is returned when listing a ledger with no records.
	ErrEmptyStore = errors.New("ledger is empty")
	// ErrPageOutOfBounds is returned when a page starts past the last record.
	ErrPageOutOfBounds = errors.New("page out of bounds")
	// ErrUnauthorized is returned when the caller is not the administrator.
	ErrUnauthorized = errors.New("caller is not authorized")
	// ErrTransferNotAllowed is returned by every custody change attempt.
	ErrTransferNotAllowed = errors.New("record transfer not allowed")
	// ErrInvalidAddress is returned when the administrator role is handed to the zero address.
	ErrInvalidAddress = errors.New("invalid administrator address")
)

// Kind groups errors by how a caller can react to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindState
	KindLookup
	KindAuthorization
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindLookup:
		return "lookup"
	case KindAuthorization:
		return "authorization"
	default:
		return "unknown"
	}
}

type entry struct {
	err  error
	code string
	kind Kind
}

var catalog = []entry{
	{ErrEmptyReference, "EMPTY_REFERENCE", KindValidation},
	{ErrReportRequired, "REPORT_REQUIRED", KindValidation},
	{ErrIllegalTransition, "ILLEGAL_TRANSITION", KindState},
	{ErrNotFound, "NOT_FOUND", KindLookup},
	{ErrEmptyStore, "EMPTY_STORE", KindLookup},
	{ErrPageOutOfBounds, "PAGE_OUT_OF_BOUNDS", KindLookup},
	{ErrUnauthorized, "UNAUTHORIZED", KindAuthorization},
	{ErrTransferNotAllowed, "TRANSFER_NOT_ALLOWED", KindAuthorization},
	{ErrInvalidAddress, "INVALID_ADDRESS", KindValidation},
}

const (
	// CodeInternal is reported for errors outside the taxonomy.
	CodeInternal = "INTERNAL"
	// CodeBadRequest is reported by transports for requests they cannot parse.
	CodeBadRequest = "BAD_REQUEST"
)

func lookup(err error) (entry, bool) {
	for _, e := range catalog {
		if errors.Is(err, e.err) {
			return e, true
		}
	}
	return entry{}, false
}

// Code returns the stable wire code of err, or CodeInternal.
func Code(err error) string {
	if e, ok := lookup(err); ok {
		return e.code
	}
	return CodeInternal
}

// KindOf classifies err. Wrapped errors are matched with errors.Is.
func KindOf(err error) Kind {
	if e, ok := lookup(err); ok {
		return e.kind
	}
	return KindUnknown
}

// Retryable reports whether the same caller may succeed after correcting the input.
func Retryable(err error) bool {
	return KindOf(err) == KindValidation
}

// RemoteError is an error decoded from a transport reply.
type RemoteError struct {
	Code    string
	Message string
	err     error
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.err
}

// FromCode rebuilds an error received over the wire.
// Known codes unwrap to their sentinel so errors.Is keeps working on the client side.
func FromCode(code, message string) error {
	re := &RemoteError{Code: code, Message: message}
	for _, e := range catalog {
		if e.code == code {
			re.err = e.err
			break
		}
	}
	if re.err == nil && message == "" {
		re.Message = fmt.Sprintf("remote error %s", code)
	}
	return re
}
