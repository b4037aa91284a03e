package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without reading messages.
type Kind int

const (
	// KindAuth is a rejected token request. Fatal to the current operation.
	KindAuth Kind = iota + 1
	// KindListing is a failed user or recording listing.
	KindListing
	// KindItem is a failure isolated to one meeting or one file.
	KindItem
	// KindValidation is bad caller input, rejected before any network call.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindListing:
		return "listing"
	case KindItem:
		return "item"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the single error type returned across package boundaries.
type Error struct {
	Kind      Kind
	Message   string
	MeetingID string
	FileID    string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	switch {
	case e.FileID != "":
		msg = fmt.Sprintf("%s (meeting %s, file %s)", msg, e.MeetingID, e.FileID)
	case e.MeetingID != "":
		msg = fmt.Sprintf("%s (meeting %s)", msg, e.MeetingID)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewAuthError wraps a token acquisition failure.
func NewAuthError(message string, err error) *Error {
	return &Error{Kind: KindAuth, Message: message, Err: err}
}

// NewListingError wraps a failed paginated fetch.
func NewListingError(message string, err error) *Error {
	return &Error{Kind: KindListing, Message: message, Err: err}
}

// NewItemError wraps a failure scoped to one meeting, or one file when fileID is set.
func NewItemError(message, meetingID, fileID string, err error) *Error {
	return &Error{Kind: KindItem, Message: message, MeetingID: meetingID, FileID: fileID, Err: err}
}

// NewValidationError reports rejected input.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
