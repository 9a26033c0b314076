package metadata

import "fmt"

// ErrorCode classifies metadata failures. The coordinator router maps these
// onto wire result codes; keeping the mapping out of this package lets the
// store stay transport-agnostic.
type ErrorCode int

const (
	// ErrNotFound indicates the requested file or user does not exist.
	ErrNotFound ErrorCode = iota + 1

	// ErrDenied indicates the caller lacks permission for the operation.
	ErrDenied

	// ErrExists indicates the file already exists.
	ErrExists

	// ErrSessionActive indicates the user already has a live session.
	ErrSessionActive

	// ErrFolderMissing indicates the referenced folder does not exist.
	ErrFolderMissing

	// ErrFolderExists indicates the folder already exists.
	ErrFolderExists

	// ErrCheckpointMissing indicates the checkpoint tag is unknown.
	ErrCheckpointMissing

	// ErrCheckpointExists indicates the tag is already used on the file.
	ErrCheckpointExists

	// ErrNoRequests indicates there are no pending access requests.
	ErrNoRequests

	// ErrRequestMissing indicates the access request id is unknown.
	ErrRequestMissing

	// ErrRequestPending indicates the requester already has a pending
	// request for the file.
	ErrRequestPending

	// ErrBadRequest indicates a malformed argument.
	ErrBadRequest
)

// Error is a coded metadata error with a human-readable message.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a coded error.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err, or ErrBadRequest when err is not
// a metadata error.
func CodeOf(err error) ErrorCode {
	if me, ok := err.(*Error); ok {
		return me.Code
	}
	return ErrBadRequest
}
