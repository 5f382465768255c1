package chat

import "errors"

// Error codes for domain errors.
const (
	ErrCodeInvalidParticipants = "invalid_participants"
	ErrCodeValidation          = "validation_error"
	ErrCodeInvalidDate         = "invalid_date"
	ErrCodeBadRequest          = "bad_request"
	ErrCodeUnauthorized        = "unauthorized"
	ErrCodeStorage             = "storage_error"
)

var (
	ErrInvalidParticipants = errors.New("invalid participants")
	ErrEmptyBody           = errors.New("message body is empty")
	ErrBodyTooLong         = errors.New("message body too long")
	ErrInvalidDate         = errors.New("invalid traveling date")
)

// Error wraps a code and human-readable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// AsError classifies err for the wire. Domain errors keep their code;
// anything else is reported as an opaque storage failure so internals
// never leak to the client.
func AsError(err error) *Error {
	var derr *Error
	if errors.As(err, &derr) {
		return derr
	}
	return &Error{Code: ErrCodeStorage, Message: "internal storage error"}
}
