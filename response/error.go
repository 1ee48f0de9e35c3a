package response

import "fmt"

// Error is an HTTP error rendered as {"error": Message, "type": Type}
type Error struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithType tags the error with a machine readable category
func (e *Error) WithType(t string) *Error {
	e.Type = t
	return e
}

func makeError(status int) *Error {
	return &Error{
		StatusCode: status,
	}
}

// New returns an Error with an arbitrary status
func New(status int, msg string) *Error {
	return makeError(status).WithMessage(msg)
}

// -----------------------------------------------

func ErrUnexpected() *Error {
	return makeError(500).
		WithMessage("An unexpected error has occured")
}

func ErrBadRequest() *Error {
	return makeError(400).
		WithMessage("Bad request")
}

func ErrUnauthorized() *Error {
	return makeError(401).
		WithMessage("Unauthorized")
}

func ErrNotFound() *Error {
	return makeError(404).
		WithMessage("Requested resources not found")
}

func ErrMethodNotAllowed() *Error {
	return makeError(405).
		WithMessage("Method not allowed")
}

func ErrRequestTooLarge() *Error {
	return makeError(413).
		WithMessage("Request body too large")
}

func ErrInvalidJson() *Error {
	return ErrBadRequest().WithMessage("Invalid JSON body")
}

func ErrNoBearer() *Error {
	return ErrUnauthorized().WithMessage("No valid Bearer token found in header")
}

func ErrVerifyToken() *Error {
	return ErrUnexpected().WithMessage("Unable to verify login token")
}
