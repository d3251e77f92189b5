package oauth2

import (
	"errors"
	"fmt"
)

// ErrorCode is one of the protocol error codes defined by RFC 6749 §4.1.2.1,
// §4.2.2.1 and §5.2, plus the bearer-token codes from RFC 6750 used by the
// resource-side authorizer.
type ErrorCode string

const (
	ErrorInvalidRequest          ErrorCode = "invalid_request"
	ErrorInvalidClient           ErrorCode = "invalid_client"
	ErrorInvalidGrant            ErrorCode = "invalid_grant"
	ErrorUnauthorizedClient      ErrorCode = "unauthorized_client"
	ErrorUnsupportedGrantType    ErrorCode = "unsupported_grant_type"
	ErrorUnsupportedResponseType ErrorCode = "unsupported_response_type"
	ErrorInvalidScope            ErrorCode = "invalid_scope"
	ErrorAccessDenied            ErrorCode = "access_denied"
	ErrorInsufficientScope       ErrorCode = "insufficient_scope"
	ErrorInvalidToken            ErrorCode = "invalid_token"
	ErrorServerError             ErrorCode = "server_error"
)

// Error is the single structured error type raised by the engine for every
// protocol-level validation failure. The token endpoint serialises it as the
// RFC 6749 §5.2 JSON body; the authorization endpoint appends it to a
// verified redirect URI or renders it as an error page.
type Error struct {
	Code        ErrorCode `json:"error"`
	Description string    `json:"error_description,omitempty"`
	URI         string    `json:"error_uri,omitempty"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError builds a protocol error with a human readable description.
func NewError(code ErrorCode, description string) *Error {
	return &Error{Code: code, Description: description}
}

// NewErrorf builds a protocol error with a formatted description.
func NewErrorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// AsError extracts the protocol error from err's chain. Anything that is not
// a protocol error is wrapped as server_error so unexpected failures are
// never surfaced raw and never silently swallowed.
func AsError(err error) *Error {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr
	}
	return &Error{Code: ErrorServerError, Description: err.Error()}
}

// IsCode reports whether err carries the given protocol error code.
func IsCode(err error, code ErrorCode) bool {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr.Code == code
	}
	return false
}
