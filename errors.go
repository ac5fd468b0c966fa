package eit

import "fmt"

// ErrorCode represents token issuance error categories.
type ErrorCode string

const (
	ErrCodeMissingField  ErrorCode = "missing_field"
	ErrCodeInvalidField  ErrorCode = "invalid_field"
	ErrCodeInvalidConfig ErrorCode = "invalid_config"
	ErrCodeReservedClaim ErrorCode = "reserved_claim"
	ErrCodeKeyMaterial   ErrorCode = "key_material"
	ErrCodeSigning       ErrorCode = "signing_failed"
	ErrCodeRequest       ErrorCode = "request_failed"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeMissingField:  "Missing required field",
	ErrCodeInvalidField:  "Invalid field",
	ErrCodeInvalidConfig: "Invalid configuration",
	ErrCodeReservedClaim: "Reserved claim",
	ErrCodeKeyMaterial:   "Invalid key material",
	ErrCodeSigning:       "Signing failed",
	ErrCodeRequest:       "Request failed",
}

// Error wraps issuance errors with a stable code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error carrying the same code, so callers
// can write errors.Is(err, &eit.Error{Code: eit.ErrCodeKeyMaterial}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}
