package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidRequest         ErrorCode = "INVALID_REQUEST"
	ErrorPrimaryModelFailure    ErrorCode = "PRIMARY_MODEL_FAILURE"
	ErrorFallbackModelFailure   ErrorCode = "FALLBACK_MODEL_FAILURE"
	ErrorMalformedOutput        ErrorCode = "MALFORMED_OUTPUT"
	ErrorTotalGenerationFailure ErrorCode = "TOTAL_GENERATION_FAILURE"
	ErrorInternal               ErrorCode = "INTERNAL_ERROR"
)

// FailureMessage is shown to the user when both models failed. The underlying
// cause is logged, never returned verbatim.
const FailureMessage = "Failed to get response from AI. Please try again."

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
