package common

import "errors"

// ErrorCode classifies analysis failures
type ErrorCode string

// Error codes
const (
	ErrCodeMalformedInput       ErrorCode = "MALFORMED_INPUT"
	ErrCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrCodeNumericDegenerate    ErrorCode = "NUMERIC_DEGENERATE"
)

// Sentinels for errors.Is; they match any AnalysisError with the same code.
var (
	ErrMalformedInput       = &AnalysisError{Code: ErrCodeMalformedInput}
	ErrInvalidConfiguration = &AnalysisError{Code: ErrCodeInvalidConfiguration}
	ErrNumericDegenerate    = &AnalysisError{Code: ErrCodeNumericDegenerate}
)

// AnalysisError represents ingestion and configuration errors
type AnalysisError struct {
	Code    ErrorCode `json:"code"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *AnalysisError) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg = e.Message
	}
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a bare sentinel carrying the same code
func (e *AnalysisError) Is(target error) bool {
	t, ok := target.(*AnalysisError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Source == "" && t.Code == e.Code
}

// NewMalformedInput creates an ingestion error
func NewMalformedInput(source, message string, cause error) *AnalysisError {
	return &AnalysisError{Code: ErrCodeMalformedInput, Source: source, Message: message, Cause: cause}
}

// NewInvalidConfiguration creates a configuration error
func NewInvalidConfiguration(message string, cause error) *AnalysisError {
	return &AnalysisError{Code: ErrCodeInvalidConfiguration, Message: message, Cause: cause}
}

// CodeOf extracts the code of the first AnalysisError in err's chain
func CodeOf(err error) ErrorCode {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
