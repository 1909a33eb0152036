package errors

import "fmt"

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNoValidURLs    ErrorType = "no_valid_urls"
	ErrorTypeConnectionLost ErrorType = "connection_lost"
	ErrorTypeExtraction     ErrorType = "extraction"
	ErrorTypeBackend        ErrorType = "backend"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeParsing        ErrorType = "parsing"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeServerError    ErrorType = "server_error"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error represents a scan or backend error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error without an HTTP code
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Newf creates a typed error with a formatted message
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NoValidURLs reports that user input contained zero parseable URLs
func NoValidURLs() *Error {
	return New(ErrorTypeNoValidURLs, "no valid URLs in input")
}

// ConnectionLost reports a streaming channel failure before a terminal event
func ConnectionLost() *Error {
	return New(ErrorTypeConnectionLost, "connection to extraction backend lost")
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeNoValidURLs, ErrorTypeConnectionLost, ErrorTypeBackend,
		ErrorTypeParsing, ErrorTypeNotFound, ErrorTypeExtraction:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504:
		return true
	case 400, 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
