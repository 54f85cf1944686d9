package client

import (
	"fmt"
)

// ErrorClass represents a classification of query failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents transport-level failures
	// (connection refused, timeout, DNS).
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassProtocol represents non-2xx response codes.
	ErrorClassProtocol ErrorClass = "protocol"

	// ErrorClassDecode represents response bodies outside the expected schema.
	ErrorClassDecode ErrorClass = "decode"
)

// StatusError is a classified failure from one status query.
type StatusError struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface. The message is what ends up in the
// failure document, so protocol errors keep the "status code=NNN" form.
func (e *StatusError) Error() string {
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StatusError) Unwrap() error {
	return e.Err
}

func networkError(err error) *StatusError {
	return &StatusError{
		Class:   ErrorClassNetwork,
		Message: err.Error(),
		Err:     err,
	}
}

func protocolError(statusCode int) *StatusError {
	return &StatusError{
		Class:      ErrorClassProtocol,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("status code=%d", statusCode),
	}
}

func decodeError(err error) *StatusError {
	return &StatusError{
		Class:   ErrorClassDecode,
		Message: fmt.Sprintf("decode response: %v", err),
		Err:     err,
	}
}
