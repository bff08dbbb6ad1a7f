// Package apperr defines the coded errors shared by the chat, stats and
// transport layers, and their mapping to client-visible outcomes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	// Client input faults.
	CodeInvalidMode   Code = "INVALID_MODE"
	CodeInvalidPeriod Code = "INVALID_PERIOD"
	CodeEmptyMessage  Code = "EMPTY_MESSAGE"
	CodeInvalidInput  Code = "INVALID_INPUT"

	// Transient backend faults.
	CodeTimeout          Code = "TIMEOUT"
	CodeConnectionFailed Code = "CONNECTION_FAILED"
	CodeRateLimited      Code = "RATE_LIMITED"

	// Fatal backend faults.
	CodeServerError Code = "SERVER_ERROR"
	CodeUnexpected  Code = "UNEXPECTED"
	CodeInternal    Code = "INTERNAL"
)

// Class groups codes by who is at fault and whether retrying later may help.
type Class int

const (
	ClassFatal Class = iota
	ClassClientInput
	ClassTransient
)

func (c Class) String() string {
	switch c {
	case ClassClientInput:
		return "client_input"
	case ClassTransient:
		return "backend_transient"
	default:
		return "backend_fatal"
	}
}

type Error struct {
	Code   Code
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Class() Class {
	if e == nil {
		return ClassFatal
	}
	return classOf(e.Code)
}

func New(code Code, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func classOf(code Code) Class {
	switch code {
	case CodeInvalidMode, CodeInvalidPeriod, CodeEmptyMessage, CodeInvalidInput:
		return ClassClientInput
	case CodeTimeout, CodeConnectionFailed, CodeRateLimited:
		return ClassTransient
	default:
		return ClassFatal
	}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) && appErr != nil {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// ClassOf returns the class of err. Uncoded errors are fatal.
func ClassOf(err error) Class {
	if appErr, ok := As(err); ok {
		return appErr.Class()
	}
	return ClassFatal
}

func IsClientInput(err error) bool {
	return err != nil && ClassOf(err) == ClassClientInput
}

// HTTPStatus maps err to the status code returned by the HTTP API.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidMode, CodeInvalidPeriod, CodeEmptyMessage, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeConnectionFailed, CodeServerError:
		return http.StatusBadGateway
	case CodeRateLimited:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the text shown to an end user for err. Client input
// errors carry their own precise reason; backend errors get a friendly
// message per kind.
func UserMessage(err error) string {
	appErr, ok := As(err)
	if !ok {
		return "Something went wrong while processing your message. Please try again."
	}
	switch appErr.Code {
	case CodeInvalidMode, CodeInvalidPeriod, CodeEmptyMessage, CodeInvalidInput:
		return appErr.Reason
	case CodeTimeout:
		return "The assistant is taking too long to answer. Please try again in a moment."
	case CodeConnectionFailed:
		return "Could not reach the assistant service. Please check back shortly."
	case CodeRateLimited:
		return "Too many requests right now. Please wait a little and try again."
	default:
		return "Something went wrong while processing your message. Please try again."
	}
}
