package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies failures surfaced to callers and the UI shell.
type Code string

const (
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeAuthFailure         Code = "AUTH_FAILURE"
	CodeConflict            Code = "CONFLICT"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeServerError         Code = "SERVER_ERROR"
	CodeRequestRejected     Code = "REQUEST_REJECTED"
	CodeNetworkUnreachable  Code = "NETWORK_UNREACHABLE"
	CodeStorageCorrupt      Code = "STORAGE_CORRUPT"
	CodeStorageFailure      Code = "STORAGE_FAILURE"
	CodeStorageLocked       Code = "STORAGE_LOCKED"
	CodeLocationUnavailable Code = "LOCATION_UNAVAILABLE"
	CodeChannelError        Code = "CHANNEL_ERROR"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code Code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewInvalidInput(message string) error {
	return NewDomainError(CodeInvalidInput, message, http.StatusBadRequest, nil)
}

func NewAuthFailure(message string) error {
	return NewDomainError(CodeAuthFailure, message, http.StatusUnauthorized, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewForbidden(message string) error {
	return NewDomainError(CodeAuthFailure, message, http.StatusForbidden, nil)
}

func NewNetworkUnreachable(err error) error {
	return &DomainError{
		Code:       CodeNetworkUnreachable,
		Message:    "Network error. Please check your internet connection.",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewStorageCorrupt(key string, err error) error {
	return &DomainError{
		Code:       CodeStorageCorrupt,
		Message:    "stored record is unreadable",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"key": key},
		Err:        err,
	}
}

func NewStorageFailure(op string, err error) error {
	return &DomainError{
		Code:       CodeStorageFailure,
		Message:    fmt.Sprintf("secure storage %s failed", op),
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewStorageLocked(key string) error {
	return &DomainError{
		Code:       CodeStorageLocked,
		Message:    "secure storage is locked",
		HTTPStatus: http.StatusLocked,
		Details:    map[string]any{"key": key},
	}
}

// NewLocationUnavailable wraps a geolocation failure; reason is one of
// permission_denied, timeout or unavailable.
func NewLocationUnavailable(reason string, err error) error {
	return &DomainError{
		Code:       CodeLocationUnavailable,
		Message:    "Unable to determine your location.",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"reason": reason},
		Err:        err,
	}
}

func NewChannelError(message string, err error) error {
	return &DomainError{
		Code:       CodeChannelError,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "An unexpected error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromHTTPStatus maps a discovery service response status to the taxonomy.
// serverMessage is the response body's message or error field, if any.
func FromHTTPStatus(status int, serverMessage string) error {
	pick := func(fallback string) string {
		if serverMessage != "" {
			return serverMessage
		}
		return fallback
	}

	details := map[string]any{"status": status}
	switch {
	case status == http.StatusUnauthorized:
		return NewDomainError(CodeAuthFailure, "Invalid credentials. Please check your email and password.", status, details)
	case status == http.StatusForbidden:
		return NewDomainError(CodeAuthFailure, "Invalid credentials or Credentials already exists.", status, details)
	case status == http.StatusConflict:
		return NewDomainError(CodeConflict, pick("Account already exists with this email."), status, details)
	case status == http.StatusTooManyRequests:
		return NewDomainError(CodeRateLimited, "Too many attempts. Please try again later.", status, details)
	case status == http.StatusServiceUnavailable:
		return NewDomainError(CodeServerError, "Service temporarily unavailable. Please try again later.", http.StatusBadGateway, details)
	case status >= 500:
		return NewDomainError(CodeServerError, "Server error. Please try again later.", http.StatusBadGateway, details)
	case status == http.StatusBadRequest:
		return NewDomainError(CodeRequestRejected, pick("Invalid request. Please check your information."), status, details)
	case status == http.StatusNotFound:
		return NewDomainError(CodeRequestRejected, "Service not found. Please try again later.", status, details)
	case status == http.StatusUnprocessableEntity:
		return NewDomainError(CodeRequestRejected, pick("Please fill all required fields correctly."), status, details)
	default:
		return NewDomainError(CodeRequestRejected, pick(fmt.Sprintf("Error %d: Something went wrong.", status)), http.StatusBadGateway, details)
	}
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code Code) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// UserMessage returns the short user-facing text for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Message
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "An unexpected error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
