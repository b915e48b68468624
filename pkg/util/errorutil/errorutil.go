package errorutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the API and the desk client.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeEmptySelection    = "EMPTY_SELECTION"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeRequestInFlight   = "REQUEST_IN_FLIGHT"
	CodeNetwork           = "NETWORK_ERROR"
	CodeTimeout           = "TIMEOUT"
	CodeInternal          = "INTERNAL_ERROR"
	CodeRateLimited       = "RATE_LIMITED"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
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

// Is matches on code so callers can compare against the sentinel constructors.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code && other.Message == ""
}

// Kind returns a bare error usable with errors.Is to test a code.
func Kind(code string) error {
	return &DomainError{Code: code}
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewEmptySelection(message string) error {
	return NewDomainError(CodeEmptySelection, message, http.StatusBadRequest, nil)
}

func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTransition, message, http.StatusConflict, details)
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

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewRequestInFlight(details map[string]any) error {
	return NewDomainError(CodeRequestInFlight, "a request for this item is already in progress", http.StatusConflict, details)
}

func NewRateLimited() error {
	return NewDomainError(CodeRateLimited, "too many requests", http.StatusTooManyRequests, nil)
}

func NewNetworkError(err error) error {
	return &DomainError{
		Code:       CodeNetwork,
		Message:    "network error",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewTimeout(err error) error {
	return &DomainError{
		Code:       CodeTimeout,
		Message:    "request timed out",
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromStatus builds a DomainError for a non-2xx backend response, keeping the
// backend message verbatim.
func FromStatus(status int, code, message string) *DomainError {
	if code == "" {
		switch {
		case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
			code = CodeValidation
		case status == http.StatusUnauthorized:
			code = CodeUnauthorized
		case status == http.StatusForbidden:
			code = CodeForbidden
		case status == http.StatusNotFound:
			code = CodeNotFound
		case status == http.StatusConflict:
			code = CodeInvalidTransition
		case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
			code = CodeTimeout
		case status == http.StatusTooManyRequests:
			code = CodeRateLimited
		default:
			code = CodeInternal
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
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
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(err).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}

// CodeOf returns the taxonomy code for err, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

// UserMessage renders the operator-facing message for err.
func UserMessage(err error) string {
	de := ToDomainError(err)
	if de == nil {
		return ""
	}
	switch de.Code {
	case CodeNetwork:
		return "Could not reach the server. Check your connection and try again."
	case CodeTimeout:
		return "The server took too long to respond. Try again."
	case CodeInternal:
		return "Something went wrong. Try again later."
	case CodeRequestInFlight:
		return "Please wait for the previous request to finish."
	}
	if de.Message == "" {
		return http.StatusText(de.HTTPStatus)
	}
	return de.Message
}

// NeedsRefresh reports whether the caller should refetch the entity before retrying.
func NeedsRefresh(err error) bool {
	switch CodeOf(err) {
	case CodeInvalidTransition, CodeNotFound, CodeUnauthorized, CodeForbidden:
		return true
	}
	return false
}

// Retryable reports whether a manual retry with the same input makes sense.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeNetwork, CodeTimeout, CodeRateLimited:
		return true
	}
	return false
}
