package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

// One type per settlement failure kind, plus the transport-level ones.
const (
	ErrAuthFailed        ErrorType = "AUTH_FAILED"
	ErrStale             ErrorType = "ORDER_STALE"
	ErrTermMismatch      ErrorType = "TERM_MISMATCH"
	ErrAgreementMismatch ErrorType = "AGREEMENT_MISMATCH"
	ErrTraitMismatch     ErrorType = "TRAIT_MISMATCH"
	ErrCustody           ErrorType = "CUSTODY_FAILED"
	ErrTransfer          ErrorType = "TRANSFER_FAILED"
	ErrRoyaltyOvercommit ErrorType = "ROYALTY_OVERCOMMIT"
	ErrSystemPanic       ErrorType = "SYSTEM_PANIC"
	ErrInvalidRequest    ErrorType = "INVALID_REQUEST"
	ErrInternal          ErrorType = "INTERNAL_ERROR"
	ErrNotFound          ErrorType = "NOT_FOUND"
	ErrUpstream          ErrorType = "UPSTREAM_ERROR"
	ErrRateLimited       ErrorType = "RATE_LIMITED"
	ErrReadOnly          ErrorType = "READ_ONLY"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

// Newf builds an AppError without a cause from a format string.
func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...), nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// TypeOf reports the failure kind of err, or ErrInternal for foreign errors.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrInternal
}

// Is reports whether err carries the given failure kind.
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrTermMismatch, ErrAgreementMismatch, ErrTraitMismatch, ErrRoyaltyOvercommit:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrCustody:
		return http.StatusForbidden
	case ErrStale:
		return http.StatusConflict
	case ErrTransfer:
		return http.StatusUnprocessableEntity
	case ErrSystemPanic, ErrReadOnly:
		return http.StatusServiceUnavailable
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrAuthFailed:
		return "Re-sign the order or record an on-chain approval for it."
	case ErrStale:
		return "Sign a new order with a fresh nonce and deadline."
	case ErrAgreementMismatch:
		return "Both orders must reference the supplied agreement."
	case ErrTermMismatch, ErrTraitMismatch:
		return "The bid and ask do not describe the same trade."
	case ErrCustody:
		return "The seller must own the token or be approved to transfer it."
	case ErrTransfer:
		return "Check balances and allowances, then resubmit."
	case ErrRoyaltyOvercommit:
		return "Royalties exceed what the trade can pay; abandon the order."
	case ErrSystemPanic:
		return "Wait for system recovery."
	case ErrRateLimited:
		return "Slow down and retry after the indicated delay."
	default:
		return ""
	}
}
