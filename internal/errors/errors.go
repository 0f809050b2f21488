// Package errors defines the categorized error taxonomy for the guestbook
// service: chain rejections, mirror store failures, and user input errors.
package errors

import (
	"fmt"
	"net/http"

	"github.com/base-guestbook/internal/types"
)

// Category represents the category of an error
type Category string

const (
	// CategoryValidation represents user input validation errors (4xx)
	CategoryValidation Category = "validation"
	// CategoryChain represents on-chain rejections (allowance, balance,
	// revert) - these always surface to the user
	CategoryChain Category = "chain"
	// CategoryMirror represents mirror store failures - these are
	// downgraded to warnings and never fail a confirmed chain write
	CategoryMirror Category = "mirror"
	// CategoryConflict represents conflicts such as duplicate reactions
	CategoryConflict Category = "conflict"
	// CategoryNotFound represents missing resources
	CategoryNotFound Category = "not_found"
	// CategorySystem represents internal errors (5xx)
	CategorySystem Category = "system"
)

// CategorizedError carries an error category, HTTP status and wire code
type CategorizedError struct {
	Category   Category
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the wire-level ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewValidationError creates a user input validation error
func NewValidationError(param, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewInvalidAddressError creates an invalid wallet address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewAlreadyReactedError creates the duplicate-reaction conflict error.
// Retrying the same reaction is idempotent from the caller's view: the
// counter is never double-incremented.
func NewAlreadyReactedError(messageID, userID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       "ALREADY_REACTED",
		Message:    "user has already reacted to this message",
		Details: map[string]interface{}{
			"messageId": messageID,
			"userId":    userID,
		},
	}
}

// NewAllowanceError creates the approval-required error raised before a
// gated write is broadcast, so no gas is wasted on a guaranteed revert.
func NewAllowanceError(allowance, required string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryChain,
		StatusCode: http.StatusPaymentRequired,
		Code:       "APPROVAL_REQUIRED",
		Message:    "token allowance is below the signing fee; approve spending first",
		Details: map[string]interface{}{
			"allowance": allowance,
			"required":  required,
		},
	}
}

// NewChainRejectedError creates an on-chain rejection error
func NewChainRejectedError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryChain,
		StatusCode: http.StatusBadGateway,
		Code:       "CHAIN_REJECTED",
		Message:    fmt.Sprintf("chain rejected %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewConfirmationError creates a confirmation wait failure
func NewConfirmationError(txHash string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryChain,
		StatusCode: http.StatusGatewayTimeout,
		Code:       "CONFIRMATION_FAILED",
		Message:    fmt.Sprintf("transaction %s was not confirmed", txHash),
		Cause:      cause,
		Details: map[string]interface{}{
			"txHash": txHash,
		},
	}
}

// NewMirrorError creates a mirror store error
func NewMirrorError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryMirror,
		StatusCode: http.StatusInternalServerError,
		Code:       "MIRROR_ERROR",
		Message:    fmt.Sprintf("mirror store error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an arbitrary error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	if svcErr, ok := err.(*types.ServiceError); ok {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsMirrorError reports whether err is a mirror store failure that must
// be absorbed rather than surfaced as an overall failure
func IsMirrorError(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategoryMirror
}

// IsConflict reports whether err is a conflict such as a duplicate reaction
func IsConflict(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategoryConflict
}

// IsRetryable reports whether an operation may be retried. Chain
// rejections are not retryable without new user action; mirror and
// system errors are.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryMirror, CategorySystem:
		return true
	default:
		return false
	}
}
