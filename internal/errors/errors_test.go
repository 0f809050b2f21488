package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizedErrorWireShape(t *testing.T) {
	err := NewAllowanceError("0", "1000000")

	assert.Equal(t, CategoryChain, err.Category)
	assert.Equal(t, http.StatusPaymentRequired, err.StatusCode)
	assert.Equal(t, "APPROVAL_REQUIRED", err.Code)

	svc := err.ToServiceError()
	assert.Equal(t, "APPROVAL_REQUIRED", svc.Code)
	assert.Equal(t, "1000000", svc.Details["required"])
}

func TestCategorizeWrapsUnknownErrors(t *testing.T) {
	cause := fmt.Errorf("boom")
	catErr := Categorize(cause)

	require.NotNil(t, catErr)
	assert.Equal(t, CategorySystem, catErr.Category)
	assert.Equal(t, "INTERNAL_ERROR", catErr.Code)
	assert.ErrorIs(t, catErr, cause)
}

func TestCategorizePassesThrough(t *testing.T) {
	original := NewNotFoundError("message", "msg_x")
	assert.Same(t, original, Categorize(original))
	assert.Nil(t, Categorize(nil))
}

func TestGetHTTPStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatusCode(NewValidationError("content", "empty")))
	assert.Equal(t, http.StatusConflict, GetHTTPStatusCode(NewAlreadyReactedError("m", "u")))
	assert.Equal(t, http.StatusGatewayTimeout, GetHTTPStatusCode(NewConfirmationError("0xabc", fmt.Errorf("timeout"))))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatusCode(fmt.Errorf("plain")))
}

func TestErrorPredicates(t *testing.T) {
	mirror := NewMirrorError("record message", fmt.Errorf("connection reset"))
	chain := NewChainRejectedError("signGuestbook", fmt.Errorf("revert"))
	conflict := NewAlreadyReactedError("m", "u")

	assert.True(t, IsMirrorError(mirror))
	assert.False(t, IsMirrorError(chain))

	assert.True(t, IsConflict(conflict))
	assert.False(t, IsConflict(mirror))

	// Mirror and system errors are retryable; chain rejections need new
	// user action first
	assert.True(t, IsRetryable(mirror))
	assert.True(t, IsRetryable(fmt.Errorf("plain")))
	assert.False(t, IsRetryable(chain))
	assert.False(t, IsRetryable(conflict))
}
