package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_Creation(t *testing.T) {
	message := "order not found"
	err := NewNotFoundError(message)

	assert.NotNil(t, err)
	assert.Equal(t, message, err.Message)
	assert.Equal(t, message, err.Error())
}

func TestNotFoundError_IsNotFoundError(t *testing.T) {
	err := NewNotFoundError("test not found")

	notFoundErr, ok := IsNotFoundError(err)
	assert.True(t, ok)
	assert.NotNil(t, notFoundErr)
	assert.Equal(t, "test not found", notFoundErr.Message)
}

func TestNotFoundError_IsNotFoundError_WithOtherError(t *testing.T) {
	err := errors.New("some other error")

	notFoundErr, ok := IsNotFoundError(err)
	assert.False(t, ok)
	assert.Nil(t, notFoundErr)
}

func TestNotFoundError_Wrapped(t *testing.T) {
	err := fmt.Errorf("loading order: %w", NewNotFoundError("order o1 not found"))

	notFoundErr, ok := IsNotFoundError(err)
	assert.True(t, ok)
	assert.Equal(t, "order o1 not found", notFoundErr.Message)
}

func TestForbiddenError_IsForbiddenError(t *testing.T) {
	var err error = NewForbiddenError("not the owner")

	fe, ok := IsForbiddenError(err)
	assert.True(t, ok)
	assert.Equal(t, "not the owner", fe.Error())

	_, ok = IsNotFoundError(err)
	assert.False(t, ok)
}

func TestUnauthorizedError_IsUnauthorizedError(t *testing.T) {
	err := NewUnauthorizedError("Token missing")

	ue, ok := IsUnauthorizedError(err)
	assert.True(t, ok)
	assert.Equal(t, "Token missing", ue.Message)
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := NewInvalidTransitionError("o1", "shipped", "cancelled", false)
	assert.Equal(t, "order o1 cannot move from shipped to cancelled", err.Error())
	assert.False(t, err.AlreadyTerminal)

	terminal := NewInvalidTransitionError("o2", "cancelled", "processing", true)
	assert.Equal(t, "order o2 is already cancelled, cannot move to processing", terminal.Error())
	assert.True(t, terminal.AlreadyTerminal)
}

func TestInvalidTransitionError_IsInvalidTransitionError(t *testing.T) {
	err := fmt.Errorf("advance: %w", NewInvalidTransitionError("o1", "delivered", "delivered", true))

	ite, ok := IsInvalidTransitionError(err)
	assert.True(t, ok)
	assert.Equal(t, "o1", ite.OrderID)
	assert.True(t, ite.AlreadyTerminal)
}

func TestResourceExhaustedError(t *testing.T) {
	err := NewResourceExhaustedError("rooms per connection", 64)

	assert.Equal(t, "rooms per connection limit of 64 reached", err.Error())
	re, ok := IsResourceExhaustedError(err)
	assert.True(t, ok)
	assert.Equal(t, 64, re.Limit)
}

func TestValidationError_Creation(t *testing.T) {
	message := "validation failed"
	details := []ValidationDetail{
		{Field: "address", Message: "address is required"},
		{Field: "items", Message: "items must not be empty"},
	}

	err := NewValidationError(message, details...)

	assert.NotNil(t, err)
	assert.Equal(t, message, err.Message)
	assert.Equal(t, message, err.Error())
	assert.Len(t, err.Details, 2)
}

func TestInternalError_Creation(t *testing.T) {
	cause := errors.New("broker unavailable")
	err := NewInternalError("failed to publish event", cause)

	assert.NotNil(t, err)
	assert.Equal(t, "failed to publish event", err.Message)
	assert.Equal(t, cause, err.Cause)
	assert.Contains(t, err.Error(), "failed to publish event")
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestInternalError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewInternalError("wrapper", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestInternalError_NilCause(t *testing.T) {
	err := NewInternalError("no cause", nil)

	assert.Equal(t, "no cause", err.Error())
	assert.Nil(t, err.Unwrap())
}
