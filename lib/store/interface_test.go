package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(RetCUnavailable, "down")))
	assert.True(t, IsRetryable(fmt.Errorf("push: %w", NewError(RetCUnavailable, "down"))))
	assert.False(t, IsRetryable(NewError(RetCInvalidOperation, "bad")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, RetCSuccess, CodeOf(nil))
	assert.Equal(t, RetCInvalidOperation, CodeOf(NewError(RetCInvalidOperation, "bad")))
	assert.Equal(t, RetCInternalError, CodeOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := NewError(RetCUnavailable, "connection refused")
	assert.Equal(t, "TimelineStoreError (code Unavailable): connection refused", err.Error())
}
