package taperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, ErrorTypeConnection, "failed to open database")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection: failed to open database")
	assert.Contains(t, err.Error(), "disk full")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeQuery, "ignored"))
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeDiscovery, "table vanished")
	assert.True(t, IsType(err, ErrorTypeDiscovery))
	assert.False(t, IsType(err, ErrorTypeQuery))

	// Type checks see through wrapping.
	wrapped := Wrap(err, ErrorTypeDiscovery, "catalog build failed")
	assert.True(t, IsType(wrapped, ErrorTypeDiscovery))

	assert.False(t, IsType(errors.New("plain"), ErrorTypeDiscovery))
	assert.False(t, IsType(nil, ErrorTypeDiscovery))
}

func TestWithDetail(t *testing.T) {
	err := Newf(ErrorTypeExtraction, "scan failed after %d records", 42).
		WithDetail("stream", "mydb.main.users").
		WithDetail("query", "SELECT 1")

	require.NotNil(t, err.Details)
	assert.Equal(t, "mydb.main.users", err.Details["stream"])
	assert.Equal(t, "SELECT 1", err.Details["query"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeConnection, "timeout")))
	assert.True(t, IsRetryable(New(ErrorTypeExtraction, "row fetch failed")))
	assert.False(t, IsRetryable(New(ErrorTypeConfig, "bad separator")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestStackCaptured(t *testing.T) {
	err := New(ErrorTypeState, "bad transition")
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0].Function, "TestStackCaptured")
}
