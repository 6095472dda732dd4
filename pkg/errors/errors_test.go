package errors

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewError tests the basic creation of errors.
func TestNewError(t *testing.T) {
	tests := []struct {
		name    string
		code    ErrorCode
		message string
	}{
		{
			name:    "OracleUnavailable",
			code:    OracleUnavailable,
			message: "oracle unavailable",
		},
		{
			name:    "MalformedCompletion",
			code:    MalformedCompletion,
			message: "malformed completion",
		},
		{
			name:    "NodeNotFound",
			code:    NodeNotFound,
			message: "node not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)

			customErr, ok := err.(*Error)

			assert.True(t, ok, "should be a custom *Error")
			assert.Equal(t, tt.code, customErr.Code())
			assert.Equal(t, tt.message, customErr.Error())
			assert.Nil(t, customErr.Unwrap())
		})
	}
}

// TestWrapError tests error wrapping functionality.
func TestWrapError(t *testing.T) {
	originalErr := stderrors.New("connection refused")

	err := Wrap(originalErr, OracleUnavailable, "generate request failed")
	require.NotNil(t, err)

	customErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, OracleUnavailable, customErr.Code())
	assert.Equal(t, originalErr, customErr.Unwrap())
	assert.Contains(t, err.Error(), "generate request failed")
	assert.Contains(t, err.Error(), "connection refused")

	// Wrapping nil returns nil
	assert.Nil(t, Wrap(nil, OracleUnavailable, "ignored"))
}

func TestWithFields(t *testing.T) {
	err := New(UnknownParent, "parent does not exist")
	err = WithFields(err, Fields{"parent_id": "abc123"})

	customErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, UnknownParent, customErr.Code())
	assert.Equal(t, "abc123", customErr.Fields()["parent_id"])
	assert.Contains(t, err.Error(), "parent_id=abc123")

	// Fields on a plain error produce an Unknown-coded error
	plain := WithFields(stderrors.New("boom"), Fields{"k": 1})
	plainErr, ok := plain.(*Error)
	require.True(t, ok)
	assert.Equal(t, Unknown, plainErr.Code())
}

func TestErrorIs(t *testing.T) {
	err := Wrap(stderrors.New("dial tcp: timeout"), OracleUnavailable, "scoring call failed")

	assert.True(t, stderrors.Is(err, New(OracleUnavailable, "any message")))
	assert.False(t, stderrors.Is(err, New(MalformedCompletion, "any message")))
}

func TestErrorAs(t *testing.T) {
	err := WithFields(New(NodeNotFound, "missing node"), Fields{"node_id": "n1"})

	var custom *Error
	require.True(t, stderrors.As(err, &custom))
	assert.Equal(t, NodeNotFound, custom.Code())
}

func TestCode(t *testing.T) {
	assert.Equal(t, MalformedCompletion, Code(New(MalformedCompletion, "bad")))
	assert.Equal(t, Unknown, Code(stderrors.New("plain")))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(New(OracleUnavailable, "503")))
	assert.True(t, IsTransient(New(Timeout, "deadline")))
	assert.False(t, IsTransient(New(MalformedCompletion, "unparseable")))
	assert.False(t, IsTransient(New(UnknownParent, "bug")))
}

func TestCheckContext(t *testing.T) {
	assert.NoError(t, CheckContext(context.Background(), "search"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := CheckContext(ctx, "search")
	require.Error(t, err)
	assert.Equal(t, Canceled, Code(err))
	assert.Contains(t, err.Error(), "search canceled")
}
