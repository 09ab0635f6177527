package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeAndKind(t *testing.T) {
	tests := []struct {
		err  error
		code string
		kind Kind
	}{
		{ErrEmptyReference, "EMPTY_REFERENCE", KindValidation},
		{ErrReportRequired, "REPORT_REQUIRED", KindValidation},
		{ErrIllegalTransition, "ILLEGAL_TRANSITION", KindState},
		{ErrNotFound, "NOT_FOUND", KindLookup},
		{ErrEmptyStore, "EMPTY_STORE", KindLookup},
		{ErrPageOutOfBounds, "PAGE_OUT_OF_BOUNDS", KindLookup},
		{ErrUnauthorized, "UNAUTHORIZED", KindAuthorization},
		{ErrTransferNotAllowed, "TRANSFER_NOT_ALLOWED", KindAuthorization},
		{ErrInvalidAddress, "INVALID_ADDRESS", KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			wrapped := fmt.Errorf("update record 3: %w", tt.err)
			assert.Equal(t, tt.code, Code(wrapped))
			assert.Equal(t, tt.kind, KindOf(wrapped))
		})
	}
}

func TestCode_Unknown(t *testing.T) {
	err := errors.New("disk on fire")
	assert.Equal(t, CodeInternal, Code(err))
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.False(t, Retryable(err))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrEmptyReference))
	assert.True(t, Retryable(ErrReportRequired))
	assert.False(t, Retryable(ErrIllegalTransition))
	assert.False(t, Retryable(ErrUnauthorized))
	assert.False(t, Retryable(ErrPageOutOfBounds))
}

func TestFromCode(t *testing.T) {
	err := FromCode("ILLEGAL_TRANSITION", "Upcoming -> Completed")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, "Upcoming -> Completed", err.Error())

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "ILLEGAL_TRANSITION", re.Code)
}

func TestFromCode_Unknown(t *testing.T) {
	err := FromCode("BAD_REQUEST", "")
	assert.Equal(t, "remote error BAD_REQUEST", err.Error())
	assert.Equal(t, KindUnknown, KindOf(err))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "authorization", KindAuthorization.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
