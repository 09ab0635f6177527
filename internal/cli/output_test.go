package cli

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/celerix-dev/wardledger/pkg/ledger"
)

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "inner", errors.New("cause")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: inner: cause", wrapped.Error())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", ErrorCode(fmt.Errorf("%w: 3", ledger.ErrNotFound)))
	assert.Equal(t, "TRANSFER_NOT_ALLOWED", ErrorCode(ledger.FromCode("TRANSFER_NOT_ALLOWED", "no")))
	assert.Equal(t, ledger.CodeBadRequest, ErrorCode(ledger.FromCode(ledger.CodeBadRequest, "usage")))
	assert.Equal(t, "USAGE", ErrorCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, "ERROR", ErrorCode(errors.New("dial tcp: refused")))
}

func TestOutputFormatter_Text(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &out, ErrWriter: &errOut}

	assert.NoError(t, f.Success("plain value", nil))
	assert.Equal(t, "plain value\n", out.String())

	assert.NoError(t, f.Error("NOT_FOUND", "record not found: 3"))
	assert.Equal(t, "Error [NOT_FOUND]: record not found: 3\n", errOut.String())
}

func TestOutputFormatter_JSON(t *testing.T) {
	var out bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out}

	assert.NoError(t, f.Success(counted{Count: 2}, nil))
	assert.JSONEq(t, `{"status":"ok","data":{"count":2}}`, out.String())

	out.Reset()
	assert.NoError(t, f.Error("EMPTY_STORE", "ledger is empty"))
	assert.JSONEq(t, `{"status":"error","error":{"code":"EMPTY_STORE","message":"ledger is empty"}}`, out.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out}

	f.VerboseLog("hidden")
	assert.Empty(t, out.String())

	f.Verbose = true
	f.VerboseLog("shown %d", 1)
	assert.Equal(t, "shown 1\n", out.String())
}
