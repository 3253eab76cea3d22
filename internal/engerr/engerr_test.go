package engerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UsesHumanMessageTable(t *testing.T) {
	cause := errors.New("401 unauthorized")
	e := New(KindAuth, cause)

	assert.Equal(t, KindAuth, e.Kind)
	assert.Contains(t, e.Message, "authentication")
	assert.Equal(t, cause, e.Cause)
}

func TestNew_UnknownKindFallsBackToUnknownMessage(t *testing.T) {
	e := New(Kind("not-a-real-kind"), nil)
	assert.Equal(t, humanMessages[KindUnknown], e.Message)
}

func TestNewf_FormatsCause(t *testing.T) {
	e := Newf(KindBadRequest, "model %q rejected", "gpt-9")
	require.Error(t, e.Cause)
	assert.Contains(t, e.Cause.Error(), "gpt-9")
}

func TestError_StringIncludesKindAndCause(t *testing.T) {
	e := New(KindTransport, errors.New("dial tcp: timeout"))
	s := e.Error()
	assert.Contains(t, s, string(KindTransport))
	assert.Contains(t, s, "dial tcp: timeout")
}

func TestError_StringWithoutCause(t *testing.T) {
	e := New(KindSafetyBlocked, nil)
	s := e.Error()
	assert.Contains(t, s, string(KindSafetyBlocked))
	assert.NotContains(t, s, "<nil>")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := New(KindToolError, cause)
	assert.Equal(t, cause, errors.Unwrap(e))
}

func TestAs(t *testing.T) {
	var err error = New(KindQuota, nil)
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindQuota, e.Kind)

	_, ok = As(errors.New("plain error"))
	assert.False(t, ok)
}
