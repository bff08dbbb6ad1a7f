package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassOf(t *testing.T) {
	cases := []struct {
		code Code
		want Class
	}{
		{CodeInvalidMode, ClassClientInput},
		{CodeInvalidPeriod, ClassClientInput},
		{CodeEmptyMessage, ClassClientInput},
		{CodeTimeout, ClassTransient},
		{CodeConnectionFailed, ClassTransient},
		{CodeRateLimited, ClassTransient},
		{CodeServerError, ClassFatal},
		{CodeUnexpected, ClassFatal},
		{CodeInternal, ClassFatal},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			require.Equal(t, tc.want, ClassOf(New(tc.code, "r", nil)))
		})
	}
}

func TestClassOf_WrappedAndPlainErrors(t *testing.T) {
	wrapped := fmt.Errorf("router: %w", New(CodeTimeout, "llm_timeout", errors.New("deadline")))
	require.Equal(t, ClassTransient, ClassOf(wrapped))
	require.Equal(t, CodeTimeout, CodeOf(wrapped))

	require.Equal(t, ClassFatal, ClassOf(errors.New("boom")))
	require.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	require.False(t, IsClientInput(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid mode", New(CodeInvalidMode, "bad", nil), http.StatusBadRequest},
		{"empty message", New(CodeEmptyMessage, "empty", nil), http.StatusBadRequest},
		{"timeout", New(CodeTimeout, "t", nil), http.StatusGatewayTimeout},
		{"connection", New(CodeConnectionFailed, "c", nil), http.StatusBadGateway},
		{"server", New(CodeServerError, "s", nil), http.StatusBadGateway},
		{"rate limited", New(CodeRateLimited, "r", nil), http.StatusServiceUnavailable},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	require.Equal(t, `invalid chat mode "x"`, UserMessage(New(CodeInvalidMode, `invalid chat mode "x"`, nil)))
	require.Contains(t, UserMessage(New(CodeTimeout, "t", nil)), "too long")
	require.Contains(t, UserMessage(New(CodeRateLimited, "r", nil)), "Too many requests")
	require.NotEqual(t, UserMessage(New(CodeTimeout, "t", nil)), UserMessage(New(CodeConnectionFailed, "c", nil)))
	require.Contains(t, UserMessage(errors.New("boom")), "Something went wrong")
}

func TestErrorString(t *testing.T) {
	require.Equal(t, "TIMEOUT: llm_timeout", New(CodeTimeout, "llm_timeout", nil).Error())
	inner := errors.New("deadline exceeded")
	err := New(CodeTimeout, "llm_timeout", inner)
	require.Equal(t, "TIMEOUT: llm_timeout: deadline exceeded", err.Error())
	require.ErrorIs(t, err, inner)
}
