package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error passes through", NewInvalidTransition("closed", "assigned"), CodeInvalidTransition, http.StatusConflict},
		{"wrapped domain error", fmt.Errorf("assign: %w", NewNoEligibleStaff("nobody", nil)), CodeNoEligibleStaff, http.StatusUnprocessableEntity},
		{"missing row", fmt.Errorf("load: %w", pgx.ErrNoRows), CodeNotFound, http.StatusNotFound},
		{"anything else", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
		{"unauthenticated", NewUnauthenticated("no token"), CodeUnauthenticated, http.StatusUnauthorized},
		{"unauthorized", NewUnauthorized("not yours"), CodeUnauthorized, http.StatusForbidden},
		{"cannot unassign", NewCannotUnassign("in-progress"), CodeCannotUnassign, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.code, got.Code)
			assert.Equal(t, tc.status, got.HTTPStatus)
		})
	}
}

func TestInternalErrorKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := MapError(cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, CodeInternal))
	assert.Equal(t, "internal server error: disk full", err.Error())
}

func TestNilErrors(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestInvalidTransitionDetails(t *testing.T) {
	err := ToDomainError(NewInvalidTransition("resolved", "submitted"))
	assert.Equal(t, map[string]any{"from": "resolved", "to": "submitted"}, err.Details)
}
