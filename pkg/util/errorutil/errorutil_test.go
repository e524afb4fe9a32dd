package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_PassesThroughWrapped(t *testing.T) {
	wrapped := fmt.Errorf("post: %w", NewTicketClosed(7))

	de := ToDomainError(wrapped)
	require.NotNil(t, de)
	assert.Equal(t, CodeTicketClosed, de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, int64(7), de.Details["ticket_id"])
}

func TestToDomainError_HidesInfrastructureErrors(t *testing.T) {
	de := ToDomainError(errors.New("dial tcp 10.0.0.1:5432: connection refused"))

	require.NotNil(t, de)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, "internal server error", de.Message)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
}

func TestToDomainError_Nil(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(NewForbidden("nope"), CodeForbidden))
	assert.True(t, HasCode(fmt.Errorf("x: %w", NewNotFound("ticket", nil)), CodeNotFound))
	assert.False(t, HasCode(NewForbidden("nope"), CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}

func TestNotFoundMessage(t *testing.T) {
	err := NewNotFound("ticket", map[string]any{"ticket_id": int64(3)})
	assert.Equal(t, "ticket not found", err.Error())
}
