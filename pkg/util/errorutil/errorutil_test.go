package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestIsCode(t *testing.T) {
	err := NewPermissionDenied("")
	require.True(t, IsCode(err, CodePermissionDenied))
	require.False(t, IsCode(err, CodeNotFound))

	wrapped := fmt.Errorf("outer: %w", NewConflict("busy", nil))
	require.True(t, IsCode(wrapped, CodeConflict))

	require.False(t, IsCode(errors.New("plain"), CodeInternal))
	require.False(t, IsCode(nil, CodeInternal))
}

func TestToDomainError(t *testing.T) {
	de := ToDomainError(NewNotFound("ticket"))
	require.Equal(t, CodeNotFound, de.Code)
	require.Equal(t, http.StatusNotFound, de.HTTPStatus)

	de = ToDomainError(pgx.ErrNoRows)
	require.Equal(t, CodeNotFound, de.Code)

	de = ToDomainError(errors.New("boom"))
	require.Equal(t, CodeInternal, de.Code)
	require.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
}
