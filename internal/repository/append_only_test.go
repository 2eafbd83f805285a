package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/incident-desk/pkg/util/errorutil"
)

// The mutation refusals need no database; they fail before touching the
// pool.

func TestTicketHistoryDeleteRefused(t *testing.T) {
	repo := NewTicketHistoryRepository(nil)
	err := repo.Delete(context.Background(), "entry-1")
	require.True(t, apperrors.IsCode(err, apperrors.CodeAppendOnlyViolation))
}

func TestAuditLedgerMutationRefused(t *testing.T) {
	repo := NewAuditRepository(nil)

	err := repo.Update(context.Background(), "entry-1", map[string]any{"success": true})
	require.True(t, apperrors.IsCode(err, apperrors.CodeAppendOnlyViolation))

	err = repo.Delete(context.Background(), "entry-1")
	require.True(t, apperrors.IsCode(err, apperrors.CodeAppendOnlyViolation))
}
