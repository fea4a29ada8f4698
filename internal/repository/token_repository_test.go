package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeRefreshClaimsLiveToken(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP\(\)\s+WHERE token_hash=\? AND revoked_at IS NULL AND expires_at > UTC_TIMESTAMP\(\)`).
		WithArgs("h1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT user_id FROM refresh_tokens WHERE token_hash=\?`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(42))

	id, err := NewTokenRepo(db).ConsumeRefresh(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeRefreshRejectsSpentToken(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE refresh_tokens`).
		WithArgs("h1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := NewTokenRepo(db).ConsumeRefresh(context.Background(), "h1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
