package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutURLIsDisabled(t *testing.T) {
	pool, err := New(context.Background(), DefaultConfig(""))
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.Error(t, pool.Health(context.Background()))
	assert.NoError(t, pool.Close())
}

func TestInTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectCommit()

		require.NoError(t, InTx(context.Background(), db, func(*sql.Tx) error { return nil }))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = InTx(context.Background(), db, func(*sql.Tx) error { return boom })
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
