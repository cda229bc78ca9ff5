package migrations

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestApplyRunsEmbeddedScripts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS meeting_requests`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Apply(context.Background(), sqlx.NewDb(db, "sqlmock"), zap.NewNop()))
	require.NoError(t, mock.ExpectationsWereMet())
}
