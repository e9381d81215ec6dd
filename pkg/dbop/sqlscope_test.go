package dbop_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/yokha/dbop-core/pkg/dbop"
)

func newMockBunDB(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close() })
	return bun.NewDB(sqldb, pgdialect.New()), mock
}

func TestSQLScopeSuccessTranscriptReadOnly(t *testing.T) {
	t.Parallel()

	db, mock := newMockBunDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("SET TRANSACTION READ ONLY").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT dbop_")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT dbop_")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	scope := dbop.NewPostgresScope(db)
	err := scope.Run(context.Background(), true, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLScopeFailureTranscript(t *testing.T) {
	t.Parallel()

	db, mock := newMockBunDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT dbop_")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT dbop_")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	bodyErr := errors.New("body failed")
	scope := dbop.NewPostgresScope(db)
	err := scope.Run(context.Background(), false, func(ctx context.Context) error {
		return bodyErr
	})
	require.ErrorIs(t, err, bodyErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLScopeCleanupFailureDoesNotMaskBodyError(t *testing.T) {
	t.Parallel()

	db, mock := newMockBunDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT dbop_")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT dbop_")).WillReturnError(errors.New("rollback to savepoint failed"))
	mock.ExpectRollback()

	bodyErr := errors.New("body failed")
	scope := dbop.NewPostgresScope(db)
	err := scope.Run(context.Background(), false, func(ctx context.Context) error {
		return bodyErr
	})
	require.ErrorIs(t, err, bodyErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteScopeSkipsReadOnlyStatement(t *testing.T) {
	t.Parallel()

	db, mock := newMockBunDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT dbop_")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT dbop_")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	scope := dbop.NewSQLiteScope(db)
	err := scope.Run(context.Background(), true, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
