package ddl_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"tenant-clone/internal/ddl"
	"tenant-clone/internal/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	seqStmt   = ddl.Statement{Kind: ddl.KindSequence, Object: "sb_orders_id_seq", SQL: `CREATE SEQUENCE IF NOT EXISTS "sb_orders_id_seq"`}
	tableStmt = ddl.Statement{Kind: ddl.KindTable, Object: "sb_orders", SQL: `CREATE TABLE "sb_orders" ("id" integer)`}
	indexStmt = ddl.Statement{Kind: ddl.KindIndex, Object: "sb_orders_id_idx", SQL: `CREATE INDEX sb_orders_id_idx ON public.sb_orders USING btree (id)`}
)

func newApplier(t *testing.T) (ddl.Applier, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return ddl.Applier{Dialect: &dialect.PostgresDialect{}, StatementTimeout: time.Second}, db, mock
}

func expectStatement(mock sqlmock.Sqlmock, savepoint, query string) {
	mock.ExpectExec("SAVEPOINT " + savepoint).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(query).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT " + savepoint).WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestApply_AllStatements(t *testing.T) {
	a, db, mock := newApplier(t)

	mock.ExpectBegin()
	expectStatement(mock, "ddl_0", seqStmt.SQL)
	expectStatement(mock, "ddl_1", tableStmt.SQL)
	expectStatement(mock, "ddl_2", indexStmt.SQL)
	mock.ExpectCommit()

	res, err := a.Apply(context.Background(), db, []ddl.Statement{seqStmt, tableStmt, indexStmt})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Empty(t, res.Existing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_AlreadyExistsIsIgnored(t *testing.T) {
	a, db, mock := newApplier(t)

	mock.ExpectBegin()
	expectStatement(mock, "ddl_0", tableStmt.SQL)
	mock.ExpectExec("SAVEPOINT ddl_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(indexStmt.SQL).WillReturnError(&pq.Error{Code: "42P07", Message: `relation "sb_orders_id_idx" already exists`})
	mock.ExpectExec("ROLLBACK TO SAVEPOINT ddl_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	res, err := a.Apply(context.Background(), db, []ddl.Statement{tableStmt, indexStmt})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Existing, 1)
	assert.Equal(t, indexStmt, res.Existing[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_FailureRollsBackTable(t *testing.T) {
	a, db, mock := newApplier(t)

	boom := &pq.Error{Code: "42601", Message: "syntax error"}
	mock.ExpectBegin()
	expectStatement(mock, "ddl_0", seqStmt.SQL)
	mock.ExpectExec("SAVEPOINT ddl_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(tableStmt.SQL).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := a.Apply(context.Background(), db, []ddl.Statement{seqStmt, tableStmt, indexStmt})
	require.Error(t, err)

	var stmtErr *ddl.StatementError
	require.True(t, errors.As(err, &stmtErr))
	assert.Equal(t, tableStmt, stmtErr.Statement)
	assert.True(t, errors.Is(err, boom))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_CancelledBeforeFirstStatement(t *testing.T) {
	a, db, _ := newApplier(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Apply(ctx, db, []ddl.Statement{tableStmt})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
