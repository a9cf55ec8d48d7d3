package ddl

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tenant-clone/internal/dialect"
)

// StatementError is returned when a statement fails for any reason other
// than its target already existing.
type StatementError struct {
	Statement Statement
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s: %v", e.Statement, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// ApplyResult counts what happened to each statement of a successful Apply.
type ApplyResult struct {
	Applied  int
	Existing []Statement // skipped because the object was already there
}

// Applier runs a table's statements against a tenant database.
type Applier struct {
	Dialect          dialect.Dialect
	StatementTimeout time.Duration // 0 disables the per-statement limit
}

// Apply executes stmts in order on a single session and transaction. Every
// statement runs under its own savepoint: an "already exists" failure rolls
// back to it and moves on, any other failure rolls back the whole table.
func (a Applier) Apply(ctx context.Context, db *sql.DB, stmts []Statement) (*ApplyResult, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	res := &ApplyResult{}
	for i, st := range stmts {
		// cancellation is honoured between statements
		if err := ctx.Err(); err != nil {
			return res, &StatementError{Statement: st, Err: err}
		}

		savepoint := fmt.Sprintf("ddl_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
			return res, &StatementError{Statement: st, Err: err}
		}

		if err := a.exec(ctx, tx, st.SQL); err != nil {
			if !a.Dialect.IsAlreadyExists(err) {
				return res, &StatementError{Statement: st, Err: err}
			}
			if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); err != nil {
				return res, &StatementError{Statement: st, Err: err}
			}
			res.Existing = append(res.Existing, st)
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return res, &StatementError{Statement: st, Err: err}
		}
		res.Applied++
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit: %w", err)
	}
	tx = nil

	return res, nil
}

func (a Applier) exec(ctx context.Context, tx *sql.Tx, query string) error {
	if a.StatementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.StatementTimeout)
		defer cancel()
	}
	_, err := tx.ExecContext(ctx, query)
	return err
}
