package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tenant-clone/internal/dialect"
)

// ErrTableNotFound is returned by DescribeTable when the catalog reports no
// columns for the table. A real table always has at least one column.
var ErrTableNotFound = errors.New("table not found")

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Introspector reads table structure out of one database's system catalogs.
type Introspector struct {
	db         Querier
	d          dialect.Dialect
	schemaName string
}

func NewIntrospector(db Querier, d dialect.Dialect, schemaName string) *Introspector {
	if schemaName == "" {
		schemaName = "public"
	}
	return &Introspector{db: db, d: d, schemaName: schemaName}
}

// ListTables returns every base table of the schema, alphabetically.
func (in *Introspector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, in.d.GetTablesQuery(), in.schemaName)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// TableExists checks the catalog for a base table or view of that name.
func (in *Introspector) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	if err := in.db.QueryRowContext(ctx, in.d.GetTableExistsQuery(), in.schemaName, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return exists, nil
}

// DescribeTable builds a fresh TableDescriptor. Columns, sequences, indexes
// and the primary key come from independent catalog queries; only the
// column query decides whether the table exists.
func (in *Introspector) DescribeTable(ctx context.Context, table string) (*TableDescriptor, error) {
	t := &TableDescriptor{Name: table}

	// --- Step 1: Columns ---
	cols, err := in.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s.%s: %w", in.schemaName, table, ErrTableNotFound)
	}
	t.Columns = cols

	// --- Step 2: Owned Sequences ---
	seqNames, err := in.names(ctx, in.d.GetSequencesQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to query sequences of %s: %w", table, err)
	}
	for _, name := range seqNames {
		t.Sequences = append(t.Sequences, &Sequence{Name: name, OwnerTable: table})
	}

	// --- Step 2b: Sequences referenced by defaults but owned elsewhere ---
	refNames, err := in.names(ctx, in.d.GetDefaultSequencesQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to query default sequences of %s: %w", table, err)
	}
	for _, name := range refNames {
		if !t.hasSequence(name) {
			t.Sequences = append(t.Sequences, &Sequence{Name: name})
		}
	}

	// --- Step 3: Indexes (primary key excluded by the query) ---
	if t.Indexes, err = in.indexes(ctx, table); err != nil {
		return nil, err
	}

	// --- Step 4: Primary Key ---
	if t.PrimaryKey, err = in.names(ctx, in.d.GetPrimaryKeyQuery(), table); err != nil {
		return nil, fmt.Errorf("failed to query primary key of %s: %w", table, err)
	}

	return t, nil
}

func (in *Introspector) columns(ctx context.Context, table string) ([]*Column, error) {
	rows, err := in.db.QueryContext(ctx, in.d.GetColumnsQuery(), in.schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []*Column
	for rows.Next() {
		var (
			name, dataType, udtName, isNull, isIdentity string
			maxLen, precision, scale                    sql.NullInt64
			def, generation                             sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &udtName, &maxLen, &precision, &scale, &isNull, &def, &isIdentity, &generation); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", table, err)
		}

		col := &Column{
			Name: name,
			Type: ClassifyType(RawType{
				DataType:  dataType,
				UDTName:   udtName,
				MaxLength: intPtr(maxLen),
				Precision: intPtr(precision),
				Scale:     intPtr(scale),
			}),
			IsNullable: isNull == "YES",
			Default:    def.String,
		}
		if isIdentity == "YES" {
			col.Identity = strings.ToUpper(generation.String)
			col.Default = ""
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	return cols, nil
}

func (in *Introspector) indexes(ctx context.Context, table string) ([]*Index, error) {
	rows, err := in.db.QueryContext(ctx, in.d.GetIndexesQuery(), in.schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var idx []*Index
	for rows.Next() {
		var i Index
		if err := rows.Scan(&i.Name, &i.Definition); err != nil {
			return nil, fmt.Errorf("failed to scan index (table: %s): %w", table, err)
		}
		idx = append(idx, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating indexes of %s: %w", table, err)
	}
	return idx, nil
}

// names runs a per-table query returning a single text column.
func (in *Introspector) names(ctx context.Context, query, table string) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, query, in.schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
