package dialect

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// SQLSTATE codes raised when the object being created is already present.
const (
	codeDuplicateTable    = "42P07" // relations: tables, sequences, indexes
	codeDuplicateObject   = "42710"
	codeDuplicateDatabase = "42P04"
	codeDuplicateSchema   = "42P06"
)

type PostgresDialect struct{}

func (d *PostgresDialect) GetTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`
}

// GetColumnsQuery returns columns in ordinal order. udt_name carries the
// underlying type for ARRAY ("_int4") and USER-DEFINED (enum/domain) columns.
// Identity columns report a NULL column_default; identity_generation says
// whether they are ALWAYS or BY DEFAULT.
func (d *PostgresDialect) GetColumnsQuery() string {
	return `SELECT
    c.column_name,
    c.data_type,
    c.udt_name,
    c.character_maximum_length,
    c.numeric_precision,
    c.numeric_scale,
    c.is_nullable,
    c.column_default,
    c.is_identity,
    c.identity_generation
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`
}

// GetSequencesQuery finds sequences owned by the table through pg_depend
// (deptype 'a' is the OWNED BY link created for serial columns).
func (d *PostgresDialect) GetSequencesQuery() string {
	return `SELECT s.relname
FROM pg_class s
JOIN pg_depend dep ON dep.objid = s.oid
    AND dep.classid = 'pg_class'::regclass
    AND dep.refclassid = 'pg_class'::regclass
    AND dep.deptype = 'a'
JOIN pg_class t ON t.oid = dep.refobjid
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE s.relkind = 'S' AND n.nspname = $1 AND t.relname = $2
ORDER BY s.relname`
}

// GetDefaultSequencesQuery finds sequences referenced by the table's column
// defaults (deptype 'n' from pg_attrdef), including ones the table does not own.
func (d *PostgresDialect) GetDefaultSequencesQuery() string {
	return `SELECT DISTINCT s.relname
FROM pg_attrdef ad
JOIN pg_class t ON t.oid = ad.adrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_depend dep ON dep.objid = ad.oid
    AND dep.classid = 'pg_attrdef'::regclass
    AND dep.refclassid = 'pg_class'::regclass
    AND dep.deptype = 'n'
JOIN pg_class s ON s.oid = dep.refobjid AND s.relkind = 'S'
WHERE n.nspname = $1 AND t.relname = $2
ORDER BY s.relname`
}

func (d *PostgresDialect) GetIndexesQuery() string {
	return `SELECT ic.relname, pg_get_indexdef(ix.indexrelid)
FROM pg_index ix
JOIN pg_class ic ON ic.oid = ix.indexrelid
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
WHERE n.nspname = $1 AND t.relname = $2 AND NOT ix.indisprimary
ORDER BY ic.relname`
}

func (d *PostgresDialect) GetPrimaryKeyQuery() string {
	return `SELECT a.attname
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname = $1 AND t.relname = $2 AND ix.indisprimary
ORDER BY k.ord`
}

func (d *PostgresDialect) GetTableExistsQuery() string {
	return `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`
}

func (d *PostgresDialect) ListDatabasesQuery() string {
	return `SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname`
}

func (d *PostgresDialect) DatabaseExistsQuery() string {
	return `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`
}

// TerminateSessionsQuery kills every backend connected to database $1 except our own.
func (d *PostgresDialect) TerminateSessionsQuery() string {
	return `SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`
}

func (d *PostgresDialect) CreateDatabaseQuery(name string) string {
	return fmt.Sprintf("CREATE DATABASE %s", d.QuoteIdent(name))
}

func (d *PostgresDialect) DropDatabaseQuery(name string) string {
	return fmt.Sprintf("DROP DATABASE %s", d.QuoteIdent(name))
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *PostgresDialect) IsAlreadyExists(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch string(pqErr.Code) {
	case codeDuplicateTable, codeDuplicateObject, codeDuplicateDatabase, codeDuplicateSchema:
		return true
	default:
		return false
	}
}
