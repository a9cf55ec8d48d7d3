package dialect

// Dialect abstracts the catalog and server-level SQL the replication engine needs.
type Dialect interface {
	// Metadata Queries (Schema Introspection)
	// All take the schema name as $1; per-table queries take the table name as $2.
	GetTablesQuery() string
	GetColumnsQuery() string
	GetSequencesQuery() string
	GetDefaultSequencesQuery() string
	GetIndexesQuery() string
	GetPrimaryKeyQuery() string
	GetTableExistsQuery() string

	// Server Queries (Tenant Registry)
	ListDatabasesQuery() string
	DatabaseExistsQuery() string
	TerminateSessionsQuery() string
	CreateDatabaseQuery(name string) string
	DropDatabaseQuery(name string) string

	// DDL Helpers
	QuoteIdent(name string) string

	// IsAlreadyExists reports whether err means the target object already exists.
	IsAlreadyExists(err error) bool
}
