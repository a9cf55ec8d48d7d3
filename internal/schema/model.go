package schema

// TableDescriptor is a catalog snapshot of one table. It is rebuilt on every
// DescribeTable call since the source schema may change between calls.
type TableDescriptor struct {
	Name       string
	Columns    []*Column
	Sequences  []*Sequence
	Indexes    []*Index
	PrimaryKey []string // column names in key order
}

type Column struct {
	Name       string
	Type       ColumnType
	IsNullable bool
	Default    string // raw default expression, "" when none
	Identity   string // "ALWAYS" or "BY DEFAULT" for identity columns, else ""
}

// IsIdentity reports whether the column is GENERATED ... AS IDENTITY.
func (c *Column) IsIdentity() bool {
	return c.Identity != ""
}

// HasDefault reports whether the column carries a default expression.
func (c *Column) HasDefault() bool {
	return c.Default != ""
}

// Sequence is owned by OwnerTable through a catalog dependency record.
// OwnerTable is empty for a sequence the table only references from a
// column default.
type Sequence struct {
	Name       string
	OwnerTable string
}

// Index holds the full CREATE INDEX statement as the catalog reports it.
// Primary key indexes never appear here.
type Index struct {
	Name       string
	Definition string
}

// Names returns the identifiers of every object the table owns, table first.
func (t *TableDescriptor) Names() []string {
	names := make([]string, 0, 1+len(t.Sequences)+len(t.Indexes))
	names = append(names, t.Name)
	for _, s := range t.Sequences {
		names = append(names, s.Name)
	}
	for _, i := range t.Indexes {
		names = append(names, i.Name)
	}
	return names
}

func (t *TableDescriptor) hasSequence(name string) bool {
	for _, s := range t.Sequences {
		if s.Name == name {
			return true
		}
	}
	return false
}
