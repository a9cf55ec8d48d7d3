package ddl

import (
	"fmt"
	"strings"

	"tenant-clone/internal/dialect"
	"tenant-clone/internal/rewrite"
	"tenant-clone/internal/schema"
)

type Kind string

const (
	KindSequence Kind = "sequence"
	KindTable    Kind = "table"
	KindIndex    Kind = "index"
)

// Statement is one DDL command targeting a single (rewritten) object.
type Statement struct {
	Kind   Kind
	Object string
	SQL    string
}

func (s Statement) String() string {
	return fmt.Sprintf("%s %s", s.Kind, s.Object)
}

// Synthesizer renders table descriptors as DDL for a target tenant.
type Synthesizer struct {
	Dialect dialect.Dialect
	Schema  string // target schema qualifier for tables and sequences
}

// Synthesize returns, in dependency order, the sequences, the table and the
// indexes of t, all renamed through rw.
func (s Synthesizer) Synthesize(t *schema.TableDescriptor, rw rewrite.Rewriter) []Statement {
	names := t.Names()
	stmts := make([]Statement, 0, len(t.Sequences)+1+len(t.Indexes))

	// 1. Sequences first: column defaults reference them. Shared sequences
	// keep their name and are only created when the tenant lacks them.
	for _, seq := range t.Sequences {
		name := rw.Name(seq.Name)
		stmts = append(stmts, Statement{
			Kind:   KindSequence,
			Object: name,
			SQL:    fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s", s.qualified(name)),
		})
	}

	// 2. Table
	tableName := rw.Name(t.Name)
	stmts = append(stmts, Statement{
		Kind:   KindTable,
		Object: tableName,
		SQL:    s.createTable(t, tableName, rw, names),
	})

	// 3. Indexes, straight from the catalog definition.
	for _, idx := range t.Indexes {
		stmts = append(stmts, Statement{
			Kind:   KindIndex,
			Object: rw.Name(idx.Name),
			SQL:    rw.Text(idx.Definition, names...),
		})
	}

	return stmts
}

func (s Synthesizer) createTable(t *schema.TableDescriptor, tableName string, rw rewrite.Rewriter, names []string) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, s.columnDef(c, rw, names))
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", dialect.QuoteIdentList(s.Dialect, t.PrimaryKey)))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", s.qualified(tableName), strings.Join(defs, ",\n    "))
}

func (s Synthesizer) columnDef(c *schema.Column, rw rewrite.Rewriter, names []string) string {
	var b strings.Builder
	b.WriteString(s.Dialect.QuoteIdent(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type.Render())
	if !c.IsNullable {
		b.WriteString(" NOT NULL")
	}
	if c.IsIdentity() {
		// the tenant gets its own implicit identity sequence
		fmt.Fprintf(&b, " GENERATED %s AS IDENTITY", c.Identity)
		return b.String()
	}
	if c.HasDefault() {
		b.WriteString(" DEFAULT ")
		b.WriteString(rw.Text(c.Default, names...))
	}
	return b.String()
}

func (s Synthesizer) qualified(name string) string {
	if s.Schema == "" {
		return s.Dialect.QuoteIdent(name)
	}
	return s.Dialect.QuoteIdent(s.Schema) + "." + s.Dialect.QuoteIdent(name)
}
