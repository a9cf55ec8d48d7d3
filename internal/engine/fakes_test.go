package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tenant-clone/internal/ddl"
	"tenant-clone/internal/dialect"
	"tenant-clone/internal/schema"
	"tenant-clone/internal/tenant"
)

// calls is a shared, ordered log of side effects across fakes.
type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, fmt.Sprintf(format, args...))
}

func (c *calls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

type fakeCatalog struct {
	tables  map[string]*schema.TableDescriptor
	listErr error
	descErr map[string]error
}

func (f *fakeCatalog) ListTables(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.tables))
	for n := range f.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeCatalog) DescribeTable(ctx context.Context, table string) (*schema.TableDescriptor, error) {
	if err := f.descErr[table]; err != nil {
		return nil, err
	}
	t, ok := f.tables[table]
	if !ok {
		return nil, fmt.Errorf("%s: %w", table, schema.ErrTableNotFound)
	}
	return t, nil
}

type fakeTenants struct {
	naming tenant.Naming
	calls  *calls

	mu  sync.Mutex
	dbs map[string]bool
}

func (f *fakeTenants) Naming() tenant.Naming { return f.naming }

func (f *fakeTenants) ListActive(ctx context.Context) ([]tenant.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tenant.Descriptor
	for name := range f.dbs {
		d, ok := f.naming.FromDatabaseName(name)
		if ok && !f.naming.IsSource(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DatabaseName < out[j].DatabaseName })
	return out, nil
}

func (f *fakeTenants) Exists(ctx context.Context, d tenant.Descriptor) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dbs[d.DatabaseName], nil
}

func (f *fakeTenants) CreateDatabase(ctx context.Context, d tenant.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dbs[d.DatabaseName] = true
	f.calls.add("create %s", d.DatabaseName)
	return nil
}

func (f *fakeTenants) TerminateSessions(ctx context.Context, d tenant.Descriptor) (int, error) {
	f.calls.add("terminate %s", d.DatabaseName)
	return 1, nil
}

func (f *fakeTenants) DropDatabase(ctx context.Context, d tenant.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.dbs, d.DatabaseName)
	f.calls.add("drop %s", d.DatabaseName)
	return nil
}

type fakeTarget struct {
	calls *calls
	delay time.Duration

	mu      sync.Mutex
	tables  map[string]map[string]bool // db -> table -> exists
	applied map[string][]ddl.Statement // db -> statements
	failOn  map[string]error           // target table name -> apply error
	locks   map[string]*sync.Mutex

	active    int
	maxActive int
}

func newFakeTarget(c *calls) *fakeTarget {
	return &fakeTarget{
		calls:   c,
		tables:  make(map[string]map[string]bool),
		applied: make(map[string][]ddl.Statement),
		failOn:  make(map[string]error),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (f *fakeTarget) TableExists(ctx context.Context, dbName, table string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[dbName][table], nil
}

func (f *fakeTarget) Apply(ctx context.Context, dbName string, stmts []ddl.Statement) (*ddl.ApplyResult, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--

	if err := ctx.Err(); err != nil {
		return nil, &ddl.StatementError{Statement: stmts[0], Err: err}
	}
	for _, st := range stmts {
		if err := f.failOn[st.Object]; err != nil {
			return nil, &ddl.StatementError{Statement: st, Err: err}
		}
	}
	if f.tables[dbName] == nil {
		f.tables[dbName] = make(map[string]bool)
	}
	for _, st := range stmts {
		if st.Kind == ddl.KindTable {
			f.tables[dbName][st.Object] = true
		}
	}
	f.applied[dbName] = append(f.applied[dbName], stmts...)
	return &ddl.ApplyResult{Applied: len(stmts)}, nil
}

func (f *fakeTarget) Release(dbName string) error {
	f.calls.add("release %s", dbName)
	return nil
}

func (f *fakeTarget) Lock(dbName string) func() {
	f.mu.Lock()
	l, ok := f.locks[dbName]
	if !ok {
		l = &sync.Mutex{}
		f.locks[dbName] = l
	}
	f.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (f *fakeTarget) appliedTo(dbName string) []ddl.Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ddl.Statement(nil), f.applied[dbName]...)
}

// sourceSchema is the end-to-end fixture: fp_customers and fp_orders, the
// latter with one owned sequence and one secondary index.
func sourceSchema() *fakeCatalog {
	return &fakeCatalog{tables: map[string]*schema.TableDescriptor{
		"fp_customers": {
			Name: "fp_customers",
			Columns: []*schema.Column{
				{Name: "code", Type: schema.SimpleType{Name: "text"}},
				{Name: "name", Type: schema.SimpleType{Name: "text"}, IsNullable: true},
			},
			PrimaryKey: []string{"code"},
		},
		"fp_orders": {
			Name: "fp_orders",
			Columns: []*schema.Column{
				{Name: "id", Type: schema.SimpleType{Name: "integer"}, Default: "nextval('fp_orders_id_seq'::regclass)"},
				{Name: "created_at", Type: schema.SimpleType{Name: "timestamp without time zone"}},
			},
			Sequences:  []*schema.Sequence{{Name: "fp_orders_id_seq", OwnerTable: "fp_orders"}},
			Indexes:    []*schema.Index{{Name: "fp_orders_created_at_idx", Definition: "CREATE INDEX fp_orders_created_at_idx ON public.fp_orders USING btree (created_at)"}},
			PrimaryKey: []string{"id"},
		},
	}}
}

type fixture struct {
	engine  *Engine
	catalog *fakeCatalog
	tenants *fakeTenants
	target  *fakeTarget
	calls   *calls
}

func newFixture(catalog *fakeCatalog, existingDBs ...string) *fixture {
	c := &calls{}
	tenants := &fakeTenants{naming: tenant.NewNaming("FP", "_database"), calls: c, dbs: map[string]bool{"fp_database": true}}
	for _, db := range existingDBs {
		tenants.dbs[db] = true
	}
	target := newFakeTarget(c)
	synth := ddl.Synthesizer{Dialect: &dialect.PostgresDialect{}, Schema: "public"}

	e, err := New(catalog, tenants, target, synth, Config{Workers: 2, Logger: Quiet()})
	if err != nil {
		panic(err)
	}

	return &fixture{
		engine:  e,
		catalog: catalog,
		tenants: tenants,
		target:  target,
		calls:   c,
	}
}

var errBoom = errors.New("boom")
