package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"tenant-clone/internal/ddl"
	"tenant-clone/internal/rewrite"
	"tenant-clone/internal/schema"
	"tenant-clone/internal/tenant"

	"golang.org/x/sync/errgroup"
)

// Catalog reads table structure from the source tenant.
type Catalog interface {
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, table string) (*schema.TableDescriptor, error)
}

// Tenants is the server-level view of tenant databases.
type Tenants interface {
	Naming() tenant.Naming
	ListActive(ctx context.Context) ([]tenant.Descriptor, error)
	Exists(ctx context.Context, d tenant.Descriptor) (bool, error)
	CreateDatabase(ctx context.Context, d tenant.Descriptor) error
	TerminateSessions(ctx context.Context, d tenant.Descriptor) (int, error)
	DropDatabase(ctx context.Context, d tenant.Descriptor) error
}

// Target applies DDL inside tenant databases.
type Target interface {
	TableExists(ctx context.Context, dbName, table string) (bool, error)
	Apply(ctx context.Context, dbName string, stmts []ddl.Statement) (*ddl.ApplyResult, error)
	Release(dbName string) error
	Lock(dbName string) (unlock func())
}

// TableEvent is passed to Config.OnTable after each table of a run.
type TableEvent struct {
	Tenant  string
	Table   string
	Created bool
	Err     error
}

type Config struct {
	Workers int         // tenants synced in parallel by SyncAllTablesToAllTenants
	Logger  *log.Logger // defaults to log.Default()
	OnTable func(TableEvent)
}

// Engine replicates the source tenant's schema into tenant databases. It
// holds no state between calls. Operations on one tenant are serialised by
// Target.Lock; different tenants may be processed concurrently.
type Engine struct {
	catalog Catalog
	tenants Tenants
	target  Target
	synth   ddl.Synthesizer
	naming  tenant.Naming
	source  tenant.Descriptor

	workers int
	logger  *log.Logger
	onTable func(TableEvent)
}

// New fails when the naming rules do not yield a valid source tenant.
func New(catalog Catalog, tenants Tenants, target Target, synth ddl.Synthesizer, cfg Config) (*Engine, error) {
	naming := tenants.Naming()
	source, err := naming.Source()
	if err != nil {
		return nil, fmt.Errorf("invalid source tenant %q: %w", naming.SourceCode, err)
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Engine{
		catalog: catalog,
		tenants: tenants,
		target:  target,
		synth:   synth,
		naming:  naming,
		source:  source,
		workers: cfg.Workers,
		logger:  cfg.Logger,
		onTable: cfg.OnTable,
	}, nil
}

// SetOnTable replaces the per-table callback. It must not be called while
// an operation is running.
func (e *Engine) SetOnTable(fn func(TableEvent)) {
	e.onTable = fn
}

// Quiet returns a logger that drops everything.
func Quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// ProvisionTenant creates the tenant database and clones every source table
// into it. The report is returned even when some tables failed.
func (e *Engine) ProvisionTenant(ctx context.Context, code string) (*SyncReport, error) {
	d, err := e.describe("provision", code)
	if err != nil {
		return nil, err
	}
	unlock := e.target.Lock(d.DatabaseName)
	defer unlock()

	exists, err := e.tenants.Exists(ctx, d)
	if err != nil {
		return nil, &TenantError{Op: "provision", Code: d.Code, Err: err}
	}
	if exists {
		return nil, &TenantError{Op: "provision", Code: d.Code, Err: ErrTenantAlreadyExists}
	}

	e.logger.Printf("Creating database %s...", d.DatabaseName)
	if err := e.tenants.CreateDatabase(ctx, d); err != nil {
		return nil, &TenantError{Op: "provision", Code: d.Code, Err: err}
	}

	return e.syncTables(ctx, d, nil)
}

// DecommissionTenant drops the tenant database. Pooled connections are
// closed and remaining sessions terminated first, otherwise the drop fails
// with "database is being accessed by other users".
func (e *Engine) DecommissionTenant(ctx context.Context, code string) error {
	d, err := e.describe("decommission", code)
	if err != nil {
		return err
	}
	unlock := e.target.Lock(d.DatabaseName)
	defer unlock()

	exists, err := e.tenants.Exists(ctx, d)
	if err != nil {
		return &TenantError{Op: "decommission", Code: d.Code, Err: err}
	}
	if !exists {
		return &TenantError{Op: "decommission", Code: d.Code, Err: ErrTenantNotFound}
	}

	if err := e.target.Release(d.DatabaseName); err != nil {
		e.logger.Printf("Warning: Failed to close pool for %s: %v (continuing...)", d.DatabaseName, err)
	}

	n, err := e.tenants.TerminateSessions(ctx, d)
	if err != nil {
		return &TenantError{Op: "decommission", Code: d.Code, Err: err}
	}
	if n > 0 {
		e.logger.Printf("Terminated %d session(s) on %s", n, d.DatabaseName)
	}

	if err := e.tenants.DropDatabase(ctx, d); err != nil {
		return &TenantError{Op: "decommission", Code: d.Code, Err: err}
	}
	e.logger.Printf("Dropped database %s", d.DatabaseName)
	return nil
}

// TenantExists reports whether the tenant's database exists.
func (e *Engine) TenantExists(ctx context.Context, code string) (bool, error) {
	d, err := e.naming.Describe(code)
	if err != nil {
		return false, err
	}
	return e.tenants.Exists(ctx, d)
}

// ListActiveTenants returns the codes of every tenant database on the server.
func (e *Engine) ListActiveTenants(ctx context.Context) ([]string, error) {
	tenants, err := e.tenants.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(tenants))
	for i, t := range tenants {
		codes[i] = t.Code
	}
	return codes, nil
}

// SourceTables lists the source tenant's tables.
func (e *Engine) SourceTables(ctx context.Context) ([]string, error) {
	return e.catalog.ListTables(ctx)
}

// SyncTable creates one source table in the tenant. It returns false,
// without error, when the table is already there.
func (e *Engine) SyncTable(ctx context.Context, table, code string) (bool, error) {
	d, err := e.existing(ctx, "sync", code)
	if err != nil {
		return false, err
	}
	unlock := e.target.Lock(d.DatabaseName)
	defer unlock()

	return e.syncTable(ctx, d, table)
}

// SyncAllTablesToTenant creates every source table missing from the tenant.
// A table failure is recorded in the report and does not stop the loop.
func (e *Engine) SyncAllTablesToTenant(ctx context.Context, code string) (*SyncReport, error) {
	return e.SyncTables(ctx, code, nil)
}

// SyncTables is SyncAllTablesToTenant restricted to the named source tables.
// A nil or empty list means every table.
func (e *Engine) SyncTables(ctx context.Context, code string, tables []string) (*SyncReport, error) {
	d, err := e.existing(ctx, "sync", code)
	if err != nil {
		return nil, err
	}
	unlock := e.target.Lock(d.DatabaseName)
	defer unlock()

	return e.syncTables(ctx, d, tables)
}

// SyncAllTablesToAllTenants runs SyncAllTablesToTenant for every active
// tenant using a bounded pool of workers. Tenants are independent: a tenant
// that fails entirely still gets a report and does not hold up the others.
func (e *Engine) SyncAllTablesToAllTenants(ctx context.Context) (map[string]*SyncReport, error) {
	tenants, err := e.tenants.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	e.logger.Printf("Syncing %d tenant(s) with %d worker(s)...", len(tenants), e.workers)

	var (
		mu      sync.Mutex
		reports = make(map[string]*SyncReport, len(tenants))
	)

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, d := range tenants {
		d := d
		g.Go(func() error {
			unlock := e.target.Lock(d.DatabaseName)
			defer unlock()

			report, err := e.syncTables(ctx, d, nil)
			if err != nil {
				e.logger.Printf("Warning: Tenant %s failed: %v (continuing...)", d.Code, err)
			}

			mu.Lock()
			reports[d.Code] = report
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return reports, nil
}

// Plan returns the statements SyncTable would run for table in the tenant,
// without touching the tenant database.
func (e *Engine) Plan(ctx context.Context, table, code string) ([]ddl.Statement, error) {
	d, err := e.describe("plan", code)
	if err != nil {
		return nil, err
	}
	desc, err := e.catalog.DescribeTable(ctx, table)
	if err != nil {
		return nil, &TableError{Table: table, Phase: PhaseIntrospecting, Err: err}
	}
	return e.synth.Synthesize(desc, e.rewriter(d)), nil
}

// syncTables is the shared body of provision and the sync operations. The
// caller holds the tenant lock. The returned report is never nil; err is
// set only when the source table list could not be read.
func (e *Engine) syncTables(ctx context.Context, d tenant.Descriptor, only []string) (*SyncReport, error) {
	report := newReport(d.Code)
	defer report.finish()

	e.logger.Printf("Analyzing schema for %s...", d)
	tables, err := e.catalog.ListTables(ctx)
	if err != nil {
		err = &TenantError{Op: "sync", Code: d.Code, Err: fmt.Errorf("%w: %w", ErrIntrospection, err)}
		report.fail(err)
		return report, err
	}
	tables, unknown := filterTables(tables, only)

	rw := e.rewriter(d)
	for _, table := range unknown {
		err := &TableError{Table: rw.Name(table), Phase: PhaseIntrospecting, Err: fmt.Errorf("%s: %w", table, schema.ErrTableNotFound)}
		report.record(err.Table, false, err)
		e.logger.Printf("Warning: Table %s is not in the source schema (skipping...)", table)
		if e.onTable != nil {
			e.onTable(TableEvent{Tenant: d.Code, Table: err.Table, Err: err})
		}
	}
	for i, table := range tables {
		target := rw.Name(table)

		var (
			created bool
			err     error
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			// tables not reached before cancellation are still reported
			err = &TableError{Table: target, Phase: PhasePending, Err: ctxErr}
		} else {
			created, err = e.syncTable(ctx, d, table)
		}

		report.record(target, created, err)
		if err != nil {
			e.logger.Printf("Warning: Failed to sync %s into %s: %v (continuing...)", table, d.DatabaseName, err)
		}
		if e.onTable != nil {
			e.onTable(TableEvent{Tenant: d.Code, Table: target, Created: created, Err: err})
		}

		if (i+1)%5 == 0 || i+1 == len(tables) {
			e.logger.Printf("Synced %d/%d tables into %s...", i+1, len(tables), d.DatabaseName)
		}
	}

	return report, nil
}

// syncTable walks one table through Introspecting -> Synthesizing ->
// Applying. The caller holds the tenant lock.
func (e *Engine) syncTable(ctx context.Context, d tenant.Descriptor, table string) (bool, error) {
	rw := e.rewriter(d)
	target := rw.Name(table)

	exists, err := e.target.TableExists(ctx, d.DatabaseName, target)
	if err != nil {
		return false, &TableError{Table: target, Phase: PhasePending, Err: err}
	}
	if exists {
		return false, nil
	}

	desc, err := e.catalog.DescribeTable(ctx, table)
	if err != nil {
		return false, &TableError{Table: target, Phase: PhaseIntrospecting, Err: err}
	}

	stmts := e.synth.Synthesize(desc, rw)
	if len(stmts) == 0 {
		return false, &TableError{Table: target, Phase: PhaseSynthesizing, Err: errors.New("no statements generated")}
	}

	res, err := e.target.Apply(ctx, d.DatabaseName, stmts)
	if err != nil {
		return false, &TableError{Table: target, Phase: PhaseApplying, Err: err}
	}
	for _, st := range res.Existing {
		e.logger.Printf("Notice: %s already exists in %s, skipped", st, d.DatabaseName)
	}
	return true, nil
}

func (e *Engine) rewriter(d tenant.Descriptor) rewrite.Rewriter {
	return rewrite.New(e.source.Prefix(), d.Prefix())
}

// describe validates code for a structural operation: it must be well formed
// and must not name the source tenant.
func (e *Engine) describe(op, code string) (tenant.Descriptor, error) {
	d, err := e.naming.Describe(code)
	if err != nil {
		return d, &TenantError{Op: op, Code: code, Err: err}
	}
	if e.naming.IsSource(d) {
		return d, &TenantError{Op: op, Code: d.Code, Err: ErrReservedTenant}
	}
	return d, nil
}

// existing is describe plus a check that the tenant database exists.
func (e *Engine) existing(ctx context.Context, op, code string) (tenant.Descriptor, error) {
	d, err := e.describe(op, code)
	if err != nil {
		return d, err
	}
	exists, err := e.tenants.Exists(ctx, d)
	if err != nil {
		return d, &TenantError{Op: op, Code: d.Code, Err: err}
	}
	if !exists {
		return d, &TenantError{Op: op, Code: d.Code, Err: ErrTenantNotFound}
	}
	return d, nil
}

// filterTables keeps the tables named in only, in source order. Names that
// are not source tables are returned separately.
func filterTables(tables, only []string) (kept, unknown []string) {
	if len(only) == 0 {
		return tables, nil
	}
	have := make(map[string]bool, len(tables))
	for _, t := range tables {
		have[t] = true
	}
	want := make(map[string]bool, len(only))
	for _, t := range only {
		if !have[t] && !want[t] {
			unknown = append(unknown, t)
		}
		want[t] = true
	}
	for _, t := range tables {
		if want[t] {
			kept = append(kept, t)
		}
	}
	return kept, unknown
}
