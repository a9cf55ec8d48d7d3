package cmd

import (
	"context"
	"testing"

	"tenant-clone/internal/ddl"
	"tenant-clone/internal/dialect"
	"tenant-clone/internal/engine"
	"tenant-clone/internal/pool"
	"tenant-clone/internal/schema"
	"tenant-clone/internal/tenant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct{}

func (stubCatalog) ListTables(ctx context.Context) ([]string, error) {
	return []string{"fp_orders"}, nil
}

func (stubCatalog) DescribeTable(ctx context.Context, table string) (*schema.TableDescriptor, error) {
	return &schema.TableDescriptor{
		Name:    table,
		Columns: []*schema.Column{{Name: "id", Type: schema.SimpleType{Name: "bigint"}}},
	}, nil
}

type stubTenants struct {
	naming tenant.Naming
	codes  []string
}

func (s stubTenants) Naming() tenant.Naming { return s.naming }

func (s stubTenants) ListActive(ctx context.Context) ([]tenant.Descriptor, error) {
	var out []tenant.Descriptor
	for _, code := range s.codes {
		d, err := s.naming.Describe(code)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s stubTenants) Exists(ctx context.Context, d tenant.Descriptor) (bool, error) { return true, nil }
func (s stubTenants) CreateDatabase(ctx context.Context, d tenant.Descriptor) error  { return nil }
func (s stubTenants) DropDatabase(ctx context.Context, d tenant.Descriptor) error    { return nil }
func (s stubTenants) TerminateSessions(ctx context.Context, d tenant.Descriptor) (int, error) {
	return 0, nil
}

// recordingTarget counts the statements it is asked to apply.
type recordingTarget struct {
	applied int
}

func (r *recordingTarget) TableExists(ctx context.Context, dbName, table string) (bool, error) {
	return false, nil
}

func (r *recordingTarget) Apply(ctx context.Context, dbName string, stmts []ddl.Statement) (*ddl.ApplyResult, error) {
	r.applied += len(stmts)
	return &ddl.ApplyResult{Applied: len(stmts)}, nil
}

func (r *recordingTarget) Release(dbName string) error { return nil }
func (r *recordingTarget) Lock(dbName string) func()   { return func() {} }

func withStubEngine(t *testing.T, codes ...string) *recordingTarget {
	t.Helper()
	target := &recordingTarget{}
	e, err := engine.New(
		stubCatalog{},
		stubTenants{naming: tenant.NewNaming("FP", ""), codes: codes},
		target,
		ddl.Synthesizer{Dialect: &dialect.PostgresDialect{}, Schema: "public"},
		engine.Config{Logger: engine.Quiet()},
	)
	require.NoError(t, err)

	prevEngine, prevAll, prevDry, prevTables := Engine, syncAll, dryRun, tables
	Engine = e
	t.Cleanup(func() {
		Engine, syncAll, dryRun, tables = prevEngine, prevAll, prevDry, prevTables
	})
	return target
}

func TestCheckSyncArgs(t *testing.T) {
	cases := []struct {
		name    string
		all     bool
		args    []string
		tables  []string
		wantErr string
	}{
		{"code", false, []string{"SB"}, nil, ""},
		{"code with tables", false, []string{"SB"}, []string{"fp_orders"}, ""},
		{"all", true, nil, nil, ""},
		{"all with code", true, []string{"SB"}, nil, "not both"},
		{"all with tables", true, nil, []string{"fp_orders"}, "--tables cannot be combined"},
		{"nothing", false, nil, nil, "tenant code is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkSyncArgs(tc.all, tc.args, tc.tables)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSyncCmd_DryRunAllPlansEveryTenant(t *testing.T) {
	target := withStubEngine(t, "SB", "TF")
	syncAll, dryRun, tables = true, true, nil
	syncCmd.SetContext(context.Background())

	require.NotPanics(t, func() {
		require.NoError(t, syncCmd.RunE(syncCmd, []string{}))
	})
	assert.Zero(t, target.applied)
}

func TestSyncCmd_DryRunSingleTenant(t *testing.T) {
	target := withStubEngine(t, "SB")
	syncAll, dryRun, tables = false, true, []string{"fp_orders"}
	syncCmd.SetContext(context.Background())

	require.NoError(t, syncCmd.RunE(syncCmd, []string{"SB"}))
	assert.Zero(t, target.applied)

	// --all with --dry-run still refuses a code
	syncAll, tables = true, nil
	require.Error(t, syncCmd.RunE(syncCmd, []string{"SB"}))
}

func TestClosePools(t *testing.T) {
	prev := Pools
	t.Cleanup(func() { Pools = prev })

	reg := pool.NewRegistry(pool.ServerConfig{Host: "127.0.0.1", Port: 5432, User: "postgres"}, pool.Options{})
	_, err := reg.Acquire("sb_database")
	require.NoError(t, err)
	Pools = reg

	require.NoError(t, closePools())
	assert.Nil(t, Pools)
	assert.False(t, reg.Cached("sb_database"))

	// nothing left to close
	require.NoError(t, closePools())
}
