package engine

import (
	"context"

	"tenant-clone/internal/ddl"
	"tenant-clone/internal/dialect"
	"tenant-clone/internal/pool"
	"tenant-clone/internal/schema"
)

// PoolTarget applies DDL to tenant databases through the connection registry.
type PoolTarget struct {
	Pools   *pool.Registry
	Dialect dialect.Dialect
	Applier ddl.Applier
	Schema  string
}

var _ Target = (*PoolTarget)(nil)

func (p *PoolTarget) TableExists(ctx context.Context, dbName, table string) (bool, error) {
	db, err := p.Pools.Acquire(dbName)
	if err != nil {
		return false, err
	}
	return schema.NewIntrospector(db, p.Dialect, p.Schema).TableExists(ctx, table)
}

func (p *PoolTarget) Apply(ctx context.Context, dbName string, stmts []ddl.Statement) (*ddl.ApplyResult, error) {
	db, err := p.Pools.Acquire(dbName)
	if err != nil {
		return nil, err
	}
	return p.Applier.Apply(ctx, db, stmts)
}

func (p *PoolTarget) Release(dbName string) error {
	return p.Pools.Release(dbName)
}

func (p *PoolTarget) Lock(dbName string) func() {
	return p.Pools.Lock(dbName)
}
