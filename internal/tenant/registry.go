// Package tenant discovers tenant databases on the hosting server and
// creates or drops them. Database existence is the only source of truth
// for whether a tenant is active.
package tenant

import (
	"context"
	"database/sql"
	"fmt"

	"tenant-clone/internal/dialect"
)

// systemDatabases never count as tenants even if they match the suffix.
var systemDatabases = map[string]bool{
	"postgres":  true,
	"template0": true,
	"template1": true,
}

// Registry runs server-level queries over a maintenance connection
// (normally the "postgres" database).
type Registry struct {
	admin  *sql.DB
	d      dialect.Dialect
	naming Naming
}

func NewRegistry(admin *sql.DB, d dialect.Dialect, naming Naming) *Registry {
	return &Registry{admin: admin, d: d, naming: naming}
}

func (r *Registry) Naming() Naming {
	return r.naming
}

// ListActive returns every tenant database except system databases and the
// source tenant, ordered by database name.
func (r *Registry) ListActive(ctx context.Context) ([]Descriptor, error) {
	rows, err := r.admin.QueryContext(ctx, r.d.ListDatabasesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	var tenants []Descriptor
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan database name: %w", err)
		}
		if systemDatabases[name] {
			continue
		}
		d, ok := r.naming.FromDatabaseName(name)
		if !ok || r.naming.IsSource(d) {
			continue
		}
		tenants = append(tenants, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating databases: %w", err)
	}
	return tenants, nil
}

// Exists reports whether the tenant's physical database exists.
func (r *Registry) Exists(ctx context.Context, d Descriptor) (bool, error) {
	var exists bool
	if err := r.admin.QueryRowContext(ctx, r.d.DatabaseExistsQuery(), d.DatabaseName).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check database %s: %w", d.DatabaseName, err)
	}
	return exists, nil
}

func (r *Registry) CreateDatabase(ctx context.Context, d Descriptor) error {
	if _, err := r.admin.ExecContext(ctx, r.d.CreateDatabaseQuery(d.DatabaseName)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", d.DatabaseName, err)
	}
	return nil
}

// TerminateSessions kills every other backend connected to the tenant
// database and returns how many were signalled.
func (r *Registry) TerminateSessions(ctx context.Context, d Descriptor) (int, error) {
	rows, err := r.admin.QueryContext(ctx, r.d.TerminateSessionsQuery(), d.DatabaseName)
	if err != nil {
		return 0, fmt.Errorf("failed to terminate sessions on %s: %w", d.DatabaseName, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("failed to terminate sessions on %s: %w", d.DatabaseName, err)
	}
	return n, nil
}

func (r *Registry) DropDatabase(ctx context.Context, d Descriptor) error {
	if _, err := r.admin.ExecContext(ctx, r.d.DropDatabaseQuery(d.DatabaseName)); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", d.DatabaseName, err)
	}
	return nil
}
