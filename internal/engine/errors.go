package engine

import (
	"errors"
	"fmt"

	"tenant-clone/internal/tenant"
)

var (
	// Tenant-level preconditions. These abort the calling operation.
	ErrTenantAlreadyExists = errors.New("tenant already exists")
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrReservedTenant      = tenant.ErrReservedCode
	ErrInvalidTenantCode   = tenant.ErrInvalidCode

	// Table-scoped failures. These end up in SyncReport.PerTableErrors.
	ErrIntrospection  = errors.New("introspection failure")
	ErrDDLApplication = errors.New("ddl application failure")
)

// TenantError reports a failed precondition or server-level step of a
// tenant operation.
type TenantError struct {
	Op   string // provision, decommission, sync
	Code string
	Err  error
}

func (e *TenantError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Code, e.Err)
}

func (e *TenantError) Unwrap() error { return e.Err }

// TableError is a failure confined to one table. It matches ErrIntrospection
// or ErrDDLApplication depending on the phase it happened in, as well as the
// underlying cause.
type TableError struct {
	Table string
	Phase Phase
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Table, e.Phase, e.Err)
}

func (e *TableError) Unwrap() []error {
	return []error{e.kind(), e.Err}
}

func (e *TableError) kind() error {
	switch e.Phase {
	case PhaseSynthesizing, PhaseApplying:
		return ErrDDLApplication
	default:
		return ErrIntrospection
	}
}
