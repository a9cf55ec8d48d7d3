// Package pool owns one lazily-created database/sql pool per tenant database.
package pool

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const driverName = "postgres"

// ServerConfig describes the database server hosting every tenant.
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns a lib/pq connection URL for database on this server.
func (c ServerConfig) DSN(database string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// Options tunes every pool the registry creates.
type Options struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Registry caches pools by database name. Pools are opened with sql.Open,
// which never dials, so a missing database only shows up on first use.
type Registry struct {
	server ServerConfig
	opts   Options

	mu    sync.Mutex
	pools map[string]*sql.DB
	locks map[string]*sync.Mutex
}

func NewRegistry(server ServerConfig, opts Options) *Registry {
	return &Registry{
		server: server,
		opts:   opts,
		pools:  make(map[string]*sql.DB),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Acquire returns the cached pool for dbName, creating it on first use.
func (r *Registry) Acquire(dbName string) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.pools[dbName]; ok {
		return db, nil
	}

	db, err := sql.Open(driverName, r.server.DSN(dbName))
	if err != nil {
		return nil, fmt.Errorf("failed to open pool for %s: %w", dbName, err)
	}
	if r.opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(r.opts.MaxOpenConns)
	}
	if r.opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(r.opts.MaxIdleConns)
	}
	if r.opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(r.opts.ConnMaxLifetime)
	}

	r.pools[dbName] = db
	return db, nil
}

// Release closes and forgets the pool for dbName. Unknown names are a no-op.
func (r *Registry) Release(dbName string) error {
	r.mu.Lock()
	db, ok := r.pools[dbName]
	delete(r.pools, dbName)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close pool for %s: %w", dbName, err)
	}
	return nil
}

// CloseAll closes every cached pool. Called once at process shutdown.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	pools := r.pools
	r.pools = make(map[string]*sql.DB)
	r.mu.Unlock()

	var errs []error
	for name, db := range pools {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close pool for %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Cached reports whether a pool for dbName is currently held.
func (r *Registry) Cached(dbName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pools[dbName]
	return ok
}

// Lock serialises structural operations on one tenant database. The
// returned func releases the lock.
func (r *Registry) Lock(dbName string) (unlock func()) {
	r.mu.Lock()
	l, ok := r.locks[dbName]
	if !ok {
		l = &sync.Mutex{}
		r.locks[dbName] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
