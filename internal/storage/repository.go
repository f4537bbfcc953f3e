// Package storage records one ledger row per conversion run in a SQL
// database. Backends register a Factory at init time; callers open a
// Repository with New and never import a backend directly.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and addresses a ledger backend.
type Config struct {
	Kind  string // "sqlite", "postgres", "mysql", "mssql"
	DSN   string
	Table string
}

// Ledger is the run ledger surface every backend implements.
type Ledger interface {
	// EnsureTable creates the ledger table when it does not exist.
	EnsureTable(ctx context.Context) error
	// RecordRun inserts one run row.
	RecordRun(ctx context.Context, r Run) error
	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)
}

// Repository is an open Ledger that owns its connection.
type Repository interface {
	Ledger
	Close()
}

// WithClose adapts a backend whose constructor returns the ledger and its
// cleanup separately. Close runs closeFn at most once.
func WithClose(l Ledger, closeFn func()) Repository {
	return &closer{Ledger: l, closeFn: closeFn}
}

type closer struct {
	Ledger
	closeFn func()
}

func (c *closer) Close() {
	if c.closeFn != nil {
		c.closeFn()
		c.closeFn = nil
	}
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds lists the registered backends in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens the backend named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	return f(ctx, cfg)
}
