// Package storage defines the backend-neutral repository the loader writes
// through. Backends live in subpackages and register themselves from init.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKind is returned by New and DDL for an unregistered backend.
var ErrUnknownKind = errors.New("unknown storage kind")

// Config is the minimal configuration needed to open a repository.
//
// Kind must match a registered backend. DSN is passed through to the backend
// factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository writes typed rows into one table.
//
// Each backend implements these semantics in its own idiomatic way
// (CREATE TABLE IF NOT EXISTS, OBJECT_ID guards, etc).
type Repository interface {
	// Close releases backend resources. Callers treat it as "call once".
	Close()

	// EnsureTable creates the table if it does not exist. It is idempotent.
	EnsureTable(ctx context.Context, t TableSpec) error

	// InsertRows inserts rows aligned with columns and returns the number of
	// rows written. Large inputs are split to respect the backend's bind
	// parameter limit; each statement is atomic, the whole call is not.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Factory opens a repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

// DDLFunc renders the statements EnsureTable would execute.
type DDLFunc func(t TableSpec) ([]string, error)

type backend struct {
	open Factory
	ddl  DDLFunc
}

var (
	mu       sync.RWMutex
	backends = map[string]backend{}
)

// Register registers a backend under kind (e.g. "postgres", "sqlite").
//
// Call it from an init function in the backend package.
//
// Panics:
//   - If kind is empty.
//   - If open or ddl is nil.
//   - If kind is already registered.
func Register(kind string, open Factory, ddl DDLFunc) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if open == nil || ddl == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := backends[kind]; exists {
		panic(fmt.Sprintf("storage: backend already registered for kind=%q", kind))
	}
	backends[kind] = backend{open: open, ddl: ddl}
}

func lookup(kind string) (backend, error) {
	if kind == "" {
		return backend{}, fmt.Errorf("storage: missing kind")
	}
	mu.RLock()
	b, ok := backends[kind]
	mu.RUnlock()
	if !ok {
		return backend{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return b, nil
}

// New opens a Repository using the registered backend factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	b, err := lookup(cfg.Kind)
	if err != nil {
		return nil, err
	}
	return b.open(ctx, cfg)
}

// DDL renders the CREATE statements kind would run for t, without
// connecting.
func DDL(kind string, t TableSpec) ([]string, error) {
	b, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	return b.ddl(t)
}

// Kinds lists the registered backends in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
