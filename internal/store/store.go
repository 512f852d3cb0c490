// Package store persists party snapshot documents. A document is an
// opaque JSON blob keyed by party code.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Store is a durable mirror of party snapshots.
type Store interface {
	Put(ctx context.Context, id string, doc []byte) error
	Delete(ctx context.Context, id string) error
	// ListAll returns every stored document ordered by id.
	ListAll(ctx context.Context) ([][]byte, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverNone     = "none"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// Options selects and configures a backend.
type Options struct {
	Driver      string
	RedisURL    string
	DatabaseURL string
	SQLitePath  string
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverNone:
		return Nop{}, nil
	case DriverRedis:
		return OpenRedis(ctx, opts.RedisURL)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.DatabaseURL)
	case DriverSQLite:
		return OpenSQLite(ctx, opts.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// Nop discards writes and stores nothing.
type Nop struct{}

func (Nop) Put(context.Context, string, []byte) error { return nil }
func (Nop) Delete(context.Context, string) error       { return nil }
func (Nop) ListAll(context.Context) ([][]byte, error)  { return nil, nil }
func (Nop) Close() error                               { return nil }
