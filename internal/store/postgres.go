package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB defines the interface for database operations.
// It is implemented by *pgxpool.Pool and can be mocked for testing.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres keeps one row per party in party_snapshots.
type Postgres struct {
	db    DB
	close func()
}

// OpenPostgres connects to url and creates the snapshot table.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{db: pool, close: pool.Close}, nil
}

// NewPostgres wraps an existing connection. The caller owns db.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS party_snapshots (
          id         TEXT PRIMARY KEY,
          doc        JSONB NOT NULL,
          updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return fmt.Errorf("migrate party_snapshots: %w", err)
	}
	return nil
}

func (s *Postgres) Put(ctx context.Context, id string, doc []byte) error {
	_, err := s.db.Exec(ctx, `
      INSERT INTO party_snapshots (id, doc, updated_at)
      VALUES ($1, $2, now())
      ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
    `, id, doc)
	return err
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM party_snapshots WHERE id = $1`, id)
	return err
}

func (s *Postgres) ListAll(ctx context.Context) ([][]byte, error) {
	rows, err := s.db.Query(ctx, `SELECT doc FROM party_snapshots ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Postgres) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
