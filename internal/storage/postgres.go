package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const collectionsSchema = `
	CREATE TABLE IF NOT EXISTS collections (
		key TEXT PRIMARY KEY,
		data JSONB NOT NULL,
		version INT NOT NULL DEFAULT 1,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// Postgres stores collections as JSONB rows of a single table.
type Postgres struct {
	db     *sql.DB
	tracer trace.Tracer
}

// OpenPostgres connects with dsn and makes sure the collections table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	p := NewPostgres(db)
	if err := p.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, tracer: tracer}
}

// EnsureSchema creates the collections table if it is missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, collectionsSchema); err != nil {
		return fmt.Errorf("create schema: %w", pgErr(err))
	}
	return nil
}

// Get reads the JSON document stored for key.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := p.tracer.Start(ctx, "postgres.get",
		trace.WithAttributes(attribute.String("collection.key", key)),
	)
	defer span.End()

	var data []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT data
		FROM collections
		WHERE key = $1
	`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query collection: %w", pgErr(err))
	}
	return data, true, nil
}

// Put upserts the document for key and bumps its version.
func (p *Postgres) Put(ctx context.Context, key string, data []byte) error {
	ctx, span := p.tracer.Start(ctx, "postgres.put",
		trace.WithAttributes(
			attribute.String("collection.key", key),
			attribute.Int("collection.bytes", len(data)),
		),
	)
	defer span.End()

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", pgErr(err))
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO collections (key, data)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET data = EXCLUDED.data,
		    version = collections.version + 1,
		    updated_at = NOW()
		RETURNING version
	`, key, data).Scan(&version)
	if err != nil {
		return fmt.Errorf("upsert collection: %w", pgErr(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", pgErr(err))
	}

	span.SetAttributes(attribute.Int("collection.version", version))
	return nil
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// pgErr maps Postgres resource errors (class 53, e.g. disk_full) to
// ErrQuotaExceeded and leaves everything else untouched.
func pgErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "53" {
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, pqErr.Message)
	}
	return err
}
