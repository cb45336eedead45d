package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed pgsql/*.sql
var pgMigrations embed.FS

// NewPostgresDocumentStore connects to dsn, applies the documents schema with goose and returns a
// [DocumentStore] over it. Writes use jsonb_set and the #- operator so each one is a single statement.
func NewPostgresDocumentStore(ctx context.Context, dsn, doc string, logger *log.Logger) (*DocumentStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if err := MigratePostgres(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return newDocumentStore(&postgresDriver{pool: pool}, doc, logger), nil
}

// MigratePostgres applies the embedded goose migrations through a database/sql view of the pool.
func MigratePostgres(pool *pgxpool.Pool) error {
	// The sql.DB view holds no idle connections of its own; the pool owns them.
	db := stdlib.OpenDBFromPool(pool)

	goose.SetBaseFS(pgMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "pgsql"); err != nil {
		return fmt.Errorf("failed to run postgres migrations: %w", err)
	}
	return nil
}

type postgresDriver struct {
	pool *pgxpool.Pool
}

func (d *postgresDriver) ensure(ctx context.Context, doc string) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO documents (key, body) VALUES ($1, '{}'::jsonb) ON CONFLICT (key) DO NOTHING`, doc)
	return err
}

func (d *postgresDriver) get(ctx context.Context, doc string, p docPath) ([]byte, bool, error) {
	var raw []byte
	err := d.pool.QueryRow(ctx,
		`SELECT (body #> $1::text[])::text FROM documents WHERE key = $2`, p.postgres(), doc).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	return raw, true, nil
}

func (d *postgresDriver) set(ctx context.Context, doc string, p docPath, value []byte) error {
	tag, err := d.pool.Exec(ctx,
		`UPDATE documents SET body = jsonb_set(body, $1::text[], $2::jsonb, true), updated_at = now() WHERE key = $3`,
		p.postgres(), string(value), doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s does not exist", doc)
	}
	return nil
}

func (d *postgresDriver) typeOf(ctx context.Context, doc string, p docPath) (string, error) {
	var t *string
	err := d.pool.QueryRow(ctx,
		`SELECT jsonb_typeof(body #> $1::text[]) FROM documents WHERE key = $2`, p.postgres(), doc).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nodeMissing, nil
	}
	if err != nil {
		return "", err
	}
	if t == nil {
		return nodeMissing, nil
	}
	return *t, nil
}

func (d *postgresDriver) remove(ctx context.Context, doc string, p docPath) error {
	_, err := d.pool.Exec(ctx,
		`UPDATE documents SET body = body #- $1::text[], updated_at = now() WHERE key = $2`, p.postgres(), doc)
	return err
}

func (d *postgresDriver) keys(ctx context.Context, doc string, p docPath) ([]string, error) {
	t, err := d.typeOf(ctx, doc, p)
	if err != nil {
		return nil, err
	}

	query := `SELECT k FROM documents, jsonb_object_keys(body #> $1::text[]) AS k WHERE key = $2 ORDER BY k`
	if t == nodeArray {
		query = `SELECT i::text FROM documents, generate_series(0, jsonb_array_length(body #> $1::text[]) - 1) AS i WHERE key = $2 ORDER BY i`
	}

	rows, err := d.pool.Query(ctx, query, p.postgres(), doc)
	if err != nil {
		return nil, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (d *postgresDriver) reset(ctx context.Context, doc string) error {
	_, err := d.pool.Exec(ctx, `UPDATE documents SET body = '{}'::jsonb, updated_at = now() WHERE key = $1`, doc)
	return err
}

func (d *postgresDriver) whole(ctx context.Context, doc string) ([]byte, error) {
	var raw []byte
	err := d.pool.QueryRow(ctx, `SELECT body::text FROM documents WHERE key = $1`, doc).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return raw, err
}

func (d *postgresDriver) close() error {
	d.pool.Close()
	return nil
}
