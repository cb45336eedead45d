package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// NewSQLiteDocumentStore creates a [DocumentStore] over the documents table of db.
//
// The table is created by the sqlite migrations in the shared package. Paths are rendered in
// JSON1 syntax and written with json_set / json_remove.
func NewSQLiteDocumentStore(db *sql.DB, doc string, logger *log.Logger) *DocumentStore {
	return newDocumentStore(&sqliteDriver{db: db}, doc, logger)
}

type sqliteDriver struct {
	db    *sql.DB
	owned bool
}

func (d *sqliteDriver) ensure(ctx context.Context, doc string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO documents (key, body) VALUES (?, '{}') ON CONFLICT(key) DO NOTHING`, doc)
	return err
}

func (d *sqliteDriver) get(ctx context.Context, doc string, p docPath) ([]byte, bool, error) {
	var raw sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT body -> ? FROM documents WHERE key = ?`, p.sqlite(), doc).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !raw.Valid {
		return nil, false, nil
	}
	return []byte(raw.String), true, nil
}

func (d *sqliteDriver) set(ctx context.Context, doc string, p docPath, value []byte) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE documents SET body = json_set(body, ?, json(?)), updated_at = CURRENT_TIMESTAMP WHERE key = ?`,
		p.sqlite(), string(value), doc)
	if err != nil {
		return err
	}
	return requireRow(res, doc)
}

func (d *sqliteDriver) typeOf(ctx context.Context, doc string, p docPath) (string, error) {
	var t sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT json_type(body, ?) FROM documents WHERE key = ?`, p.sqlite(), doc).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nodeMissing, nil
	}
	if err != nil {
		return "", err
	}
	return t.String, nil
}

func (d *sqliteDriver) remove(ctx context.Context, doc string, p docPath) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE documents SET body = json_remove(body, ?), updated_at = CURRENT_TIMESTAMP WHERE key = ?`,
		p.sqlite(), doc)
	return err
}

func (d *sqliteDriver) keys(ctx context.Context, doc string, p docPath) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT j.key FROM documents d, json_each(d.body, ?) j WHERE d.key = ? ORDER BY j.key`,
		p.sqlite(), doc)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (d *sqliteDriver) reset(ctx context.Context, doc string) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE documents SET body = '{}', updated_at = CURRENT_TIMESTAMP WHERE key = ?`, doc)
	return err
}

func (d *sqliteDriver) whole(ctx context.Context, doc string) ([]byte, error) {
	var body string
	err := d.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE key = ?`, doc).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

// close leaves a shared database open for its owner.
func (d *sqliteDriver) close() error {
	if d.owned {
		return d.db.Close()
	}
	return nil
}

func requireRow(res sql.Result, doc string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s does not exist", doc)
	}
	return nil
}
