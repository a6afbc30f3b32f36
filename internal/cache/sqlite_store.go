package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS caches (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS entries (
	cache   TEXT NOT NULL,
	url     TEXT NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (cache, url)
);
`

// NewSQLiteStorage 打开（或创建）path 处的 SQLite 数据库作为缓存存储。
// 连接数限制为 1，写入天然串行，避免 database is locked。
func NewSQLiteStorage(path string) (Storage, error) {
	if path == "" {
		return nil, errors.New("storage path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	return &sqliteStorage{db: db}, nil
}

type sqliteStorage struct {
	db *sql.DB
}

func (s *sqliteStorage) Open(ctx context.Context, name string) (Cache, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO caches (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("create cache %s: %w", name, err)
	}
	return &sqliteCache{db: s.db, name: name}, nil
}

func (s *sqliteStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM caches ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteStorage) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM caches WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE cache = ?`, name); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

type sqliteCache struct {
	db   *sql.DB
	name string
}

func (c *sqliteCache) Name() string {
	return c.name
}

func (c *sqliteCache) Match(ctx context.Context, req Request) (*Response, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if !req.IsGet() {
		return nil, ErrNotFound
	}
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM entries WHERE cache = ? AND url = ?`, c.name, req.Key(),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec, err := decodeRecord(payload)
	if err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return rec.response(), nil
}

func (c *sqliteCache) Put(ctx context.Context, req Request, resp *Response) error {
	return c.PutAll(ctx, []Entry{{Request: req, Response: resp}})
}

// PutAll 在单个事务中 upsert 全部条目；已有键保留原 rowid，Keys 顺序因此不变。
func (c *sqliteCache) PutAll(ctx context.Context, entries []Entry) error {
	payloads := make([][]byte, len(entries))
	for i, e := range entries {
		if err := validateEntry(e.Request, e.Response); err != nil {
			return err
		}
		payload, err := encodeRecord(newRecord(e.Request, e.Response))
		if err != nil {
			return fmt.Errorf("encode cache entry: %w", err)
		}
		payloads[i] = payload
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (cache, url, payload) VALUES (?, ?, ?)
		ON CONFLICT (cache, url) DO UPDATE SET payload = excluded.payload`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, c.name, e.Request.Key(), payloads[i]); err != nil {
			return fmt.Errorf("cache put %s: %w", e.Request.Key(), err)
		}
	}
	return tx.Commit()
}

func (c *sqliteCache) Keys(ctx context.Context) ([]Request, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT payload FROM entries WHERE cache = ? ORDER BY rowid`, c.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			continue
		}
		out = append(out, rec.request())
	}
	return out, rows.Err()
}
