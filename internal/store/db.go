// Package store persists posts, categories, tags and files in PostgreSQL.
// Primary keys are Snowflake IDs minted before each insert, never database
// sequences.
package store

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a lookup matches no live row.
var ErrNotFound = errors.New("store: not found")

// IDSource mints primary keys. *gid.Generator satisfies it.
type IDSource interface {
	Generate() (uint64, error)
}

// DBTX is the subset of *sql.DB and *sql.Tx used by Queries.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs statements against a connection or a transaction.
type Queries struct {
	db  DBTX
	ids IDSource
}

func New(db DBTX, ids IDSource) *Queries {
	return &Queries{db: db, ids: ids}
}

// WithTx returns Queries bound to tx and sharing the same IDSource.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, ids: q.ids}
}

func (q *Queries) nextID() (int64, error) {
	id, err := q.ids.Generate()
	if err != nil {
		return 0, errors.Wrap(err, "store: mint id")
	}
	return int64(id), nil
}

// Store owns the connection pool.
type Store struct {
	*Queries
	db *sql.DB
}

// Open connects to PostgreSQL at url and checks the connection.
func Open(ctx context.Context, url string, ids IDSource) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, errors.Wrap(err, "store: open")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: ping")
	}
	return NewStore(db, ids), nil
}

func NewStore(db *sql.DB, ids IDSource) *Store {
	return &Store{Queries: New(db, ids), db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "store: begin")
	}
	if err := fn(s.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "store: rollback failed: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "store: commit")
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "store: migrate")
}

// Reset deletes every row. Only exposed on dev platforms.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE files, post_tags, posts, tags, categories`)
	return errors.Wrap(err, "store: reset")
}

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id         BIGINT PRIMARY KEY,
	user_id    BIGINT NOT NULL,
	title      TEXT NOT NULL,
	parent_id  BIGINT REFERENCES categories (id),
	group_id   BIGINT,
	depth      INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, title)
);

CREATE TABLE IF NOT EXISTS tags (
	id         BIGINT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS posts (
	id           BIGINT PRIMARY KEY,
	user_id      BIGINT NOT NULL,
	category_id  BIGINT REFERENCES categories (id),
	title        TEXT NOT NULL,
	slug         TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL,
	checksum     TEXT NOT NULL,
	draft        BOOLEAN NOT NULL DEFAULT false,
	published_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at   TIMESTAMPTZ,
	UNIQUE (user_id, slug)
);

CREATE TABLE IF NOT EXISTS post_tags (
	post_id BIGINT NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
	tag_id  BIGINT NOT NULL REFERENCES tags (id),
	PRIMARY KEY (post_id, tag_id)
);

CREATE TABLE IF NOT EXISTS files (
	id            BIGINT PRIMARY KEY,
	post_id       BIGINT NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
	object_key    TEXT NOT NULL,
	url           TEXT NOT NULL,
	original_path TEXT NOT NULL,
	content_type  TEXT NOT NULL,
	size_bytes    BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
