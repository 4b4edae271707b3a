package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

type Post struct {
	ID          uint64
	UserID      int64
	CategoryID  uint64
	Title       string
	Slug        string
	Summary     string
	Body        string
	Checksum    string
	Draft       bool
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPost is the input to CreatePost. A zero ID is minted on insert;
// callers that need the id up front (to key uploads) mint it themselves.
type NewPost struct {
	ID          uint64
	UserID      int64
	CategoryID  uint64
	Title       string
	Slug        string
	Summary     string
	Body        string
	Checksum    string
	Draft       bool
	PublishedAt time.Time
}

const createPost = `
INSERT INTO posts (id, user_id, category_id, title, slug, summary, body, checksum, draft, published_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id, slug) DO UPDATE SET
	category_id  = EXCLUDED.category_id,
	title        = EXCLUDED.title,
	summary      = EXCLUDED.summary,
	body         = EXCLUDED.body,
	checksum     = EXCLUDED.checksum,
	draft        = EXCLUDED.draft,
	published_at = EXCLUDED.published_at,
	deleted_at   = NULL,
	updated_at   = now()
RETURNING ` + postColumns

const postColumns = `id, user_id, category_id, title, slug, summary, body, checksum, draft, published_at, created_at, updated_at`

// CreatePost inserts p, or updates the live post with the same slug for the
// same author. The returned post carries the id actually stored.
func (q *Queries) CreatePost(ctx context.Context, p NewPost) (Post, error) {
	id := int64(p.ID)
	if id == 0 {
		var err error
		if id, err = q.nextID(); err != nil {
			return Post{}, err
		}
	}
	var category sql.NullInt64
	if p.CategoryID != 0 {
		category = sql.NullInt64{Int64: int64(p.CategoryID), Valid: true}
	}
	var published sql.NullTime
	if !p.PublishedAt.IsZero() {
		published = sql.NullTime{Time: p.PublishedAt, Valid: true}
	}
	row := q.db.QueryRowContext(ctx, createPost,
		id, p.UserID, category, p.Title, p.Slug, p.Summary, p.Body, p.Checksum, p.Draft, published,
	)
	post, err := scanPost(row)
	if err != nil {
		return Post{}, errors.Wrapf(err, "store: create post %q", p.Slug)
	}
	return post, nil
}

const getPost = `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND deleted_at IS NULL`

func (q *Queries) GetPost(ctx context.Context, id uint64) (Post, error) {
	post, err := scanPost(q.db.QueryRowContext(ctx, getPost, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, errors.Wrapf(err, "store: get post %d", id)
	}
	return post, nil
}

const listPosts = `
SELECT ` + postColumns + ` FROM posts
WHERE deleted_at IS NULL AND ($1::BIGINT = 0 OR id < $1)
ORDER BY id DESC
LIMIT $2`

// ListPosts pages newest first. before is the last id of the previous page,
// 0 for the first page. Snowflake ids sort by creation time, so the id
// doubles as the cursor.
func (q *Queries) ListPosts(ctx context.Context, before uint64, limit int) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx, listPosts, int64(before), limit)
	if err != nil {
		return nil, errors.Wrap(err, "store: list posts")
	}
	defer rows.Close()
	posts := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, errors.Wrap(err, "store: scan post")
		}
		posts = append(posts, p)
	}
	return posts, errors.Wrap(rows.Err(), "store: list posts")
}

const softDeletePost = `UPDATE posts SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`

func (q *Queries) SoftDeletePost(ctx context.Context, id uint64) error {
	res, err := q.db.ExecContext(ctx, softDeletePost, int64(id))
	if err != nil {
		return errors.Wrapf(err, "store: delete post %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "store: delete post")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT count(*) FROM posts WHERE deleted_at IS NULL`).Scan(&n)
	return n, errors.Wrap(err, "store: count posts")
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(s scanner) (Post, error) {
	var p Post
	var id int64
	var category sql.NullInt64
	var published sql.NullTime
	err := s.Scan(&id, &p.UserID, &category, &p.Title, &p.Slug, &p.Summary, &p.Body,
		&p.Checksum, &p.Draft, &published, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Post{}, err
	}
	p.ID = uint64(id)
	p.CategoryID = uint64(category.Int64)
	if published.Valid {
		t := published.Time
		p.PublishedAt = &t
	}
	return p, nil
}
