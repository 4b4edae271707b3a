package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type Category struct {
	ID        uint64
	UserID    int64
	Title     string
	ParentID  uint64
	GroupID   uint64
	Depth     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// maxCategoryDepth bounds the recursive walks. Re-filing titles can in
// principle close a parent loop, and the walks must still terminate.
const maxCategoryDepth = 64

// A root row is its own group. An existing title moves to wherever the
// latest hierarchy files it.
const upsertCategory = `
INSERT INTO categories (id, user_id, title, parent_id, group_id, depth)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, title) DO UPDATE SET
	parent_id  = EXCLUDED.parent_id,
	group_id   = CASE WHEN EXCLUDED.parent_id IS NULL THEN categories.id ELSE EXCLUDED.group_id END,
	depth      = EXCLUDED.depth,
	updated_at = now()
RETURNING id, group_id`

// InsertCategoryHierarchy upserts titles from root to leaf for userID, linking
// each level to its parent and to the root group, and returns the leaf id.
// Blank and repeated titles are skipped. An empty hierarchy returns 0.
func (q *Queries) InsertCategoryHierarchy(ctx context.Context, userID int64, titles []string) (uint64, error) {
	var parentID, groupID sql.NullInt64
	var leaf int64
	depth := 0
	seen := make(map[string]bool, len(titles))
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		id, err := q.nextID()
		if err != nil {
			return 0, err
		}
		group := groupID
		if !group.Valid {
			group = sql.NullInt64{Int64: id, Valid: true}
		}
		var gotID, gotGroup int64
		err = q.db.QueryRowContext(ctx, upsertCategory, id, userID, title, parentID, group, depth).Scan(&gotID, &gotGroup)
		if err != nil {
			return 0, errors.Wrapf(err, "store: upsert category %q", title)
		}
		if !groupID.Valid {
			groupID = sql.NullInt64{Int64: gotGroup, Valid: true}
		}
		parentID = sql.NullInt64{Int64: gotID, Valid: true}
		leaf = gotID
		depth++
	}
	return uint64(leaf), nil
}

const categoryColumns = `id, user_id, title, parent_id, group_id, depth, created_at, updated_at`

func scanCategory(s scanner) (Category, error) {
	var c Category
	var id int64
	var parent, group sql.NullInt64
	if err := s.Scan(&id, &c.UserID, &c.Title, &parent, &group, &c.Depth, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Category{}, err
	}
	c.ID = uint64(id)
	c.ParentID = uint64(parent.Int64)
	c.GroupID = uint64(group.Int64)
	return c, nil
}

func (q *Queries) queryCategories(ctx context.Context, what, query string, args ...interface{}) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "store: "+what)
	}
	defer rows.Close()
	out := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, errors.Wrap(err, "store: scan category")
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "store: "+what)
}

const getCategoryByTitle = `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = $1 AND title = $2`

func (q *Queries) GetCategoryByTitle(ctx context.Context, userID int64, title string) (Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, getCategoryByTitle, userID, title))
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, errors.Wrap(err, "store: get category")
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

func (q *Queries) GetCategory(ctx context.Context, id uint64) (Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, getCategory, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, errors.Wrap(err, "store: get category")
}

const listCategoryRoots = `
SELECT ` + categoryColumns + ` FROM categories
WHERE user_id = $1 AND parent_id IS NULL ORDER BY title`

// ListCategoryRoots returns the top-level categories of userID.
func (q *Queries) ListCategoryRoots(ctx context.Context, userID int64) ([]Category, error) {
	return q.queryCategories(ctx, "list category roots", listCategoryRoots, userID)
}

const listCategoryChildren = `
SELECT ` + categoryColumns + ` FROM categories
WHERE parent_id = $1 ORDER BY title`

// ListCategoryChildren returns the direct children of parentID.
func (q *Queries) ListCategoryChildren(ctx context.Context, parentID uint64) ([]Category, error) {
	return q.queryCategories(ctx, "list category children", listCategoryChildren, int64(parentID))
}

const categoryPath = `
WITH RECURSIVE up AS (
	SELECT ` + categoryColumns + `, 0 AS hops FROM categories WHERE id = $1
	UNION ALL
	SELECT c.id, c.user_id, c.title, c.parent_id, c.group_id, c.depth, c.created_at, c.updated_at, up.hops + 1
	FROM categories c JOIN up ON c.id = up.parent_id
	WHERE up.hops < $2
)
SELECT ` + categoryColumns + ` FROM up ORDER BY hops DESC`

// CategoryPath returns the chain from the root down to id, inclusive. An
// unknown id yields ErrNotFound.
func (q *Queries) CategoryPath(ctx context.Context, id uint64) ([]Category, error) {
	path, err := q.queryCategories(ctx, "category path", categoryPath, int64(id), maxCategoryDepth)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, ErrNotFound
	}
	return path, nil
}

const categoryDescendants = `
WITH RECURSIVE down AS (
	SELECT ` + categoryColumns + `, 1 AS hops FROM categories WHERE parent_id = $1
	UNION ALL
	SELECT c.id, c.user_id, c.title, c.parent_id, c.group_id, c.depth, c.created_at, c.updated_at, down.hops + 1
	FROM categories c JOIN down ON c.parent_id = down.id
	WHERE down.hops < $2
)
SELECT DISTINCT ON (id) ` + categoryColumns + ` FROM down ORDER BY id`

// ListCategoryDescendants returns every category below id, in id order.
func (q *Queries) ListCategoryDescendants(ctx context.Context, id uint64) ([]Category, error) {
	return q.queryCategories(ctx, "list category descendants", categoryDescendants, int64(id), maxCategoryDepth)
}
