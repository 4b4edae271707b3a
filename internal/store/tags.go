package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

const upsertTag = `
INSERT INTO tags (id, name) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`

// NormalizeTags trims, lowercases and deduplicates names, keeping order.
func NormalizeTags(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		n = strings.TrimPrefix(n, "#")
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// UpsertTags returns the id of every normalized tag, creating missing ones.
func (q *Queries) UpsertTags(ctx context.Context, names []string) ([]uint64, error) {
	names = NormalizeTags(names)
	ids := make([]uint64, 0, len(names))
	for _, name := range names {
		id, err := q.nextID()
		if err != nil {
			return nil, err
		}
		var got int64
		if err := q.db.QueryRowContext(ctx, upsertTag, id, name).Scan(&got); err != nil {
			return nil, errors.Wrapf(err, "store: upsert tag %q", name)
		}
		ids = append(ids, uint64(got))
	}
	return ids, nil
}

const attachTag = `INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

func (q *Queries) AttachTags(ctx context.Context, postID uint64, tagIDs []uint64) error {
	for _, tagID := range tagIDs {
		if _, err := q.db.ExecContext(ctx, attachTag, int64(postID), int64(tagID)); err != nil {
			return errors.Wrapf(err, "store: attach tag %d to post %d", tagID, postID)
		}
	}
	return nil
}

const detachTags = `DELETE FROM post_tags WHERE post_id = $1`

// SetPostTags replaces the tags of postID with tagIDs.
func (q *Queries) SetPostTags(ctx context.Context, postID uint64, tagIDs []uint64) error {
	if _, err := q.db.ExecContext(ctx, detachTags, int64(postID)); err != nil {
		return errors.Wrapf(err, "store: detach tags from post %d", postID)
	}
	return q.AttachTags(ctx, postID, tagIDs)
}

const listPostTags = `
SELECT t.name FROM tags t JOIN post_tags pt ON pt.tag_id = t.id
WHERE pt.post_id = $1 ORDER BY t.name`

func (q *Queries) ListPostTags(ctx context.Context, postID uint64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listPostTags, int64(postID))
	if err != nil {
		return nil, errors.Wrap(err, "store: list post tags")
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errors.Wrap(err, "store: scan tag")
		}
		names = append(names, n)
	}
	return names, errors.Wrap(rows.Err(), "store: list post tags")
}
