package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

type File struct {
	ID           uint64
	PostID       uint64
	ObjectKey    string
	URL          string
	OriginalPath string
	ContentType  string
	Size         int64
	CreatedAt    time.Time
}

const createFile = `
INSERT INTO files (id, post_id, object_key, url, original_path, content_type, size_bytes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`

// CreateFile records an uploaded asset. f.ID is minted when zero.
func (q *Queries) CreateFile(ctx context.Context, f File) (File, error) {
	if f.ID == 0 {
		id, err := q.nextID()
		if err != nil {
			return File{}, err
		}
		f.ID = uint64(id)
	}
	err := q.db.QueryRowContext(ctx, createFile,
		int64(f.ID), int64(f.PostID), f.ObjectKey, f.URL, f.OriginalPath, f.ContentType, f.Size,
	).Scan(&f.CreatedAt)
	if err != nil {
		return File{}, errors.Wrapf(err, "store: create file %s", f.ObjectKey)
	}
	return f, nil
}

const listFilesByPost = `
SELECT id, post_id, object_key, url, original_path, content_type, size_bytes, created_at
FROM files WHERE post_id = $1 ORDER BY id`

func (q *Queries) ListFilesByPost(ctx context.Context, postID uint64) ([]File, error) {
	rows, err := q.db.QueryContext(ctx, listFilesByPost, int64(postID))
	if err != nil {
		return nil, errors.Wrap(err, "store: list files")
	}
	defer rows.Close()
	files := []File{}
	for rows.Next() {
		var f File
		var id, post int64
		if err := rows.Scan(&id, &post, &f.ObjectKey, &f.URL, &f.OriginalPath, &f.ContentType, &f.Size, &f.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "store: scan file")
		}
		f.ID, f.PostID = uint64(id), uint64(post)
		files = append(files, f)
	}
	return files, errors.Wrap(rows.Err(), "store: list files")
}

const deleteFilesByPost = `DELETE FROM files WHERE post_id = $1`

// DeleteFilesByPost drops the file rows of postID and reports how many went.
// The stored objects themselves are left in place.
func (q *Queries) DeleteFilesByPost(ctx context.Context, postID uint64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteFilesByPost, int64(postID))
	if err != nil {
		return 0, errors.Wrapf(err, "store: delete files of post %d", postID)
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "store: delete files")
}
