package pipeline

import (
	"context"

	"github.com/prettylog/blogpipe/internal/store"
)

// Publication is everything written for one article.
type Publication struct {
	Post       store.NewPost
	Categories []string
	Tags       []string
	Files      []store.File
}

type Repository interface {
	Publish(ctx context.Context, p Publication) (store.Post, error)
}

// StoreRepository writes a publication in a single transaction. A
// re-published post ends up with exactly the tags and files of its latest
// version; objects uploaded by earlier runs stay in the object store.
type StoreRepository struct {
	Store *store.Store
}

func (r StoreRepository) Publish(ctx context.Context, p Publication) (store.Post, error) {
	var post store.Post
	err := r.Store.InTx(ctx, func(q *store.Queries) error {
		categoryID, err := q.InsertCategoryHierarchy(ctx, p.Post.UserID, p.Categories)
		if err != nil {
			return err
		}
		tagIDs, err := q.UpsertTags(ctx, p.Tags)
		if err != nil {
			return err
		}
		in := p.Post
		in.CategoryID = categoryID
		if post, err = q.CreatePost(ctx, in); err != nil {
			return err
		}
		if err := q.SetPostTags(ctx, post.ID, tagIDs); err != nil {
			return err
		}
		if _, err := q.DeleteFilesByPost(ctx, post.ID); err != nil {
			return err
		}
		for _, f := range p.Files {
			f.PostID = post.ID
			if _, err := q.CreateFile(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
	return post, err
}
