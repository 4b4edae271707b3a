package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prettylog/blogpipe/internal/gid"
	"github.com/prettylog/blogpipe/internal/store"
	"github.com/prettylog/blogpipe/middleware"
)

type postStore interface {
	GetPost(ctx context.Context, id uint64) (store.Post, error)
	ListPosts(ctx context.Context, before uint64, limit int) ([]store.Post, error)
	ListPostTags(ctx context.Context, postID uint64) ([]string, error)
	ListFilesByPost(ctx context.Context, postID uint64) ([]store.File, error)
	SoftDeletePost(ctx context.Context, id uint64) error
}

type PostResponse struct {
	ID          string     `json:"id"`
	GID         string     `json:"gid"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Summary     string     `json:"summary,omitempty"`
	Body        string     `json:"body,omitempty"`
	CategoryID  string     `json:"category_id,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Files       []FileItem `json:"files,omitempty"`
	Draft       bool       `json:"draft"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type FileItem struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func postResponse(p store.Post) PostResponse {
	resp := PostResponse{
		ID:          strconv.FormatUint(p.ID, 10),
		GID:         gid.PostGID(p.ID).String(),
		Title:       p.Title,
		Slug:        p.Slug,
		Summary:     p.Summary,
		Draft:       p.Draft,
		PublishedAt: p.PublishedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.CategoryID != 0 {
		resp.CategoryID = strconv.FormatUint(p.CategoryID, 10)
	}
	return resp
}

func (cfg *apiConfig) handlerPostsList(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePageParams(r, 20, 100)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	cur, ok, err := postCursorCodec.Decode(page.Cursor)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	var before uint64
	if ok {
		before, _ = cur.id() // validated by Decode
	}

	// one extra row tells us whether another page exists
	posts, err := cfg.posts.ListPosts(r.Context(), before, page.Limit+1)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to list posts", err)
		return
	}
	hasMore := len(posts) > page.Limit
	if hasMore {
		posts = posts[:page.Limit]
	}

	resp := PageResponse[PostResponse]{
		Data: make([]PostResponse, 0, len(posts)),
		Page: PageInfo{Limit: page.Limit, HasMore: hasMore},
	}
	for _, p := range posts {
		resp.Data = append(resp.Data, postResponse(p))
	}
	if hasMore {
		last := posts[len(posts)-1]
		next, err := postCursorCodec.Encode(postCursor{Before: strconv.FormatUint(last.ID, 10)})
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Unable to build cursor", err)
			return
		}
		resp.Page.NextCursor = next
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (cfg *apiConfig) handlerPostsGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(pathParam(r, "postID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid post id", err)
		return
	}
	post, err := cfg.posts.GetPost(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Post not found", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to get post", err)
		return
	}

	resp := postResponse(post)
	resp.Body = post.Body
	if resp.Tags, err = cfg.posts.ListPostTags(r.Context(), post.ID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to get post tags", err)
		return
	}
	files, err := cfg.posts.ListFilesByPost(r.Context(), post.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to get post files", err)
		return
	}
	for _, f := range files {
		resp.Files = append(resp.Files, FileItem{
			ID:          strconv.FormatUint(f.ID, 10),
			URL:         f.URL,
			ContentType: f.ContentType,
			Size:        f.Size,
		})
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (cfg *apiConfig) handlerPostsDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	subject, _ := subjectFromContext(r.Context())

	id, err := parseIDParam(pathParam(r, "postID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid post id", err)
		return
	}
	err = cfg.posts.SoftDeletePost(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Post not found", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to delete post", err)
		return
	}
	slog.InfoContext(r.Context(), "post deleted",
		"request_id", reqID,
		"post_id", id,
		"subject", subject,
	)
	w.WriteHeader(http.StatusNoContent)
}
