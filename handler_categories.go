package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/prettylog/blogpipe/internal/gid"
	"github.com/prettylog/blogpipe/internal/store"
)

type categoryStore interface {
	GetCategory(ctx context.Context, id uint64) (store.Category, error)
	ListCategoryRoots(ctx context.Context, userID int64) ([]store.Category, error)
	ListCategoryChildren(ctx context.Context, parentID uint64) ([]store.Category, error)
	ListCategoryDescendants(ctx context.Context, id uint64) ([]store.Category, error)
	CategoryPath(ctx context.Context, id uint64) ([]store.Category, error)
}

type CategoryResponse struct {
	ID       string             `json:"id"`
	GID      string             `json:"gid"`
	Title    string             `json:"title"`
	ParentID string             `json:"parent_id,omitempty"`
	GroupID  string             `json:"group_id,omitempty"`
	Depth    int                `json:"depth"`
	Path     []CategoryResponse `json:"path,omitempty"`
}

func categoryResponse(c store.Category) CategoryResponse {
	resp := CategoryResponse{
		ID:    strconv.FormatUint(c.ID, 10),
		GID:   gid.CategoryGID(c.ID).String(),
		Title: c.Title,
		Depth: c.Depth,
	}
	if c.ParentID != 0 {
		resp.ParentID = strconv.FormatUint(c.ParentID, 10)
	}
	if c.GroupID != 0 {
		resp.GroupID = strconv.FormatUint(c.GroupID, 10)
	}
	return resp
}

func categoryList(cs []store.Category) []CategoryResponse {
	out := make([]CategoryResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, categoryResponse(c))
	}
	return out
}

func (cfg *apiConfig) handlerCategoryRoots(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respondWithError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	roots, err := cfg.categories.ListCategoryRoots(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to list categories", err)
		return
	}
	respondWithJSON(w, http.StatusOK, categoryList(roots))
}

// handlerCategoryGet returns the category together with its path from the
// root.
func (cfg *apiConfig) handlerCategoryGet(w http.ResponseWriter, r *http.Request) {
	id, ok := cfg.categoryID(w, r)
	if !ok {
		return
	}
	path, err := cfg.categories.CategoryPath(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Category not found", nil)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to get category", err)
		return
	}
	resp := categoryResponse(path[len(path)-1])
	resp.Path = categoryList(path)
	respondWithJSON(w, http.StatusOK, resp)
}

func (cfg *apiConfig) handlerCategoryChildren(w http.ResponseWriter, r *http.Request) {
	cfg.listBelow(w, r, cfg.categories.ListCategoryChildren)
}

func (cfg *apiConfig) handlerCategoryDescendants(w http.ResponseWriter, r *http.Request) {
	cfg.listBelow(w, r, cfg.categories.ListCategoryDescendants)
}

func (cfg *apiConfig) listBelow(w http.ResponseWriter, r *http.Request, list func(context.Context, uint64) ([]store.Category, error)) {
	id, ok := cfg.categoryID(w, r)
	if !ok {
		return
	}
	if _, err := cfg.categories.GetCategory(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Category not found", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Unable to get category", err)
		return
	}
	cs, err := list(r.Context(), id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Unable to list categories", err)
		return
	}
	respondWithJSON(w, http.StatusOK, categoryList(cs))
}

func (cfg *apiConfig) categoryID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := parseIDParam(pathParam(r, "categoryID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid category id", err)
		return 0, false
	}
	return id, true
}

func (cfg *apiConfig) requireCategories(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.categories == nil {
			respondWithError(w, http.StatusServiceUnavailable, "No database configured", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
