// Package objectstore holds uploaded article assets. Local writes to a
// directory served by the API; other backends implement Store.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

type Store interface {
	// Put stores r under key and returns its public URL.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// Key returns the object key for a file belonging to a post.
func Key(postID, fileID uint64, ext string) string {
	return "posts/" + strconv.FormatUint(postID, 10) + "/" + strconv.FormatUint(fileID, 10) + strings.ToLower(ext)
}

// Local stores objects below Dir and serves them from BaseURL.
type Local struct {
	Dir     string
	BaseURL string
}

func NewLocal(dir, baseURL string) *Local {
	return &Local{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (l *Local) Put(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("objectstore: empty key")
	}
	dst := filepath.Join(l.Dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("objectstore: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("objectstore: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, readerWithContext{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("objectstore: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("objectstore: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("objectstore: %w", err)
	}
	return l.BaseURL + clean, nil
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (rc readerWithContext) Read(p []byte) (int, error) {
	if err := rc.ctx.Err(); err != nil {
		return 0, err
	}
	return rc.r.Read(p)
}
