package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "posts/10/20.png", Key(10, 20, ".PNG"))
}

func TestLocalPut(t *testing.T) {
	dir := t.TempDir()
	s := NewLocal(dir, "https://static.example.com/")

	url, err := s.Put(context.Background(), "posts/1/2.png", strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://static.example.com/posts/1/2.png", url)

	got, err := os.ReadFile(filepath.Join(dir, "posts", "1", "2.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(got))
}

func TestLocalPutStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	s := NewLocal(filepath.Join(dir, "root"), "http://x")

	url, err := s.Put(context.Background(), "../../escape.txt", strings.NewReader("x"), "")
	require.NoError(t, err)
	assert.Equal(t, "http://x/escape.txt", url)
	assert.FileExists(t, filepath.Join(dir, "root", "escape.txt"))
}

func TestLocalPutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal(t.TempDir(), "http://x").Put(ctx, "a.txt", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, context.Canceled)
}
