package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prettylog/blogpipe/internal/gid"
)

// untouchedDB fails the test if any statement reaches the database.
type untouchedDB struct{ t *testing.T }

func (d untouchedDB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	d.t.Fatal("unexpected ExecContext")
	return nil, nil
}

func (d untouchedDB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	d.t.Fatal("unexpected QueryContext")
	return nil, nil
}

func (d untouchedDB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	d.t.Fatal("unexpected QueryRowContext")
	return nil
}

type failingIDs struct{ err error }

func (f failingIDs) Generate() (uint64, error) { return 0, f.err }

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"go", "snowflake", "db"}, NormalizeTags([]string{" Go", "#snowflake", "go", "", "DB"}))
	assert.Empty(t, NormalizeTags(nil))
}

func TestClockRegressionAbortsInsert(t *testing.T) {
	regression := &gid.ClockRegressionError{Drift: 3 * time.Millisecond, MachineID: 1}
	q := New(untouchedDB{t}, failingIDs{err: regression})
	ctx := context.Background()

	_, err := q.InsertCategoryHierarchy(ctx, 2, []string{"Technology"})
	assert.ErrorIs(t, err, gid.ErrClockRegression)

	_, err = q.UpsertTags(ctx, []string{"go"})
	assert.ErrorIs(t, err, gid.ErrClockRegression)

	_, err = q.CreatePost(ctx, NewPost{Title: "x", Slug: "x"})
	assert.ErrorIs(t, err, gid.ErrClockRegression)

	_, err = q.CreateFile(ctx, File{PostID: 1})
	var target *gid.ClockRegressionError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, 3*time.Millisecond, target.Drift)
}

func TestEmptyHierarchyDoesNothing(t *testing.T) {
	q := New(untouchedDB{t}, failingIDs{})
	id, err := q.InsertCategoryHierarchy(context.Background(), 2, []string{"", "  "})
	require.NoError(t, err)
	assert.Zero(t, id)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DB_URL")
	if url == "" {
		t.Skip("TEST_DB_URL not set")
	}
	gen, err := gid.NewGenerator(900)
	require.NoError(t, err)
	ctx := context.Background()
	s, err := Open(ctx, url, gen)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Reset(ctx))
	return s
}

func TestCategoryHierarchy(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	leaf, err := s.InsertCategoryHierarchy(ctx, 2, []string{"Technology", "AI", "LLM"})
	require.NoError(t, err)
	assert.Equal(t, 900, gid.ExtractMachineID(leaf))

	root, err := s.GetCategoryByTitle(ctx, 2, "Technology")
	require.NoError(t, err)
	mid, err := s.GetCategoryByTitle(ctx, 2, "AI")
	require.NoError(t, err)
	llm, err := s.GetCategoryByTitle(ctx, 2, "LLM")
	require.NoError(t, err)

	assert.Equal(t, leaf, llm.ID)
	assert.Equal(t, root.ID, root.GroupID)
	assert.Equal(t, root.ID, mid.ParentID)
	assert.Equal(t, root.ID, mid.GroupID)
	assert.Equal(t, mid.ID, llm.ParentID)
	assert.Equal(t, root.ID, llm.GroupID)
	assert.Equal(t, 2, llm.Depth)

	again, err := s.InsertCategoryHierarchy(ctx, 2, []string{"Technology", "AI", "LLM"})
	require.NoError(t, err)
	assert.Equal(t, leaf, again)

	_, err = s.GetCategoryByTitle(ctx, 3, "Technology")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCategoryRefiledUnderNewParent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.InsertCategoryHierarchy(ctx, 2, []string{"Go"})
	require.NoError(t, err)
	before, err := s.GetCategoryByTitle(ctx, 2, "Go")
	require.NoError(t, err)
	assert.Zero(t, before.ParentID)
	assert.Equal(t, first, before.GroupID)

	leaf, err := s.InsertCategoryHierarchy(ctx, 2, []string{"Programming", "Go"})
	require.NoError(t, err)
	assert.Equal(t, first, leaf, "existing title keeps its id")

	root, err := s.GetCategoryByTitle(ctx, 2, "Programming")
	require.NoError(t, err)
	after, err := s.GetCategoryByTitle(ctx, 2, "Go")
	require.NoError(t, err)
	assert.Equal(t, root.ID, after.ParentID)
	assert.Equal(t, root.ID, after.GroupID)
	assert.Equal(t, 1, after.Depth)

	// and back to the top level
	_, err = s.InsertCategoryHierarchy(ctx, 2, []string{"Go"})
	require.NoError(t, err)
	again, err := s.GetCategoryByTitle(ctx, 2, "Go")
	require.NoError(t, err)
	assert.Zero(t, again.ParentID)
	assert.Equal(t, again.ID, again.GroupID)
	assert.Equal(t, 0, again.Depth)
}

func TestRepeatedTitleInHierarchy(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	leaf, err := s.InsertCategoryHierarchy(ctx, 2, []string{"Go", "Go", "Generics"})
	require.NoError(t, err)
	c, err := s.GetCategory(ctx, leaf)
	require.NoError(t, err)
	assert.Equal(t, "Generics", c.Title)
	assert.Equal(t, 1, c.Depth)

	goCat, err := s.GetCategoryByTitle(ctx, 2, "Go")
	require.NoError(t, err)
	assert.Zero(t, goCat.ParentID)
}

func TestCategoryQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	llm, err := s.InsertCategoryHierarchy(ctx, 2, []string{"Technology", "AI", "LLM"})
	require.NoError(t, err)
	_, err = s.InsertCategoryHierarchy(ctx, 2, []string{"Technology", "AI", "Vision"})
	require.NoError(t, err)
	_, err = s.InsertCategoryHierarchy(ctx, 2, []string{"Travel"})
	require.NoError(t, err)
	_, err = s.InsertCategoryHierarchy(ctx, 3, []string{"Cooking"})
	require.NoError(t, err)

	roots, err := s.ListCategoryRoots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "Technology", roots[0].Title)
	assert.Equal(t, "Travel", roots[1].Title)

	path, err := s.CategoryPath(ctx, llm)
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, []string{"Technology", "AI", "LLM"}, []string{path[0].Title, path[1].Title, path[2].Title})

	children, err := s.ListCategoryChildren(ctx, path[1].ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "LLM", children[0].Title)
	assert.Equal(t, "Vision", children[1].Title)

	below, err := s.ListCategoryDescendants(ctx, path[0].ID)
	require.NoError(t, err)
	assert.Len(t, below, 3)

	leaves, err := s.ListCategoryDescendants(ctx, llm)
	require.NoError(t, err)
	assert.Empty(t, leaves)

	_, err = s.CategoryPath(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetCategory(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostsLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var created []Post
	err := s.InTx(ctx, func(q *Queries) error {
		tags, err := q.UpsertTags(ctx, []string{"Go", "go", "ids"})
		if err != nil {
			return err
		}
		if len(tags) != 2 {
			return errors.Errorf("want 2 tags, got %d", len(tags))
		}
		for _, slug := range []string{"first", "second", "third"} {
			p, err := q.CreatePost(ctx, NewPost{UserID: 2, Title: slug, Slug: slug, Body: "body", Checksum: slug})
			if err != nil {
				return err
			}
			if err := q.AttachTags(ctx, p.ID, tags); err != nil {
				return err
			}
			created = append(created, p)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Less(t, created[0].ID, created[1].ID)
	assert.Less(t, created[1].ID, created[2].ID)

	names, err := s.ListPostTags(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "ids"}, names)

	page, err := s.ListPosts(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, created[2].ID, page[0].ID)
	assert.Equal(t, created[1].ID, page[1].ID)

	rest, err := s.ListPosts(ctx, page[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, created[0].ID, rest[0].ID)

	// same slug for the same author keeps the original id
	updated, err := s.CreatePost(ctx, NewPost{UserID: 2, Title: "First!", Slug: "first", Body: "new", Checksum: "x"})
	require.NoError(t, err)
	assert.Equal(t, created[0].ID, updated.ID)
	assert.Equal(t, "First!", updated.Title)

	f, err := s.CreateFile(ctx, File{PostID: updated.ID, ObjectKey: "posts/1/2.png", URL: "http://x/posts/1/2.png", OriginalPath: "a.png", ContentType: "image/png", Size: 3})
	require.NoError(t, err)
	files, err := s.ListFilesByPost(ctx, updated.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, f.ID, files[0].ID)

	require.NoError(t, s.SoftDeletePost(ctx, created[1].ID))
	assert.ErrorIs(t, s.SoftDeletePost(ctx, created[1].ID), ErrNotFound)
	_, err = s.GetPost(ctx, created[1].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.CountPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestInTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(q *Queries) error {
		if _, err := q.CreatePost(ctx, NewPost{UserID: 2, Title: "t", Slug: "t", Body: "b", Checksum: "c"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.CountPosts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSetPostTagsAndDeleteFiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePost(ctx, NewPost{UserID: 2, Title: "t", Slug: "t", Body: "b", Checksum: "c"})
	require.NoError(t, err)
	old, err := s.UpsertTags(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, s.AttachTags(ctx, p.ID, old))

	fresh, err := s.UpsertTags(ctx, []string{"b", "c"})
	require.NoError(t, err)
	require.NoError(t, s.SetPostTags(ctx, p.ID, fresh))
	names, err := s.ListPostTags(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, names)

	for _, key := range []string{"k1", "k2"} {
		_, err := s.CreateFile(ctx, File{PostID: p.ID, ObjectKey: key, URL: "u", OriginalPath: key, ContentType: "image/png"})
		require.NoError(t, err)
	}
	n, err := s.DeleteFilesByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	files, err := s.ListFilesByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, files)
}
