package reports

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-dashboard/backend/internal/cache/memory"
	"github.com/rag-dashboard/backend/internal/storage/models"
	"github.com/rag-dashboard/backend/internal/testutil"
)

type failingStore struct{}

func (failingStore) GetReport(context.Context, string) (*models.Report, bool, error) {
	return nil, false, errors.New("store down")
}

func (failingStore) SetReport(context.Context, string, *models.Report) error {
	return errors.New("store down")
}

func (failingStore) Purge(context.Context) error { return nil }

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "b.html", "<html></html>")
	testutil.WriteFile(t, dir, "a.HTML", "<html></html>")
	testutil.WriteFile(t, dir, "notes.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.html"), 0o755))

	files, err := NewRepository(dir, nil, nil, "").Files()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.HTML"), filepath.Join(dir, "b.html")}, files)
}

func TestFiles_MissingDirectory(t *testing.T) {
	_, err := NewRepository(filepath.Join(t.TempDir(), "missing"), nil, nil, "").Files()
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "run1.html", "x")
	testutil.WriteFile(t, dir, "legacy.htm", "x")
	testutil.WriteFile(t, dir, "raw", "x")
	repo := NewRepository(dir, nil, nil, "")

	tests := []struct {
		id   string
		want string
	}{
		{"run1", "run1.html"},
		{"run1.html", "run1.html"},
		{"legacy", "legacy.htm"},
		{"raw", "raw"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := repo.Resolve(tt.id)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.want), got)
		})
	}

	for _, bad := range []string{"", "missing", "../run1", "sub/run1", `sub\run1`, ".."} {
		_, err := repo.Resolve(bad)
		assert.ErrorIs(t, err, ErrNotFound, "id %q", bad)
	}
}

func TestGet_CachesByFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "run.html", testutil.StandardReport("Model A").String())
	store := memory.NewStore()
	repo := NewRepository(dir, nil, store, "memory")
	ctx := context.Background()

	first, err := repo.Get(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, "Model A", first.Model)
	assert.Equal(t, 76.0, first.ScorePercent)

	second, err := repo.Get(ctx, "run")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, store.Len())

	// A rewritten file gets a new fingerprint.
	testutil.WriteFile(t, dir, "run.html", testutil.StandardReport("Model B").String())
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	third, err := repo.Get(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, "Model B", third.Model)
	assert.Equal(t, 2, store.Len())

	require.NoError(t, repo.Purge(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestLoad_StoreFailureIsAMiss(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "run.html", testutil.StandardReport("Model A").String())
	repo := NewRepository(dir, nil, failingStore{}, "broken")

	r, err := repo.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Model A", r.Model)
}

func TestLoad_MissingFile(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil, nil, "")
	_, err := repo.Load(context.Background(), filepath.Join(repo.Dir(), "gone.html"))
	assert.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	repo := NewRepository(t.TempDir(), nil, nil, "")
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
