package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imagesizer/adapters/storage"
	apperrors "github.com/Skryldev/imagesizer/errors"
)

func TestLocal_PromoteNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	l := storage.NewLocal(t.TempDir(), 0, 0, 0)
	ctx := context.Background()

	scratch, err := l.Scratch(".jpg")
	require.NoError(t, err)
	defer l.Remove(scratch)
	_, err = l.Overwrite(ctx, scratch, []byte("new"))
	require.NoError(t, err)

	existing := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	got, err := l.Promote(ctx, scratch, dir, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a_1.jpg"), got)

	got2, err := l.Promote(ctx, scratch, dir, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a_2.jpg"), got2)

	old, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
	fresh, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "new", string(fresh))
}

func TestLocal_ScratchLifecycle(t *testing.T) {
	scratchDir := t.TempDir()
	l := storage.NewLocal(scratchDir, 0, 0, 0)

	p, err := l.Scratch(".png")
	require.NoError(t, err)
	assert.Equal(t, scratchDir, filepath.Dir(p))
	assert.Equal(t, ".png", filepath.Ext(p))

	n, err := l.Overwrite(context.Background(), p, make([]byte, 1234))
	require.NoError(t, err)
	assert.EqualValues(t, 1234, n)

	require.NoError(t, l.Remove(p))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, l.Remove(p), "removing twice is fine")
}

func TestLocal_ReadSourceLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	data, err := storage.NewLocal("", 0, 16, 100).ReadSource(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, data, 100)

	_, err = storage.NewLocal("", 0, 16, 99).ReadSource(context.Background(), path)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
}

func TestLocal_CheckDir(t *testing.T) {
	l := storage.NewLocal("", 0, 0, 0)
	dir := t.TempDir()
	assert.NoError(t, l.CheckDir(dir))

	err := l.CheckDir(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrOutputDir)

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.ErrorIs(t, l.CheckDir(file), apperrors.ErrOutputDir)
}
