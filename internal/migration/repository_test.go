package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_SaveAndLoad(t *testing.T) {
	repo := NewRepository(t.TempDir())

	m := sampleMigration()
	path, err := repo.Save(m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(repo.Dir(), "auth", "0001_initial.json"), path)

	loaded, err := repo.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, m.Key(), loaded[0].Key())
	require.Len(t, loaded[0].Operations, 1)
}

func TestRepository_RefusesOverwrite(t *testing.T) {
	repo := NewRepository(t.TempDir())

	_, err := repo.Save(sampleMigration())
	require.NoError(t, err)

	_, err = repo.Save(sampleMigration())
	assert.Error(t, err, "saving the same migration twice must fail")
}

func TestRepository_LoadMissingDirectory(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "does-not-exist"))
	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRepository_IgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir)
	_, err := repo.Save(sampleMigration())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth", "notes.txt"), []byte("x"), 0644))

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestRepository_NextName(t *testing.T) {
	repo := NewRepository(t.TempDir())

	name, err := repo.NextName("auth", "whatever")
	require.NoError(t, err)
	assert.Equal(t, "0001_initial", name, "an empty app always starts at 0001_initial")

	_, err = repo.Save(sampleMigration())
	require.NoError(t, err)

	name, err = repo.NextName("auth", "auto_user_add")
	require.NoError(t, err)
	assert.Equal(t, "0002_auto_user_add", name)

	name, err = repo.NextName("auth", "")
	require.NoError(t, err)
	assert.Equal(t, "0002_auto", name)

	// Other apps keep their own counters.
	name, err = repo.NextName("shop", "x")
	require.NoError(t, err)
	assert.Equal(t, "0001_initial", name)
}

func TestRepository_LatestKeys(t *testing.T) {
	repo := NewRepository(t.TempDir())

	first := sampleMigration()
	_, err := repo.Save(first)
	require.NoError(t, err)

	second := New("auth", "0002_more")
	second.AddDependency(first.Key())
	_, err = repo.Save(second)
	require.NoError(t, err)

	other := New("shop", "0001_initial")
	_, err = repo.Save(other)
	require.NoError(t, err)

	latest, err := repo.LatestKeys()
	require.NoError(t, err)
	assert.Equal(t, NewKey("auth", "0002_more"), latest["auth"])
	assert.Equal(t, NewKey("shop", "0001_initial"), latest["shop"])
}
