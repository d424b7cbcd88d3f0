package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eleven-am/drift/internal/autodetect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDriftConfig(t *testing.T) {
	data := []byte(`
version: "1"
project: storefront

database:
  driver: postgres
  url: postgres://localhost:5432/storefront
  max_connections: 25

migrations:
  directory: ./db/migrations
  table: storefront_migrations

schema:
  file: ./db/schema.json

autodetect:
  rename_threshold: 0.7
`)

	config, err := ParseDriftConfig(data)
	require.NoError(t, err)

	assert.Equal(t, "storefront", config.Project)
	assert.Equal(t, "postgres://localhost:5432/storefront", config.Database.URL)
	assert.Equal(t, 25, config.Database.MaxConnections)
	assert.Equal(t, "./db/migrations", config.Migrations.Directory)
	assert.Equal(t, "storefront_migrations", config.Migrations.Table)
	assert.Equal(t, "./db/schema.json", config.Schema.File)
	assert.Equal(t, 0.7, config.Autodetect.RenameThreshold)
}

func TestParseDriftConfig_Defaults(t *testing.T) {
	config, err := ParseDriftConfig([]byte("project: bare\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, 10, config.Database.MaxConnections)
	assert.Equal(t, "./migrations", config.Migrations.Directory)
	assert.Equal(t, "drift_migrations", config.Migrations.Table)
	assert.Equal(t, "./schema.json", config.Schema.File)
	assert.Equal(t, autodetect.DefaultRenameThreshold, config.Autodetect.RenameThreshold)
}

func TestParseDriftConfig_Invalid(t *testing.T) {
	_, err := ParseDriftConfig([]byte("database: [not, a, mapping]"))
	assert.Error(t, err)
}

func TestLoadDriftConfig_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drift.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project: explicit\n"), 0644))

	config, err := LoadDriftConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "explicit", config.Project)
}

func TestLoadDriftConfig_MissingFile(t *testing.T) {
	_, err := LoadDriftConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
