package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, 1, "init_schema_migrations"},
		{"0042_create_monthly_goals.sql", true, 42, "create_monthly_goals"},
		{"001_invalid.sql", false, 0, ""},        // wrong number format
		{"0001_test", false, 0, ""},              // missing .sql
		{"0001.sql", false, 0, ""},               // missing name
		{"invalid_0001_test.sql", false, 0, ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestReadMigrations_RepositoryFiles(t *testing.T) {
	migrations, err := readMigrations(filepath.Join("..", "..", "migrations", "bigquery"), "proj", "betting")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are contiguous")
		assert.NotContains(t, m.SQL, "{{PROJECT_ID}}")
		assert.NotContains(t, m.SQL, "{{DATASET_ID}}")
		assert.Contains(t, m.SQL, "`proj.betting.")
		assert.Len(t, m.Checksum, 64)
	}
}

func TestReadMigrations_SortsAndSkips(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("0002_second.sql", "SELECT 2")
	write("0001_first.sql", "SELECT * FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`")
	write("README.md", "not a migration")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o755))

	migrations, err := readMigrations(dir, "p", "d")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "SELECT * FROM `p.d.t`", migrations[0].SQL)
	assert.Equal(t, "second", migrations[1].Name)
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_a.sql"), []byte("SELECT 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_b.sql"), []byte("SELECT 1"), 0o644))

	_, err := readMigrations(dir, "p", "d")
	assert.Error(t, err)
}

func TestChecksumIgnoresPlaceholderValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_a.sql"), []byte("CREATE TABLE `{{PROJECT_ID}}.x`"), 0o644))

	a, err := readMigrations(dir, "one", "d")
	require.NoError(t, err)
	b, err := readMigrations(dir, "two", "d")
	require.NoError(t, err)

	assert.NotEqual(t, a[0].SQL, b[0].SQL)
	assert.Equal(t, a[0].Checksum, b[0].Checksum)
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := []AppliedMigration{{Version: 1}, {Version: 3}}

	pending := pendingMigrations(all, applied)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func TestChecksumDrift(t *testing.T) {
	all := []Migration{{Version: 1, Checksum: "aaa"}, {Version: 2, Checksum: "bbb"}}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "zzz"},
		{Version: 3, Checksum: "ccc"},
	}

	drifted := checksumDrift(all, applied)
	require.Len(t, drifted, 1)
	assert.Equal(t, 2, drifted[0].Version)
}
