package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/quickread/internal/config"
)

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN("postgres://u:p@localhost:5432/quickread", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/quickread", dsn)

	_, err = buildDSN("", "")
	assert.Error(t, err)

	_, err = buildDSN("postgres://localhost/db", filepath.Join(t.TempDir(), "missing.crt"))
	assert.Error(t, err)

	cert := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(cert, []byte("cert"), 0o600))
	dsn, err = buildDSN("postgres://u:p@db.example.com/quickread?application_name=qr", cert)
	require.NoError(t, err)
	assert.Contains(t, dsn, "sslmode=verify-ca")
	assert.Contains(t, dsn, "sslrootcert=")
	assert.Contains(t, dsn, "application_name=qr")
}

func TestMigrationsAreEmbedded(t *testing.T) {
	for _, m := range migrations {
		script, err := bootstrapFS.ReadFile(m.script)
		require.NoError(t, err, m.script)
		assert.NotContains(t, string(script), "quickread_meta", "versions are recorded by the runner")
	}
	script, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	require.NoError(t, err)
	assert.Contains(t, string(script), "CREATE TABLE IF NOT EXISTS documents")
}

func TestPendingMigrations(t *testing.T) {
	all := []migration{{version: 3, script: "c"}, {version: 1, script: "a"}, {version: 2, script: "b"}}

	assert.Equal(t, []int{1, 2, 3}, versions(pending(0, all)))
	assert.Equal(t, []int{2, 3}, versions(pending(1, all)))
	assert.Empty(t, pending(3, all))
	assert.Empty(t, pending(7, all))
}

func versions(ms []migration) []int {
	out := make([]int, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.version)
	}
	return out
}

func TestNewMetadataSink_None(t *testing.T) {
	sink, err := NewMetadataSink(context.Background(), &config.Config{MetadataBackend: "none"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, sink)

	_, err = NewMetadataSink(context.Background(), &config.Config{MetadataBackend: "mongo"}, zerolog.Nop())
	assert.Error(t, err)
}
