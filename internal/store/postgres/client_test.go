package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN_EscapesCredentials(t *testing.T) {
	got := DSN(ClientConfig{Host: "db", Port: 6432, User: "swap", Password: "p@ss/w rd", Database: "arbs", SSLMode: "require"})
	assert.Equal(t, "postgres://swap:p%40ss%2Fw%20rd@db:6432/arbs?sslmode=require", got)
}

func TestMigrationFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_index.sql": {Data: []byte("")},
		"migrations/001_init.sql":  {Data: []byte("")},
		"migrations/README.md":     {Data: []byte("")},
		"migrations/old/002.sql":   {Data: []byte("")},
	}

	names, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "010_index.sql"}, names)
}

func TestMigrationFiles_Embedded(t *testing.T) {
	names, err := migrationFiles(migrationsFS)
	require.NoError(t, err)
	assert.Contains(t, names, "001_init.sql")
}
