package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	script := `-- comment
CREATE TABLE a (
    id INT
);

CREATE TABLE b (id INT);
`
	stmts := SplitStatements(script)
	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a ("))
	assert.Equal(t, "CREATE TABLE b (id INT)", stmts[1])
}

func TestEmbeddedSchemaCoversEntityTables(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)
	stmts := SplitStatements(string(body))
	require.Len(t, stmts, 6)
	for _, table := range []string{"users", "refresh_tokens", "rides", "reservations", "payments", "ratings"} {
		found := false
		for _, s := range stmts {
			if strings.Contains(s, "CREATE TABLE IF NOT EXISTS "+table+" (") {
				found = true
			}
		}
		assert.Truef(t, found, "missing table %s", table)
	}
}
