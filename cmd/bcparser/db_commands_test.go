package main

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amr0ny/bc-parser/service/db"
	"github.com/amr0ny/bc-parser/service/record"
)

func TestDBCountCommand(t *testing.T) {
	db.SkipIfNoTestDB(t)

	store := db.NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	store.Cleanup(t)
	require.NoError(t, store.Upsert(ctx, "alice.tg", db.UpsertFields{Hash: record.StringPtr("h1")}))
	require.NoError(t, store.Upsert(ctx, "bob.tg", db.UpsertFields{}))

	out, err := runApp(t, "", "--database-url", db.TestDatabaseURL(), "--json", "db", "count")
	require.NoError(t, err)

	var got map[string]int64
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(2), got["count"])
}

func TestDBResetCommand(t *testing.T) {
	db.SkipIfNoTestDB(t)

	store := db.NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	store.Cleanup(t)
	require.NoError(t, store.Upsert(ctx, "alice.tg", db.UpsertFields{Hash: record.StringPtr("h1")}))

	t.Run("declined prompt keeps records", func(t *testing.T) {
		out, err := runApp(t, "n\n", "--database-url", db.TestDatabaseURL(), "db", "reset")
		require.NoError(t, err)
		assert.Contains(t, out, "Aborted")

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("confirmed prompt resets", func(t *testing.T) {
		_, err := runApp(t, "y\n", "--database-url", db.TestDatabaseURL(), "db", "reset")
		require.NoError(t, err)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestDBCommands_RequireDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")

	_, err := runApp(t, "", "db", "reset", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-url is required")
}
