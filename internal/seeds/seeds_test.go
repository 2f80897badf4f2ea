package seeds_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bluecrab/gis-backend/internal/config"
	"github.com/bluecrab/gis-backend/internal/db"
	"github.com/bluecrab/gis-backend/internal/seeds"
	"github.com/bluecrab/gis-backend/internal/survey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDemo_DeterministicAndValid(t *testing.T) {
	a := seeds.Demo(30)
	b := seeds.Demo(30)
	require.Len(t, a, 30)
	assert.Equal(t, a, b)

	for _, r := range a {
		assert.NoError(t, r.Validate())
	}
}

func TestSeedAll(t *testing.T) {
	gdb, err := db.Open(config.Database{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "crab.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	ctx := context.Background()
	require.NoError(t, survey.Migrate(ctx, gdb, zap.NewNop()))
	store := survey.NewStore(gdb)

	require.NoError(t, seeds.SeedAll(ctx, store, 24, zap.NewNop()))

	recs, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 24)

	locs, err := store.ListLocations(ctx)
	require.NoError(t, err)
	assert.Len(t, locs, 8, "one location per site")
}
