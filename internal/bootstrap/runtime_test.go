package bootstrap

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"reelshare/internal/config"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/seed"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T, env string) *config.Config {
	t.Helper()
	return &config.Config{
		Env:        env,
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "reelshare.db"),
	}
}

func TestInitObservability_InstallsLogger(t *testing.T) {
	prev := observability.Logger
	t.Cleanup(func() { observability.SetLogger(prev) })

	var buf bytes.Buffer
	shutdown, err := InitObservability(&config.Config{Env: "production"}, "reelshare-test", &buf)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	observability.Logger.Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestInitRuntime_SeedsEmptyDevelopmentStore(t *testing.T) {
	cfg := sqliteConfig(t, "development")
	opts := Options{SeedIfEmpty: true, SeedOptions: seed.Options{Users: 3, Videos: 2, Seed: 5}}
	ctx := context.Background()

	db, rdb, err := InitRuntime(ctx, cfg, opts)
	require.NoError(t, err)
	assert.Nil(t, rdb)

	var count int64
	require.NoError(t, db.Model(&models.Document{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)

	require.NoError(t, seedIfEmpty(ctx, db, opts.SeedOptions))
	require.NoError(t, db.Model(&models.Document{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

func TestInitRuntime_NoSeedOutsideDevelopment(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := sqliteConfig(t, "production")
	cfg.RedisURL = mr.Addr()

	db, rdb, err := InitRuntime(context.Background(), cfg, Options{SeedIfEmpty: true, SeedOptions: seed.Options{Users: 2}})
	require.NoError(t, err)
	require.NotNil(t, rdb)
	t.Cleanup(func() { _ = rdb.Close() })

	var count int64
	require.NoError(t, db.Model(&models.Document{}).Count(&count).Error)
	assert.Zero(t, count)
}
