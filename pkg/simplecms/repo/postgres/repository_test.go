package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/repo/postgres"
	"github.com/tendant/simple-cms/pkg/simplecms/repo/repotest"
)

const testSchema = "cms_test"

// testDB connects to TEST_DATABASE_URL and migrates a dedicated schema.
type testDB struct {
	Pool *pgxpool.Pool
}

func newTestDB(t *testing.T) *testDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	require.NoError(t, postgres.Migrate(ctx, connString, testSchema), "Failed to migrate test database")

	cfg, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = testSchema

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, pool.Ping(ctx), "Failed to ping test database")

	t.Cleanup(pool.Close)
	return &testDB{Pool: pool}
}

// Cleanup removes all test data from the database
func (db *testDB) Cleanup(t *testing.T) {
	t.Helper()
	_, err := db.Pool.Exec(context.Background(), "TRUNCATE content_items, content_models CASCADE")
	require.NoError(t, err, "Failed to truncate content tables")
}

func TestPostgresRepository(t *testing.T) {
	db := newTestDB(t)

	repotest.Run(t, func(t *testing.T) simplecms.Repository {
		db.Cleanup(t)
		return postgres.NewWithPool(db.Pool)
	})
}

func TestPostgresRepository_MigrateIsIdempotent(t *testing.T) {
	newTestDB(t)
	require.NoError(t, postgres.Migrate(context.Background(), os.Getenv("TEST_DATABASE_URL"), testSchema))
}

func TestPostgresRepository_SearchEscapesWildcards(t *testing.T) {
	db := newTestDB(t)
	db.Cleanup(t)
	repo := postgres.NewWithPool(db.Pool)
	ctx := context.Background()

	model := repotest.NewModel("post", 0)
	require.NoError(t, repo.CreateModel(ctx, model))
	require.NoError(t, repo.CreateItem(ctx, repotest.NewItem(model, "plain", 0)))

	page, err := repo.ListItems(ctx, "post", simplecms.ItemQuery{Search: "%"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}
