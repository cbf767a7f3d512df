//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/migration"
)

// newPostgresDB starts a postgres container and applies the embedded migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("catalogsync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// the migrator closes its connection when done
	migrateDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(migrateDB, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 2, version)
	_ = m.Close()

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db
}

func TestPostgres_SyncRecordRepository(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormSyncRecordRepository(db)
	ctx := context.Background()

	rec := newSyncedRecord(integration.PlatformCodeShopify, "gid://shopify/Product/100")
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err := repo.FindByExternalID(ctx, integration.PlatformCodeShopify, "gid://shopify/Product/100")
	require.NoError(t, err)
	assert.Equal(t, rec.CanonicalID, got.CanonicalID)

	t.Run("external id is unique per platform", func(t *testing.T) {
		other := newSyncedRecord(integration.PlatformCodeShopify, "gid://shopify/Product/100")
		assert.ErrorIs(t, repo.Upsert(ctx, other), integration.ErrExternalIDMismatch)
	})

	t.Run("concurrent first commits agree on one external id", func(t *testing.T) {
		key := uuid.New()
		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			mismatches int
		)
		for _, ext := range []string{"gid://shopify/Product/201", "gid://shopify/Product/202"} {
			wg.Add(1)
			go func(ext string) {
				defer wg.Done()
				r := newSyncedRecord(integration.PlatformCodeShopify, ext)
				r.CanonicalID = key
				if err := repo.Upsert(ctx, r); err != nil {
					mu.Lock()
					defer mu.Unlock()
					if errors.Is(err, integration.ErrExternalIDMismatch) {
						mismatches++
					}
				}
			}(ext)
		}
		wg.Wait()

		stored, err := repo.FindByKey(ctx, integration.RecordKey{CanonicalID: key, Platform: integration.PlatformCodeShopify})
		require.NoError(t, err)
		assert.Contains(t, []string{"gid://shopify/Product/201", "gid://shopify/Product/202"}, stored.ExternalID)
		assert.Equal(t, 1, mismatches)
	})
}

func TestPostgres_ProductRepository(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()

	p := newCatalogProduct("Blue Mug", catalog.StatusActive)
	require.NoError(t, repo.Save(ctx, p))
	p.Title = "Blue Mug XL"
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue Mug XL", got.Title)
	assert.Len(t, got.Variants, 2)
}
