package storage

import (
	"context"
	"testing"
	"time"

	"github.com/streamplan/streamplan/internal/config"
	"github.com/streamplan/streamplan/internal/database"
	"github.com/streamplan/streamplan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *OutcomeStore {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		LogLevel:        "silent",
	}

	db, err := database.New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	return NewOutcomeStore(db.DB)
}

func outcomeAt(path string, status models.OutcomeStatus, at time.Time) *models.Outcome {
	o := &models.Outcome{
		Path:   path,
		Status: status,
	}
	o.CreatedAt = at
	return o
}

func TestOutcomeStore_RecordAndForPath(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, outcomeAt("/media/a.mkv", models.OutcomeTested, base)))
	require.NoError(t, store.Record(ctx, outcomeAt("/media/a.mkv", models.OutcomeConverted, base.Add(time.Minute))))
	require.NoError(t, store.Record(ctx, outcomeAt("/media/b.mkv", models.OutcomeSkipped, base.Add(2*time.Minute))))

	outcomes, err := store.ForPath(ctx, "/media/a.mkv")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, models.OutcomeConverted, outcomes[0].Status)
	assert.Equal(t, models.OutcomeTested, outcomes[1].Status)
}

func TestOutcomeStore_Record_Invalid(t *testing.T) {
	store := setupStore(t)

	err := store.Record(context.Background(), &models.Outcome{Status: models.OutcomeTested})
	assert.Error(t, err)
}

func TestOutcomeStore_Recent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		o := outcomeAt("/media/file.mkv", models.OutcomeTested, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Record(ctx, o))
	}

	recent, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].CreatedAt.After(recent[2].CreatedAt))

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestOutcomeStore_Latest(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	latest, err := store.Latest(ctx, "/media/missing.mkv")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.Record(ctx, outcomeAt("/media/a.mkv", models.OutcomeFailed, base)))
	require.NoError(t, store.Record(ctx, outcomeAt("/media/a.mkv", models.OutcomeConverted, base.Add(time.Hour))))

	latest, err = store.Latest(ctx, "/media/a.mkv")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.OutcomeConverted, latest.Status)
}

func TestOutcomeStore_CountByStatus(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, outcomeAt("/media/a.mkv", models.OutcomeConverted, base)))
	require.NoError(t, store.Record(ctx, outcomeAt("/media/b.mkv", models.OutcomeConverted, base)))
	require.NoError(t, store.Record(ctx, outcomeAt("/media/c.mkv", models.OutcomeSkipped, base)))

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.OutcomeConverted])
	assert.Equal(t, int64(1), counts[models.OutcomeSkipped])
	assert.Zero(t, counts[models.OutcomeFailed])
}
