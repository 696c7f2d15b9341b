package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresRoundTrip exercises the repositories against a real Postgres
// instance to catch dialect drift that the SQLite tests cannot.
func TestPostgresRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("club_engine_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, OpenConfig{Driver: "postgres", DSN: connStr, MaxOpenConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))

	clubs := NewClubRepository(db)
	profiles := NewProfileRepository(db)
	tags := NewTagRepository(db)

	club := &Club{
		Name:     "Robotics Club",
		Category: "technology",
		Tags:     []string{"coding", "hardware"},
	}
	require.NoError(t, clubs.Create(ctx, club))

	got, err := clubs.GetByID(ctx, club.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Coding", "Hardware"}, got.Tags)

	found, err := clubs.SearchText(ctx, "robotics", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, tags.Upsert(ctx, "coding"))
	require.NoError(t, tags.Upsert(ctx, "Coding"))
	catalog, err := tags.ListCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Coding"}, catalog)

	require.NoError(t, profiles.UpdatePreferenceTags(ctx, "u1", []string{"Coding"}))
	require.NoError(t, profiles.MarkQuizTaken(ctx, "u1"))

	profile, err := profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, profile.TookQuiz)
	assert.Equal(t, []string{"Coding"}, profile.PreferenceTags)
}
