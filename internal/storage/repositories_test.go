package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, OpenConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	return db
}

func TestClubRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewClubRepository(db)
	ctx := context.Background()

	club := &Club{
		Name:        "Robotics Club",
		Description: "Build robots",
		Category:    "technology",
		Tags:        []string{"coding", "hardware"},
		ImageURL:    "https://example.com/robotics.png",
		NextEvent:   &NextEvent{Time: "Fridays 6 PM", Location: "Engineering 101"},
	}
	require.NoError(t, repo.Create(ctx, club))
	require.NotEmpty(t, club.ID)

	// Category and tags are title-cased at the storage boundary.
	assert.Equal(t, "Technology", club.Category)
	assert.Equal(t, []string{"Coding", "Hardware"}, club.Tags)

	got, err := repo.GetByID(ctx, club.ID)
	require.NoError(t, err)
	assert.Equal(t, club.Name, got.Name)
	assert.Equal(t, []string{"Coding", "Hardware"}, got.Tags)
	require.NotNil(t, got.NextEvent)
	assert.Equal(t, "Engineering 101", got.NextEvent.Location)
}

func TestClubRepository_GetByIDNotFound(t *testing.T) {
	repo := NewClubRepository(testDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClubRepository_ListOrderedByName(t *testing.T) {
	db := testDB(t)
	repo := NewClubRepository(db)
	ctx := context.Background()

	for _, name := range []string{"Zeta Society", "Alpha Club", "Mid Club"} {
		require.NoError(t, repo.Create(ctx, &Club{Name: name}))
	}

	clubs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, clubs, 3)
	assert.Equal(t, "Alpha Club", clubs[0].Name)
	assert.Equal(t, "Zeta Society", clubs[2].Name)

	// Clubs created without tags scan as empty slices, never nil.
	assert.NotNil(t, clubs[0].Tags)
	assert.Empty(t, clubs[0].Tags)
}

func TestClubRepository_SearchText(t *testing.T) {
	db := testDB(t)
	repo := NewClubRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &Club{Name: "Robotics Club", Description: "Build robots"}))
	require.NoError(t, repo.Create(ctx, &Club{Name: "Chess Club", Description: "Robot-free strategy"}))
	require.NoError(t, repo.Create(ctx, &Club{Name: "A Cappella", Description: "Vocal music"}))

	clubs, err := repo.SearchText(ctx, "ROBOT", 10)
	require.NoError(t, err)
	assert.Len(t, clubs, 2)

	clubs, err = repo.SearchText(ctx, "robot", 1)
	require.NoError(t, err)
	assert.Len(t, clubs, 1)

	clubs, err = repo.SearchText(ctx, "nothing matches this", 10)
	require.NoError(t, err)
	assert.Empty(t, clubs)
}

func TestTagRepository_UpsertIdempotent(t *testing.T) {
	db := testDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "coding"))
	require.NoError(t, repo.Upsert(ctx, "Coding"))
	require.NoError(t, repo.Upsert(ctx, "music"))
	require.NoError(t, repo.Upsert(ctx, "  "))

	tags, err := repo.ListCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Coding", "Music"}, tags)
}

func TestProfileRepository_PreferenceTagsLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	// Unknown user reads as empty, not an error.
	tags, err := repo.GetPreferenceTags(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tags)

	require.NoError(t, repo.UpdatePreferenceTags(ctx, "u1", []string{"Coding", "Music"}))

	tags, err = repo.GetPreferenceTags(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Coding", "Music"}, tags)

	// Wholesale replacement, including clearing.
	require.NoError(t, repo.UpdatePreferenceTags(ctx, "u1", nil))
	tags, err = repo.GetPreferenceTags(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestProfileRepository_MarkQuizTaken(t *testing.T) {
	db := testDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	// No profile row yet.
	assert.ErrorIs(t, repo.MarkQuizTaken(ctx, "u1"), ErrNotFound)

	require.NoError(t, repo.UpdatePreferenceTags(ctx, "u1", []string{"Coding"}))
	require.NoError(t, repo.MarkQuizTaken(ctx, "u1"))

	profile, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, profile.TookQuiz)
}

func TestQuizRepository_QuestionsAndResponses(t *testing.T) {
	db := testDB(t)
	repo := NewQuizRepository(db)
	ctx := context.Background()

	q1 := &QuizQuestion{
		Text: "What do you enjoy?", Position: 1,
		Options: []QuizOption{
			{Text: "Coding things", Tags: []string{"Coding"}},
			{Text: "Making music", Tags: []string{"Music"}},
		},
	}
	q2 := &QuizQuestion{Text: "Weekend plans?", Position: 2,
		Options: []QuizOption{{Text: "Sports", Tags: []string{"Sports"}}}}
	require.NoError(t, repo.UpsertQuestion(ctx, q1))
	require.NoError(t, repo.UpsertQuestion(ctx, q2))

	questions, err := repo.ListQuestions(ctx)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "What do you enjoy?", questions[0].Text)
	require.Len(t, questions[0].Options, 2)
	assert.Equal(t, []string{"Coding"}, questions[0].Options[0].Tags)

	responses := []QuizResponse{
		{UserID: "u1", QuestionID: q1.ID, OptionID: q1.Options[0].ID},
		{UserID: "u1", QuestionID: q2.ID, OptionID: q2.Options[0].ID},
	}
	require.NoError(t, repo.ReplaceResponses(ctx, "u1", responses))

	got, err := repo.ListResponses(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Replacement drops the prior set.
	require.NoError(t, repo.ReplaceResponses(ctx, "u1", responses[:1]))
	got, err = repo.ListResponses(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFollowRepository(t *testing.T) {
	db := testDB(t)
	clubs := NewClubRepository(db)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	alpha := &Club{Name: "Alpha Club"}
	beta := &Club{Name: "Beta Club"}
	require.NoError(t, clubs.Create(ctx, alpha))
	require.NoError(t, clubs.Create(ctx, beta))

	require.NoError(t, follows.Follow(ctx, "u1", alpha.ID))
	require.NoError(t, follows.Follow(ctx, "u1", alpha.ID)) // idempotent
	require.NoError(t, follows.Follow(ctx, "u1", beta.ID))

	followed, err := follows.ListFollowed(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, followed, 2)
	assert.Equal(t, "Alpha Club", followed[0].Name)

	require.NoError(t, follows.Unfollow(ctx, "u1", alpha.ID))
	followed, err = follows.ListFollowed(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, followed, 1)
}

func TestEventRepository(t *testing.T) {
	db := testDB(t)
	clubs := NewClubRepository(db)
	events := NewEventRepository(db)
	ctx := context.Background()

	club := &Club{Name: "Outdoors Club"}
	require.NoError(t, clubs.Create(ctx, club))

	event := &ClubEvent{
		ClubID:   club.ID,
		Title:    "Weekend Hike",
		StartsAt: time.Now().Add(48 * time.Hour),
		Location: "Trailhead",
	}
	require.NoError(t, events.Create(ctx, event))
	require.NotEmpty(t, event.ID)

	listed, err := events.ListByClub(ctx, club.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Weekend Hike", listed[0].Title)

	require.NoError(t, events.SignUp(ctx, event.ID, "u1"))
	require.NoError(t, events.SignUp(ctx, event.ID, "u1")) // idempotent

	signups, err := events.ListSignups(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{event.ID}, signups)

	require.NoError(t, events.RemoveSignup(ctx, event.ID, "u1"))
	signups, err = events.ListSignups(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, signups)
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"coding", "Coding"},
		{"BOARD GAMES", "Board Games"},
		{"rock-climbing", "Rock-Climbing"},
		{"arts/crafts", "Arts/Crafts"},
		{"  padded  ", "Padded"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLabel(tt.in), "input %q", tt.in)
	}
}
