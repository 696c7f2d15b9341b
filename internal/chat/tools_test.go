package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusclubs/club-engine/internal/genai"
	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/storage"
)

type fakeClubStore struct {
	clubs     []storage.Club
	listErr   error
	searchErr error
}

func (f *fakeClubStore) List(ctx context.Context) ([]storage.Club, error) {
	return f.clubs, f.listErr
}

func (f *fakeClubStore) GetByID(ctx context.Context, id string) (*storage.Club, error) {
	for i := range f.clubs {
		if f.clubs[i].ID == id {
			return &f.clubs[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeClubStore) SearchText(ctx context.Context, text string, limit int) ([]storage.Club, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []storage.Club
	for _, c := range f.clubs {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(text)) ||
			strings.Contains(strings.ToLower(c.Description), strings.ToLower(text)) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakePreferenceStore struct {
	tags    map[string][]string
	err     error
	lookups int
}

func (f *fakePreferenceStore) GetPreferenceTags(ctx context.Context, userID string) ([]string, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.tags[userID], nil
}

func testClubs() []storage.Club {
	return []storage.Club{
		{ID: "1", Name: "Robotics Club", Description: "Build robots", Category: "Technology", Tags: []string{"Coding", "Hardware"}},
		{ID: "2", Name: "Chess Club", Description: "Strategy nights", Category: "Games", Tags: []string{"Strategy"}},
		{ID: "3", Name: "A Cappella", Description: "Vocal music", Category: "Arts", Tags: []string{"Music"}},
	}
}

func newTestRegistry(clubs *fakeClubStore, profiles *fakePreferenceStore) *Registry {
	return NewRegistry(observability.Nop(), clubs, profiles, 2)
}

func TestDeclarations_IncludesPreferenceToolByDefault(t *testing.T) {
	r := newTestRegistry(&fakeClubStore{}, &fakePreferenceStore{})

	tools := r.Declarations(true)
	require.Len(t, tools, 1)

	names := make([]string, 0, 4)
	for _, d := range tools[0].FunctionDeclarations {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{toolSearchClubs, toolGetAllClubs, toolGetClubDetails, toolGetUserPreferences}, names)
}

func TestDeclarations_OmitsPreferenceToolWhenTagsKnown(t *testing.T) {
	r := newTestRegistry(&fakeClubStore{}, &fakePreferenceStore{})

	tools := r.Declarations(false)
	require.Len(t, tools, 1)

	for _, d := range tools[0].FunctionDeclarations {
		assert.NotEqual(t, toolGetUserPreferences, d.Name)
	}
	assert.Len(t, tools[0].FunctionDeclarations, 3)
}

func TestExecute_SearchClubsTextQuery(t *testing.T) {
	clubs := &fakeClubStore{clubs: testClubs()}
	profiles := &fakePreferenceStore{tags: map[string][]string{"u1": {"Music"}}}
	r := newTestRegistry(clubs, profiles)

	result := r.Execute(context.Background(), genai.FunctionCall{
		Name: toolSearchClubs,
		Args: map[string]interface{}{"query": "robot"},
	}, "u1", nil)

	summaries, ok := result.Content.([]clubSummary)
	require.True(t, ok)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Robotics Club", summaries[0].Name)
	assert.False(t, summaries[0].IsMatchForUser)
}

func TestExecute_SearchClubsCachedTagsSkipLookup(t *testing.T) {
	clubs := &fakeClubStore{clubs: testClubs()}
	profiles := &fakePreferenceStore{tags: map[string][]string{"u1": {"Music"}}}
	r := newTestRegistry(clubs, profiles)

	result := r.Execute(context.Background(), genai.FunctionCall{
		Name: toolSearchClubs,
		Args: map[string]interface{}{"query": ""},
	}, "u1", []string{"Coding"})

	// Cached tags are used directly; the profile store is never consulted.
	assert.Zero(t, profiles.lookups)

	summaries := result.Content.([]clubSummary)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Robotics Club", summaries[0].Name)
	assert.True(t, summaries[0].IsMatchForUser)
}

func TestExecute_SearchClubsEmptyQueryFallsBackToPreferences(t *testing.T) {
	clubs := &fakeClubStore{clubs: testClubs()}
	profiles := &fakePreferenceStore{tags: map[string][]string{"u1": {"Music"}}}
	r := newTestRegistry(clubs, profiles)

	result := r.Execute(context.Background(), genai.FunctionCall{
		Name: toolSearchClubs,
		Args: map[string]interface{}{"query": ""},
	}, "u1", nil)

	assert.Equal(t, 1, profiles.lookups)

	summaries := result.Content.([]clubSummary)
	require.Len(t, summaries, 1)
	assert.Equal(t, "A Cappella", summaries[0].Name)
	assert.True(t, summaries[0].IsMatchForUser)
}

func TestExecute_SearchClubsNoQueryNoTagsReturnsSample(t *testing.T) {
	clubs := &fakeClubStore{clubs: testClubs()}
	profiles := &fakePreferenceStore{}
	r := newTestRegistry(clubs, profiles)

	result := r.Execute(context.Background(), genai.FunctionCall{
		Name: toolSearchClubs,
		Args: map[string]interface{}{"query": ""},
	}, "", nil)

	// Capped at the configured limit.
	summaries := result.Content.([]clubSummary)
	assert.Len(t, summaries, 2)
}

func TestExecute_SearchClubsFailureDegradesToEmpty(t *testing.T) {
	clubs := &fakeClubStore{searchErr: errors.New("db down")}
	r := newTestRegistry(clubs, &fakePreferenceStore{})

	result := r.Execute(context.Background(), genai.FunctionCall{
		Name: toolSearchClubs,
		Args: map[string]interface{}{"query": "robot"},
	}, "", nil)

	assert.Equal(t, []clubSummary{}, result.Content)
}

func TestExecute_GetAllClubs(t *testing.T) {
	clubs := &fakeClubStore{clubs: testClubs()}
	r := newTestRegistry(clubs, &fakePreferenceStore{})

	result := r.Execute(context.Background(), genai.FunctionCall{Name: toolGetAllClubs}, "", nil)

	summaries := result.Content.([]clubSummary)
	assert.Len(t, summaries, 3)
}

func TestExecute_GetClubDetails(t *testing.T) {
	clubs := &fakeClubStore{clubs: testClubs()}
	r := newTestRegistry(clubs, &fakePreferenceStore{})

	result := r.Execute(context.Background(), genai.FunctionCall{
		Name: toolGetClubDetails,
		Args: map[string]interface{}{"clubId": "2"},
	}, "", nil)

	summary, ok := result.Content.(clubSummary)
	require.True(t, ok)
	assert.Equal(t, "Chess Club", summary.Name)
}

func TestExecute_GetClubDetailsUnknownIDReturnsNil(t *testing.T) {
	clubs := &fakeClubStore{clubs: testClubs()}
	r := newTestRegistry(clubs, &fakePreferenceStore{})

	result := r.Execute(context.Background(), genai.FunctionCall{
		Name: toolGetClubDetails,
		Args: map[string]interface{}{"clubId": "nope"},
	}, "", nil)

	assert.Nil(t, result.Content)
}

func TestExecute_GetUserPreferences(t *testing.T) {
	profiles := &fakePreferenceStore{tags: map[string][]string{"u1": {"Music", "Coding"}}}
	r := newTestRegistry(&fakeClubStore{}, profiles)

	result := r.Execute(context.Background(), genai.FunctionCall{Name: toolGetUserPreferences}, "u1", nil)
	assert.Equal(t, []string{"Music", "Coding"}, result.Content)

	result = r.Execute(context.Background(), genai.FunctionCall{Name: toolGetUserPreferences}, "", nil)
	assert.Equal(t, []string{}, result.Content)
}

func TestExecute_UnknownToolReturnsNil(t *testing.T) {
	r := newTestRegistry(&fakeClubStore{}, &fakePreferenceStore{})

	result := r.Execute(context.Background(), genai.FunctionCall{Name: "mystery"}, "", nil)
	assert.Equal(t, "mystery", result.Name)
	assert.Nil(t, result.Content)
}
