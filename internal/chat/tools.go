// Package chat orchestrates multi-turn conversations with a generative-AI
// model that can request tool invocations against the club data layer.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/campusclubs/club-engine/internal/genai"
	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/ranking"
	"github.com/campusclubs/club-engine/internal/storage"
)

// Tool names exposed to the model.
const (
	toolSearchClubs        = "searchClubs"
	toolGetAllClubs        = "getAllClubs"
	toolGetClubDetails     = "getClubDetails"
	toolGetUserPreferences = "getUserPreferences"
)

// defaultToolResultLimit caps club lists returned to the model, bounding
// follow-up latency and token cost.
const defaultToolResultLimit = 10

// ClubStore is the club data access tools need.
type ClubStore interface {
	List(ctx context.Context) ([]storage.Club, error)
	GetByID(ctx context.Context, id string) (*storage.Club, error)
	SearchText(ctx context.Context, text string, limit int) ([]storage.Club, error)
}

// PreferenceStore is the profile data access tools need.
type PreferenceStore interface {
	GetPreferenceTags(ctx context.Context, userID string) ([]string, error)
}

// ToolResult is the outcome of one tool execution, keyed by function name.
type ToolResult struct {
	Name    string
	Content interface{}
}

// clubSummary is the club shape handed to the model by tools.
type clubSummary struct {
	ID             string             `json:"club_id"`
	Name           string             `json:"club_name"`
	Category       string             `json:"club_category"`
	Description    string             `json:"club_description"`
	Tags           []string           `json:"club_tags"`
	NextEvent      *storage.NextEvent `json:"next_event,omitempty"`
	IsMatchForUser bool               `json:"is_match_for_user"`
}

// Registry holds the fixed set of callable functions offered to the model.
type Registry struct {
	logger   *observability.Logger
	clubs    ClubStore
	profiles PreferenceStore
	limit    int
}

// NewRegistry creates a tool registry. limit <= 0 uses the default result cap.
func NewRegistry(logger *observability.Logger, clubs ClubStore, profiles PreferenceStore, limit int) *Registry {
	if limit <= 0 {
		limit = defaultToolResultLimit
	}
	return &Registry{
		logger:   logger,
		clubs:    clubs,
		profiles: profiles,
		limit:    limit,
	}
}

// Declarations returns the tool declarations offered to the model. When
// preference tags are already known to the caller, the getUserPreferences
// declaration is omitted so the model cannot issue a redundant lookup.
func (r *Registry) Declarations(includeUserPreferences bool) []genai.Tool {
	decls := []genai.FunctionDeclaration{
		{
			Name:        toolSearchClubs,
			Description: "Search for clubs based on keywords, categories, or tags. Returns a list of matching clubs with their details.",
			Parameters: &genai.Schema{
				Type: "OBJECT",
				Properties: map[string]*genai.Schema{
					"query": {
						Type:        "STRING",
						Description: "The search query (e.g., 'coding', 'sports', 'music').",
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        toolGetAllClubs,
			Description: "Returns a list of all available clubs. Use this when the user asks to see everything or browse.",
			Parameters: &genai.Schema{
				Type:       "OBJECT",
				Properties: map[string]*genai.Schema{},
			},
		},
		{
			Name:        toolGetClubDetails,
			Description: "Get detailed information about a specific club by its ID.",
			Parameters: &genai.Schema{
				Type: "OBJECT",
				Properties: map[string]*genai.Schema{
					"clubId": {Type: "STRING", Description: "The ID of the club."},
				},
				Required: []string{"clubId"},
			},
		},
	}

	if includeUserPreferences {
		decls = append(decls, genai.FunctionDeclaration{
			Name:        toolGetUserPreferences,
			Description: "Get the user's preference tags based on their quiz results. Use this to personalize recommendations.",
			Parameters: &genai.Schema{
				Type: "OBJECT",
				Properties: map[string]*genai.Schema{
					"userId": {Type: "STRING", Description: "The ID of the user."},
				},
				Required: []string{"userId"},
			},
		})
	}

	return []genai.Tool{{FunctionDeclarations: decls}}
}

// Execute resolves and runs one tool call. userID is injected for functions
// that accept it, and cachedTags short-circuits the preference lookup for
// tag-dependent tools. Failures degrade to an empty result so the
// conversation can proceed without data rather than abort.
func (r *Registry) Execute(ctx context.Context, call genai.FunctionCall, userID string, cachedTags []string) ToolResult {
	switch call.Name {
	case toolSearchClubs:
		query, _ := call.Args["query"].(string)
		return ToolResult{Name: call.Name, Content: r.searchClubs(ctx, query, userID, cachedTags)}
	case toolGetAllClubs:
		return ToolResult{Name: call.Name, Content: r.getAllClubs(ctx)}
	case toolGetClubDetails:
		clubID, _ := call.Args["clubId"].(string)
		return ToolResult{Name: call.Name, Content: r.getClubDetails(ctx, clubID)}
	case toolGetUserPreferences:
		return ToolResult{Name: call.Name, Content: r.getUserPreferences(ctx, userID)}
	default:
		r.logger.Warn().Str("tool", call.Name).Msg("model requested unknown tool")
		return ToolResult{Name: call.Name, Content: nil}
	}
}

// searchClubs performs a text search when a query is present, a tag-overlap
// match when tags are available, and otherwise returns a small unfiltered
// sample. Every returned club is annotated with whether it overlaps the
// user's tags.
func (r *Registry) searchClubs(ctx context.Context, query, userID string, tags []string) []clubSummary {
	userTags := tags
	if len(userTags) == 0 && userID != "" {
		fetched, err := r.profiles.GetPreferenceTags(ctx, userID)
		if err != nil {
			r.logger.Warn().Err(err).Str("user_id", userID).Msg("preference lookup failed, searching without tags")
		} else {
			userTags = fetched
		}
	}

	var (
		clubs []storage.Club
		err   error
	)
	switch {
	case strings.TrimSpace(query) != "":
		clubs, err = r.clubs.SearchText(ctx, query, r.limit)
	case len(userTags) > 0:
		clubs, err = r.clubs.List(ctx)
		if err == nil {
			matched := clubs[:0:0]
			for _, club := range clubs {
				if ranking.ScoreClub(club, nil, userTags).IsMatchForUser {
					matched = append(matched, club)
				}
			}
			clubs = matched
		}
	default:
		clubs, err = r.clubs.List(ctx)
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("tool", toolSearchClubs).Msg("tool execution failed")
		return []clubSummary{}
	}

	if len(clubs) > r.limit {
		clubs = clubs[:r.limit]
	}

	summaries := make([]clubSummary, len(clubs))
	for i, club := range clubs {
		summaries[i] = summarize(club, userTags)
	}
	return summaries
}

func (r *Registry) getAllClubs(ctx context.Context) []clubSummary {
	clubs, err := r.clubs.List(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Str("tool", toolGetAllClubs).Msg("tool execution failed")
		return []clubSummary{}
	}

	summaries := make([]clubSummary, len(clubs))
	for i, club := range clubs {
		summaries[i] = summarize(club, nil)
	}
	return summaries
}

// getClubDetails returns nil, not an error, when the club does not exist.
func (r *Registry) getClubDetails(ctx context.Context, clubID string) interface{} {
	club, err := r.clubs.GetByID(ctx, clubID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("tool", toolGetClubDetails).Msg("tool execution failed")
		return nil
	}
	return summarize(*club, nil)
}

func (r *Registry) getUserPreferences(ctx context.Context, userID string) []string {
	if userID == "" {
		return []string{}
	}
	tags, err := r.profiles.GetPreferenceTags(ctx, userID)
	if err != nil {
		r.logger.Warn().Err(err).Str("tool", toolGetUserPreferences).Msg("tool execution failed")
		return []string{}
	}
	return tags
}

func summarize(club storage.Club, userTags []string) clubSummary {
	return clubSummary{
		ID:             club.ID,
		Name:           club.Name,
		Category:       club.Category,
		Description:    club.Description,
		Tags:           club.Tags,
		NextEvent:      club.NextEvent,
		IsMatchForUser: ranking.ScoreClub(club, nil, userTags).IsMatchForUser,
	}
}
