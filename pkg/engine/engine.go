// Package engine is the embeddable facade over the club discovery core:
// ranking, tag index, quiz resolution, and AI chat. Hosts that do not want
// the HTTP server wire this package directly.
package engine

import (
	"context"
	"database/sql"

	"github.com/campusclubs/club-engine/internal/chat"
	"github.com/campusclubs/club-engine/internal/config"
	"github.com/campusclubs/club-engine/internal/genai"
	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/quiz"
	"github.com/campusclubs/club-engine/internal/ranking"
	"github.com/campusclubs/club-engine/internal/storage"
)

// Re-exported types so embedders do not import internal packages.
type (
	// Club is a stored club record.
	Club = storage.Club
	// ScoredClub is a club with its relevance scores for one ranking pass.
	ScoredClub = ranking.ScoredClub
	// Filters holds the ranking filter inputs.
	Filters = ranking.Filters
	// SortMode selects the ranking order.
	SortMode = ranking.SortMode
	// Message is one prior chat turn.
	Message = chat.Message
	// QuizQuestion is a quiz question with its options.
	QuizQuestion = storage.QuizQuestion
)

// Sort modes accepted by Filters.Sort.
const (
	SortDefault      = ranking.SortDefault
	SortAlphabetical = ranking.SortAlphabetical
	SortCategory     = ranking.SortCategory
)

// Engine bundles the core services over a shared database handle.
type Engine struct {
	logger *observability.Logger
	cfg    *config.Config

	clubs    *storage.ClubRepository
	tags     *storage.TagRepository
	profiles *storage.ProfileRepository
	quizzes  *storage.QuizRepository

	quiz         *QuizResolver
	orchestrator *chat.Orchestrator
}

// QuizResolver re-exports the quiz resolution service.
type QuizResolver = quiz.Resolver

// New creates an Engine over an already-open, already-migrated database.
// The GenAI client is optional; Converse returns the connectivity message
// when it is absent.
func New(logger *observability.Logger, cfg *config.Config, db *sql.DB) *Engine {
	clubs := storage.NewClubRepository(db)
	tags := storage.NewTagRepository(db)
	profiles := storage.NewProfileRepository(db)
	quizzes := storage.NewQuizRepository(db)

	registry := chat.NewRegistry(logger, clubs, profiles, cfg.Ranking.ToolResultLimit)
	client := genai.NewClient(genai.ClientConfig{
		BaseURL: cfg.GenAI.BaseURL,
		Model:   cfg.GenAI.Model,
		APIKey:  cfg.GenAI.APIKey,
	})
	orchestrator := chat.NewOrchestrator(logger, client, registry, chat.Config{
		Timeout:        cfg.Chat.Timeout,
		FallbackAnswer: cfg.Chat.FallbackAnswer,
	})

	return &Engine{
		logger:       logger,
		cfg:          cfg,
		clubs:        clubs,
		tags:         tags,
		profiles:     profiles,
		quizzes:      quizzes,
		quiz:         quiz.NewResolver(logger, quizzes, profiles, tags),
		orchestrator: orchestrator,
	}
}

// RankClubs loads all clubs and returns them filtered, scored, and ordered
// for the given user. An empty userID ranks without preference scores.
func (e *Engine) RankClubs(ctx context.Context, userID string, filters Filters) ([]ScoredClub, error) {
	clubs, err := e.clubs.List(ctx)
	if err != nil {
		return nil, err
	}

	var preferenceTags []string
	if userID != "" {
		preferenceTags, err = e.profiles.GetPreferenceTags(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	return ranking.Rank(clubs, filters, preferenceTags), nil
}

// TagIndex returns the deduplicated, sorted universe of tags.
func (e *Engine) TagIndex(ctx context.Context) []string {
	return ranking.CatalogIndex(ctx, e.logger, e.tags, e.clubs)
}

// Quiz exposes the preference-quiz resolver.
func (e *Engine) Quiz() *QuizResolver {
	return e.quiz
}

// Converse answers one chat message. cachedTags short-circuits the
// preference lookup when the host already holds the user's tags.
func (e *Engine) Converse(ctx context.Context, history []Message, userMessage, userID string, cachedTags []string) (string, error) {
	return e.orchestrator.Converse(ctx, history, userMessage, userID, cachedTags)
}

// Clubs exposes the club repository for hosts that manage their own data.
func (e *Engine) Clubs() *storage.ClubRepository {
	return e.clubs
}

// Profiles exposes the profile repository.
func (e *Engine) Profiles() *storage.ProfileRepository {
	return e.profiles
}
