// Package quiz resolves preference-quiz submissions into persisted user
// preference tags.
package quiz

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/storage"
)

// ValidationError reports an incomplete submission. It is non-fatal; the
// caller shows it to the user and allows resubmission.
type ValidationError struct {
	UnansweredQuestionIDs []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("quiz incomplete: %d question(s) unanswered", len(e.UnansweredQuestionIDs))
}

// QuizStore is the data access the resolver needs for questions and responses.
type QuizStore interface {
	ListQuestions(ctx context.Context) ([]storage.QuizQuestion, error)
	ListResponses(ctx context.Context, userID string) ([]storage.QuizResponse, error)
	ReplaceResponses(ctx context.Context, userID string, responses []storage.QuizResponse) error
}

// ProfileStore is the data access the resolver needs for profiles.
type ProfileStore interface {
	GetPreferenceTags(ctx context.Context, userID string) ([]string, error)
	UpdatePreferenceTags(ctx context.Context, userID string, tags []string) error
	MarkQuizTaken(ctx context.Context, userID string) error
}

// TagSource lists the known interests offered in edit mode.
type TagSource interface {
	ListCatalog(ctx context.Context) ([]string, error)
}

// Resolver maps quiz selections to preference tags and persists them.
type Resolver struct {
	logger   *observability.Logger
	quizzes  QuizStore
	profiles ProfileStore
	tags     TagSource
}

// NewResolver creates a quiz resolver.
func NewResolver(logger *observability.Logger, quizzes QuizStore, profiles ProfileStore, tags TagSource) *Resolver {
	return &Resolver{
		logger:   logger,
		quizzes:  quizzes,
		profiles: profiles,
		tags:     tags,
	}
}

// Questions loads all quiz questions with their options. Failures are
// returned to the caller as-is; retry is the caller's decision.
func (r *Resolver) Questions(ctx context.Context) ([]storage.QuizQuestion, error) {
	questions, err := r.quizzes.ListQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quiz questions: %w", err)
	}
	return questions, nil
}

// ExistingSelections returns the user's prior selections keyed by question,
// used to pre-populate the quiz in edit mode.
func (r *Resolver) ExistingSelections(ctx context.Context, userID string) (map[string][]string, error) {
	responses, err := r.quizzes.ListResponses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load quiz responses: %w", err)
	}

	selections := make(map[string][]string)
	for _, resp := range responses {
		selections[resp.QuestionID] = append(selections[resp.QuestionID], resp.OptionID)
	}
	return selections, nil
}

// ResolveSubmission validates a full-quiz submission, unions the tags of
// every selected option, and persists the result as the user's preference
// tags. The raw selections are recorded for analytics and the profile is
// marked as having completed onboarding. Returns the persisted tag set.
func (r *Resolver) ResolveSubmission(ctx context.Context, userID string, selections map[string][]string) ([]string, error) {
	questions, err := r.Questions(ctx)
	if err != nil {
		return nil, err
	}

	var unanswered []string
	for _, q := range questions {
		if len(selections[q.ID]) == 0 {
			unanswered = append(unanswered, q.ID)
		}
	}
	if len(unanswered) > 0 {
		return nil, &ValidationError{UnansweredQuestionIDs: unanswered}
	}

	optionTags := make(map[string][]string)
	for _, q := range questions {
		for _, opt := range q.Options {
			optionTags[opt.ID] = opt.Tags
		}
	}

	var (
		tags      []string
		responses []storage.QuizResponse
	)
	for _, q := range questions {
		for _, optionID := range selections[q.ID] {
			opTags, ok := optionTags[optionID]
			if !ok {
				continue // stale option id, ignore
			}
			tags = append(tags, opTags...)
			responses = append(responses, storage.QuizResponse{
				UserID:     userID,
				QuestionID: q.ID,
				OptionID:   optionID,
			})
		}
	}

	deduped := dedupeTags(tags)

	if err := r.profiles.UpdatePreferenceTags(ctx, userID, deduped); err != nil {
		return nil, fmt.Errorf("persist preference tags: %w", err)
	}
	if err := r.quizzes.ReplaceResponses(ctx, userID, responses); err != nil {
		return nil, fmt.Errorf("record quiz responses: %w", err)
	}
	if err := r.profiles.MarkQuizTaken(ctx, userID); err != nil {
		return nil, fmt.Errorf("mark quiz taken: %w", err)
	}

	r.logger.Info().
		Str("user_id", userID).
		Int("tags", len(deduped)).
		Msg("quiz submission resolved")

	return deduped, nil
}

// SavePreferences replaces the user's preference tags wholesale. Used by the
// edit flow; an empty selection is allowed.
func (r *Resolver) SavePreferences(ctx context.Context, userID string, tags []string) error {
	if err := r.profiles.UpdatePreferenceTags(ctx, userID, dedupeTags(tags)); err != nil {
		return fmt.Errorf("persist preference tags: %w", err)
	}
	return nil
}

// Preferences returns the user's current preference tags.
func (r *Resolver) Preferences(ctx context.Context, userID string) ([]string, error) {
	return r.profiles.GetPreferenceTags(ctx, userID)
}

// InterestChoices returns the flat toggle list offered in edit mode: the
// union of club categories and the tag catalog, deduplicated and sorted.
func (r *Resolver) InterestChoices(ctx context.Context, categories []string) ([]string, error) {
	catalog, err := r.tags.ListCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tag catalog: %w", err)
	}

	choices := dedupeTags(append(append([]string{}, categories...), catalog...))
	sort.Slice(choices, func(i, j int) bool {
		return strings.ToLower(choices[i]) < strings.ToLower(choices[j])
	})
	return choices, nil
}

// dedupeTags removes duplicates case-insensitively, preserving first-seen
// casing and order.
func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		folded := strings.ToLower(tag)
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}
		out = append(out, tag)
	}
	return out
}
