package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusclubs/club-engine/internal/cache"
	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/quiz"
)

// QuizHandler handles preference-quiz requests.
type QuizHandler struct {
	logger   *observability.Logger
	resolver *quiz.Resolver
	cache    cache.Client
}

// NewQuizHandler creates a new quiz handler.
func NewQuizHandler(logger *observability.Logger, resolver *quiz.Resolver, cacheClient cache.Client) *QuizHandler {
	return &QuizHandler{
		logger:   logger,
		resolver: resolver,
		cache:    cacheClient,
	}
}

// QuizSubmissionDTO is the quiz submission body: selected option IDs keyed
// by question ID.
type QuizSubmissionDTO struct {
	Selections map[string][]string `json:"selections"`
}

// Questions handles GET /quiz/questions.
func (h *QuizHandler) Questions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.resolver.Questions(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("quiz question load failed")
		writeError(w, http.StatusInternalServerError, "failed to load quiz", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

// Selections handles GET /users/{userId}/quiz/selections, used to
// pre-populate the quiz in edit mode.
func (h *QuizHandler) Selections(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	selections, err := h.resolver.ExistingSelections(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("quiz selection load failed")
		writeError(w, http.StatusInternalServerError, "failed to load selections", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"selections": selections})
}

// Submit handles POST /users/{userId}/quiz/submit. Incomplete submissions
// return 422 with the unanswered question IDs so the client can highlight
// them.
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userId")

	var dto QuizSubmissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tags, err := h.resolver.ResolveSubmission(ctx, userID, dto.Selections)
	var vErr *quiz.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      "quiz incomplete",
			"unanswered": vErr.UnansweredQuestionIDs,
		})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("quiz submission failed")
		writeError(w, http.StatusInternalServerError, "failed to submit quiz", "")
		return
	}

	if err := h.cache.Delete(ctx, cache.UserKey(userID, "preference-tags")); err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("preference cache invalidation failed")
	}

	writeJSON(w, http.StatusOK, PreferencesDTO{Tags: tags})
}
