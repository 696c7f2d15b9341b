package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusclubs/club-engine/internal/cache"
	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/quiz"
	"github.com/campusclubs/club-engine/internal/storage"
)

// PreferenceHandler handles user preference reads and edits.
type PreferenceHandler struct {
	logger   *observability.Logger
	resolver *quiz.Resolver
	clubs    *storage.ClubRepository
	cache    cache.Client
}

// NewPreferenceHandler creates a new preference handler.
func NewPreferenceHandler(logger *observability.Logger, resolver *quiz.Resolver, clubs *storage.ClubRepository, cacheClient cache.Client) *PreferenceHandler {
	return &PreferenceHandler{
		logger:   logger,
		resolver: resolver,
		clubs:    clubs,
		cache:    cacheClient,
	}
}

// PreferencesDTO is the preference read/write body.
type PreferencesDTO struct {
	Tags []string `json:"tags"`
}

// Get handles GET /users/{userId}/preferences.
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	tags, err := h.resolver.Preferences(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("preference read failed")
		writeError(w, http.StatusInternalServerError, "failed to load preferences", "")
		return
	}

	writeJSON(w, http.StatusOK, PreferencesDTO{Tags: tags})
}

// Update handles PUT /users/{userId}/preferences: wholesale replacement of
// the tag set. An empty list is allowed and clears all preferences.
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userId")

	var dto PreferencesDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.resolver.SavePreferences(ctx, userID, dto.Tags); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("preference update failed")
		writeError(w, http.StatusInternalServerError, "failed to save preferences", "")
		return
	}

	// Stale cached tags would feed the chat model outdated preferences.
	if err := h.cache.Delete(ctx, cache.UserKey(userID, "preference-tags")); err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("preference cache invalidation failed")
	}

	tags, err := h.resolver.Preferences(ctx, userID)
	if err != nil {
		tags = dto.Tags
	}
	writeJSON(w, http.StatusOK, PreferencesDTO{Tags: tags})
}

// InterestChoices handles GET /interests: the flat toggle list offered by
// the preference editor, the union of club categories and the tag catalog.
func (h *PreferenceHandler) InterestChoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clubs, err := h.clubs.List(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("club listing failed")
		writeError(w, http.StatusInternalServerError, "failed to load interests", "")
		return
	}

	seen := make(map[string]struct{}, len(clubs))
	categories := make([]string, 0, len(clubs))
	for _, club := range clubs {
		if club.Category == "" {
			continue
		}
		if _, ok := seen[club.Category]; ok {
			continue
		}
		seen[club.Category] = struct{}{}
		categories = append(categories, club.Category)
	}

	choices, err := h.resolver.InterestChoices(ctx, categories)
	if err != nil {
		h.logger.Error().Err(err).Msg("interest choices failed")
		writeError(w, http.StatusInternalServerError, "failed to load interests", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"interests": choices})
}
