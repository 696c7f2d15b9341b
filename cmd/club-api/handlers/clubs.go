package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/ranking"
	"github.com/campusclubs/club-engine/internal/storage"
)

// ClubHandler handles club listing, ranking, and creation requests.
type ClubHandler struct {
	logger   *observability.Logger
	clubs    *storage.ClubRepository
	tags     *storage.TagRepository
	profiles *storage.ProfileRepository
}

// NewClubHandler creates a new club handler.
func NewClubHandler(logger *observability.Logger, clubs *storage.ClubRepository, tags *storage.TagRepository, profiles *storage.ProfileRepository) *ClubHandler {
	return &ClubHandler{
		logger:   logger,
		clubs:    clubs,
		tags:     tags,
		profiles: profiles,
	}
}

// ScoredClubDTO is a ranked club as returned by the list endpoint.
type ScoredClubDTO struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Description         string             `json:"description"`
	Category            string             `json:"category"`
	Tags                []string           `json:"tags"`
	ImageURL            string             `json:"imageUrl,omitempty"`
	NextEvent           *storage.NextEvent `json:"nextEvent,omitempty"`
	SelectedTagsScore   int                `json:"selectedTagsScore"`
	UserPreferenceScore int                `json:"userPreferenceScore"`
	IsMatchForUser      bool               `json:"isMatchForUser"`
}

// CreateClubDTO is the club creation request body.
type CreateClubDTO struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	Tags        []string           `json:"tags"`
	ImageURL    string             `json:"imageUrl"`
	NextEvent   *storage.NextEvent `json:"nextEvent"`
}

// List handles GET /clubs. Query parameters: search, category (repeatable),
// tag (repeatable), hidden (repeatable), sort (default|name|category), and
// userId for preference-aware ranking.
func (h *ClubHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	clubs, err := h.clubs.List(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("club listing failed")
		writeError(w, http.StatusInternalServerError, "failed to load clubs", "")
		return
	}

	var preferenceTags []string
	if userID := q.Get("userId"); userID != "" {
		preferenceTags, err = h.profiles.GetPreferenceTags(ctx, userID)
		if err != nil {
			h.logger.Warn().Err(err).Str("user_id", userID).Msg("preference lookup failed, ranking without preferences")
			preferenceTags = nil
		}
	}

	ranked := ranking.Rank(clubs, ranking.Filters{
		Search:        q.Get("search"),
		Categories:    q["category"],
		Tags:          q["tag"],
		HiddenClubIDs: q["hidden"],
		Sort:          ranking.SortMode(q.Get("sort")),
	}, preferenceTags)

	out := make([]ScoredClubDTO, len(ranked))
	for i, sc := range ranked {
		out[i] = toScoredDTO(sc)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"clubs": out})
}

// Get handles GET /clubs/{clubId}.
func (h *ClubHandler) Get(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubId")

	club, err := h.clubs.GetByID(r.Context(), clubID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "club not found", "")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("club_id", clubID).Msg("club lookup failed")
		writeError(w, http.StatusInternalServerError, "failed to load club", "")
		return
	}

	writeJSON(w, http.StatusOK, club)
}

// Create handles POST /clubs.
func (h *ClubHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var dto CreateClubDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if dto.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", "")
		return
	}

	club := &storage.Club{
		Name:        dto.Name,
		Description: dto.Description,
		Category:    dto.Category,
		Tags:        dto.Tags,
		ImageURL:    dto.ImageURL,
		NextEvent:   dto.NextEvent,
	}
	if err := h.clubs.Create(ctx, club); err != nil {
		h.logger.Error().Err(err).Str("name", dto.Name).Msg("club creation failed")
		writeError(w, http.StatusInternalServerError, "failed to create club", "")
		return
	}

	// Keep the tag catalog in sync with club tags. Catalog drift is
	// tolerated; the index derives from clubs as a fallback.
	for _, tag := range club.Tags {
		if err := h.tags.Upsert(ctx, tag); err != nil {
			h.logger.Warn().Err(err).Str("tag", tag).Msg("tag catalog upsert failed")
		}
	}

	writeJSON(w, http.StatusCreated, club)
}

// Tags handles GET /tags: the deduplicated, sorted tag universe.
func (h *ClubHandler) Tags(w http.ResponseWriter, r *http.Request) {
	index := ranking.CatalogIndex(r.Context(), h.logger, h.tags, h.clubs)
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": index})
}

func toScoredDTO(sc ranking.ScoredClub) ScoredClubDTO {
	return ScoredClubDTO{
		ID:                  sc.ID,
		Name:                sc.Name,
		Description:         sc.Description,
		Category:            sc.Category,
		Tags:                sc.Tags,
		ImageURL:            sc.ImageURL,
		NextEvent:           sc.NextEvent,
		SelectedTagsScore:   sc.SelectedTagsScore,
		UserPreferenceScore: sc.UserPreferenceScore,
		IsMatchForUser:      sc.IsMatchForUser,
	}
}
