package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/storage"
)

// SocialHandler handles club follows, events, and event signups.
type SocialHandler struct {
	logger  *observability.Logger
	follows *storage.FollowRepository
	events  *storage.EventRepository
}

// NewSocialHandler creates a new social handler.
func NewSocialHandler(logger *observability.Logger, follows *storage.FollowRepository, events *storage.EventRepository) *SocialHandler {
	return &SocialHandler{
		logger:  logger,
		follows: follows,
		events:  events,
	}
}

// CreateEventDTO is the event creation request body.
type CreateEventDTO struct {
	Title    string    `json:"title"`
	StartsAt time.Time `json:"startsAt"`
	Location string    `json:"location"`
}

// Follow handles PUT /users/{userId}/follows/{clubId}. Idempotent.
func (h *SocialHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	clubID := chi.URLParam(r, "clubId")

	if err := h.follows.Follow(r.Context(), userID, clubID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Str("club_id", clubID).Msg("follow failed")
		writeError(w, http.StatusInternalServerError, "failed to follow club", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unfollow handles DELETE /users/{userId}/follows/{clubId}. Idempotent.
func (h *SocialHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	clubID := chi.URLParam(r, "clubId")

	if err := h.follows.Unfollow(r.Context(), userID, clubID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Str("club_id", clubID).Msg("unfollow failed")
		writeError(w, http.StatusInternalServerError, "failed to unfollow club", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFollowed handles GET /users/{userId}/follows.
func (h *SocialHandler) ListFollowed(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	clubs, err := h.follows.ListFollowed(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("followed club listing failed")
		writeError(w, http.StatusInternalServerError, "failed to load followed clubs", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"clubs": clubs})
}

// CreateEvent handles POST /clubs/{clubId}/events.
func (h *SocialHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubId")

	var dto CreateEventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if dto.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required", "")
		return
	}

	event := &storage.ClubEvent{
		ClubID:   clubID,
		Title:    dto.Title,
		StartsAt: dto.StartsAt,
		Location: dto.Location,
	}
	if err := h.events.Create(r.Context(), event); err != nil {
		h.logger.Error().Err(err).Str("club_id", clubID).Msg("event creation failed")
		writeError(w, http.StatusInternalServerError, "failed to create event", "")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /clubs/{clubId}/events.
func (h *SocialHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	clubID := chi.URLParam(r, "clubId")

	events, err := h.events.ListByClub(r.Context(), clubID)
	if err != nil {
		h.logger.Error().Err(err).Str("club_id", clubID).Msg("event listing failed")
		writeError(w, http.StatusInternalServerError, "failed to load events", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// SignUp handles PUT /users/{userId}/signups/{eventId}. Idempotent.
func (h *SocialHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	eventID := chi.URLParam(r, "eventId")

	if err := h.events.SignUp(r.Context(), eventID, userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Str("event_id", eventID).Msg("event signup failed")
		writeError(w, http.StatusInternalServerError, "failed to sign up", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveSignup handles DELETE /users/{userId}/signups/{eventId}. Idempotent.
func (h *SocialHandler) RemoveSignup(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	eventID := chi.URLParam(r, "eventId")

	if err := h.events.RemoveSignup(r.Context(), eventID, userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Str("event_id", eventID).Msg("signup removal failed")
		writeError(w, http.StatusInternalServerError, "failed to remove signup", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSignups handles GET /users/{userId}/signups.
func (h *SocialHandler) ListSignups(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	eventIDs, err := h.events.ListSignups(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("signup listing failed")
		writeError(w, http.StatusInternalServerError, "failed to load signups", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"eventIds": eventIDs})
}
