package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/campusclubs/club-engine/internal/cache"
	"github.com/campusclubs/club-engine/internal/chat"
	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/storage"
)

// ChatHandler handles AI chat requests.
type ChatHandler struct {
	logger       *observability.Logger
	orchestrator *chat.Orchestrator
	profiles     *storage.ProfileRepository
	cache        cache.Client
	cacheTTL     time.Duration
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(logger *observability.Logger, orchestrator *chat.Orchestrator, profiles *storage.ProfileRepository, cacheClient cache.Client, cacheTTL time.Duration) *ChatHandler {
	return &ChatHandler{
		logger:       logger,
		orchestrator: orchestrator,
		profiles:     profiles,
		cache:        cacheClient,
		cacheTTL:     cacheTTL,
	}
}

// ChatRequestDTO is the chat request body.
type ChatRequestDTO struct {
	UserID  string           `json:"userId"`
	Message string           `json:"message"`
	History []ChatMessageDTO `json:"history,omitempty"`
}

// ChatMessageDTO is one prior conversation turn, oldest first.
type ChatMessageDTO struct {
	Text   string `json:"text"`
	IsUser bool   `json:"isUser"`
}

// ChatResponseDTO is the chat response body.
type ChatResponseDTO struct {
	Reply string `json:"reply"`
}

// Converse handles POST /chat. The user's preference tags are resolved once
// per session via the cache so the model does not burn a tool round-trip on
// a lookup the server can answer.
func (h *ChatHandler) Converse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var dto ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if dto.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", "")
		return
	}

	history := make([]chat.Message, len(dto.History))
	for i, m := range dto.History {
		history[i] = chat.Message{Text: m.Text, IsUser: m.IsUser}
	}

	cachedTags := h.preferenceTags(ctx, dto.UserID)

	reply, err := h.orchestrator.Converse(ctx, history, dto.Message, dto.UserID, cachedTags)
	if err != nil {
		writeError(w, http.StatusBadRequest, "chat failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ChatResponseDTO{Reply: reply})
}

// preferenceTags returns the user's preference tags, cache-first. Failures
// return nil so the orchestrator falls back to the lookup tool.
func (h *ChatHandler) preferenceTags(ctx context.Context, userID string) []string {
	if userID == "" {
		return nil
	}

	key := cache.UserKey(userID, "preference-tags")
	if raw, err := h.cache.Get(ctx, key); err == nil {
		var tags []string
		if err := json.Unmarshal(raw, &tags); err == nil {
			return tags
		}
	}

	tags, err := h.profiles.GetPreferenceTags(ctx, userID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("preference lookup failed")
		return nil
	}

	if raw, err := json.Marshal(tags); err == nil {
		if err := h.cache.Set(ctx, key, raw, h.cacheTTL); err != nil {
			h.logger.Warn().Err(err).Msg("preference cache write failed")
		}
	}
	return tags
}
