// Package main provides the API router setup.
package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/campusclubs/club-engine/cmd/club-api/handlers"
	"github.com/campusclubs/club-engine/internal/cache"
	"github.com/campusclubs/club-engine/internal/chat"
	"github.com/campusclubs/club-engine/internal/config"
	"github.com/campusclubs/club-engine/internal/genai"
	"github.com/campusclubs/club-engine/internal/observability"
	"github.com/campusclubs/club-engine/internal/quiz"
	"github.com/campusclubs/club-engine/internal/storage"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, db *sql.DB, cacheClient cache.Client) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"club-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	clubRepo := storage.NewClubRepository(db)
	tagRepo := storage.NewTagRepository(db)
	profileRepo := storage.NewProfileRepository(db)
	quizRepo := storage.NewQuizRepository(db)
	followRepo := storage.NewFollowRepository(db)
	eventRepo := storage.NewEventRepository(db)

	resolver := quiz.NewResolver(logger, quizRepo, profileRepo, tagRepo)

	registry := chat.NewRegistry(logger, clubRepo, profileRepo, cfg.Ranking.ToolResultLimit)
	genaiClient := genai.NewClient(genai.ClientConfig{
		BaseURL: cfg.GenAI.BaseURL,
		Model:   cfg.GenAI.Model,
		APIKey:  cfg.GenAI.APIKey,
	})
	orchestrator := chat.NewOrchestrator(logger, genaiClient, registry, chat.Config{
		Timeout:        cfg.Chat.Timeout,
		FallbackAnswer: cfg.Chat.FallbackAnswer,
	})

	clubHandler := handlers.NewClubHandler(logger, clubRepo, tagRepo, profileRepo)
	chatHandler := handlers.NewChatHandler(logger, orchestrator, profileRepo, cacheClient, cfg.Cache.TTL)
	preferenceHandler := handlers.NewPreferenceHandler(logger, resolver, clubRepo, cacheClient)
	quizHandler := handlers.NewQuizHandler(logger, resolver, cacheClient)
	socialHandler := handlers.NewSocialHandler(logger, followRepo, eventRepo)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/clubs", func(r chi.Router) {
			r.Get("/", clubHandler.List)
			r.Post("/", clubHandler.Create)
			r.Get("/{clubId}", clubHandler.Get)
			r.Get("/{clubId}/events", socialHandler.ListEvents)
			r.Post("/{clubId}/events", socialHandler.CreateEvent)
		})

		r.Get("/tags", clubHandler.Tags)

		r.Post("/chat", chatHandler.Converse)

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Get("/preferences", preferenceHandler.Get)
			r.Put("/preferences", preferenceHandler.Update)
			r.Get("/quiz/selections", quizHandler.Selections)
			r.Post("/quiz/submit", quizHandler.Submit)
			r.Get("/follows", socialHandler.ListFollowed)
			r.Put("/follows/{clubId}", socialHandler.Follow)
			r.Delete("/follows/{clubId}", socialHandler.Unfollow)
			r.Get("/signups", socialHandler.ListSignups)
			r.Put("/signups/{eventId}", socialHandler.SignUp)
			r.Delete("/signups/{eventId}", socialHandler.RemoveSignup)
		})

		r.Get("/quiz/questions", quizHandler.Questions)
		r.Get("/interests", preferenceHandler.InterestChoices)
	})

	return r
}
