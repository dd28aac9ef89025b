package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(timeoutMiddleware(time.Duration(s.Config.RequestTimeoutSec) * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Post("/import", s.handleImport)

		r.Get("/decks", s.handleListDecks)
		r.Post("/decks", s.handleCreateDeck)
		r.Get("/decks/{id}", s.handleGetDeck)
		r.Delete("/decks/{id}", s.handleDeleteDeck)
		r.Get("/decks/{id}/export", s.handleExportDeck)
		r.Get("/decks/{id}/cards", s.handleListCards)
		r.Post("/decks/{id}/cards", s.handleCreateCard)
		r.Get("/decks/{id}/due", s.handleDueCards)

		r.Post("/cards/{id}/review", s.handleReviewCard)

		r.Get("/batches", s.handleListBatches)
		r.Post("/batches/{id}/rollback", s.handleRollbackBatch)
	})

	return r
}
