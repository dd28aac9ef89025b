package api

import (
	"net/http"

	"github.com/arlomb/cardbridge/internal/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.Imports.ListBatches(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"batches": batches})
}

func (s *Server) handleRollbackBatch(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	if _, err := uuid.Parse(raw); err != nil {
		handleError(w, r, errors.NewBadRequestError("invalid batch id: "+raw))
		return
	}

	if err := s.Imports.RollbackBatch(r.Context(), raw); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"status": "rolled_back", "batch_id": raw})
}
