package api

import (
	"encoding/json"
	"net/http"

	"github.com/arlomb/cardbridge/internal/errors"
)

func (s *Server) handleDueCards(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	cards, err := s.Reviews.DueCards(r.Context(), id, queryInt(r, "limit", 0))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"cards": cards})
}

func (s *Server) handleReviewCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req struct {
		Rating int `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, r, errors.NewBadRequestError("invalid JSON body"))
		return
	}

	card, err := s.Reviews.ReviewCard(r.Context(), id, req.Rating)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, card)
}
