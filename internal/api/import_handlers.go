package api

import (
	"io"
	"net/http"

	"github.com/arlomb/cardbridge/internal/errors"
	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/models"
)

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if err := r.ParseMultipartForm(s.Config.MaxArchiveBytes); err != nil {
		handleError(w, r, errors.NewBadRequestError("expected multipart form with a file field"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handleError(w, r, errors.NewBadRequestError("missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.Config.MaxArchiveBytes+1))
	if err != nil {
		log.Error("failed to read upload: %v", err)
		handleError(w, r, errors.NewInternalError(err))
		return
	}

	direction := models.DirectionFilter(r.FormValue("direction"))
	if direction == "" {
		direction = models.DirectionAll
	}

	result, err := s.Imports.ImportArchive(r.Context(), header.Filename, data, direction)
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, result)
}
