package api

import (
	"database/sql"

	"github.com/arlomb/cardbridge/internal/config"
	"github.com/arlomb/cardbridge/internal/services"
)

type Server struct {
	Config  *config.Config
	DB      *sql.DB
	Imports services.ImportService
	Exports services.ExportService
	Decks   services.DeckService
	Reviews services.ReviewService
}
