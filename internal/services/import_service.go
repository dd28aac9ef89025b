package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arlomb/cardbridge/internal/anki"
	"github.com/arlomb/cardbridge/internal/errors"
	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
	"github.com/arlomb/cardbridge/internal/scheduler"
)

// ImportService ingests packaged deck archives into the local store
type ImportService interface {
	ImportArchive(ctx context.Context, fileName string, data []byte, direction models.DirectionFilter) (*models.ImportResult, error)
	ListBatches(ctx context.Context) ([]models.ImportBatch, error)
	RollbackBatch(ctx context.Context, batchID string) error
}

type importService struct {
	decks    repository.DeckRepository
	cards    repository.CardRepository
	mappings repository.MappingRepository
	media    repository.MediaRepository
	source   string
	maxBytes int64
}

// NewImportService creates a new ImportService
func NewImportService(decks repository.DeckRepository, cards repository.CardRepository,
	mappings repository.MappingRepository, media repository.MediaRepository,
	source string, maxBytes int64) ImportService {
	return &importService{
		decks:    decks,
		cards:    cards,
		mappings: mappings,
		media:    media,
		source:   source,
		maxBytes: maxBytes,
	}
}

// importedCard is a card rendered from one note template, carrying the
// note/ordinal pair it will be addressed by across reimports.
type importedCard struct {
	key      models.CardKey
	front    anki.Normalized
	back     anki.Normalized
	rawFront string
	rawBack  string
}

func (s *importService) ImportArchive(ctx context.Context, fileName string, data []byte, direction models.DirectionFilter) (*models.ImportResult, error) {
	log := logger.FromContext(ctx)
	log.Info("importing archive: file=%s, bytes=%d, direction=%s", fileName, len(data), direction)

	if len(data) == 0 {
		return nil, errors.NewValidationError("file", "archive is empty")
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, errors.NewValidationError("file", fmt.Sprintf("archive exceeds %d bytes", s.maxBytes))
	}
	if !direction.Valid() {
		return nil, errors.NewValidationError("direction", "must be one of all, forward, reverse")
	}

	batchID := uuid.NewString()
	if err := s.mappings.CreateBatch(ctx, models.ImportBatch{
		ID:           batchID,
		SourceSystem: s.source,
		FileName:     fileName,
	}); err != nil {
		log.Error("failed to create import batch: %v", err)
		return nil, errors.NewInternalError(err)
	}

	result, err := s.runImport(ctx, batchID, data, direction)
	if err != nil {
		if ferr := s.mappings.FailBatch(ctx, batchID, err.Error()); ferr != nil {
			log.Error("failed to mark batch %s failed: %v", batchID, ferr)
		}
		return nil, err
	}

	if err := s.mappings.CompleteBatch(ctx, batchID, result.CardCount, 1); err != nil {
		log.Error("failed to complete batch %s: %v", batchID, err)
		return nil, errors.NewInternalError(err)
	}
	result.BatchID = batchID

	log.Info("import complete: deck=%s, cards=%d, reimport=%v", result.DeckName, result.CardCount, result.IsReimport)
	return result, nil
}

func (s *importService) runImport(ctx context.Context, batchID string, data []byte, direction models.DirectionFilter) (*models.ImportResult, error) {
	log := logger.FromContext(ctx)

	archive, err := anki.OpenArchive(ctx, data, s.media)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	deckInfo := anki.ExtractDeck(ctx, archive.DB())
	notes, err := anki.ExtractNotes(ctx, archive.DB())
	if err != nil {
		return nil, err
	}
	modelsByID := anki.ExtractModels(ctx, archive.DB())

	cards := s.buildCards(ctx, notes, modelsByID, direction)
	if len(cards) == 0 {
		// Notes parsed fine; they just produced nothing after direction
		// filtering and empty-card suppression.
		return nil, errors.NewValidationError("archive", "notes produced no cards after filtering and empty-card suppression")
	}

	// Resolve the deck first: reimports reuse the existing internal id and
	// therefore the existing deck row. The deck mapping still carries the
	// batch that originally brought it in.
	prior, err := s.mappings.DeckBatch(ctx, s.source, deckInfo.ExternalID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	deckID, err := s.mappings.GetOrCreate(ctx, s.source, deckInfo.ExternalID, models.EntityKindDeck, batchID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if err := s.decks.Upsert(ctx, models.Deck{
		ID:           deckID,
		Name:         deckInfo.Name,
		Description:  deckInfo.Description,
		ImportSource: s.source,
		ExternalID:   deckInfo.ExternalID,
	}); err != nil {
		return nil, errors.NewInternalError(err)
	}

	keys := make([]string, len(cards))
	for i, c := range cards {
		keys[i] = c.key.Encode()
	}
	cardIDs, err := s.mappings.GetOrCreateBatch(ctx, s.source, keys, models.EntityKindCard, batchID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	now := time.Now()
	for _, c := range cards {
		card := scheduler.NewCard(now)
		card.ID = cardIDs[c.key.Encode()]
		card.DeckID = deckID
		card.Front = c.front.Text
		card.Back = c.back.Text
		card.RawFront = c.rawFront
		card.RawBack = c.rawBack
		card.AudioRef = firstRef(c.front.Audio, c.back.Audio)
		card.ImageRef = firstRef(c.front.Images, c.back.Images)
		card.ImportSource = s.source
		card.ExternalID = c.key.Encode()
		if err := s.cards.Upsert(ctx, card); err != nil {
			return nil, errors.NewInternalError(fmt.Errorf("upsert card %s: %w", c.key.Encode(), err))
		}
	}

	if err := s.decks.RefreshStats(ctx, deckID); err != nil {
		log.Warn("failed to refresh deck stats: %v", err)
	}

	result := &models.ImportResult{
		DeckName:   deckInfo.Name,
		CardCount:  len(cards),
		DeckID:     deckID,
		IsReimport: prior != nil,
	}
	if prior != nil {
		result.PreviousBatchID = prior.ID
	}
	return result, nil
}

// buildCards renders every note against its model templates. Notes with a
// missing model fall back to a basic two-field layout, and notes that fail
// rendering are skipped with a warning rather than failing the import.
func (s *importService) buildCards(ctx context.Context, notes []anki.Note, modelsByID map[int64]*anki.Model, direction models.DirectionFilter) []importedCard {
	log := logger.FromContext(ctx)

	var out []importedCard
	for _, note := range notes {
		if len(note.Fields) == 0 {
			log.Warn("skipping note %d: no fields", note.ID)
			continue
		}

		model := modelsByID[note.ModelID]
		var fields map[string]string
		if model == nil {
			model = anki.FallbackModel()
			fields = anki.FallbackFieldMap(note.Fields)
		} else {
			fields = model.FieldMap(note.Fields)
		}

		for _, tmpl := range model.Templates {
			switch direction {
			case models.DirectionForward:
				if tmpl.Ord != 0 {
					continue
				}
			case models.DirectionReverse:
				if tmpl.Ord == 0 {
					continue
				}
			}

			rawFront := anki.RenderTemplate(tmpl.Qfmt, fields)
			answerFields := make(map[string]string, len(fields)+1)
			for k, v := range fields {
				answerFields[k] = v
			}
			answerFields[anki.FrontSideField] = rawFront

			rawBack := anki.RenderTemplate(tmpl.Afmt, answerFields)
			front := anki.Normalize(rawFront)
			back := anki.Normalize(rawBack)
			if front.Empty() && back.Empty() {
				log.Debug("suppressing empty card: note=%d, ord=%d", note.ID, tmpl.Ord)
				continue
			}
			out = append(out, importedCard{
				key:      models.CardKey{NoteID: note.ID, Ordinal: tmpl.Ord},
				front:    front,
				back:     back,
				rawFront: rawFront,
				rawBack:  rawBack,
			})
		}
	}
	return out
}

func (s *importService) ListBatches(ctx context.Context) ([]models.ImportBatch, error) {
	batches, err := s.mappings.ListBatches(ctx)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return batches, nil
}

func (s *importService) RollbackBatch(ctx context.Context, batchID string) error {
	log := logger.FromContext(ctx)
	log.Info("rolling back import batch: id=%s", batchID)

	batch, err := s.mappings.GetBatch(ctx, batchID)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if batch == nil {
		return errors.NewNotFoundError("batch", batchID)
	}
	if batch.Status == models.BatchStatusRolledBack {
		return errors.NewValidationError("batch", "already rolled back")
	}

	if err := s.mappings.RollbackBatch(ctx, batchID); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

func firstRef(refs ...[]string) string {
	for _, r := range refs {
		if len(r) > 0 {
			return r[0]
		}
	}
	return ""
}
