package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arlomb/cardbridge/internal/anki"
	"github.com/arlomb/cardbridge/internal/errors"
	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
)

// ExportService packages a deck back into an interchange archive
type ExportService interface {
	ExportDeck(ctx context.Context, deckID int64) (*models.ExportResult, error)
}

type exportService struct {
	decks    repository.DeckRepository
	cards    repository.CardRepository
	mappings repository.MappingRepository
	media    repository.MediaRepository
	source   string
}

// NewExportService creates a new ExportService
func NewExportService(decks repository.DeckRepository, cards repository.CardRepository,
	mappings repository.MappingRepository, media repository.MediaRepository, source string) ExportService {
	return &exportService{
		decks:    decks,
		cards:    cards,
		mappings: mappings,
		media:    media,
		source:   source,
	}
}

func (s *exportService) ExportDeck(ctx context.Context, deckID int64) (*models.ExportResult, error) {
	log := logger.FromContext(ctx)
	log.Info("exporting deck: id=%d", deckID)

	deck, err := s.decks.Get(ctx, deckID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if deck == nil {
		return nil, errors.NewDeckNotFoundError(deckID)
	}

	cards, err := s.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if len(cards) == 0 {
		return nil, errors.NewEmptyDeckError(deckID)
	}

	fileName := sanitizeFileName(deck.Name) + ".apkg"

	// Identifiers minted during export are recorded against a batch of
	// their own so they audit and roll back like imported ones.
	batchID := uuid.NewString()
	if err := s.mappings.CreateBatch(ctx, models.ImportBatch{
		ID:           batchID,
		SourceSystem: s.source,
		FileName:     fileName,
		Metadata:     `{"operation":"export"}`,
	}); err != nil {
		return nil, errors.NewInternalError(err)
	}

	data, err := s.buildArchive(ctx, deck, cards, batchID)
	if err != nil {
		if ferr := s.mappings.FailBatch(ctx, batchID, err.Error()); ferr != nil {
			log.Error("failed to mark export batch %s failed: %v", batchID, ferr)
		}
		return nil, err
	}

	if err := s.mappings.CompleteBatch(ctx, batchID, len(cards), 1); err != nil {
		log.Warn("failed to complete export batch %s: %v", batchID, err)
	}

	log.Info("export complete: deck=%s, cards=%d, bytes=%d", deck.Name, len(cards), len(data))
	return &models.ExportResult{
		FileName:  fileName,
		Data:      data,
		CardCount: len(cards),
	}, nil
}

func (s *exportService) buildArchive(ctx context.Context, deck *models.Deck, cards []models.Card, batchID string) ([]byte, error) {
	deckExternal, err := s.resolveDeckExternalID(ctx, deck, batchID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	mint := &noteIDMint{}
	exportCards := make([]anki.ExportCard, 0, len(cards))
	for _, card := range cards {
		key, err := s.resolveCardKey(ctx, card, batchID, mint)
		if err != nil {
			return nil, errors.NewInternalError(fmt.Errorf("card %d: %w", card.ID, err))
		}
		exportCards = append(exportCards, anki.ExportCard{
			NoteID:       key.NoteID,
			CardID:       card.ID,
			Ordinal:      key.Ordinal,
			Front:        card.Front,
			Back:         card.Back,
			AudioRef:     card.AudioRef,
			ImageRef:     card.ImageRef,
			Status:       card.Status,
			IntervalDays: card.IntervalDays,
			EaseFactor:   card.EaseFactor,
			Repetitions:  card.Repetitions,
			Lapses:       card.Lapses,
			DueAt:        card.DueAt,
		})
	}

	data, err := anki.BuildArchive(ctx, anki.ExportDeck{
		Name:        deck.Name,
		Description: deck.Description,
		ExternalID:  deckExternal,
	}, exportCards, s.media)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return data, nil
}

// resolveDeckExternalID reuses the deck's original external identifier when
// the deck was imported, and mints and records one otherwise so that
// re-importing the exported archive maps back onto this same deck.
func (s *exportService) resolveDeckExternalID(ctx context.Context, deck *models.Deck, batchID string) (int64, error) {
	external, err := s.mappings.ExternalID(ctx, s.source, models.EntityKindDeck, deck.ID)
	if err != nil {
		return 0, err
	}
	if external == "" && deck.ExternalID != "" {
		external = deck.ExternalID
	}
	if external != "" {
		if id, err := strconv.ParseInt(external, 10, 64); err == nil {
			return id, nil
		}
	}

	minted := time.Now().UnixMilli()
	if err := s.mappings.Link(ctx, s.source, strconv.FormatInt(minted, 10), models.EntityKindDeck, deck.ID, batchID); err != nil {
		return 0, err
	}
	return minted, nil
}

// noteIDMint hands out distinct note identifiers within one export,
// starting from the current epoch millisecond.
type noteIDMint struct {
	last int64
}

func (m *noteIDMint) next() int64 {
	id := time.Now().UnixMilli()
	if id <= m.last {
		id = m.last + 1
	}
	m.last = id
	return id
}

func (s *exportService) resolveCardKey(ctx context.Context, card models.Card, batchID string, mint *noteIDMint) (models.CardKey, error) {
	external, err := s.mappings.ExternalID(ctx, s.source, models.EntityKindCard, card.ID)
	if err != nil {
		return models.CardKey{}, err
	}
	if external == "" {
		external = card.ExternalID
	}
	if external != "" {
		if key, err := models.ParseCardKey(external); err == nil {
			if key.Ordinal == 0 {
				return key, nil
			}
			// The archive carries a single-template note type, so a card a
			// secondary template produced gets a note of its own. The new
			// key is linked to the same internal card; re-importing the
			// archive into this store updates it instead of duplicating it.
			reKey := models.CardKey{NoteID: mint.next(), Ordinal: 0}
			if err := s.mappings.Link(ctx, s.source, reKey.Encode(), models.EntityKindCard, card.ID, batchID); err != nil {
				return models.CardKey{}, err
			}
			return reKey, nil
		}
	}

	// Locally authored card with no interchange identity yet: give it a
	// single-template note keyed by the card's own id and persist the
	// mapping for round-trip stability.
	key := models.CardKey{NoteID: card.ID, Ordinal: 0}
	if err := s.mappings.Link(ctx, s.source, key.Encode(), models.EntityKindCard, card.ID, batchID); err != nil {
		return models.CardKey{}, err
	}
	return key, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeFileName(name string) string {
	cleaned := unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "_")
	cleaned = strings.Trim(cleaned, "._")
	if cleaned == "" {
		return "deck"
	}
	return cleaned
}
