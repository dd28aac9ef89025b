package services

import (
	"context"
	"strings"
	"time"

	"github.com/arlomb/cardbridge/internal/errors"
	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
	"github.com/arlomb/cardbridge/internal/scheduler"
)

// DeckService handles deck management and card browsing
type DeckService interface {
	ListDecks(ctx context.Context) ([]models.Deck, error)
	GetDeck(ctx context.Context, id int64) (*models.Deck, error)
	CreateDeck(ctx context.Context, name, description string) (*models.Deck, error)
	DeleteDeck(ctx context.Context, id int64) error
	ListCards(ctx context.Context, filter models.CardFilter) ([]models.Card, int, error)
	CreateCard(ctx context.Context, deckID int64, front, back string) (*models.Card, error)
}

type deckService struct {
	decks repository.DeckRepository
	cards repository.CardRepository
}

// NewDeckService creates a new DeckService
func NewDeckService(decks repository.DeckRepository, cards repository.CardRepository) DeckService {
	return &deckService{decks: decks, cards: cards}
}

func (s *deckService) ListDecks(ctx context.Context) ([]models.Deck, error) {
	decks, err := s.decks.List(ctx)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return decks, nil
}

func (s *deckService) GetDeck(ctx context.Context, id int64) (*models.Deck, error) {
	deck, err := s.decks.Get(ctx, id)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if deck == nil {
		return nil, errors.NewDeckNotFoundError(id)
	}
	return deck, nil
}

func (s *deckService) CreateDeck(ctx context.Context, name, description string) (*models.Deck, error) {
	log := logger.FromContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewValidationError("name", "cannot be empty")
	}

	deck := models.Deck{
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	id, err := s.decks.Insert(ctx, deck)
	if err != nil {
		log.Error("failed to create deck: %v", err)
		return nil, errors.NewInternalError(err)
	}
	deck.ID = id

	log.Info("created deck: id=%d, name=%s", deck.ID, deck.Name)
	return &deck, nil
}

func (s *deckService) DeleteDeck(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx)

	deck, err := s.decks.Get(ctx, id)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if deck == nil {
		return errors.NewDeckNotFoundError(id)
	}

	if err := s.decks.Delete(ctx, id); err != nil {
		log.Error("failed to delete deck %d: %v", id, err)
		return errors.NewInternalError(err)
	}

	log.Info("deleted deck: id=%d, name=%s", id, deck.Name)
	return nil
}

func (s *deckService) ListCards(ctx context.Context, filter models.CardFilter) ([]models.Card, int, error) {
	if filter.DeckID != 0 {
		deck, err := s.decks.Get(ctx, filter.DeckID)
		if err != nil {
			return nil, 0, errors.NewInternalError(err)
		}
		if deck == nil {
			return nil, 0, errors.NewDeckNotFoundError(filter.DeckID)
		}
	}

	cards, err := s.cards.List(ctx, filter)
	if err != nil {
		return nil, 0, errors.NewInternalError(err)
	}
	total, err := s.cards.Count(ctx, filter)
	if err != nil {
		return nil, 0, errors.NewInternalError(err)
	}
	return cards, total, nil
}

func (s *deckService) CreateCard(ctx context.Context, deckID int64, front, back string) (*models.Card, error) {
	log := logger.FromContext(ctx)

	front = strings.TrimSpace(front)
	back = strings.TrimSpace(back)
	if front == "" && back == "" {
		return nil, errors.NewValidationError("front", "card must have content on at least one side")
	}

	deck, err := s.decks.Get(ctx, deckID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if deck == nil {
		return nil, errors.NewDeckNotFoundError(deckID)
	}

	card := scheduler.NewCard(time.Now())
	card.DeckID = deckID
	card.Front = front
	card.Back = back
	card.RawFront = front
	card.RawBack = back

	id, err := s.cards.Insert(ctx, card)
	if err != nil {
		log.Error("failed to create card: %v", err)
		return nil, errors.NewInternalError(err)
	}
	card.ID = id
	if err := s.decks.RefreshStats(ctx, deckID); err != nil {
		log.Warn("failed to refresh deck stats: %v", err)
	}

	return &card, nil
}
