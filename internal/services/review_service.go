package services

import (
	"context"
	"time"

	"github.com/arlomb/cardbridge/internal/errors"
	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
	"github.com/arlomb/cardbridge/internal/scheduler"
)

// ReviewService handles the study flow: serving due cards and applying
// review outcomes to a card's schedule
type ReviewService interface {
	DueCards(ctx context.Context, deckID int64, limit int) ([]models.Card, error)
	ReviewCard(ctx context.Context, cardID int64, rating int) (*models.Card, error)
}

type reviewService struct {
	decks    repository.DeckRepository
	cards    repository.CardRepository
	dueLimit int
}

// NewReviewService creates a new ReviewService
func NewReviewService(decks repository.DeckRepository, cards repository.CardRepository, dueLimit int) ReviewService {
	return &reviewService{decks: decks, cards: cards, dueLimit: dueLimit}
}

func (s *reviewService) DueCards(ctx context.Context, deckID int64, limit int) ([]models.Card, error) {
	deck, err := s.decks.Get(ctx, deckID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if deck == nil {
		return nil, errors.NewDeckNotFoundError(deckID)
	}

	if limit <= 0 || limit > s.dueLimit {
		limit = s.dueLimit
	}
	cards, err := s.cards.DueCards(ctx, deckID, limit)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return cards, nil
}

func (s *reviewService) ReviewCard(ctx context.Context, cardID int64, rating int) (*models.Card, error) {
	log := logger.FromContext(ctx)
	log.Debug("reviewing card: card_id=%d, rating=%d", cardID, rating)

	r := scheduler.Rating(rating)
	if !r.Valid() {
		return nil, errors.NewValidationError("rating", "must be between 1 and 4")
	}

	card, err := s.cards.Get(ctx, cardID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if card == nil {
		return nil, errors.NewNotFoundError("card", cardID)
	}

	now := time.Now()
	updated := scheduler.Apply(*card, r, now)
	if err := s.cards.UpdateScheduling(ctx, updated); err != nil {
		log.Error("failed to update card schedule: %v", err)
		return nil, errors.NewInternalError(err)
	}

	history := models.ReviewHistory{
		CardID:       cardID,
		Rating:       rating,
		IntervalDays: updated.IntervalDays,
		EaseFactor:   updated.EaseFactor,
		ReviewedAt:   now,
	}
	if err := s.cards.InsertReviewHistory(ctx, history); err != nil {
		log.Warn("failed to record review history: %v", err)
	}
	if err := s.decks.RefreshStats(ctx, card.DeckID); err != nil {
		log.Warn("failed to refresh deck stats: %v", err)
	}

	return &updated, nil
}
