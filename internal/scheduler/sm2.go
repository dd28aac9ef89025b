package scheduler

import (
	"math"
	"time"

	"github.com/arlomb/cardbridge/internal/models"
)

// Rating is a review response grade.
type Rating int

const (
	RatingAgain Rating = 1
	RatingHard  Rating = 2
	RatingGood  Rating = 3
	RatingEasy  Rating = 4
)

// Valid reports whether the rating is within the accepted range.
func (r Rating) Valid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

const (
	minEase = 1.3
	maxEase = 2.5

	defaultEase = 2.5
)

// easeDelta is the per-rating ease adjustment applied on every review.
// The Again path additionally subtracts 0.2 on top of its zero delta.
var easeDelta = map[Rating]float64{
	RatingAgain: 0,
	RatingHard:  -0.15,
	RatingGood:  0,
	RatingEasy:  0.15,
}

// intervalModifier scales the computed review interval per rating.
var intervalModifier = map[Rating]float64{
	RatingHard: 0.8,
	RatingGood: 1.0,
	RatingEasy: 1.3,
}

// Apply computes the card's next scheduling state for the given rating
// using an SM-2 variant. It is deterministic for a fixed now and never
// touches storage; persisting the returned card is the caller's job.
func Apply(card models.Card, rating Rating, now time.Time) models.Card {
	switch {
	case rating == RatingAgain:
		card.Repetitions = 0
		card.IntervalDays = 1
		card.Lapses++
		card.Status = models.CardStatusRelearning
		card.EaseFactor -= 0.2

	case card.Status == models.CardStatusReview:
		switch card.Repetitions {
		case 0:
			card.IntervalDays = 1
		case 1:
			card.IntervalDays = 6
		default:
			grown := float64(card.IntervalDays) * card.EaseFactor * intervalModifier[rating]
			card.IntervalDays = int(math.Round(grown))
		}
		card.Repetitions++

	default:
		// New, learning, or relearning card.
		card.IntervalDays = 1
		if rating >= RatingGood {
			card.Status = models.CardStatusReview
			if rating == RatingEasy {
				card.IntervalDays = 4
			}
			card.Repetitions++
		} else {
			card.Status = models.CardStatusLearning
		}
	}

	card.EaseFactor = clampEase(card.EaseFactor + easeDelta[rating])
	card.DueAt = now.AddDate(0, 0, card.IntervalDays)
	return card
}

// NewCard returns the scheduling defaults for a freshly imported or
// authored card.
func NewCard(now time.Time) models.Card {
	return models.Card{
		Status:       models.CardStatusNew,
		EaseFactor:   defaultEase,
		IntervalDays: 0,
		Repetitions:  0,
		Lapses:       0,
		DueAt:        now,
	}
}

func clampEase(ef float64) float64 {
	if ef < minEase {
		return minEase
	}
	if ef > maxEase {
		return maxEase
	}
	return ef
}
