package models

import "time"

// CardStatus is a card's scheduling lifecycle state.
type CardStatus string

const (
	CardStatusNew        CardStatus = "new"
	CardStatusLearning   CardStatus = "learning"
	CardStatusReview     CardStatus = "review"
	CardStatusRelearning CardStatus = "relearning"
)

// Card is one reviewable front/back pair with its scheduling state.
type Card struct {
	ID           int64      `json:"id"`
	DeckID       int64      `json:"deck_id"`
	Front        string     `json:"front"`
	Back         string     `json:"back"`
	AudioRef     string     `json:"audio_ref,omitempty"`
	ImageRef     string     `json:"image_ref,omitempty"`
	RawFront     string     `json:"raw_front,omitempty"`
	RawBack      string     `json:"raw_back,omitempty"`
	DueAt        time.Time  `json:"due_at"`
	IntervalDays int        `json:"interval_days"`
	EaseFactor   float64    `json:"ease_factor"`
	Repetitions  int        `json:"repetitions"`
	Lapses       int        `json:"lapses"`
	Status       CardStatus `json:"status"`
	ImportSource string     `json:"import_source,omitempty"`
	ExternalID   string     `json:"external_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CardFilter narrows card listings.
type CardFilter struct {
	DeckID    int64
	Status    CardStatus
	DueBefore *time.Time
	Limit     int
	Offset    int
}

// ReviewHistory records one graded review of a card.
type ReviewHistory struct {
	ID           int64     `json:"id"`
	CardID       int64     `json:"card_id"`
	Rating       int       `json:"rating"`
	IntervalDays int       `json:"interval_days"`
	EaseFactor   float64   `json:"ease_factor"`
	ReviewedAt   time.Time `json:"reviewed_at"`
}

// DirectionFilter selects which note templates produce cards on import.
type DirectionFilter string

const (
	DirectionAll     DirectionFilter = "all"
	DirectionForward DirectionFilter = "forward"
	DirectionReverse DirectionFilter = "reverse"
)

// Valid reports whether the filter is one of the known values.
func (d DirectionFilter) Valid() bool {
	switch d {
	case DirectionAll, DirectionForward, DirectionReverse:
		return true
	}
	return false
}
