package models

import "time"

// Deck is a named collection of cards with cached counters.
type Deck struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	TotalCards   int       `json:"total_cards"`
	NewCards     int       `json:"new_cards"`
	DueCards     int       `json:"due_cards"`
	ImportSource string    `json:"import_source,omitempty"`
	ExternalID   string    `json:"external_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
