package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityKind is the type of entity an import mapping translates.
type EntityKind string

const (
	EntityKindDeck EntityKind = "deck"
	EntityKindCard EntityKind = "card"
	EntityKindNote EntityKind = "note"
)

// ImportMapping translates a (source system, source id, entity kind) triple
// to an internally generated identifier. At most one mapping exists per triple.
type ImportMapping struct {
	ID           int64      `json:"id"`
	SourceSystem string     `json:"source_system"`
	SourceID     string     `json:"source_id"`
	EntityKind   EntityKind `json:"entity_kind"`
	InternalID   int64      `json:"internal_id"`
	BatchID      string     `json:"batch_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

const (
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusRolledBack BatchStatus = "rolled_back"
)

// ImportBatch groups one import or export operation for atomicity and audit.
type ImportBatch struct {
	ID           string      `json:"id"`
	SourceSystem string      `json:"source_system"`
	FileName     string      `json:"file_name"`
	Status       BatchStatus `json:"status"`
	CardCount    int         `json:"card_count"`
	DeckCount    int         `json:"deck_count"`
	Error        string      `json:"error,omitempty"`
	Metadata     string      `json:"metadata,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// CardKey is the composite source identifier of an imported card: the source
// note id plus the ordinal of the template that produced it. It replaces the
// "<noteID>_<ordinal>" string keys the archive format implies; encoding and
// parsing live here and nowhere else.
type CardKey struct {
	NoteID  int64
	Ordinal int
}

// Encode renders the key as a stable source id string.
func (k CardKey) Encode() string {
	return fmt.Sprintf("%d/%d", k.NoteID, k.Ordinal)
}

// ParseCardKey decodes a source id string produced by Encode.
func ParseCardKey(s string) (CardKey, error) {
	noteStr, ordStr, ok := strings.Cut(s, "/")
	if !ok {
		return CardKey{}, fmt.Errorf("malformed card key %q", s)
	}
	noteID, err := strconv.ParseInt(noteStr, 10, 64)
	if err != nil {
		return CardKey{}, fmt.Errorf("malformed card key %q: %w", s, err)
	}
	ord, err := strconv.Atoi(ordStr)
	if err != nil {
		return CardKey{}, fmt.Errorf("malformed card key %q: %w", s, err)
	}
	return CardKey{NoteID: noteID, Ordinal: ord}, nil
}

// ImportResult is what a successful archive import reports back. On a
// reimport, PreviousBatchID names the batch that first brought the deck in.
type ImportResult struct {
	DeckName        string `json:"deck_name"`
	CardCount       int    `json:"card_count"`
	DeckID          int64  `json:"deck_id"`
	IsReimport      bool   `json:"is_reimport"`
	BatchID         string `json:"batch_id"`
	PreviousBatchID string `json:"previous_batch_id,omitempty"`
}

// ExportResult is what a successful deck export reports back.
type ExportResult struct {
	FileName  string `json:"file_name"`
	Data      []byte `json:"-"`
	CardCount int    `json:"card_count"`
}
