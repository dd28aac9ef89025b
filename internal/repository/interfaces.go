package repository

import (
	"context"

	"github.com/arlomb/cardbridge/internal/models"
)

// DeckRepository handles deck data access
type DeckRepository interface {
	Get(ctx context.Context, id int64) (*models.Deck, error)
	List(ctx context.Context) ([]models.Deck, error)
	Insert(ctx context.Context, deck models.Deck) (int64, error)
	// Upsert writes a deck under an explicit, mapping-minted id. On conflict
	// the name, description and import fields are refreshed.
	Upsert(ctx context.Context, deck models.Deck) error
	Delete(ctx context.Context, id int64) error
	// RefreshStats recomputes the deck's cached total/new/due counters.
	RefreshStats(ctx context.Context, id int64) error
}

// CardRepository handles card data access
type CardRepository interface {
	Get(ctx context.Context, id int64) (*models.Card, error)
	List(ctx context.Context, filter models.CardFilter) ([]models.Card, error)
	Count(ctx context.Context, filter models.CardFilter) (int, error)
	ListByDeck(ctx context.Context, deckID int64) ([]models.Card, error)
	Insert(ctx context.Context, card models.Card) (int64, error)
	// Upsert writes a card under an explicit, mapping-minted id. On conflict
	// only the content columns are refreshed; scheduling state survives.
	Upsert(ctx context.Context, card models.Card) error
	UpdateScheduling(ctx context.Context, card models.Card) error
	Delete(ctx context.Context, id int64) error
	DueCards(ctx context.Context, deckID int64, limit int) ([]models.Card, error)
	InsertReviewHistory(ctx context.Context, review models.ReviewHistory) error
}

// MappingRepository is the identifier mapping service: a durable table
// translating (source system, source id, entity kind) triples to internal
// ids, grouped into batches per import/export operation.
type MappingRepository interface {
	// GetOrCreate returns the internal id for the triple, minting and
	// persisting one when absent. Safe to call repeatedly and concurrently
	// with the same triple; the same internal id comes back every time.
	GetOrCreate(ctx context.Context, source, sourceID string, kind models.EntityKind, batchID string) (int64, error)
	// GetOrCreateBatch is GetOrCreate vectorized over many source ids in
	// one transaction, keyed by source id in the result.
	GetOrCreateBatch(ctx context.Context, source string, sourceIDs []string, kind models.EntityKind, batchID string) (map[string]int64, error)
	// Link registers an existing internal entity under a source id, used
	// when export mints fresh external identifiers.
	Link(ctx context.Context, source, sourceID string, kind models.EntityKind, internalID int64, batchID string) error
	// InternalID is a pure forward lookup; 0 means no mapping exists.
	InternalID(ctx context.Context, source, sourceID string, kind models.EntityKind) (int64, error)
	// ExternalID is a pure reverse lookup; "" means no mapping exists.
	// When several source ids map to the internal id, the most recently
	// written one is returned.
	ExternalID(ctx context.Context, source string, kind models.EntityKind, internalID int64) (string, error)

	CreateBatch(ctx context.Context, batch models.ImportBatch) error
	GetBatch(ctx context.Context, id string) (*models.ImportBatch, error)
	ListBatches(ctx context.Context) ([]models.ImportBatch, error)
	CompleteBatch(ctx context.Context, id string, cardCount, deckCount int) error
	FailBatch(ctx context.Context, id string, reason string) error
	// RollbackBatch deletes every card and deck whose mapping belongs to
	// the batch, deletes those mappings, and marks the batch rolled back,
	// all inside one transaction.
	RollbackBatch(ctx context.Context, id string) error
	// DeckBatch finds the batch that previously imported the given source
	// deck, or nil when this deck has never been imported.
	DeckBatch(ctx context.Context, source, sourceDeckID string) (*models.ImportBatch, error)
}

// MediaRepository stores media blobs content-addressed by name.
type MediaRepository interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
	Get(ctx context.Context, name string) (*models.Media, error)
}
