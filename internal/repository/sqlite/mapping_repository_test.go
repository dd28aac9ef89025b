package sqlite_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/arlomb/cardbridge/internal/db"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
	"github.com/arlomb/cardbridge/internal/repository/sqlite"
	"github.com/arlomb/cardbridge/internal/testutil"
)

type MappingRepositorySuite struct {
	suite.Suite
	db    *db.DB
	repo  repository.MappingRepository
	decks repository.DeckRepository
	cards repository.CardRepository
}

func (s *MappingRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewMappingRepository(s.db.DB)
	s.decks = sqlite.NewDeckRepository(s.db.DB)
	s.cards = sqlite.NewCardRepository(s.db.DB)
}

func (s *MappingRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *MappingRepositorySuite) newBatch(id string) {
	err := s.repo.CreateBatch(context.Background(), models.ImportBatch{
		ID:           id,
		SourceSystem: "anki",
		FileName:     "deck.apkg",
	})
	s.Require().NoError(err)
}

func (s *MappingRepositorySuite) TestGetOrCreate_Idempotent() {
	ctx := context.Background()
	s.newBatch("batch-1")

	first, err := s.repo.GetOrCreate(ctx, "anki", "500/0", models.EntityKindCard, "batch-1")
	s.Require().NoError(err)
	s.Require().NotZero(first)

	again, err := s.repo.GetOrCreate(ctx, "anki", "500/0", models.EntityKindCard, "batch-1")
	s.Require().NoError(err)
	s.Equal(first, again)

	// A different entity kind under the same source id is a distinct mapping.
	other, err := s.repo.GetOrCreate(ctx, "anki", "500/0", models.EntityKindNote, "batch-1")
	s.Require().NoError(err)
	s.NotEqual(first, other)
}

func (s *MappingRepositorySuite) TestGetOrCreate_DistinctIDs() {
	ctx := context.Background()
	s.newBatch("batch-1")

	seen := map[int64]bool{}
	for _, sourceID := range []string{"1/0", "1/1", "2/0", "3/0", "4/0"} {
		id, err := s.repo.GetOrCreate(ctx, "anki", sourceID, models.EntityKindCard, "batch-1")
		s.Require().NoError(err)
		s.False(seen[id], "internal id %d minted twice", id)
		seen[id] = true
	}
}

func (s *MappingRepositorySuite) TestGetOrCreate_Concurrent() {
	ctx := context.Background()
	s.newBatch("batch-1")

	const goroutines = 8
	ids := make([]int64, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.repo.GetOrCreate(ctx, "anki", "900/0", models.EntityKindCard, "batch-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}
}

func (s *MappingRepositorySuite) TestGetOrCreateBatch() {
	ctx := context.Background()
	s.newBatch("batch-1")

	// Seed one mapping so the vectorized call mixes hits and misses.
	existing, err := s.repo.GetOrCreate(ctx, "anki", "10/0", models.EntityKindCard, "batch-1")
	s.Require().NoError(err)

	out, err := s.repo.GetOrCreateBatch(ctx, "anki", []string{"10/0", "11/0", "12/0"}, models.EntityKindCard, "batch-1")
	s.Require().NoError(err)
	s.Len(out, 3)
	s.Equal(existing, out["10/0"])
	s.NotZero(out["11/0"])
	s.NotZero(out["12/0"])
	s.NotEqual(out["11/0"], out["12/0"])
}

func (s *MappingRepositorySuite) TestLinkAndLookups() {
	ctx := context.Background()
	s.newBatch("batch-1")

	err := s.repo.Link(ctx, "anki", "777/0", models.EntityKindCard, 424242, "batch-1")
	s.Require().NoError(err)

	internal, err := s.repo.InternalID(ctx, "anki", "777/0", models.EntityKindCard)
	s.Require().NoError(err)
	s.Equal(int64(424242), internal)

	external, err := s.repo.ExternalID(ctx, "anki", models.EntityKindCard, 424242)
	s.Require().NoError(err)
	s.Equal("777/0", external)

	// Misses come back as zero values, not errors.
	internal, err = s.repo.InternalID(ctx, "anki", "nope", models.EntityKindCard)
	s.Require().NoError(err)
	s.Zero(internal)

	external, err = s.repo.ExternalID(ctx, "anki", models.EntityKindCard, 1)
	s.Require().NoError(err)
	s.Empty(external)
}

func (s *MappingRepositorySuite) TestExternalID_PrefersLatestLink() {
	ctx := context.Background()
	s.newBatch("batch-1")

	// Two source ids pointing at the same card, as export re-keying leaves
	// behind; the reverse lookup must settle on the newest one.
	err := s.repo.Link(ctx, "anki", "100/1", models.EntityKindCard, 424242, "batch-1")
	s.Require().NoError(err)
	err = s.repo.Link(ctx, "anki", "900/0", models.EntityKindCard, 424242, "batch-1")
	s.Require().NoError(err)

	external, err := s.repo.ExternalID(ctx, "anki", models.EntityKindCard, 424242)
	s.Require().NoError(err)
	s.Equal("900/0", external)
}

func (s *MappingRepositorySuite) TestBatchLifecycle() {
	ctx := context.Background()
	s.newBatch("batch-1")

	batch, err := s.repo.GetBatch(ctx, "batch-1")
	s.Require().NoError(err)
	s.Require().NotNil(batch)
	s.Equal(models.BatchStatusInProgress, batch.Status)
	s.Nil(batch.CompletedAt)

	err = s.repo.CompleteBatch(ctx, "batch-1", 12, 1)
	s.Require().NoError(err)

	batch, err = s.repo.GetBatch(ctx, "batch-1")
	s.Require().NoError(err)
	s.Equal(models.BatchStatusCompleted, batch.Status)
	s.Equal(12, batch.CardCount)
	s.Equal(1, batch.DeckCount)
	s.NotNil(batch.CompletedAt)

	missing, err := s.repo.GetBatch(ctx, "no-such-batch")
	s.Require().NoError(err)
	s.Nil(missing)
}

func (s *MappingRepositorySuite) TestFailBatch() {
	ctx := context.Background()
	s.newBatch("batch-1")

	err := s.repo.FailBatch(ctx, "batch-1", "archive database member is corrupt")
	s.Require().NoError(err)

	batch, err := s.repo.GetBatch(ctx, "batch-1")
	s.Require().NoError(err)
	s.Equal(models.BatchStatusFailed, batch.Status)
	s.Equal("archive database member is corrupt", batch.Error)
}

func (s *MappingRepositorySuite) TestRollbackBatch() {
	ctx := context.Background()
	s.newBatch("batch-1")
	s.newBatch("batch-2")

	// Batch 1 owns one deck and one card.
	deckID, err := s.repo.GetOrCreate(ctx, "anki", "deck-ext", models.EntityKindDeck, "batch-1")
	s.Require().NoError(err)
	s.Require().NoError(s.decks.Upsert(ctx, models.Deck{ID: deckID, Name: "Doomed"}))

	cardID, err := s.repo.GetOrCreate(ctx, "anki", "1/0", models.EntityKindCard, "batch-1")
	s.Require().NoError(err)
	card := models.Card{ID: cardID, DeckID: deckID, Front: "f", Back: "b", EaseFactor: 2.5, Status: models.CardStatusNew}
	s.Require().NoError(s.cards.Upsert(ctx, card))

	// Batch 2 owns an unrelated deck that must survive.
	otherDeckID, err := s.repo.GetOrCreate(ctx, "anki", "other-deck", models.EntityKindDeck, "batch-2")
	s.Require().NoError(err)
	s.Require().NoError(s.decks.Upsert(ctx, models.Deck{ID: otherDeckID, Name: "Survivor"}))

	s.Require().NoError(s.repo.RollbackBatch(ctx, "batch-1"))

	deck, err := s.decks.Get(ctx, deckID)
	s.Require().NoError(err)
	s.Nil(deck)

	gone, err := s.cards.Get(ctx, cardID)
	s.Require().NoError(err)
	s.Nil(gone)

	internal, err := s.repo.InternalID(ctx, "anki", "1/0", models.EntityKindCard)
	s.Require().NoError(err)
	s.Zero(internal)

	survivor, err := s.decks.Get(ctx, otherDeckID)
	s.Require().NoError(err)
	s.Require().NotNil(survivor)
	s.Equal("Survivor", survivor.Name)

	batch, err := s.repo.GetBatch(ctx, "batch-1")
	s.Require().NoError(err)
	s.Equal(models.BatchStatusRolledBack, batch.Status)
}

func (s *MappingRepositorySuite) TestRollbackBatch_Unknown() {
	err := s.repo.RollbackBatch(context.Background(), "ghost")
	s.Error(err)
}

func (s *MappingRepositorySuite) TestDeckBatch() {
	ctx := context.Background()
	s.newBatch("batch-1")

	_, err := s.repo.GetOrCreate(ctx, "anki", "deck-ext", models.EntityKindDeck, "batch-1")
	s.Require().NoError(err)

	batch, err := s.repo.DeckBatch(ctx, "anki", "deck-ext")
	s.Require().NoError(err)
	s.Require().NotNil(batch)
	s.Equal("batch-1", batch.ID)

	none, err := s.repo.DeckBatch(ctx, "anki", "never-imported")
	s.Require().NoError(err)
	s.Nil(none)
}

func TestMappingRepositorySuite(t *testing.T) {
	suite.Run(t, new(MappingRepositorySuite))
}
