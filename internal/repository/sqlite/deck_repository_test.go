package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/arlomb/cardbridge/internal/db"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
	"github.com/arlomb/cardbridge/internal/repository/sqlite"
	"github.com/arlomb/cardbridge/internal/testutil"
)

type DeckRepositorySuite struct {
	suite.Suite
	db    *db.DB
	repo  repository.DeckRepository
	cards repository.CardRepository
}

func (s *DeckRepositorySuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.repo = sqlite.NewDeckRepository(s.db.DB)
	s.cards = sqlite.NewCardRepository(s.db.DB)
}

func (s *DeckRepositorySuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *DeckRepositorySuite) TestInsertAndGet() {
	ctx := context.Background()

	id, err := s.repo.Insert(ctx, models.Deck{Name: "Spanish", Description: "Vocab"})
	s.Require().NoError(err)
	s.Require().NotZero(id)

	deck, err := s.repo.Get(ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(deck)
	s.Equal("Spanish", deck.Name)
	s.Equal("Vocab", deck.Description)

	missing, err := s.repo.Get(ctx, 99999)
	s.Require().NoError(err)
	s.Nil(missing)
}

func (s *DeckRepositorySuite) TestUpsert_RefreshesMetadata() {
	ctx := context.Background()

	deck := models.Deck{ID: 1693526400000, Name: "Old Name", ImportSource: "anki", ExternalID: "77"}
	s.Require().NoError(s.repo.Upsert(ctx, deck))

	deck.Name = "New Name"
	deck.Description = "now with a description"
	s.Require().NoError(s.repo.Upsert(ctx, deck))

	got, err := s.repo.Get(ctx, deck.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("New Name", got.Name)
	s.Equal("now with a description", got.Description)

	all, err := s.repo.List(ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *DeckRepositorySuite) TestRefreshStats() {
	ctx := context.Background()

	deckID, err := s.repo.Insert(ctx, models.Deck{Name: "Stats"})
	s.Require().NoError(err)

	// Two new cards, one due review card, one future review card.
	for _, c := range []models.Card{
		{Front: "n1", Status: models.CardStatusNew, DueAt: time.Now()},
		{Front: "n2", Status: models.CardStatusNew, DueAt: time.Now()},
		{Front: "due", Status: models.CardStatusReview, DueAt: time.Now().Add(-time.Hour)},
		{Front: "later", Status: models.CardStatusReview, DueAt: time.Now().Add(240 * time.Hour)},
	} {
		c.DeckID = deckID
		c.Back = "x"
		c.EaseFactor = 2.5
		_, err := s.cards.Insert(ctx, c)
		s.Require().NoError(err)
	}

	s.Require().NoError(s.repo.RefreshStats(ctx, deckID))

	deck, err := s.repo.Get(ctx, deckID)
	s.Require().NoError(err)
	s.Equal(4, deck.TotalCards)
	s.Equal(2, deck.NewCards)
	s.Equal(3, deck.DueCards)
}

func TestDeckRepositorySuite(t *testing.T) {
	suite.Run(t, new(DeckRepositorySuite))
}
