package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/arlomb/cardbridge/internal/anki"
	"github.com/arlomb/cardbridge/internal/db"
	apperrors "github.com/arlomb/cardbridge/internal/errors"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
	"github.com/arlomb/cardbridge/internal/repository/sqlite"
	"github.com/arlomb/cardbridge/internal/scheduler"
	"github.com/arlomb/cardbridge/internal/services"
	"github.com/arlomb/cardbridge/internal/testutil"
	"github.com/arlomb/cardbridge/internal/testutil/mocks"
)

type ExportServiceSuite struct {
	suite.Suite
	db       *db.DB
	decks    repository.DeckRepository
	cards    repository.CardRepository
	mappings repository.MappingRepository
	media    repository.MediaRepository
	imports  services.ImportService
	exports  services.ExportService
}

func (s *ExportServiceSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.decks = sqlite.NewDeckRepository(s.db.DB)
	s.cards = sqlite.NewCardRepository(s.db.DB)
	s.mappings = sqlite.NewMappingRepository(s.db.DB)
	s.media = sqlite.NewMediaRepository(s.db.DB)
	s.imports = services.NewImportService(s.decks, s.cards, s.mappings, s.media, "anki", 64<<20)
	s.exports = services.NewExportService(s.decks, s.cards, s.mappings, s.media, "anki")
}

func (s *ExportServiceSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *ExportServiceSuite) TestExportDeck_NotFound() {
	_, err := s.exports.ExportDeck(context.Background(), 12345)
	s.Require().Error(err)
	s.True(errors.Is(err, apperrors.NewDeckNotFoundError(12345)))
}

func (s *ExportServiceSuite) TestExportDeck_Empty() {
	ctx := context.Background()
	deckID, err := s.decks.Insert(ctx, models.Deck{Name: "Hollow"})
	s.Require().NoError(err)

	_, err = s.exports.ExportDeck(ctx, deckID)
	s.Require().Error(err)
	s.True(errors.Is(err, apperrors.NewEmptyDeckError(deckID)))
}

func (s *ExportServiceSuite) TestExportDeck_LocallyAuthored() {
	ctx := context.Background()

	deckID, err := s.decks.Insert(ctx, models.Deck{Name: "My First Deck!"})
	s.Require().NoError(err)

	card := scheduler.NewCard(time.Now())
	card.DeckID = deckID
	card.Front = "question"
	card.Back = "answer"
	cardID, err := s.cards.Insert(ctx, card)
	s.Require().NoError(err)

	result, err := s.exports.ExportDeck(ctx, deckID)
	s.Require().NoError(err)
	s.Equal(1, result.CardCount)
	s.Equal("My_First_Deck.apkg", result.FileName)
	s.NotEmpty(result.Data)

	// Export minted and persisted an external identity for the card.
	external, err := s.mappings.ExternalID(ctx, "anki", models.EntityKindCard, cardID)
	s.Require().NoError(err)
	s.NotEmpty(external)

	// The produced archive opens and carries the card.
	archive, err := anki.OpenArchive(ctx, result.Data, nil)
	s.Require().NoError(err)
	defer archive.Close()

	notes, err := anki.ExtractNotes(ctx, archive.DB())
	s.Require().NoError(err)
	s.Require().Len(notes, 1)
	s.Equal([]string{"question", "answer"}, notes[0].Fields)

	info := anki.ExtractDeck(ctx, archive.DB())
	s.Equal("My First Deck!", info.Name)
}

func (s *ExportServiceSuite) TestExportImport_RoundTripIsIdempotent() {
	ctx := context.Background()

	imported, err := s.imports.ImportArchive(ctx, "spanish.apkg", buildFixtureArchive(s.T(),
		fixtureModelsJSON, fixtureDecksJSON, []fixtureNote{
			{id: 100, mid: 1700000000001, fields: []string{"hola", "hello"}},
		}, nil), models.DirectionAll)
	s.Require().NoError(err)
	s.Equal(2, imported.CardCount)

	exported, err := s.exports.ExportDeck(ctx, imported.DeckID)
	s.Require().NoError(err)
	s.Equal(2, exported.CardCount)

	// Importing our own export maps back onto the same deck and cards.
	again, err := s.imports.ImportArchive(ctx, exported.FileName, exported.Data, models.DirectionAll)
	s.Require().NoError(err)
	s.True(again.IsReimport)
	s.Equal(imported.DeckID, again.DeckID)

	cards, err := s.cards.ListByDeck(ctx, imported.DeckID)
	s.Require().NoError(err)
	s.Len(cards, 2, "round trip must not duplicate cards")
}

func (s *ExportServiceSuite) TestExportImport_RoundTripIntoFreshStore() {
	ctx := context.Background()

	// A two-template note yields a forward and a reversed card.
	imported, err := s.imports.ImportArchive(ctx, "spanish.apkg", buildFixtureArchive(s.T(),
		fixtureModelsJSON, fixtureDecksJSON, []fixtureNote{
			{id: 100, mid: 1700000000001, fields: []string{"hola", "hello"}},
		}, nil), models.DirectionAll)
	s.Require().NoError(err)
	s.Require().Equal(2, imported.CardCount)

	exported, err := s.exports.ExportDeck(ctx, imported.DeckID)
	s.Require().NoError(err)
	s.Equal(2, exported.CardCount)

	// A store that has never seen the deck must receive every card, the
	// reversed one included.
	other := testutil.NewTestDB(s.T())
	defer testutil.MustClose(s.T(), other)
	imports := services.NewImportService(
		sqlite.NewDeckRepository(other.DB),
		sqlite.NewCardRepository(other.DB),
		sqlite.NewMappingRepository(other.DB),
		sqlite.NewMediaRepository(other.DB),
		"anki", 64<<20)

	again, err := imports.ImportArchive(ctx, exported.FileName, exported.Data, models.DirectionAll)
	s.Require().NoError(err)
	s.False(again.IsReimport)
	s.Equal(2, again.CardCount)

	cards, err := sqlite.NewCardRepository(other.DB).ListByDeck(ctx, again.DeckID)
	s.Require().NoError(err)
	s.Require().Len(cards, 2)
	fronts := map[string]bool{}
	for _, c := range cards {
		fronts[c.Front] = true
	}
	s.True(fronts["hola"])
	s.True(fronts["hello"], "reversed card must survive the round trip")
}

func (s *ExportServiceSuite) TestExportDeck_FailureMarksBatchFailed() {
	ctx := context.Background()

	deckID, err := s.decks.Insert(ctx, models.Deck{Name: "Doomed"})
	s.Require().NoError(err)
	card := scheduler.NewCard(time.Now())
	card.DeckID = deckID
	card.Front = "f"
	card.Back = "b"
	_, err = s.cards.Insert(ctx, card)
	s.Require().NoError(err)

	var batchID string
	mappings := new(mocks.MockMappingRepository)
	mappings.On("CreateBatch", mock.Anything, mock.MatchedBy(func(b models.ImportBatch) bool {
		batchID = b.ID
		return true
	})).Return(nil)
	mappings.On("ExternalID", mock.Anything, "anki", models.EntityKindDeck, deckID).
		Return("", errors.New("mapping table locked"))
	mappings.On("FailBatch", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	exports := services.NewExportService(s.decks, s.cards, mappings, s.media, "anki")
	_, err = exports.ExportDeck(ctx, deckID)
	s.Require().Error(err)

	mappings.AssertCalled(s.T(), "FailBatch", mock.Anything, batchID, mock.Anything)
	mappings.AssertNotCalled(s.T(), "CompleteBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ExportServiceSuite) TestExportDeck_SchedulingSurvivesArchive() {
	ctx := context.Background()

	deckID, err := s.decks.Insert(ctx, models.Deck{Name: "Reviewed"})
	s.Require().NoError(err)

	card := scheduler.NewCard(time.Now())
	card.DeckID = deckID
	card.Front = "f"
	card.Back = "b"
	card.Status = models.CardStatusReview
	card.IntervalDays = 21
	card.EaseFactor = 2.3
	card.Repetitions = 5
	card.DueAt = time.Now().Add(10 * 24 * time.Hour)
	_, err = s.cards.Insert(ctx, card)
	s.Require().NoError(err)

	result, err := s.exports.ExportDeck(ctx, deckID)
	s.Require().NoError(err)

	archive, err := anki.OpenArchive(ctx, result.Data, nil)
	s.Require().NoError(err)
	defer archive.Close()

	var cardType, queue, ivl, factor, reps int
	err = archive.DB().QueryRow(`SELECT type, queue, ivl, factor, reps FROM cards`).
		Scan(&cardType, &queue, &ivl, &factor, &reps)
	s.Require().NoError(err)
	s.Equal(2, cardType)
	s.Equal(2, queue)
	s.Equal(21, ivl)
	s.Equal(2300, factor)
	s.Equal(5, reps)
}

func TestExportServiceSuite(t *testing.T) {
	suite.Run(t, new(ExportServiceSuite))
}
