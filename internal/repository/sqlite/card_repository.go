package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

const cardColumns = `id, deck_id, front, back, audio_ref, image_ref, raw_front, raw_back,
due_at, interval_days, ease_factor, repetitions, lapses, status,
import_source, external_id, created_at, updated_at`

type cardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a new CardRepository implementation
func NewCardRepository(db *sql.DB) repository.CardRepository {
	return &cardRepository{db: db}
}

func scanCard(row interface{ Scan(...any) error }) (models.Card, error) {
	var c models.Card
	err := row.Scan(&c.ID, &c.DeckID, &c.Front, &c.Back, &c.AudioRef, &c.ImageRef,
		&c.RawFront, &c.RawBack, &c.DueAt, &c.IntervalDays, &c.EaseFactor,
		&c.Repetitions, &c.Lapses, &c.Status, &c.ImportSource, &c.ExternalID,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *cardRepository) Get(ctx context.Context, id int64) (*models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("getting card: id=%d", id)

	c, err := scanCard(r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("card not found: id=%d", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get card: %v", err)
		return nil, err
	}
	return &c, nil
}

func cardFilterQuery(base squirrel.SelectBuilder, filter models.CardFilter) squirrel.SelectBuilder {
	if filter.DeckID != 0 {
		base = base.Where(squirrel.Eq{"deck_id": filter.DeckID})
	}
	if filter.Status != "" {
		base = base.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.DueBefore != nil {
		base = base.Where(squirrel.LtOrEq{"due_at": *filter.DueBefore})
	}
	return base
}

func (r *cardRepository) List(ctx context.Context, filter models.CardFilter) ([]models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("listing cards: deck_id=%d, status=%s", filter.DeckID, filter.Status)

	query := cardFilterQuery(sqlBuilder.Select(
		"id", "deck_id", "front", "back", "audio_ref", "image_ref", "raw_front", "raw_back",
		"due_at", "interval_days", "ease_factor", "repetitions", "lapses", "status",
		"import_source", "external_id", "created_at", "updated_at",
	).From("cards"), filter).OrderBy("due_at ASC", "id ASC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query = query.Limit(uint64(limit)).Offset(uint64(offset))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		log.Error("failed to list cards: %v", err)
		return nil, err
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			log.Error("failed to scan card row: %v", err)
			return nil, err
		}
		cards = append(cards, c)
	}
	log.Debug("found %d cards", len(cards))
	return cards, rows.Err()
}

func (r *cardRepository) Count(ctx context.Context, filter models.CardFilter) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")

	sqlStr, args, err := cardFilterQuery(sqlBuilder.Select("COUNT(*)").From("cards"), filter).ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		log.Error("failed to count cards: %v", err)
		return 0, err
	}
	return count, nil
}

func (r *cardRepository) ListByDeck(ctx context.Context, deckID int64) ([]models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("listing all cards for deck: deck_id=%d", deckID)

	rows, err := r.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE deck_id = ? ORDER BY id`, deckID)
	if err != nil {
		log.Error("failed to list deck cards: %v", err)
		return nil, err
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			log.Error("failed to scan card row: %v", err)
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (r *cardRepository) Insert(ctx context.Context, c models.Card) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("inserting card: deck_id=%d", c.DeckID)

	res, err := r.db.ExecContext(ctx, `
INSERT INTO cards (deck_id, front, back, audio_ref, image_ref, raw_front, raw_back,
                   due_at, interval_days, ease_factor, repetitions, lapses, status,
                   import_source, external_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, c.DeckID, c.Front, c.Back, c.AudioRef, c.ImageRef, c.RawFront, c.RawBack,
		c.DueAt, c.IntervalDays, c.EaseFactor, c.Repetitions, c.Lapses, c.Status,
		c.ImportSource, c.ExternalID)
	if err != nil {
		log.Error("failed to insert card: %v", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		log.Error("failed to get card id: %v", err)
		return 0, err
	}
	log.Debug("card inserted: id=%d", id)
	return id, nil
}

func (r *cardRepository) Upsert(ctx context.Context, c models.Card) error {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("upserting card: id=%d, deck_id=%d", c.ID, c.DeckID)

	// Re-import refreshes content but never clobbers review progress.
	_, err := r.db.ExecContext(ctx, `
INSERT INTO cards (id, deck_id, front, back, audio_ref, image_ref, raw_front, raw_back,
                   due_at, interval_days, ease_factor, repetitions, lapses, status,
                   import_source, external_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    deck_id = excluded.deck_id,
    front = excluded.front,
    back = excluded.back,
    audio_ref = excluded.audio_ref,
    image_ref = excluded.image_ref,
    raw_front = excluded.raw_front,
    raw_back = excluded.raw_back,
    import_source = excluded.import_source,
    external_id = excluded.external_id,
    updated_at = CURRENT_TIMESTAMP
`, c.ID, c.DeckID, c.Front, c.Back, c.AudioRef, c.ImageRef, c.RawFront, c.RawBack,
		c.DueAt, c.IntervalDays, c.EaseFactor, c.Repetitions, c.Lapses, c.Status,
		c.ImportSource, c.ExternalID)
	if err != nil {
		log.Error("failed to upsert card: %v", err)
	}
	return err
}

func (r *cardRepository) UpdateScheduling(ctx context.Context, c models.Card) error {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("updating card scheduling: id=%d, interval=%d, ease=%.2f", c.ID, c.IntervalDays, c.EaseFactor)

	_, err := r.db.ExecContext(ctx, `
UPDATE cards
SET due_at = ?, interval_days = ?, ease_factor = ?, repetitions = ?, lapses = ?, status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, c.DueAt, c.IntervalDays, c.EaseFactor, c.Repetitions, c.Lapses, c.Status, c.ID)
	if err != nil {
		log.Error("failed to update card scheduling: %v", err)
	}
	return err
}

func (r *cardRepository) Delete(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("deleting card: id=%d", id)

	_, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		log.Error("failed to delete card: %v", err)
	}
	return err
}

func (r *cardRepository) DueCards(ctx context.Context, deckID int64, limit int) ([]models.Card, error) {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("fetching due cards: deck_id=%d, limit=%d", deckID, limit)

	rows, err := r.db.QueryContext(ctx, `
SELECT `+cardColumns+`
FROM cards
WHERE deck_id = ? AND due_at <= CURRENT_TIMESTAMP
ORDER BY due_at ASC
LIMIT ?
`, deckID, limit)
	if err != nil {
		log.Error("failed to query due cards: %v", err)
		return nil, err
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			log.Error("failed to scan card row: %v", err)
			return nil, err
		}
		cards = append(cards, c)
	}
	log.Debug("found %d due cards", len(cards))
	return cards, rows.Err()
}

func (r *cardRepository) InsertReviewHistory(ctx context.Context, review models.ReviewHistory) error {
	log := logger.FromContext(ctx).WithPrefix("card_repo")
	log.Debug("inserting review history: card_id=%d, rating=%d", review.CardID, review.Rating)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO review_history (card_id, rating, interval_days, ease_factor)
VALUES (?, ?, ?, ?)
`, review.CardID, review.Rating, review.IntervalDays, review.EaseFactor)
	if err != nil {
		log.Error("failed to insert review history: %v", err)
	}
	return err
}
