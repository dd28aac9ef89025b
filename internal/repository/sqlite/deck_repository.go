package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
)

const deckColumns = `id, name, description, total_cards, new_cards, due_cards,
import_source, external_id, created_at, updated_at`

type deckRepository struct {
	db *sql.DB
}

// NewDeckRepository creates a new DeckRepository implementation
func NewDeckRepository(db *sql.DB) repository.DeckRepository {
	return &deckRepository{db: db}
}

func scanDeck(row interface{ Scan(...any) error }) (models.Deck, error) {
	var d models.Deck
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.TotalCards, &d.NewCards, &d.DueCards,
		&d.ImportSource, &d.ExternalID, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *deckRepository) Get(ctx context.Context, id int64) (*models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("getting deck: id=%d", id)

	d, err := scanDeck(r.db.QueryRowContext(ctx, `SELECT `+deckColumns+` FROM decks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("deck not found: id=%d", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get deck: %v", err)
		return nil, err
	}
	return &d, nil
}

func (r *deckRepository) List(ctx context.Context) ([]models.Deck, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("listing decks")

	rows, err := r.db.QueryContext(ctx, `SELECT `+deckColumns+` FROM decks ORDER BY name`)
	if err != nil {
		log.Error("failed to list decks: %v", err)
		return nil, err
	}
	defer rows.Close()

	var decks []models.Deck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			log.Error("failed to scan deck row: %v", err)
			return nil, err
		}
		decks = append(decks, d)
	}
	log.Debug("found %d decks", len(decks))
	return decks, rows.Err()
}

func (r *deckRepository) Insert(ctx context.Context, d models.Deck) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("inserting deck: name=%s", d.Name)

	res, err := r.db.ExecContext(ctx, `
INSERT INTO decks (name, description, import_source, external_id)
VALUES (?, ?, ?, ?)
`, d.Name, d.Description, d.ImportSource, d.ExternalID)
	if err != nil {
		log.Error("failed to insert deck: %v", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		log.Error("failed to get deck id: %v", err)
		return 0, err
	}
	log.Debug("deck inserted: id=%d", id)
	return id, nil
}

func (r *deckRepository) Upsert(ctx context.Context, d models.Deck) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("upserting deck: id=%d, name=%s", d.ID, d.Name)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO decks (id, name, description, import_source, external_id)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    import_source = excluded.import_source,
    external_id = excluded.external_id,
    updated_at = CURRENT_TIMESTAMP
`, d.ID, d.Name, d.Description, d.ImportSource, d.ExternalID)
	if err != nil {
		log.Error("failed to upsert deck: %v", err)
	}
	return err
}

func (r *deckRepository) Delete(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("deleting deck: id=%d", id)

	// Cards cascade via the deck_id foreign key.
	_, err := r.db.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		log.Error("failed to delete deck: %v", err)
	}
	return err
}

func (r *deckRepository) RefreshStats(ctx context.Context, id int64) error {
	log := logger.FromContext(ctx).WithPrefix("deck_repo")
	log.Debug("refreshing deck stats: id=%d", id)

	_, err := r.db.ExecContext(ctx, `
UPDATE decks
SET total_cards = (SELECT COUNT(*) FROM cards WHERE deck_id = decks.id),
    new_cards = (SELECT COUNT(*) FROM cards WHERE deck_id = decks.id AND status = 'new'),
    due_cards = (SELECT COUNT(*) FROM cards WHERE deck_id = decks.id AND due_at <= CURRENT_TIMESTAMP),
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, id)
	if err != nil {
		log.Error("failed to refresh deck stats: %v", err)
	}
	return err
}
