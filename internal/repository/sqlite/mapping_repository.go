package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
)

const batchColumns = `id, source_system, file_name, status, card_count, deck_count, error, metadata, created_at, completed_at`

type mappingRepository struct {
	db *sql.DB

	// Internal id minting: epoch milliseconds, bumped on collision so two
	// mints in the same millisecond stay distinct.
	mu     sync.Mutex
	lastID int64
}

// NewMappingRepository creates a new MappingRepository implementation
func NewMappingRepository(db *sql.DB) repository.MappingRepository {
	return &mappingRepository{db: db}
}

func (r *mappingRepository) nextID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := time.Now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return id
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

// getOrCreateTx is the single atomic lookup-then-insert unit. A lost race
// against a concurrent insert surfaces as a unique violation and falls
// back to fetching the winner's row.
func (r *mappingRepository) getOrCreateTx(ctx context.Context, q *sql.Tx, source, sourceID string, kind models.EntityKind, batchID string) (int64, error) {
	var internal int64
	err := q.QueryRowContext(ctx, `
SELECT internal_id FROM import_mappings
WHERE source_system = ? AND source_id = ? AND entity_kind = ?
`, source, sourceID, kind).Scan(&internal)
	if err == nil {
		_, err = q.ExecContext(ctx, `
UPDATE import_mappings SET updated_at = CURRENT_TIMESTAMP
WHERE source_system = ? AND source_id = ? AND entity_kind = ?
`, source, sourceID, kind)
		return internal, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	internal = r.nextID()
	_, err = q.ExecContext(ctx, `
INSERT INTO import_mappings (source_system, source_id, entity_kind, internal_id, batch_id)
VALUES (?, ?, ?, ?, ?)
`, source, sourceID, kind, internal, batchID)
	if isUniqueViolation(err) {
		err = q.QueryRowContext(ctx, `
SELECT internal_id FROM import_mappings
WHERE source_system = ? AND source_id = ? AND entity_kind = ?
`, source, sourceID, kind).Scan(&internal)
	}
	if err != nil {
		return 0, err
	}
	return internal, nil
}

func (r *mappingRepository) GetOrCreate(ctx context.Context, source, sourceID string, kind models.EntityKind, batchID string) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("mapping_repo")
	log.Debug("get-or-create mapping: source=%s, source_id=%s, kind=%s", source, sourceID, kind)

	var internal int64
	err := tx(ctx, r.db, func(t *sql.Tx) error {
		var err error
		internal, err = r.getOrCreateTx(ctx, t, source, sourceID, kind, batchID)
		return err
	})
	if err != nil {
		log.Error("get-or-create mapping failed: %v", err)
		return 0, err
	}
	return internal, nil
}

func (r *mappingRepository) GetOrCreateBatch(ctx context.Context, source string, sourceIDs []string, kind models.EntityKind, batchID string) (map[string]int64, error) {
	log := logger.FromContext(ctx).WithPrefix("mapping_repo")
	log.Debug("get-or-create %d mappings: source=%s, kind=%s", len(sourceIDs), source, kind)

	out := make(map[string]int64, len(sourceIDs))
	err := tx(ctx, r.db, func(t *sql.Tx) error {
		for _, sourceID := range sourceIDs {
			internal, err := r.getOrCreateTx(ctx, t, source, sourceID, kind, batchID)
			if err != nil {
				return fmt.Errorf("mapping %s: %w", sourceID, err)
			}
			out[sourceID] = internal
		}
		return nil
	})
	if err != nil {
		log.Error("vectorized get-or-create failed: %v", err)
		return nil, err
	}
	return out, nil
}

func (r *mappingRepository) Link(ctx context.Context, source, sourceID string, kind models.EntityKind, internalID int64, batchID string) error {
	log := logger.FromContext(ctx).WithPrefix("mapping_repo")
	log.Debug("linking mapping: source_id=%s, kind=%s, internal_id=%d", sourceID, kind, internalID)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO import_mappings (source_system, source_id, entity_kind, internal_id, batch_id)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(source_system, source_id, entity_kind) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
`, source, sourceID, kind, internalID, batchID)
	if err != nil {
		log.Error("failed to link mapping: %v", err)
	}
	return err
}

func (r *mappingRepository) InternalID(ctx context.Context, source, sourceID string, kind models.EntityKind) (int64, error) {
	var internal int64
	err := r.db.QueryRowContext(ctx, `
SELECT internal_id FROM import_mappings
WHERE source_system = ? AND source_id = ? AND entity_kind = ?
`, source, sourceID, kind).Scan(&internal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return internal, err
}

func (r *mappingRepository) ExternalID(ctx context.Context, source string, kind models.EntityKind, internalID int64) (string, error) {
	// Several source ids may point at the same internal entity once export
	// has re-keyed a card; the most recently written mapping wins.
	var sourceID string
	err := r.db.QueryRowContext(ctx, `
SELECT source_id FROM import_mappings
WHERE source_system = ? AND entity_kind = ? AND internal_id = ?
ORDER BY updated_at DESC, id DESC
LIMIT 1
`, source, kind, internalID).Scan(&sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return sourceID, err
}

func (r *mappingRepository) CreateBatch(ctx context.Context, batch models.ImportBatch) error {
	log := logger.FromContext(ctx).WithPrefix("mapping_repo")
	log.Debug("creating import batch: id=%s, source=%s, file=%s", batch.ID, batch.SourceSystem, batch.FileName)

	status := batch.Status
	if status == "" {
		status = models.BatchStatusInProgress
	}
	metadata := batch.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO import_batches (id, source_system, file_name, status, metadata)
VALUES (?, ?, ?, ?, ?)
`, batch.ID, batch.SourceSystem, batch.FileName, status, metadata)
	if err != nil {
		log.Error("failed to create import batch: %v", err)
	}
	return err
}

func scanBatch(row interface{ Scan(...any) error }) (models.ImportBatch, error) {
	var b models.ImportBatch
	var completed sql.NullTime
	err := row.Scan(&b.ID, &b.SourceSystem, &b.FileName, &b.Status, &b.CardCount,
		&b.DeckCount, &b.Error, &b.Metadata, &b.CreatedAt, &completed)
	if completed.Valid {
		b.CompletedAt = &completed.Time
	}
	return b, err
}

func (r *mappingRepository) GetBatch(ctx context.Context, id string) (*models.ImportBatch, error) {
	log := logger.FromContext(ctx).WithPrefix("mapping_repo")

	b, err := scanBatch(r.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM import_batches WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("batch not found: id=%s", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get batch: %v", err)
		return nil, err
	}
	return &b, nil
}

func (r *mappingRepository) ListBatches(ctx context.Context) ([]models.ImportBatch, error) {
	log := logger.FromContext(ctx).WithPrefix("mapping_repo")

	rows, err := r.db.QueryContext(ctx, `SELECT `+batchColumns+` FROM import_batches ORDER BY created_at DESC`)
	if err != nil {
		log.Error("failed to list batches: %v", err)
		return nil, err
	}
	defer rows.Close()

	var batches []models.ImportBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			log.Error("failed to scan batch row: %v", err)
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (r *mappingRepository) CompleteBatch(ctx context.Context, id string, cardCount, deckCount int) error {
	log := logger.FromContext(ctx).WithPrefix("mapping_repo")
	log.Debug("completing batch: id=%s, cards=%d, decks=%d", id, cardCount, deckCount)

	_, err := r.db.ExecContext(ctx, `
UPDATE import_batches
SET status = ?, card_count = ?, deck_count = ?, completed_at = CURRENT_TIMESTAMP
WHERE id = ?
`, models.BatchStatusCompleted, cardCount, deckCount, id)
	if err != nil {
		log.Error("failed to complete batch: %v", err)
	}
	return err
}

func (r *mappingRepository) FailBatch(ctx context.Context, id string, reason string) error {
	log := logger.FromContext(ctx).WithPrefix("mapping_repo")
	log.Debug("failing batch: id=%s, reason=%s", id, reason)

	_, err := r.db.ExecContext(ctx, `
UPDATE import_batches
SET status = ?, error = ?, completed_at = CURRENT_TIMESTAMP
WHERE id = ?
`, models.BatchStatusFailed, reason, id)
	if err != nil {
		log.Error("failed to mark batch failed: %v", err)
	}
	return err
}

func (r *mappingRepository) RollbackBatch(ctx context.Context, id string) error {
	log := logger.FromContext(ctx).WithPrefix("mapping_repo")
	log.Info("rolling back batch: id=%s", id)

	// Entity deletes, mapping deletes, and the status flip are one atomic
	// unit; a crash mid-rollback leaves the batch fully intact.
	return tx(ctx, r.db, func(t *sql.Tx) error {
		if _, err := t.ExecContext(ctx, `
DELETE FROM cards WHERE id IN (
    SELECT internal_id FROM import_mappings WHERE batch_id = ? AND entity_kind = ?
)`, id, models.EntityKindCard); err != nil {
			return fmt.Errorf("delete batch cards: %w", err)
		}
		if _, err := t.ExecContext(ctx, `
DELETE FROM decks WHERE id IN (
    SELECT internal_id FROM import_mappings WHERE batch_id = ? AND entity_kind = ?
)`, id, models.EntityKindDeck); err != nil {
			return fmt.Errorf("delete batch decks: %w", err)
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM import_mappings WHERE batch_id = ?`, id); err != nil {
			return fmt.Errorf("delete batch mappings: %w", err)
		}
		res, err := t.ExecContext(ctx, `
UPDATE import_batches SET status = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?
`, models.BatchStatusRolledBack, id)
		if err != nil {
			return fmt.Errorf("mark batch rolled back: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("batch %s does not exist", id)
		}
		return nil
	})
}

func (r *mappingRepository) DeckBatch(ctx context.Context, source, sourceDeckID string) (*models.ImportBatch, error) {
	log := logger.FromContext(ctx).WithPrefix("mapping_repo")

	b, err := scanBatch(r.db.QueryRowContext(ctx, `
SELECT b.id, b.source_system, b.file_name, b.status, b.card_count, b.deck_count, b.error, b.metadata, b.created_at, b.completed_at
FROM import_batches b
JOIN import_mappings m ON m.batch_id = b.id
WHERE m.source_system = ? AND m.source_id = ? AND m.entity_kind = ?
`, source, sourceDeckID, models.EntityKindDeck))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error("failed to find deck import batch: %v", err)
		return nil, err
	}
	return &b, nil
}
