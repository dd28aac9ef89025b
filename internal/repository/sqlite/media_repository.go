package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/models"
	"github.com/arlomb/cardbridge/internal/repository"
)

type mediaRepository struct {
	db *sql.DB
}

// NewMediaRepository creates a new MediaRepository implementation
func NewMediaRepository(db *sql.DB) repository.MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) Put(ctx context.Context, name, contentType string, data []byte) error {
	log := logger.FromContext(ctx).WithPrefix("media_repo")
	log.Debug("storing media: name=%s, bytes=%d", name, len(data))

	_, err := r.db.ExecContext(ctx, `
INSERT INTO media (name, content_type, data)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET content_type = excluded.content_type, data = excluded.data
`, name, contentType, data)
	if err != nil {
		log.Error("failed to store media %s: %v", name, err)
	}
	return err
}

func (r *mediaRepository) Get(ctx context.Context, name string) (*models.Media, error) {
	var m models.Media
	err := r.db.QueryRowContext(ctx, `
SELECT name, content_type, data, created_at FROM media WHERE name = ?
`, name).Scan(&m.Name, &m.ContentType, &m.Data, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.FromContext(ctx).WithPrefix("media_repo").Error("failed to get media %s: %v", name, err)
		return nil, err
	}
	return &m, nil
}
