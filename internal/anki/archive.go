package anki

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/arlomb/cardbridge/internal/errors"
	"github.com/arlomb/cardbridge/internal/logger"
)

// Embedded-database member names, tried in this order.
const (
	memberCompressed = "collection.anki21b"
	memberModern     = "collection.anki21"
	memberLegacy     = "collection.anki2"
	memberMedia      = "media"
)

var numericNameRe = regexp.MustCompile(`^[0-9]+$`)

// MediaStore is where extracted media blobs are persisted. The sqlite
// media repository satisfies it.
type MediaStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
}

// Archive is an opened apkg container with its embedded database ready
// for querying. Close releases the database and its backing temp file.
type Archive struct {
	db         *sql.DB
	dbPath     string
	MediaCount int
}

// DB exposes the embedded collection database, read-only.
func (a *Archive) DB() *sql.DB {
	return a.db
}

func (a *Archive) Close() error {
	err := a.db.Close()
	if rmErr := os.Remove(a.dbPath); err == nil {
		err = rmErr
	}
	return err
}

// OpenArchive parses an apkg byte blob: it locates the embedded database
// member (compressed-modern, uncompressed-modern, then legacy name),
// decompresses it if needed, and persists every numeric-named member as a
// media blob before returning. A missing media manifest is not an error;
// numeric names are then used as-is.
func OpenArchive(ctx context.Context, data []byte, media MediaStore) (*Archive, error) {
	log := logger.FromContext(ctx).WithPrefix("archive")

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.NewArchiveInvalidError(fmt.Sprintf("not a zip container: %v", err))
	}

	dbBytes, err := readDatabaseMember(zr)
	if err != nil {
		return nil, err
	}

	manifest := readMediaManifest(ctx, zr)
	count, err := extractMedia(ctx, zr, manifest, media)
	if err != nil {
		return nil, err
	}
	log.Debug("extracted %d media blobs", count)

	tmp, err := os.CreateTemp("", "cardbridge-import-*.db")
	if err != nil {
		return nil, fmt.Errorf("create temp database: %w", err)
	}
	if _, err := tmp.Write(dbBytes); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write temp database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("close temp database: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&immutable=1", tmp.Name()))
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("open embedded database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &Archive{db: db, dbPath: tmp.Name(), MediaCount: count}, nil
}

// readDatabaseMember locates and, when necessary, decompresses the
// embedded collection database.
func readDatabaseMember(zr *zip.Reader) ([]byte, error) {
	if raw, ok := readMember(zr, memberCompressed); ok {
		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, apperrors.NewArchiveCorruptError(err)
		}
		defer dec.Close()
		plain, err := io.ReadAll(dec)
		if err != nil {
			return nil, apperrors.NewArchiveCorruptError(err)
		}
		return plain, nil
	}
	if raw, ok := readMember(zr, memberModern); ok {
		return raw, nil
	}
	if raw, ok := readMember(zr, memberLegacy); ok {
		return raw, nil
	}
	return nil, apperrors.NewArchiveInvalidError("no collection database member found")
}

func readMember(zr *zip.Reader, name string) ([]byte, bool) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, false
		}
		return b, true
	}
	return nil, false
}

// readMediaManifest parses the optional media member: a JSON object mapping
// numeric member names to human-readable file names. Absence or a parse
// failure degrades to numeric names only.
func readMediaManifest(ctx context.Context, zr *zip.Reader) map[string]string {
	raw, ok := readMember(zr, memberMedia)
	if !ok {
		return nil
	}
	var manifest map[string]string
	if err := json.Unmarshal(raw, &manifest); err != nil {
		logger.FromContext(ctx).Warn("unparseable media manifest, keeping numeric names: %v", err)
		return nil
	}
	return manifest
}

func extractMedia(ctx context.Context, zr *zip.Reader, manifest map[string]string, media MediaStore) (int, error) {
	if media == nil {
		return 0, nil
	}
	log := logger.FromContext(ctx).WithPrefix("archive")

	count := 0
	for _, f := range zr.File {
		if !numericNameRe.MatchString(f.Name) {
			continue
		}
		blob, ok := readMember(zr, f.Name)
		if !ok {
			log.Warn("skipping unreadable media member %s", f.Name)
			continue
		}

		humanName := manifest[f.Name]
		contentType := ContentTypeFor(humanName)
		if err := media.Put(ctx, f.Name, contentType, blob); err != nil {
			return count, fmt.Errorf("store media %s: %w", f.Name, err)
		}
		if humanName != "" && humanName != f.Name {
			if err := media.Put(ctx, humanName, contentType, blob); err != nil {
				return count, fmt.Errorf("store media %s: %w", humanName, err)
			}
		}
		count++
	}
	return count, nil
}

// contentTypes is the fixed extension lookup table for imported media.
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

// ContentTypeFor infers a content type from a file name's extension,
// defaulting to an opaque binary type.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
