package anki

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha1"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/arlomb/cardbridge/internal/logger"
	"github.com/arlomb/cardbridge/internal/models"
)

// MediaSource resolves stored media blobs by name for the best-effort
// export manifest. The sqlite media repository satisfies it.
type MediaSource interface {
	Get(ctx context.Context, name string) (*models.Media, error)
}

// ExportDeck is the deck metadata written into an archive.
type ExportDeck struct {
	Name        string
	Description string
	ExternalID  int64
}

// ExportCard is one card row destined for an archive, with its external
// note/card identifiers already resolved by the caller.
type ExportCard struct {
	NoteID       int64
	CardID       int64
	Ordinal      int
	Front        string
	Back         string
	AudioRef     string
	ImageRef     string
	Status       models.CardStatus
	IntervalDays int
	EaseFactor   float64
	Repetitions  int
	Lapses       int
	DueAt        time.Time
}

// Legacy uncompressed schema, the layout every conforming reader accepts.
const archiveSchema = `
CREATE TABLE col (
  id integer primary key,
  crt integer not null, mod integer not null, scm integer not null,
  ver integer not null, dty integer not null, usn integer not null,
  ls integer not null,
  conf text not null, models text not null, decks text not null,
  dconf text not null, tags text not null
);
CREATE TABLE notes (
  id integer primary key,
  guid text not null, mid integer not null, mod integer not null,
  usn integer not null, tags text not null, flds text not null,
  sfld integer not null, csum integer not null, flags integer not null,
  data text not null
);
CREATE TABLE cards (
  id integer primary key,
  nid integer not null, did integer not null, ord integer not null,
  mod integer not null, usn integer not null, type integer not null,
  queue integer not null, due integer not null, ivl integer not null,
  factor integer not null, reps integer not null, lapses integer not null,
  "left" integer not null, odue integer not null, odid integer not null,
  flags integer not null, data text not null
);
CREATE TABLE graves (usn integer not null, oid integer not null, type integer not null);
CREATE INDEX ix_cards_nid ON cards (nid);
CREATE INDEX ix_notes_csum ON notes (csum);
`

// BuildArchive constructs a conforming apkg container from internal
// records: an embedded database with col, notes, cards and an empty
// graves table, a single generated "Basic" note type, one note row per
// distinct note id, and one card row per card. The database is emitted
// under the legacy uncompressed member name for maximum reader
// compatibility, alongside a best-effort media manifest.
func BuildArchive(ctx context.Context, deck ExportDeck, cards []ExportCard, media MediaSource) ([]byte, error) {
	log := logger.FromContext(ctx).WithPrefix("archive")

	tmp, err := os.CreateTemp("", "cardbridge-export-*.db")
	if err != nil {
		return nil, fmt.Errorf("create temp database: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	db, err := sql.Open("sqlite3", "file:"+tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open export database: %w", err)
	}

	if err := writeDatabase(ctx, db, deck, cards); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("close export database: %w", err)
	}

	dbBytes, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read export database: %w", err)
	}

	out, err := buildZip(ctx, dbBytes, cards, media)
	if err != nil {
		return nil, err
	}
	log.Debug("built archive: %d cards, %d bytes", len(cards), len(out))
	return out, nil
}

func writeDatabase(ctx context.Context, db *sql.DB, deck ExportDeck, cards []ExportCard) error {
	if _, err := db.ExecContext(ctx, archiveSchema); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}

	now := time.Now()
	nowSec := now.Unix()
	nowMilli := now.UnixMilli()
	modelID := nowMilli

	modelsJSON, err := basicModelJSON(modelID, deck.ExternalID, nowSec)
	if err != nil {
		return err
	}
	decksJSON, err := deckJSON(deck, nowSec)
	if err != nil {
		return err
	}
	dconfJSON, err := json.Marshal(map[string]any{
		"1": map[string]any{"id": 1, "name": "Default", "mod": nowSec, "usn": -1, "autoplay": true},
	})
	if err != nil {
		return err
	}

	crt := time.Date(now.Year(), now.Month(), now.Day(), 4, 0, 0, 0, now.Location()).Unix()
	_, err = db.ExecContext(ctx, `
INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
VALUES (1, ?, ?, ?, 11, 0, 0, 0, ?, ?, ?, ?, '{}')
`, crt, nowMilli, nowMilli, defaultColConf(deck.ExternalID), string(modelsJSON), string(decksJSON), string(dconfJSON))
	if err != nil {
		return fmt.Errorf("insert col row: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// One note row per note, even when several cards share it.
	seenNotes := make(map[int64]bool, len(cards))
	for _, c := range cards {
		if !seenNotes[c.NoteID] {
			flds := c.Front + fieldSeparator + c.Back
			_, err = tx.ExecContext(ctx, `
INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
VALUES (?, ?, ?, ?, -1, '', ?, ?, ?, 0, '')
`, c.NoteID, newGUID(), modelID, nowSec, flds, c.Front, fieldChecksum(c.Front))
			if err != nil {
				return fmt.Errorf("insert note %d: %w", c.NoteID, err)
			}
			seenNotes[c.NoteID] = true
		}

		cardType, queue := cardTypeQueue(c.Status)
		due := int64(0)
		if cardType == 2 {
			due = (c.DueAt.Unix() - crt) / 86400
			if due < 0 {
				due = 0
			}
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, "left", odue, odid, flags, data)
VALUES (?, ?, ?, ?, ?, -1, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0, '')
`, c.CardID, c.NoteID, deck.ExternalID, c.Ordinal, nowSec, cardType, queue, due,
			c.IntervalDays, int(math.Round(c.EaseFactor*1000)), c.Repetitions, c.Lapses)
		if err != nil {
			return fmt.Errorf("insert card %d: %w", c.CardID, err)
		}
	}
	return tx.Commit()
}

func buildZip(ctx context.Context, dbBytes []byte, cards []ExportCard, media MediaSource) ([]byte, error) {
	log := logger.FromContext(ctx).WithPrefix("archive")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create(memberLegacy)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(dbBytes); err != nil {
		return nil, err
	}

	// Best-effort manifest: bundle whatever referenced blobs the store
	// still has, numbered the way an external reader expects.
	manifest := map[string]string{}
	next := 0
	if media != nil {
		seen := map[string]bool{}
		for _, c := range cards {
			for _, name := range []string{c.AudioRef, c.ImageRef} {
				if name == "" || seen[name] {
					continue
				}
				seen[name] = true
				blob, err := media.Get(ctx, name)
				if err != nil || blob == nil {
					log.Warn("media %s not in store, leaving out of archive", name)
					continue
				}
				member := strconv.Itoa(next)
				mw, err := zw.Create(member)
				if err != nil {
					return nil, err
				}
				if _, err := mw.Write(blob.Data); err != nil {
					return nil, err
				}
				manifest[member] = name
				next++
			}
		}
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	mw, err := zw.Create(memberMedia)
	if err != nil {
		return nil, err
	}
	if _, err := mw.Write(manifestJSON); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func basicModelJSON(modelID, deckID, nowSec int64) ([]byte, error) {
	model := map[string]any{
		"id":    modelID,
		"name":  "Basic",
		"type":  0,
		"mod":   nowSec,
		"usn":   -1,
		"sortf": 0,
		"did":   deckID,
		"css":   ".card { font-family: arial; font-size: 20px; text-align: center; }",
		"flds": []map[string]any{
			{"name": "Front", "ord": 0, "sticky": false, "rtl": false, "font": "Arial", "size": 20},
			{"name": "Back", "ord": 1, "sticky": false, "rtl": false, "font": "Arial", "size": 20},
		},
		"tmpls": []map[string]any{
			{
				"name": "Card 1", "ord": 0,
				"qfmt": "{{Front}}", "afmt": "{{FrontSide}}<hr id=answer>{{Back}}",
				"bqfmt": "", "bafmt": "", "did": nil,
			},
		},
		"req": []any{[]any{0, "all", []any{0}}},
	}
	return json.Marshal(map[string]any{strconv.FormatInt(modelID, 10): model})
}

func deckJSON(deck ExportDeck, nowSec int64) ([]byte, error) {
	d := map[string]any{
		"id":        deck.ExternalID,
		"name":      deck.Name,
		"desc":      deck.Description,
		"mod":       nowSec,
		"usn":       -1,
		"collapsed": false,
		"dyn":       0,
		"conf":      1,
		"extendNew": 10,
		"extendRev": 50,
		"newToday":  []int{0, 0},
		"revToday":  []int{0, 0},
		"lrnToday":  []int{0, 0},
		"timeToday": []int{0, 0},
	}
	return json.Marshal(map[string]any{strconv.FormatInt(deck.ExternalID, 10): d})
}

func defaultColConf(deckID int64) string {
	conf := map[string]any{
		"curDeck":       deckID,
		"activeDecks":   []int64{deckID},
		"newSpread":     0,
		"collapseTime":  1200,
		"timeLim":       0,
		"estTimes":      true,
		"dueCounts":     true,
		"curModel":      nil,
		"nextPos":       1,
		"sortType":      "noteFld",
		"sortBackwards": false,
		"addToCur":      true,
	}
	b, _ := json.Marshal(conf)
	return string(b)
}

// cardTypeQueue maps an internal lifecycle status onto the archive
// format's type/queue pair.
func cardTypeQueue(status models.CardStatus) (int, int) {
	switch status {
	case models.CardStatusLearning:
		return 1, 1
	case models.CardStatusReview:
		return 2, 2
	case models.CardStatusRelearning:
		return 3, 1
	default:
		return 0, 0
	}
}

const guidChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newGUID() string {
	b := make([]byte, 10)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = guidChars[int(b[i])%len(guidChars)]
	}
	return string(b)
}

// fieldChecksum is the integer value of the first 8 hex digits of the
// SHA-1 of the sort field, matching what external readers compute.
func fieldChecksum(field string) int64 {
	sum := sha1.Sum([]byte(field))
	v, _ := strconv.ParseInt(fmt.Sprintf("%x", sum[:4]), 16, 64)
	return v
}
