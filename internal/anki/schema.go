package anki

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/arlomb/cardbridge/internal/errors"
	"github.com/arlomb/cardbridge/internal/logger"
)

// fieldSeparator joins note field values inside the notes.flds column.
const fieldSeparator = "\x1f"

// deckStrategy is one named way of recovering deck metadata from a schema
// revision. Strategies are tried in order; a miss returns a nil DeckInfo.
type deckStrategy struct {
	name    string
	extract func(ctx context.Context, db *sql.DB) (*DeckInfo, error)
}

var deckStrategies = []deckStrategy{
	{name: "decks-table", extract: deckFromTable},
	{name: "col-json", extract: deckFromColJSON},
}

// ExtractDeck recovers the archive's deck name and external id, falling
// through the schema-revision strategies and finally defaulting to an
// anonymous imported deck.
func ExtractDeck(ctx context.Context, db *sql.DB) DeckInfo {
	log := logger.FromContext(ctx).WithPrefix("schema")
	for _, s := range deckStrategies {
		info, err := s.extract(ctx, db)
		if err != nil {
			log.Debug("deck strategy %s missed: %v", s.name, err)
			continue
		}
		if info != nil {
			log.Debug("deck strategy %s matched: name=%s external_id=%s", s.name, info.Name, info.ExternalID)
			return *info
		}
	}
	log.Debug("no deck strategy matched, using default deck name")
	return DeckInfo{Name: "Imported Deck"}
}

// deckFromTable reads the modern decks table.
func deckFromTable(ctx context.Context, db *sql.DB) (*DeckInfo, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM decks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var first, chosen *DeckInfo
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		info := &DeckInfo{Name: name, ExternalID: strconv.FormatInt(id, 10)}
		if first == nil {
			first = info
		}
		// Deck 1 is the built-in default; prefer anything else.
		if id != 1 && chosen == nil {
			chosen = info
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if chosen != nil {
		return chosen, nil
	}
	return first, nil
}

// deckFromColJSON parses the legacy serialized deck map in col.decks.
func deckFromColJSON(ctx context.Context, db *sql.DB) (*DeckInfo, error) {
	var raw string
	if err := db.QueryRowContext(ctx, `SELECT decks FROM col LIMIT 1`).Scan(&raw); err != nil {
		return nil, err
	}
	var decks map[string]struct {
		Name string `json:"name"`
		Desc string `json:"desc"`
	}
	if err := json.Unmarshal([]byte(raw), &decks); err != nil {
		return nil, fmt.Errorf("parse col.decks: %w", err)
	}

	ids := make([]string, 0, len(decks))
	for id := range decks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var first, chosen *DeckInfo
	for _, id := range ids {
		d := decks[id]
		info := &DeckInfo{Name: d.Name, Description: d.Desc, ExternalID: id}
		if first == nil {
			first = info
		}
		if id != "1" && !strings.EqualFold(d.Name, "Default") && chosen == nil {
			chosen = info
		}
	}
	if chosen != nil {
		return chosen, nil
	}
	return first, nil
}

// noteQuery is one schema revision of the notes table.
type noteQuery struct {
	name    string
	query   string
	hasTags bool
}

var noteQueries = []noteQuery{
	{name: "modern", query: `SELECT id, mid, flds, tags FROM notes`, hasTags: true},
	{name: "legacy", query: `SELECT id, mid, flds FROM notes`, hasTags: false},
}

// ExtractNotes reads every note record, retrying with the tagless legacy
// column set when the modern query fails. Zero notes is a hard failure.
func ExtractNotes(ctx context.Context, db *sql.DB) ([]Note, error) {
	log := logger.FromContext(ctx).WithPrefix("schema")

	var lastErr error
	for _, q := range noteQueries {
		notes, err := scanNotes(ctx, db, q)
		if err != nil {
			log.Debug("note query %s missed: %v", q.name, err)
			lastErr = err
			continue
		}
		if len(notes) == 0 {
			return nil, apperrors.NewEmptyCollectionError()
		}
		log.Debug("note query %s matched: %d notes", q.name, len(notes))
		return notes, nil
	}
	return nil, fmt.Errorf("no readable notes table: %w", lastErr)
}

func scanNotes(ctx context.Context, db *sql.DB, q noteQuery) ([]Note, error) {
	rows, err := db.QueryContext(ctx, q.query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var flds string
		if q.hasTags {
			err = rows.Scan(&n.ID, &n.ModelID, &flds, &n.Tags)
		} else {
			err = rows.Scan(&n.ID, &n.ModelID, &flds)
		}
		if err != nil {
			return nil, err
		}
		n.Fields = strings.Split(flds, fieldSeparator)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

type modelJSON struct {
	Name string `json:"name"`
	Flds []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
	} `json:"flds"`
	Tmpls []struct {
		Name string `json:"name"`
		Qfmt string `json:"qfmt"`
		Afmt string `json:"afmt"`
		Ord  int    `json:"ord"`
	} `json:"tmpls"`
}

// ExtractModels parses the serialized note-type map from the collection
// metadata. Its absence is tolerated: callers must support a modelless
// fallback path, so a missing or unparseable map yields an empty map.
func ExtractModels(ctx context.Context, db *sql.DB) map[int64]*Model {
	log := logger.FromContext(ctx).WithPrefix("schema")
	out := make(map[int64]*Model)

	var raw string
	if err := db.QueryRowContext(ctx, `SELECT models FROM col LIMIT 1`).Scan(&raw); err != nil {
		log.Warn("no model map in collection metadata: %v", err)
		return out
	}
	var parsed map[string]modelJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warn("unparseable model map, notes will use the fallback model: %v", err)
		return out
	}

	for idStr, mj := range parsed {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			log.Warn("skipping model with non-numeric id %q", idStr)
			continue
		}
		m := &Model{ID: id, Name: mj.Name}
		for _, f := range mj.Flds {
			m.Fields = append(m.Fields, Field{Name: f.Name, Ord: f.Ord})
		}
		for _, t := range mj.Tmpls {
			m.Templates = append(m.Templates, Template{Name: t.Name, Qfmt: t.Qfmt, Afmt: t.Afmt, Ord: t.Ord})
		}
		sort.Slice(m.Fields, func(i, j int) bool { return m.Fields[i].Ord < m.Fields[j].Ord })
		sort.Slice(m.Templates, func(i, j int) bool { return m.Templates[i].Ord < m.Templates[j].Ord })
		out[id] = m
	}
	log.Debug("parsed %d models", len(out))
	return out
}
