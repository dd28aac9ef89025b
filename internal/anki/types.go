// Package anki implements the bidirectional interchange engine for the
// apkg archive format: a zip container holding an embedded SQLite
// collection database, a field-separated note table, and a media manifest.
package anki

import "strings"

// Note is one fact record with ordered field values. Notes exist only
// transiently during import; they are never persisted internally.
type Note struct {
	ID      int64
	ModelID int64
	Fields  []string
	Tags    string
}

// Field is one named, ordered field of a note type.
type Field struct {
	Name string
	Ord  int
}

// Template is one question/answer rendering rule of a note type.
type Template struct {
	Name string
	Qfmt string
	Afmt string
	Ord  int
}

// Model is a note type: the field list and template set shared by a
// family of notes.
type Model struct {
	ID        int64
	Name      string
	Fields    []Field
	Templates []Template
}

// FieldMap pairs the model's field names with a note's field values by
// ordinal. Values beyond the model's field list are dropped; missing
// values become empty strings.
func (m *Model) FieldMap(values []string) map[string]string {
	fields := make(map[string]string, len(m.Fields))
	for _, f := range m.Fields {
		if f.Ord >= 0 && f.Ord < len(values) {
			fields[f.Name] = values[f.Ord]
		} else {
			fields[f.Name] = ""
		}
	}
	return fields
}

// DeckInfo is the deck metadata recovered from an archive. ExternalID is
// empty when the archive's schema revision carried no usable deck id.
type DeckInfo struct {
	Name        string
	Description string
	ExternalID  string
}

// FallbackModel is the two-field model used when a note's note type is
// missing from the archive's model map: field 0 becomes the front, the
// remaining fields joined become the back.
func FallbackModel() *Model {
	return &Model{
		Name:   "Basic",
		Fields: []Field{{Name: "Front", Ord: 0}, {Name: "Back", Ord: 1}},
		Templates: []Template{
			{Name: "Card 1", Qfmt: "{{Front}}", Afmt: "{{FrontSide}}<hr id=answer>{{Back}}", Ord: 0},
		},
	}
}

// FallbackFieldMap maps raw note values onto the fallback model's fields.
func FallbackFieldMap(values []string) map[string]string {
	front, back := "", ""
	if len(values) > 0 {
		front = values[0]
	}
	if len(values) > 1 {
		back = strings.Join(values[1:], " ")
	}
	return map[string]string{"Front": front, "Back": back}
}
