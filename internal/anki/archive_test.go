package anki

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlomb/cardbridge/internal/models"
)

// memMedia is an in-memory MediaStore and MediaSource for round trips.
type memMedia map[string][]byte

func (m memMedia) Put(_ context.Context, name, _ string, data []byte) error {
	m[name] = data
	return nil
}

func (m memMedia) Get(_ context.Context, name string) (*models.Media, error) {
	data, ok := m[name]
	if !ok {
		return nil, nil
	}
	return &models.Media{Name: name, Data: data}, nil
}

func TestBuildAndOpenArchive_RoundTrip(t *testing.T) {
	ctx := context.Background()
	deckID := int64(1693526400000)

	deck := ExportDeck{Name: "Geography", Description: "Capitals of the world", ExternalID: deckID}
	cards := []ExportCard{
		{
			NoteID: 500, CardID: 9001, Ordinal: 0,
			Front: "capital of France", Back: "Paris",
			AudioRef: "greeting.mp3",
			Status:   models.CardStatusReview, IntervalDays: 10, EaseFactor: 2.5,
			Repetitions: 3, DueAt: time.Now().Add(72 * time.Hour),
		},
		{
			NoteID: 500, CardID: 9002, Ordinal: 1,
			Front: "Paris", Back: "capital of France",
			Status: models.CardStatusNew, EaseFactor: 2.5, DueAt: time.Now(),
		},
		{
			NoteID: 600, CardID: 9003, Ordinal: 0,
			Front: "capital of Japan", Back: "Tokyo",
			Status: models.CardStatusNew, EaseFactor: 2.5, DueAt: time.Now(),
		},
	}

	source := memMedia{"greeting.mp3": []byte("mp3-bytes")}
	data, err := BuildArchive(ctx, deck, cards, source)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	store := memMedia{}
	archive, err := OpenArchive(ctx, data, store)
	require.NoError(t, err)
	defer archive.Close()

	assert.Equal(t, 1, archive.MediaCount)
	assert.Equal(t, []byte("mp3-bytes"), store["greeting.mp3"])
	assert.Equal(t, []byte("mp3-bytes"), store["0"])

	info := ExtractDeck(ctx, archive.DB())
	assert.Equal(t, "Geography", info.Name)
	assert.Equal(t, "Capitals of the world", info.Description)
	assert.Equal(t, strconv.FormatInt(deckID, 10), info.ExternalID)

	notes, err := ExtractNotes(ctx, archive.DB())
	require.NoError(t, err)
	require.Len(t, notes, 2)
	byID := map[int64]Note{}
	for _, n := range notes {
		byID[n.ID] = n
	}
	require.Contains(t, byID, int64(500))
	assert.Equal(t, []string{"capital of France", "Paris"}, byID[500].Fields)
	assert.Equal(t, []string{"capital of Japan", "Tokyo"}, byID[600].Fields)

	modelsByID := ExtractModels(ctx, archive.DB())
	require.Len(t, modelsByID, 1)
	for _, m := range modelsByID {
		require.Len(t, m.Fields, 2)
		assert.Equal(t, "Front", m.Fields[0].Name)
		assert.Equal(t, "Back", m.Fields[1].Name)
		require.Len(t, m.Templates, 1)
		assert.Equal(t, "{{Front}}", m.Templates[0].Qfmt)

		fields := m.FieldMap(byID[500].Fields)
		assert.Equal(t, "capital of France", RenderTemplate(m.Templates[0].Qfmt, fields))
	}
}

func TestOpenArchive_NotAZip(t *testing.T) {
	_, err := OpenArchive(context.Background(), []byte("not a zip at all"), nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "not a zip container")
}

func TestOpenArchive_NoDatabaseMember(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("README.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("nothing useful"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = OpenArchive(context.Background(), buf.Bytes(), nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no collection database member")
}

func TestOpenArchive_MissingManifestKeepsNumericNames(t *testing.T) {
	ctx := context.Background()
	deck := ExportDeck{Name: "Solo", ExternalID: 42}
	cards := []ExportCard{{
		NoteID: 1, CardID: 2, Ordinal: 0, Front: "a", Back: "b",
		Status: models.CardStatusNew, EaseFactor: 2.5, DueAt: time.Now(),
	}}
	data, err := BuildArchive(ctx, deck, cards, nil)
	require.NoError(t, err)

	// Rebuild the container without the media member, keeping a stray
	// numeric member around.
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if f.Name == "media" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		w, err := zw.Create(f.Name)
		require.NoError(t, err)
		_, err = io.Copy(w, rc)
		require.NoError(t, err)
		rc.Close()
	}
	w, err := zw.Create("0")
	require.NoError(t, err)
	_, err = w.Write([]byte("blob"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	store := memMedia{}
	archive, err := OpenArchive(ctx, buf.Bytes(), store)
	require.NoError(t, err)
	defer archive.Close()

	assert.Equal(t, 1, archive.MediaCount)
	assert.Equal(t, []byte("blob"), store["0"])
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "audio/mpeg", ContentTypeFor("greeting.mp3"))
	assert.Equal(t, "image/png", ContentTypeFor("Map.PNG"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("mystery.bin"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor(""))
}
