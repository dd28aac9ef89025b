package anki

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_StripsTags(t *testing.T) {
	n := Normalize("<b>bonjour</b><br>le <i>monde</i>")
	assert.Equal(t, "bonjour le monde", n.Text)
	assert.Empty(t, n.Audio)
	assert.Empty(t, n.Images)
}

func TestNormalize_UnescapesEntities(t *testing.T) {
	n := Normalize("a &lt; b &amp;&nbsp;c")
	assert.Equal(t, "a < b & c", n.Text)
}

func TestNormalize_ExtractsSound(t *testing.T) {
	n := Normalize("hello [sound:greeting.mp3] world [sound:reply.ogg]")
	assert.Equal(t, "hello world", n.Text)
	assert.Equal(t, []string{"greeting.mp3", "reply.ogg"}, n.Audio)
}

func TestNormalize_ExtractsImages(t *testing.T) {
	n := Normalize(`see <img src="map.png"> and <IMG SRC='photo.jpg' alt="x">`)
	assert.Equal(t, "see and", n.Text)
	assert.Equal(t, []string{"map.png", "photo.jpg"}, n.Images)
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	n := Normalize("  a \n\n  b\t c  ")
	assert.Equal(t, "a b c", n.Text)
}

func TestNormalized_Empty(t *testing.T) {
	assert.True(t, Normalize("").Empty())
	assert.True(t, Normalize("<br><div></div>").Empty())
	assert.False(t, Normalize("text").Empty())

	// An image-only side still counts as content.
	assert.False(t, Normalize(`<img src="only.png">`).Empty())

	// An audio-only side does not.
	assert.True(t, Normalize("[sound:only.mp3]").Empty())
}
