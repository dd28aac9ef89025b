package anki

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate_Substitution(t *testing.T) {
	fields := map[string]string{"Front": "capital of France", "Back": "Paris"}

	out := RenderTemplate("{{Front}}", fields)
	assert.Equal(t, "capital of France", out)

	out = RenderTemplate("{{FrontSide}}<hr id=answer>{{Back}}", map[string]string{
		FrontSideField: "capital of France",
		"Back":         "Paris",
	})
	assert.Equal(t, "capital of France<hr id=answer>Paris", out)
}

func TestRenderTemplate_UnknownFieldBecomesEmpty(t *testing.T) {
	out := RenderTemplate("{{Front}} / {{Missing}}", map[string]string{"Front": "a"})
	assert.Equal(t, "a / ", out)
}

func TestRenderTemplate_ConditionalSections(t *testing.T) {
	tmpl := "{{Front}}{{#Hint}} ({{Hint}}){{/Hint}}"

	out := RenderTemplate(tmpl, map[string]string{"Front": "word", "Hint": "noun"})
	assert.Equal(t, "word (noun)", out)

	out = RenderTemplate(tmpl, map[string]string{"Front": "word", "Hint": ""})
	assert.Equal(t, "word", out)

	// Whitespace-only values count as empty.
	out = RenderTemplate(tmpl, map[string]string{"Front": "word", "Hint": "   "})
	assert.Equal(t, "word", out)
}

func TestRenderTemplate_InvertedSections(t *testing.T) {
	tmpl := "{{^Hint}}no hint{{/Hint}}{{#Hint}}{{Hint}}{{/Hint}}"

	out := RenderTemplate(tmpl, map[string]string{"Hint": ""})
	assert.Equal(t, "no hint", out)

	out = RenderTemplate(tmpl, map[string]string{"Hint": "here"})
	assert.Equal(t, "here", out)
}

func TestRenderTemplate_NestedSections(t *testing.T) {
	tmpl := "{{#A}}a{{#B}}b{{/B}}{{/A}}"

	out := RenderTemplate(tmpl, map[string]string{"A": "x", "B": "y"})
	assert.Equal(t, "ab", out)

	out = RenderTemplate(tmpl, map[string]string{"A": "x", "B": ""})
	assert.Equal(t, "a", out)

	out = RenderTemplate(tmpl, map[string]string{"A": "", "B": "y"})
	assert.Equal(t, "", out)
}

func TestRenderTemplate_UnbalancedSectionLeftAsIs(t *testing.T) {
	tmpl := "{{#Hint}}dangling"
	out := RenderTemplate(tmpl, map[string]string{"Hint": "x"})
	// The open tag has no matching close, so section expansion gives up
	// and plain substitution leaves the marker untouched.
	assert.Contains(t, out, "dangling")
}

func TestRenderTemplate_FieldNameWithSpaces(t *testing.T) {
	out := RenderTemplate("{{ Front }}", map[string]string{"Front": "trimmed"})
	assert.Equal(t, "trimmed", out)
}
