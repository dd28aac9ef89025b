package anki

import (
	"html"
	"regexp"
	"strings"
)

// Normalized is rendered card content reduced to plain study text plus the
// media references that were embedded in the markup, in document order.
type Normalized struct {
	Text   string
	Audio  []string
	Images []string
}

// Empty reports whether the content carries neither study text nor an
// image reference. A card whose two sides are both empty must be skipped
// by the caller, not stored.
func (n Normalized) Empty() bool {
	return n.Text == "" && len(n.Images) == 0
}

var (
	soundRe = regexp.MustCompile(`\[sound:([^\]]+)\]`)
	imgRe   = regexp.MustCompile(`(?i)<img[^>]*\bsrc\s*=\s*["']?([^"'>\s]+)["']?[^>]*>`)
	tagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
	wsRe    = regexp.MustCompile(`\s+`)
)

// Normalize strips presentation markup from rendered content, pulling out
// [sound:...] tokens and image-tag sources before removing the remaining
// tags and collapsing whitespace.
func Normalize(markup string) Normalized {
	var n Normalized
	for _, m := range soundRe.FindAllStringSubmatch(markup, -1) {
		n.Audio = append(n.Audio, m[1])
	}
	for _, m := range imgRe.FindAllStringSubmatch(markup, -1) {
		n.Images = append(n.Images, m[1])
	}

	text := soundRe.ReplaceAllString(markup, " ")
	text = imgRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, " ", " ")
	n.Text = strings.TrimSpace(wsRe.ReplaceAllString(text, " "))
	return n
}
