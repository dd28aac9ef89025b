package anki

import (
	"regexp"
	"strings"
)

// FrontSideField is the pseudo-field that resolves to the already-rendered
// front content when rendering an answer template. The caller injects it.
const FrontSideField = "FrontSide"

var substRe = regexp.MustCompile(`\{\{([^{}#^/][^{}]*)\}\}`)

// RenderTemplate expands a question or answer format string against a
// field-name to value map. Expansion order is fixed: {{#Field}} conditional
// sections, {{^Field}} inverted sections, then {{Field}} substitution.
// No other templating feature is supported.
func RenderTemplate(tmpl string, fields map[string]string) string {
	out := expandSections(tmpl, fields, false)
	out = expandSections(out, fields, true)
	return substRe.ReplaceAllStringFunc(out, func(m string) string {
		name := strings.TrimSpace(m[2 : len(m)-2])
		return fields[name]
	})
}

// expandSections resolves {{#Field}}...{{/Field}} sections (keep the body
// iff the field's trimmed value is non-empty) or, when inverted, the
// {{^Field}}...{{/Field}} form (keep iff empty).
func expandSections(s string, fields map[string]string, inverted bool) string {
	open := "{{#"
	if inverted {
		open = "{{^"
	}
	for {
		start := strings.Index(s, open)
		if start < 0 {
			return s
		}
		nameEnd := strings.Index(s[start:], "}}")
		if nameEnd < 0 {
			return s
		}
		nameEnd += start
		name := strings.TrimSpace(s[start+len(open) : nameEnd])

		closeTag := "{{/" + name + "}}"
		bodyStart := nameEnd + 2
		closeIdx := strings.Index(s[bodyStart:], closeTag)
		if closeIdx < 0 {
			// Unbalanced section; leave the rest untouched.
			return s
		}
		closeIdx += bodyStart

		body := s[bodyStart:closeIdx]
		hasValue := strings.TrimSpace(fields[name]) != ""
		keep := hasValue != inverted

		kept := ""
		if keep {
			kept = body
		}
		s = s[:start] + kept + s[closeIdx+len(closeTag):]
	}
}
