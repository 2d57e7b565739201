package naming

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholders understood by templates.
const (
	FieldResolution = "resolution"
	FieldLanguage   = "language"
	FieldAudio      = "audio"
	FieldChannels   = "channels"
	FieldYear       = "year"
	FieldTitle      = "title"
	FieldStem       = "stem"
)

var knownFields = map[string]struct{}{
	FieldResolution: {},
	FieldLanguage:   {},
	FieldAudio:      {},
	FieldChannels:   {},
	FieldYear:       {},
	FieldTitle:      {},
	FieldStem:       {},
}

type piece struct {
	literal string
	field   string
}

// Template is a parsed naming template such as
// "{resolution}_{language}_{audio}_{year}_{stem}".
type Template struct {
	pieces []piece
}

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// ParseTemplate parses a template and rejects unknown placeholders.
func ParseTemplate(text string) (Template, error) {
	var tmpl Template
	last := 0
	for _, loc := range placeholder.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			tmpl.pieces = append(tmpl.pieces, piece{literal: text[last:loc[0]]})
		}
		field := text[loc[2]:loc[3]]
		if _, ok := knownFields[field]; !ok {
			return Template{}, fmt.Errorf("naming template: unknown placeholder {%s}", field)
		}
		tmpl.pieces = append(tmpl.pieces, piece{field: field})
		last = loc[1]
	}
	if last < len(text) {
		tmpl.pieces = append(tmpl.pieces, piece{literal: text[last:]})
	}
	if len(tmpl.pieces) == 0 {
		return Template{}, fmt.Errorf("naming template: empty")
	}
	return tmpl, nil
}

// Render fills placeholders from values. An empty placeholder is dropped
// together with the separator before it, so a missing year never leaves "__".
func (t Template) Render(values map[string]string) string {
	var (
		out     strings.Builder
		pending string
	)
	for _, p := range t.pieces {
		if p.field == "" {
			pending += p.literal
			continue
		}
		value := values[p.field]
		if value == "" {
			if isSeparator(pending) {
				pending = ""
			}
			continue
		}
		if out.Len() == 0 && isSeparator(pending) {
			pending = ""
		}
		out.WriteString(pending)
		out.WriteString(value)
		pending = ""
	}
	if out.Len() > 0 && !isSeparator(pending) {
		out.WriteString(pending)
	}
	return out.String()
}

func isSeparator(s string) bool {
	return strings.Trim(s, "_-. ") == ""
}
