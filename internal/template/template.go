package template

import (
	"fmt"
	"strings"
)

// Section is one named unit of a template, mapping to one field of the
// structured summarization output.
type Section struct {
	ID           string `yaml:"id"`
	Header       string `yaml:"header"`
	Instructions string `yaml:"instructions"`
	Optional     bool   `yaml:"optional,omitempty"`
	Prefix       string `yaml:"prefix,omitempty"`
	Postfix      string `yaml:"postfix,omitempty"`
}

// Template is a user-defined ordered set of extraction instructions applied
// to a transcript. The built-in template is locked: it cannot be saved over
// or deleted.
type Template struct {
	Name     string    `yaml:"name"`
	Locked   bool      `yaml:"locked,omitempty"`
	Sections []Section `yaml:"sections"`
}

// Key returns the extraction-schema key for a section.
func (s Section) Key() string {
	return Slug(s.Header)
}

// Slug derives a deterministic schema key from a human-readable header:
// lowercase, every non-alphanumeric run becomes a single underscore, leading
// and trailing underscores trimmed.
func Slug(header string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(header) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Validate rejects malformed templates at save time. Two headers collapsing
// to the same slug would silently overwrite each other at extraction time,
// so duplicates are a save-time error.
func Validate(t Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name must not be empty")
	}
	if len(t.Sections) == 0 {
		return fmt.Errorf("template %q has no sections", t.Name)
	}
	seen := make(map[string]string, len(t.Sections))
	for i, s := range t.Sections {
		if strings.TrimSpace(s.Header) == "" {
			return fmt.Errorf("template %q: section %d has an empty header", t.Name, i)
		}
		key := s.Key()
		if key == "" {
			return fmt.Errorf("template %q: header %q produces an empty key", t.Name, s.Header)
		}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("template %q: headers %q and %q collide on key %q", t.Name, prev, s.Header, key)
		}
		seen[key] = s.Header
	}
	return nil
}

// BuiltinName is the name of the locked default template.
const BuiltinName = "scribe"

// Builtin returns the locked default template.
func Builtin() Template {
	return Template{
		Name:   BuiltinName,
		Locked: true,
		Sections: []Section{
			{
				ID:           "summary",
				Header:       "Summary",
				Instructions: "A summary of the transcript in Markdown. It will be nested under a h2 header, so use h3 and lower for any nested headers.",
			},
			{
				ID:           "insights",
				Header:       "Insights",
				Instructions: "Insights gained from the transcript: related ideas, topics worth researching further, and follow-ups the author may want to investigate.",
			},
			{
				ID:           "mermaid_chart",
				Header:       "Mermaid Chart",
				Instructions: "A mermaid mindmap of the transcript. Plain text only in the nodes, no special characters or parentheses, two spaces of indentation per level.",
				Prefix:       "```mermaid\n",
				Postfix:      "\n```",
			},
			{
				ID:           "answered_questions",
				Header:       "Answered Questions",
				Instructions: "If the transcript directly asks the note assistant a question, answer it here. Omit entirely when no question was asked.",
				Optional:     true,
			},
		},
	}
}
