package summarize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scribelabs/scribe-core/internal/template"
)

// FileTitleKey is the always-required title field of the extraction schema.
const FileTitleKey = "fileTitle"

const fileTitleInstructions = "A suggested title for the note. It must be usable as a file name on mac, windows and linux: no special characters."

// BuildSchema turns a template into a JSON schema for structured-output
// extraction: one string property per section keyed by the header slug,
// required unless the section is optional, plus the required fileTitle.
func BuildSchema(tpl template.Template) (map[string]any, error) {
	if err := template.Validate(tpl); err != nil {
		return nil, err
	}

	properties := map[string]any{
		FileTitleKey: map[string]any{
			"type":        "string",
			"description": fileTitleInstructions,
		},
	}
	required := []string{FileTitleKey}

	for _, section := range tpl.Sections {
		properties[section.Key()] = map[string]any{
			"type":        "string",
			"description": section.Instructions,
		}
		if !section.Optional {
			required = append(required, section.Key())
		}
	}

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}, nil
}

// decodeResult validates raw provider output against the template contract.
// A missing or empty required field is a provider-contract violation.
// Optional sections that are missing, null, or blank stay absent from the
// result.
func decodeResult(raw []byte, tpl template.Template) (Result, error) {
	var decoded map[string]*string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, fmt.Errorf("%w: decode structured output: %v", ErrSummarizationFailed, err)
	}

	title := ""
	if v := decoded[FileTitleKey]; v != nil {
		title = strings.TrimSpace(*v)
	}
	if title == "" {
		return Result{}, fmt.Errorf("%w: provider omitted required field %q", ErrSummarizationFailed, FileTitleKey)
	}

	result := Result{
		FileTitle: title,
		Sections:  make(map[string]string, len(tpl.Sections)),
	}
	for _, section := range tpl.Sections {
		key := section.Key()
		value := decoded[key]
		if value == nil || strings.TrimSpace(*value) == "" {
			if section.Optional {
				continue
			}
			return Result{}, fmt.Errorf("%w: provider omitted required field %q", ErrSummarizationFailed, key)
		}
		result.Sections[key] = *value
	}
	return result, nil
}
