package vault

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// ProcessFrontmatter parses the leading YAML frontmatter block of a markdown
// file, applies mutate, and re-serializes. Files without a block get one
// prepended.
func (v *dirVault) ProcessFrontmatter(path string, mutate func(fm map[string]any)) error {
	content, err := v.ReadText(path)
	if err != nil {
		return err
	}

	fm, body, err := splitFrontmatter(content)
	if err != nil {
		return fmt.Errorf("parse frontmatter of %s: %w", path, err)
	}
	mutate(fm)

	rendered, err := renderFrontmatter(fm, body)
	if err != nil {
		return fmt.Errorf("render frontmatter of %s: %w", path, err)
	}
	return v.CreateText(path, rendered)
}

func splitFrontmatter(content string) (map[string]any, string, error) {
	fm := map[string]any{}
	if !strings.HasPrefix(content, frontmatterDelimiter+"\n") {
		return fm, content, nil
	}

	rest := content[len(frontmatterDelimiter)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelimiter)
	if end < 0 {
		return fm, content, nil
	}
	block := rest[:end]
	body := rest[end+1+len(frontmatterDelimiter):]
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return nil, "", err
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return fm, body, nil
}

func renderFrontmatter(fm map[string]any, body string) (string, error) {
	if len(fm) == 0 {
		return body, nil
	}
	encoded, err := yaml.Marshal(fm)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(frontmatterDelimiter)
	b.WriteString("\n")
	b.Write(encoded)
	b.WriteString(frontmatterDelimiter)
	b.WriteString("\n")
	b.WriteString(body)
	return b.String(), nil
}
