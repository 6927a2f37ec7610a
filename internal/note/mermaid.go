package note

import "strings"

// ExtractMermaidChart pulls the body of a ```mermaid fenced block out of a
// section value. Providers sometimes fence the chart themselves even though
// the section wrapper adds the fence; extracting keeps the output from being
// double-fenced. Returns the value unchanged when no fenced block is found.
func ExtractMermaidChart(value string) string {
	const open = "```mermaid"
	start := strings.Index(value, open)
	if start < 0 {
		return strings.TrimSpace(value)
	}
	rest := value[start+len(open):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(rest[:end])
}

// ReplaceMermaidChart swaps the body of the first ```mermaid fenced block in
// content for chart. The second return is false when content has no fenced
// mermaid block.
func ReplaceMermaidChart(content, chart string) (string, bool) {
	const open = "```mermaid"
	start := strings.Index(content, open)
	if start < 0 {
		return content, false
	}
	bodyStart := start + len(open)
	end := strings.Index(content[bodyStart:], "```")
	if end < 0 {
		return content, false
	}
	return content[:bodyStart] + "\n" + strings.TrimSpace(chart) + "\n" + content[bodyStart+end:], true
}
