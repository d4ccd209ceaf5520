package stream

import "strings"

// Section is one titled block of the formatted result. Title is empty for
// blocks without a "label:" prefix.
type Section struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// Format splits text into sections on blank-line boundaries. A block
// containing a colon is titled by whatever precedes the first colon. Every
// body line is trimmed and empty lines are dropped.
func Format(text string) []Section {
	if strings.TrimSpace(text) == "" {
		return []Section{}
	}

	var sections []Section
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var sec Section
		body := block
		if title, rest, ok := strings.Cut(block, ":"); ok {
			sec.Title = strings.TrimSpace(title)
			body = rest
		}
		sec.Lines = splitLines(strings.TrimSpace(body))
		sections = append(sections, sec)
	}
	return sections
}

func splitLines(body string) []string {
	lines := []string{}
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Text rebuilds source text for sections. Format(Text(s)) equals s for any s
// produced by Format.
func Text(sections []Section) string {
	blocks := make([]string, 0, len(sections))
	for _, sec := range sections {
		body := strings.Join(sec.Lines, "\n")
		switch {
		case sec.Title != "":
			blocks = append(blocks, sec.Title+": "+body)
		case len(sec.Lines) == 0 || strings.Contains(body, ":"):
			blocks = append(blocks, ":"+body)
		default:
			blocks = append(blocks, body)
		}
	}
	return strings.Join(blocks, "\n\n")
}
