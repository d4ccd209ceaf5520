// Package render turns formatted sections into terminal output.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"preface-cli/internal/stream"
)

// Markdown lays sections out as markdown: a bold title line, then one
// paragraph line per section line. Untitled sections are plain paragraphs.
func Markdown(sections []stream.Section) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		if s.Title != "" {
			fmt.Fprintf(&b, "**%s**\n\n", escape(s.Title))
		}
		for _, line := range s.Lines {
			b.WriteString(escape(line))
			// Hard line break so lines of one section stay on separate rows.
			b.WriteString("  \n")
		}
	}
	return b.String()
}

// escaper keeps generated text from being read as markdown structure.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"#", `\#`,
)

func escape(s string) string {
	return escaper.Replace(s)
}

// Renderer renders sections through glamour.
type Renderer struct {
	tr *glamour.TermRenderer
}

// New builds a renderer that wraps at width. An empty style picks one from
// the terminal background.
func New(width int, style string) (*Renderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating markdown renderer: %w", err)
	}
	return &Renderer{tr: tr}, nil
}

func (r *Renderer) Render(sections []stream.Section) (string, error) {
	if len(sections) == 0 {
		return "", nil
	}
	out, err := r.tr.Render(Markdown(sections))
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out, nil
}
