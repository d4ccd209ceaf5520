package tui

import (
	"fmt"
	"strings"

	"preface-cli/internal/render"
	"preface-cli/internal/service"
	"preface-cli/internal/stream"
)

const liveCursor = "▋"

func renderWelcome(version, server, openid string, width int) string {
	titleLine := logoQuillStyle.Render("✒") + " " + logoTitleStyle.Render("Preface CLI") + " " + versionStyle.Render("v"+version)

	var infoLine string
	switch {
	case server == "":
		infoLine = welcomeHintStyle.Render("Type /set server <url> to get started")
	case openid == "":
		infoLine = welcomeHintStyle.Render("Type /set openid <id> to start generating")
	default:
		serverDisplay := service.Truncate(server, 40)
		infoLine = welcomeInfoLabel.Render(fmt.Sprintf("%s · %s", serverDisplay, service.Truncate(openid, 24)))
	}

	sep := separatorStyle.Render(strings.Repeat("─", max(min(width, 80), 20)))
	return fmt.Sprintf("\n%s\n%s\n%s\n", titleLine, infoLine, sep)
}

// renderLive draws the sections typed so far, with the typing cursor after
// the last character while the session is still producing output.
func renderLive(sections []stream.Section, cursor bool) string {
	var lines []string
	for i, sec := range sections {
		if i > 0 {
			lines = append(lines, "")
		}
		if sec.Title != "" {
			lines = append(lines, "  "+sectionTitleStyle.Render(sec.Title+":"))
		}
		for _, l := range sec.Lines {
			lines = append(lines, "    "+sectionLineStyle.Render(l))
		}
	}

	if cursor {
		c := cursorStyle.Render(liveCursor)
		if len(lines) == 0 {
			lines = append(lines, "  "+c)
		} else {
			lines[len(lines)-1] += c
		}
	}
	return strings.Join(lines, "\n")
}

// renderResult renders finished sections through glamour, falling back to
// the live layout if the renderer is unavailable.
func renderResult(r *render.Renderer, sections []stream.Section) string {
	if r != nil {
		if out, err := r.Render(sections); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return renderLive(sections, false)
}

func renderRecords(title string, page int, rows []service.RecordDisplay) []string {
	lines := []string{
		"",
		dimStyle.Render(fmt.Sprintf("  %s (page %d, %d):", title, page, len(rows))),
		"",
	}
	for _, r := range rows {
		icon := dimStyle.Render(r.FavIcon)
		if r.Favorite {
			icon = favStyle.Render(r.FavIcon)
		}
		lines = append(lines, fmt.Sprintf("  %s %s", icon, r.Prompt))
		meta := r.Key
		if r.Date != "" {
			meta += "  " + r.Date
		}
		lines = append(lines, dimStyle.Render("    "+meta))
		if r.Response != "" {
			lines = append(lines, dimStyle.Render("    ↳ "+r.Response))
		}
	}
	lines = append(lines,
		"",
		dimStyle.Render("  Tip: /favorite <id> · /unfavorite <id>"),
		"",
	)
	return lines
}
