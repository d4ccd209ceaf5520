package service

import (
	"preface-cli/internal/api"
)

// RecordDisplay holds a display-ready history or favorites row.
type RecordDisplay struct {
	Key      string
	Date     string
	Prompt   string
	Response string
	Favorite bool
	FavIcon  string
}

const (
	promptWidth   = 48
	responseWidth = 72
)

// FormatRecordRow maps a raw PromptRecord to a display-ready struct.
// Favorites rows do not carry is_fav, so callers listing favorites pass
// forceFav.
func FormatRecordRow(r api.PromptRecord, forceFav bool) RecordDisplay {
	prompt := OneLine(StripHTML(r.Content))
	if prompt == "" {
		prompt = "(empty prompt)"
	}

	fav := forceFav || r.IsFav == 1
	icon := "☆"
	if fav {
		icon = "★"
	}

	return RecordDisplay{
		Key:      r.Key(),
		Date:     r.Date(),
		Prompt:   Truncate(prompt, promptWidth),
		Response: Truncate(OneLine(StripHTML(r.Response)), responseWidth),
		Favorite: fav,
		FavIcon:  icon,
	}
}

func FormatRecords(list *api.RecordList, forceFav bool) []RecordDisplay {
	if list == nil {
		return nil
	}
	rows := make([]RecordDisplay, 0, len(list.Records))
	for _, r := range list.Records {
		rows = append(rows, FormatRecordRow(r, forceFav))
	}
	return rows
}

// PageOrDefault treats anything below 1 as the first page.
func PageOrDefault(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
