package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"preface-cli/internal/api"
)

func TestFormatRecordRow(t *testing.T) {
	tests := []struct {
		name     string
		rec      api.PromptRecord
		forceFav bool
		want     RecordDisplay
	}{
		{
			name: "history row",
			rec: api.PromptRecord{
				PromptID:  "101",
				Content:   "Write a preface\nfor my book",
				Response:  "Tone: warm<br/>Goal: invite",
				CreatedAt: "2024-05-01 10:00:00",
				IsFav:     1,
			},
			want: RecordDisplay{
				Key:      "101",
				Date:     "2024-05-01",
				Prompt:   "Write a preface for my book",
				Response: "Tone: warm Goal: invite",
				Favorite: true,
				FavIcon:  "★",
			},
		},
		{
			name: "not favorited",
			rec:  api.PromptRecord{PromptID: "5", Content: "q"},
			want: RecordDisplay{Key: "5", Prompt: "q", FavIcon: "☆"},
		},
		{
			name:     "favorites row",
			rec:      api.PromptRecord{ID: "9", Content: "q"},
			forceFav: true,
			want:     RecordDisplay{Key: "9", Prompt: "q", Favorite: true, FavIcon: "★"},
		},
		{
			name: "empty prompt",
			rec:  api.PromptRecord{ID: "1"},
			want: RecordDisplay{Key: "1", Prompt: "(empty prompt)", FavIcon: "☆"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatRecordRow(tt.rec, tt.forceFav)
			if got != tt.want {
				t.Errorf("FormatRecordRow() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFormatRecordRowTruncates(t *testing.T) {
	rec := api.PromptRecord{ID: "1", Content: strings.Repeat("序", 100)}
	got := FormatRecordRow(rec, false)
	if n := utf8.RuneCountInString(got.Prompt); n != promptWidth {
		t.Errorf("prompt length = %d runes, want %d", n, promptWidth)
	}
	if !strings.HasSuffix(got.Prompt, "…") {
		t.Errorf("prompt = %q, want ellipsis", got.Prompt)
	}
}

func TestFormatRecords(t *testing.T) {
	if rows := FormatRecords(nil, false); rows != nil {
		t.Errorf("FormatRecords(nil) = %v, want nil", rows)
	}
	list := &api.RecordList{Records: []api.PromptRecord{{ID: "1"}, {ID: "2"}}}
	rows := FormatRecords(list, true)
	if len(rows) != 2 || rows[1].Key != "2" || !rows[0].Favorite {
		t.Errorf("FormatRecords() = %+v", rows)
	}
}

func TestPageOrDefault(t *testing.T) {
	for in, want := range map[int]int{-1: 1, 0: 1, 1: 1, 7: 7} {
		if got := PageOrDefault(in); got != want {
			t.Errorf("PageOrDefault(%d) = %d, want %d", in, got, want)
		}
	}
}
