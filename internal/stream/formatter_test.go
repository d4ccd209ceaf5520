package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Section
	}{
		{
			name: "empty",
			text: "",
			want: []Section{},
		},
		{
			name: "whitespace only",
			text: " \n\n \n",
			want: []Section{},
		},
		{
			name: "titled sections",
			text: "Tone: formal\n\nGoal: clarity",
			want: []Section{
				{Title: "Tone", Lines: []string{"formal"}},
				{Title: "Goal", Lines: []string{"clarity"}},
			},
		},
		{
			name: "untitled block",
			text: "just some text\nsecond line",
			want: []Section{
				{Lines: []string{"just some text", "second line"}},
			},
		},
		{
			name: "colon rejoined in body",
			text: "Time: 10:30 am",
			want: []Section{
				{Title: "Time", Lines: []string{"10:30 am"}},
			},
		},
		{
			name: "body lines trimmed and blank lines dropped",
			text: "Steps:\n  one  \n \n\n\n  two\n",
			want: []Section{
				{Title: "Steps", Lines: []string{"one"}},
				{Lines: []string{"two"}},
			},
		},
		{
			name: "title still being typed",
			text: "Role:",
			want: []Section{
				{Title: "Role", Lines: []string{}},
			},
		},
		{
			name: "leading colon",
			text: ":orphan",
			want: []Section{
				{Lines: []string{"orphan"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.text))
		})
	}
}

func TestFormatIdempotent(t *testing.T) {
	inputs := []string{
		"Tone: formal\n\nGoal: clarity",
		"plain\ntext",
		"Time: 10:30\nnext: line",
		":a:b\n\nc",
		"Role:\n\n:",
		"a\nb: c\n\n  \n\nTail",
		"Error: quota exceeded",
	}
	for _, in := range inputs {
		first := Format(in)
		assert.Equal(t, first, Format(Text(first)), "input %q", in)
	}
}
