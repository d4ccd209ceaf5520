package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"preface-cli/internal/stream"
)

const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"
)

func Header(text string) {
	fmt.Printf("\n%s%s%s\n", Bold+Cyan, text, Reset)
	fmt.Println(strings.Repeat("─", min(len(text)+4, 80)))
}

func SubHeader(text string) {
	fmt.Printf("%s%s%s\n", Bold+White, text, Reset)
}

func Success(text string) {
	fmt.Printf("%s✓%s %s\n", Green, Reset, text)
}

func Error(text string) {
	fmt.Fprintf(os.Stderr, "%s✗%s %s\n", Red, Reset, text)
}

func Warn(text string) {
	fmt.Printf("%s!%s %s\n", Yellow, Reset, text)
}

func Info(label, value string) {
	fmt.Printf("  %s%-20s%s %s\n", Dim, label, Reset, value)
}

func Spinner(text string) {
	fmt.Printf("\r%s⟳%s %s", Yellow, Reset, text)
}

func ClearLine() {
	fmt.Print("\r\033[K")
}

// StateLabel colors a generation state for status lines.
func StateLabel(s stream.State) string {
	labels := map[stream.State]string{
		stream.Idle:              Gray + "Idle" + Reset,
		stream.Connecting:        Yellow + "⟳ Connecting" + Reset,
		stream.Forwarding:        Yellow + "⟳ Generating" + Reset,
		stream.Completed:         Green + "✓ Completed" + Reset,
		stream.ErroredInBand:     Red + "✗ Error" + Reset,
		stream.ErroredBeforeSend: Red + "✗ Failed" + Reset,
		stream.Cancelled:         Gray + "⊘ Stopped" + Reset,
	}
	if label, ok := labels[s]; ok {
		return label
	}
	return s.String()
}

// FavLabel renders the favorite marker of a history row.
func FavLabel(fav bool) string {
	if fav {
		return Yellow + "★" + Reset
	}
	return Gray + "☆" + Reset
}

// FormatTime reformats service timestamps to local time. Values that do not
// parse are returned as-is.
func FormatTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return ts
		}
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
