package stream

import "fmt"

type EventKind int

const (
	EventContent EventKind = iota
	EventError
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventContent:
		return "content"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// DeltaEvent is what a frame means to the render side. Text holds the delta
// for EventContent and the message for EventError.
type DeltaEvent struct {
	Kind EventKind
	Text string
}

// Dispatcher classifies frames and latches the first prompt id it sees.
type Dispatcher struct {
	promptID string
}

// Dispatch returns zero, one or two events for f. A chat-delta frame that
// carries content and finish_reason "stop" yields the content then End.
// Unrecognized shapes yield nothing.
func (d *Dispatcher) Dispatch(f Frame) []DeltaEvent {
	if !f.CodeIsZero() {
		msg := f.Msg
		if msg == "" {
			msg = fmt.Sprintf("Error code: %s", f.Code)
		}
		return []DeltaEvent{{Kind: EventError, Text: msg}}
	}

	if f.ID != "" && d.promptID == "" {
		d.promptID = f.ID
	}

	switch {
	case f.HasChoices:
		var events []DeltaEvent
		if f.Delta != "" {
			events = append(events, DeltaEvent{Kind: EventContent, Text: f.Delta})
		}
		if f.FinishReason == "stop" {
			events = append(events, DeltaEvent{Kind: EventEnd})
		}
		return events
	case f.Content != "":
		return []DeltaEvent{{Kind: EventContent, Text: f.Content}}
	case f.HasMsg && f.Msg != "":
		return []DeltaEvent{{Kind: EventContent, Text: f.Msg}}
	}
	return nil
}

// PromptID is the first frame id seen, or "".
func (d *Dispatcher) PromptID() string {
	return d.promptID
}
