package models

// StreamEvent types, in emission order: sources first, then text fragments,
// terminated by exactly one done or error.
const (
	EventSources = "sources"
	EventText    = "text"
	EventDone    = "done"
	EventError   = "error"
)

// StreamEvent is one unit of the outbound chat protocol. Content is a string
// for text/error events, a []Source for sources, and empty for done.
type StreamEvent struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// TextEvent returns a text event carrying one completion fragment.
func TextEvent(fragment string) StreamEvent {
	return StreamEvent{Type: EventText, Content: fragment}
}

// SourcesEvent returns the sources event. Sources may be empty.
func SourcesEvent(sources []Source) StreamEvent {
	return StreamEvent{Type: EventSources, Content: sources}
}

// DoneEvent returns the terminal done event.
func DoneEvent() StreamEvent {
	return StreamEvent{Type: EventDone, Content: ""}
}

// ErrorEvent returns a terminal error event with a user-visible message.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Content: message}
}

// Source is a deduplicated citation shown alongside a generated answer.
// Score is nil for fallback sources (no vector match backed them).
type Source struct {
	Type         string   `json:"type"` // "book" or "pdf"
	ID           int64    `json:"id"`
	Title        string   `json:"title,omitempty"`
	Author       string   `json:"author,omitempty"`
	Category     string   `json:"category,omitempty"`
	RackLocation string   `json:"rack_location,omitempty"`
	Filename     string   `json:"filename,omitempty"`
	Page         *int     `json:"page,omitempty"`
	Score        *float64 `json:"score"`
}
