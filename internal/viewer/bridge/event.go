package bridge

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// MaxMessageSize bounds a single event message
const MaxMessageSize = 16 * 1024

// Kind tags an outbound event
type Kind string

const (
	KindLog     Kind = "log"
	KindLoaded  Kind = "loaded"
	KindError   Kind = "error"
	KindClicked Kind = "clicked"
)

// Valid reports whether k is a known event kind
func (k Kind) Valid() bool {
	switch k {
	case KindLog, KindLoaded, KindError, KindClicked:
		return true
	}
	return false
}

// Event is a typed sandbox to host message
type Event struct {
	Kind     Kind      `json:"kind"`
	Message  string    `json:"message,omitempty"`
	Received time.Time `json:"-"`
}

// Log builds a log event
func Log(message string) Event {
	return Event{Kind: KindLog, Message: message}
}

// Error builds an error event
func Error(message string) Event {
	return Event{Kind: KindError, Message: message}
}

// Loaded builds a loaded event
func Loaded() Event {
	return Event{Kind: KindLoaded}
}

// Clicked builds a clicked event
func Clicked() Event {
	return Event{Kind: KindClicked}
}

// ParseMessage decodes a raw outbound string. Free text, malformed JSON and
// unknown kinds all become log events carrying the raw text.
func ParseMessage(raw string) Event {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && len(trimmed) <= 4*MaxMessageSize {
		var ev Event
		if err := sonic.UnmarshalString(trimmed, &ev); err == nil && ev.Kind.Valid() {
			ev.Message = truncate(ev.Message)
			return ev
		}
	}
	return Log(truncate(raw))
}

// Encode renders the event in its wire form
func (e Event) Encode() (string, error) {
	return sonic.MarshalString(e)
}

func truncate(s string) string {
	if len(s) <= MaxMessageSize {
		return s
	}
	cut := MaxMessageSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// CommandType names a host to sandbox command
type CommandType string

// CommandLoad asks the document to run loadImageUrl
const CommandLoad CommandType = "load"

// Command is a host to sandbox message
type Command struct {
	Type CommandType `json:"type"`
}

// Encode renders the command in its wire form
func (c Command) Encode() ([]byte, error) {
	return sonic.Marshal(c)
}
