package bot

import "strings"

// Sender identifies who an event came from and where replies go.
type Sender struct {
	Name   string
	UserID int64
	ChatID int64
}

// Event is a normalized chat input: a TextEvent or a CallbackEvent.
type Event interface {
	Source() Sender
	Kind() string
}

// TextEvent is a typed message, including commands and reply-keyboard presses.
type TextEvent struct {
	Text      string
	From      Sender
	MessageID int
}

// Source returns the sender.
func (e TextEvent) Source() Sender { return e.From }

// Kind returns "command" for slash commands and "text" otherwise.
func (e TextEvent) Kind() string {
	if _, ok := e.Command(); ok {
		return "command"
	}
	return "text"
}

// Command returns the command name without the slash or a @bot suffix.
func (e TextEvent) Command() (string, bool) {
	text := strings.TrimSpace(e.Text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name, _, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", false
	}
	return strings.ToLower(name), true
}

// CallbackEvent is an inline button press.
type CallbackEvent struct {
	ID        string
	Data      string
	From      Sender
	MessageID int
}

// Source returns the sender.
func (e CallbackEvent) Source() Sender { return e.From }

// Kind returns "callback".
func (e CallbackEvent) Kind() string { return "callback" }
