// Package messaging defines the transport-neutral message shapes exchanged with chat gateways.
package messaging

import (
	"errors"
	"fmt"
	"strings"
)

// MaxCallbackData is the largest callback payload Telegram accepts, in bytes.
const MaxCallbackData = 64

const callbackSeparator = "|"

// Callback data errors.
var (
	ErrCallbackTooLong   = errors.New("callback data exceeds 64 bytes")
	ErrMalformedCallback = errors.New("malformed callback data")
)

// Button is an inline button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Markup describes the controls attached to a message.
// Inline rows are attached to the message itself; Reply rows replace the user's keyboard.
type Markup struct {
	Inline      [][]Button
	Reply       [][]string
	RemoveReply bool
}

// InlineRows builds inline markup from button rows.
func InlineRows(rows ...[]Button) *Markup {
	return &Markup{Inline: rows}
}

// Buttons flattens inline rows into display order.
func (m *Markup) Buttons() []Button {
	if m == nil {
		return nil
	}
	var out []Button
	for _, row := range m.Inline {
		out = append(out, row...)
	}
	return out
}

// Media is a photo with a caption.
type Media struct {
	URL     string
	Caption string
}

// Callback is decoded callback data: an action, the session it belongs to, and arguments.
type Callback struct {
	Action    string
	SessionID string
	Args      []string
}

// Arg returns the i-th argument or an empty string.
func (c Callback) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// EncodeCallback joins an action, a session id and arguments into callback data.
func EncodeCallback(action, sessionID string, args ...string) (string, error) {
	parts := append([]string{action, sessionID}, args...)
	for _, p := range parts {
		if strings.Contains(p, callbackSeparator) {
			return "", fmt.Errorf("%w: %q contains separator", ErrMalformedCallback, p)
		}
	}
	data := strings.Join(parts, callbackSeparator)
	if len(data) > MaxCallbackData {
		return "", fmt.Errorf("%w: %d bytes", ErrCallbackTooLong, len(data))
	}
	return data, nil
}

// MustEncodeCallback is EncodeCallback for payloads known to fit.
func MustEncodeCallback(action, sessionID string, args ...string) string {
	data, err := EncodeCallback(action, sessionID, args...)
	if err != nil {
		panic(err)
	}
	return data
}

// DecodeCallback splits callback data produced by EncodeCallback.
func DecodeCallback(data string) (Callback, error) {
	parts := strings.Split(data, callbackSeparator)
	if len(parts) < 2 || parts[0] == "" {
		return Callback{}, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
	}
	return Callback{Action: parts[0], SessionID: parts[1], Args: parts[2:]}, nil
}
