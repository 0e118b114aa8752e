package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Veraticus/hotel-scout/internal/bot"
	"github.com/Veraticus/hotel-scout/internal/messaging"
	"github.com/Veraticus/hotel-scout/internal/service"
)

// Console input errors.
var (
	ErrUnknownButton  = errors.New("no such button")
	ErrUnknownControl = errors.New("no such control")
)

const quitCommand = "/quit"

type consoleMessage struct {
	media  *messaging.Media
	markup *messaging.Markup
	text   string
}

type consoleButton struct {
	data      string
	messageID int
}

// Console is a chat gateway for the terminal. Inline buttons of the messages on
// screen are numbered and chosen with "#N"; reply controls are chosen with "!N".
type Console struct {
	out       io.Writer
	reader    *NonBlockingReader
	messages  map[int]*consoleMessage
	buttons   map[int]consoleButton
	controls  []string
	user      bot.Sender
	nextID    int
	nextBtn   int
	callbacks int
	mu        sync.Mutex
}

var _ service.Gateway = (*Console)(nil)

// NewConsole creates a console gateway reading from in and rendering to out.
func NewConsole(in io.Reader, out io.Writer, user bot.Sender) *Console {
	return &Console{
		out:      out,
		reader:   NewNonBlockingReader(in),
		messages: make(map[int]*consoleMessage),
		buttons:  make(map[int]consoleButton),
		user:     user,
	}
}

// Run reads lines and hands them to handler one at a time until the input ends,
// ctx is cancelled, or the user types /quit.
func (c *Console) Run(ctx context.Context, handler bot.Handler) error {
	c.print(FormatTitle("Hotel Scout") + "\n" +
		SubtleStyle.Render("Type /help to start, #N to press a button, !N for a control, /quit to leave.") + "\n")

	for {
		line, err := c.reader.ReadLine(ctx)
		switch {
		case errors.Is(err, ErrInputCancelled), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("failed to read input: %w", err)
		}
		if line == "" {
			continue
		}
		if strings.EqualFold(line, quitCommand) {
			return nil
		}

		ev, err := c.Event(line)
		if err != nil {
			c.print(FormatError(err.Error()) + "\n")
			continue
		}
		if err := handler.Handle(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.print(FormatError(err.Error()) + "\n")
		}
	}
}

// Event converts one input line into a conversation event.
func (c *Console) Event(line string) (bot.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case strings.HasPrefix(line, "#"):
		n, err := strconv.Atoi(strings.TrimPrefix(line, "#"))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownButton, line)
		}
		b, ok := c.buttons[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownButton, line)
		}
		c.callbacks++
		return bot.CallbackEvent{
			ID:        "console-" + strconv.Itoa(c.callbacks),
			Data:      b.data,
			From:      c.user,
			MessageID: b.messageID,
		}, nil
	case strings.HasPrefix(line, "!"):
		n, err := strconv.Atoi(strings.TrimPrefix(line, "!"))
		if err != nil || n < 1 || n > len(c.controls) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownControl, line)
		}
		return bot.TextEvent{Text: c.controls[n-1], From: c.user}, nil
	default:
		return bot.TextEvent{Text: line, From: c.user}, nil
	}
}

// SendText prints a new message.
func (c *Console) SendText(_ context.Context, _ int64, text string, markup *messaging.Markup) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.add(&consoleMessage{text: text, markup: markup}), nil
}

// EditText reprints a message with new content. Identical content is not reprinted.
func (c *Console) EditText(_ context.Context, _ int64, messageID int, text string, markup *messaging.Markup) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edit(messageID, &consoleMessage{text: text, markup: markup}), nil
}

// SendMedia prints a photo as its URL and caption.
func (c *Console) SendMedia(_ context.Context, _ int64, media messaging.Media, markup *messaging.Markup) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.add(&consoleMessage{media: &media, markup: markup}), nil
}

// EditMedia reprints a photo message.
func (c *Console) EditMedia(_ context.Context, _ int64, messageID int, media messaging.Media, markup *messaging.Markup) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edit(messageID, &consoleMessage{media: &media, markup: markup}), nil
}

// RemoveControls retires a message's buttons.
func (c *Console) RemoveControls(_ context.Context, _ int64, messageID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.messages[messageID]; ok && m.markup != nil {
		m.markup = nil
		c.dropButtons(messageID)
	}
	return nil
}

// DeleteMessages forgets messages and their buttons.
func (c *Console) DeleteMessages(_ context.Context, _ int64, messageIDs ...int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range messageIDs {
		delete(c.messages, id)
		c.dropButtons(id)
	}
	return nil
}

// AnswerCallback prints a callback notice or alert.
func (c *Console) AnswerCallback(_ context.Context, _ string, text string, alert bool) error {
	if text == "" {
		return nil
	}
	if alert {
		c.print(FormatWarning(text) + "\n")
	} else {
		c.print(FormatInfo(text) + "\n")
	}
	return nil
}

// add stores and prints a message. Callers hold c.mu.
func (c *Console) add(m *consoleMessage) int {
	c.nextID++
	id := c.nextID
	c.messages[id] = m
	c.render(id, m, false)
	return id
}

// edit replaces a message in place, or adds it when the target is gone.
// A reply keyboard is attached to a new message, as in Telegram.
func (c *Console) edit(id int, m *consoleMessage) int {
	old, ok := c.messages[id]
	if !ok || id == 0 {
		return c.add(m)
	}
	if m.markup != nil && (len(m.markup.Reply) > 0 || m.markup.RemoveReply) {
		delete(c.messages, id)
		c.dropButtons(id)
		return c.add(m)
	}
	if reflect.DeepEqual(old, m) {
		return id
	}
	c.dropButtons(id)
	c.messages[id] = m
	c.render(id, m, true)
	return id
}

func (c *Console) dropButtons(messageID int) {
	for n, b := range c.buttons {
		if b.messageID == messageID {
			delete(c.buttons, n)
		}
	}
	if len(c.buttons) == 0 {
		c.nextBtn = 0
	}
}

// render prints a message box, numbering its buttons. Callers hold c.mu.
func (c *Console) render(id int, m *consoleMessage, edited bool) {
	title := fmt.Sprintf("%s message %d", HotelIcon, id)
	if edited {
		title += " (edited)"
	}

	var body strings.Builder
	if m.media != nil {
		body.WriteString(PhotoIcon + " " + SubtleStyle.Render(m.media.URL))
		if m.media.Caption != "" {
			body.WriteString("\n" + m.media.Caption)
		}
	} else {
		body.WriteString(m.text)
	}

	if m.markup != nil {
		for _, row := range m.markup.Inline {
			labels := make([]string, 0, len(row))
			for _, b := range row {
				c.nextBtn++
				c.buttons[c.nextBtn] = consoleButton{data: b.Data, messageID: id}
				labels = append(labels, ButtonStyle.Render(fmt.Sprintf("[#%d] %s", c.nextBtn, b.Text)))
			}
			body.WriteString("\n" + strings.Join(labels, "  "))
		}
		switch {
		case len(m.markup.Reply) > 0:
			c.controls = c.controls[:0]
			for _, row := range m.markup.Reply {
				c.controls = append(c.controls, row...)
			}
		case m.markup.RemoveReply:
			c.controls = nil
		}
	}

	out := RenderBox(title, body.String()) + "\n"
	if m.markup != nil && len(m.markup.Reply) > 0 {
		out += c.renderControls()
	}
	c.write(out)
}

func (c *Console) renderControls() string {
	labels := make([]string, 0, len(c.controls))
	for i, label := range c.controls {
		labels = append(labels, ControlStyle.Render(fmt.Sprintf("!%d %s", i+1, label)))
	}
	return strings.Join(labels, "  ") + "\n"
}

// Buttons returns the numbers of the buttons currently on screen, ascending.
func (c *Console) Buttons() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.buttons))
	for n := range c.buttons {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (c *Console) print(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.write(s)
}

func (c *Console) write(s string) {
	_, _ = io.WriteString(c.out, s)
}
