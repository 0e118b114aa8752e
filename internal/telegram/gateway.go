package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/hotel-scout/internal/messaging"
	"github.com/Veraticus/hotel-scout/internal/service"
)

// Gateway implements service.Gateway on the Bot API.
// Edits that Telegram refuses are replaced by a new message and the old one is deleted.
type Gateway struct {
	api    *Client
	logger *slog.Logger
}

var _ service.Gateway = (*Gateway)(nil)

// NewGateway creates a gateway over api.
func NewGateway(api *Client, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{api: api, logger: logger.With("component", "telegram_gateway")}
}

// SendText sends a text message.
func (g *Gateway) SendText(ctx context.Context, chatID int64, text string, markup *messaging.Markup) (int, error) {
	msg, err := g.api.SendMessage(ctx, chatID, text, replyMarkup(markup))
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditText edits a text message in place, or sends a replacement.
func (g *Gateway) EditText(ctx context.Context, chatID int64, messageID int, text string, markup *messaging.Markup) (int, error) {
	// Reply keyboards can only be attached to new messages.
	if messageID == 0 || hasReplyKeyboard(markup) {
		return g.replace(ctx, chatID, messageID, func() (int, error) {
			return g.SendText(ctx, chatID, text, markup)
		})
	}
	_, err := g.api.EditMessageText(ctx, chatID, messageID, text, inlineMarkup(markup))
	if err == nil || IsNotModified(err) {
		return messageID, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	g.logger.Debug("Edit refused, sending a new message", "chat_id", chatID, "message_id", messageID, "error", err)
	return g.replace(ctx, chatID, messageID, func() (int, error) {
		return g.SendText(ctx, chatID, text, markup)
	})
}

// SendMedia sends a photo. When Telegram cannot fetch the photo the caption is sent as text.
func (g *Gateway) SendMedia(ctx context.Context, chatID int64, media messaging.Media, markup *messaging.Markup) (int, error) {
	msg, err := g.api.SendPhoto(ctx, chatID, media.URL, media.Caption, replyMarkup(markup))
	if err == nil {
		return msg.MessageID, nil
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Transient || apiErr.Err != nil {
		return 0, err
	}
	g.logger.Warn("Photo rejected, sending caption only", "chat_id", chatID, "url", media.URL, "error", err)
	return g.SendText(ctx, chatID, media.Caption, markup)
}

// EditMedia replaces a photo message in place, or sends a replacement.
func (g *Gateway) EditMedia(ctx context.Context, chatID int64, messageID int, media messaging.Media, markup *messaging.Markup) (int, error) {
	if messageID == 0 || hasReplyKeyboard(markup) {
		return g.replace(ctx, chatID, messageID, func() (int, error) {
			return g.SendMedia(ctx, chatID, media, markup)
		})
	}
	_, err := g.api.EditMessageMedia(ctx, chatID, messageID,
		InputMediaPhoto{Media: media.URL, Caption: media.Caption}, inlineMarkup(markup))
	if err == nil || IsNotModified(err) {
		return messageID, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	g.logger.Debug("Media edit refused, sending a new photo", "chat_id", chatID, "message_id", messageID, "error", err)
	return g.replace(ctx, chatID, messageID, func() (int, error) {
		return g.SendMedia(ctx, chatID, media, markup)
	})
}

// replace sends a new message and deletes the old one once the new one is shown.
func (g *Gateway) replace(ctx context.Context, chatID int64, oldID int, send func() (int, error)) (int, error) {
	id, err := send()
	if err != nil {
		return 0, err
	}
	if oldID != 0 {
		if derr := g.api.DeleteMessage(ctx, chatID, oldID); derr != nil {
			g.logger.Debug("Failed to delete replaced message", "chat_id", chatID, "message_id", oldID, "error", derr)
		}
	}
	return id, nil
}

// RemoveControls strips the inline keyboard from a message.
func (g *Gateway) RemoveControls(ctx context.Context, chatID int64, messageID int) error {
	if messageID == 0 {
		return nil
	}
	err := g.api.EditMessageReplyMarkup(ctx, chatID, messageID, nil)
	if err != nil && !IsNotModified(err) {
		return err
	}
	return nil
}

// DeleteMessages deletes every non-zero message id and reports all failures.
func (g *Gateway) DeleteMessages(ctx context.Context, chatID int64, messageIDs ...int) error {
	var errs []error
	for _, id := range messageIDs {
		if id == 0 {
			continue
		}
		if err := g.api.DeleteMessage(ctx, chatID, id); err != nil {
			errs = append(errs, fmt.Errorf("message %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// AnswerCallback acknowledges a button press.
func (g *Gateway) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	return g.api.AnswerCallbackQuery(ctx, callbackID, text, alert)
}

func hasReplyKeyboard(m *messaging.Markup) bool {
	return m != nil && (len(m.Reply) > 0 || m.RemoveReply)
}

func inlineMarkup(m *messaging.Markup) *InlineKeyboardMarkup {
	if m == nil || len(m.Inline) == 0 {
		return nil
	}
	rows := make([][]InlineKeyboardButton, 0, len(m.Inline))
	for _, row := range m.Inline {
		buttons := make([]InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

// replyMarkup converts markup for a new message. It returns an untyped nil when
// there is nothing to attach so the field is omitted from the request.
func replyMarkup(m *messaging.Markup) any {
	switch {
	case m == nil:
		return nil
	case len(m.Inline) > 0:
		return inlineMarkup(m)
	case len(m.Reply) > 0:
		rows := make([][]KeyboardButton, 0, len(m.Reply))
		for _, row := range m.Reply {
			buttons := make([]KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, KeyboardButton{Text: label})
			}
			rows = append(rows, buttons)
		}
		return &ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true}
	case m.RemoveReply:
		return &ReplyKeyboardRemove{RemoveKeyboard: true}
	default:
		return nil
	}
}
