package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/hotel-scout/internal/bot"
	"github.com/Veraticus/hotel-scout/internal/common"
	"github.com/cenkalti/backoff/v4"
)

// Poll backoff bounds.
const (
	pollInitialBackoff = time.Second
	pollMaxBackoff     = time.Minute
)

// EventSink receives converted updates. bot.Dispatcher is the production sink.
type EventSink interface {
	Dispatch(ctx context.Context, ev bot.Event) error
}

// Poller long-polls getUpdates and hands each update to a sink.
type Poller struct {
	api        *Client
	sink       EventSink
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
	timeout    time.Duration
}

// NewPoller creates a poller. A non-positive timeout uses DefaultPollTimeout.
func NewPoller(api *Client, sink EventSink, timeout time.Duration, logger *slog.Logger) *Poller {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		api:        api,
		sink:       sink,
		logger:     logger.With("component", "poller"),
		newBackOff: defaultBackOff,
		timeout:    timeout,
	}
}

func defaultBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = pollInitialBackoff
	exp.MaxInterval = pollMaxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}

// Run polls until ctx is cancelled. Failed polls back off exponentially and the
// backoff resets after a successful poll. Only an invalid token stops it early.
func (p *Poller) Run(ctx context.Context) error {
	offset := 0
	wait := p.newBackOff()

	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := p.api.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if fatalPollError(err) {
				return fmt.Errorf("polling stopped: %w", err)
			}
			delay := wait.NextBackOff()
			if hint, ok := common.RetryDelayHint(err); ok && hint > delay {
				delay = hint
			}
			p.logger.Warn("Polling failed, backing off", "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		wait.Reset()

		for _, u := range updates {
			offset = u.UpdateID + 1
			ev, ok := eventFromUpdate(u)
			if !ok {
				p.logger.Debug("Ignoring update", "update_id", u.UpdateID)
				continue
			}
			if err := p.sink.Dispatch(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Error("Failed to dispatch update", "update_id", u.UpdateID, "error", err)
			}
		}
	}
}

func fatalPollError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Err != nil {
		return false
	}
	return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusNotFound
}

// eventFromUpdate converts text messages and button presses. Other updates are ignored.
func eventFromUpdate(u Update) (bot.Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		ev := bot.CallbackEvent{
			ID:   q.ID,
			Data: q.Data,
			From: bot.Sender{Name: q.From.DisplayName(), UserID: q.From.ID, ChatID: q.From.ID},
		}
		if q.Message != nil {
			ev.From.ChatID = q.Message.Chat.ID
			ev.MessageID = q.Message.MessageID
		}
		return ev, true
	case u.Message != nil && u.Message.From != nil && u.Message.Text != "":
		m := u.Message
		return bot.TextEvent{
			Text:      m.Text,
			From:      bot.Sender{Name: m.From.DisplayName(), UserID: m.From.ID, ChatID: m.Chat.ID},
			MessageID: m.MessageID,
		}, true
	default:
		return nil, false
	}
}
