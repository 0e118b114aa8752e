// Package bot runs the hotel search conversation: it turns chat events into
// session transitions, provider searches, and gateway output.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/hotel-scout/internal/common"
	"github.com/Veraticus/hotel-scout/internal/messaging"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/photos"
	"github.com/Veraticus/hotel-scout/internal/search"
	"github.com/Veraticus/hotel-scout/internal/service"
	"github.com/Veraticus/hotel-scout/internal/session"
)

const (
	msgInactiveButton = "This button is no longer active."
	msgMediaBusy      = "Please wait, the previous page is still loading."
	msgUseButtons     = "Please use the buttons above."
)

// Config wires the bot's collaborators. History and Enricher are optional.
type Config struct {
	Gateway  service.Gateway
	Provider service.TravelProvider
	History  service.HistoryStore
	Enricher *photos.Enricher
	Sessions *session.Store
	Logger   *slog.Logger
	Now      func() time.Time

	// Placeholder images shown in the photo slot; empty values fall back to text.
	SearchingPlaceholder string
	NotFoundPlaceholder  string
}

// Bot handles conversation events.
type Bot struct {
	gw        service.Gateway
	provider  service.TravelProvider
	history   service.HistoryStore
	enricher  *photos.Enricher
	sessions  *session.Store
	pipeline  *search.Pipeline
	logger    *slog.Logger
	now       func() time.Time
	searching string
	notFound  string
}

var _ Handler = (*Bot)(nil)

// New creates a bot.
func New(cfg Config) (*Bot, error) {
	if cfg.Gateway == nil || cfg.Provider == nil {
		return nil, fmt.Errorf("bot requires a gateway and a provider: %w", common.ErrMissingConfig)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewStore()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Bot{
		gw:        cfg.Gateway,
		provider:  cfg.Provider,
		history:   cfg.History,
		enricher:  cfg.Enricher,
		sessions:  sessions,
		pipeline:  search.NewPipeline(cfg.Provider, logger),
		logger:    logger.With("component", "bot"),
		now:       now,
		searching: cfg.SearchingPlaceholder,
		notFound:  cfg.NotFoundPlaceholder,
	}, nil
}

// Sessions returns the session store.
func (b *Bot) Sessions() *session.Store {
	return b.sessions
}

// Handle processes one event while holding the sender's session.
// ctx must outlive the event: photo tasks started here inherit it.
// Hotel and photo navigation also takes the sender's media lock; a press that
// arrives while another page is still being shown is answered and dropped.
func (b *Bot) Handle(ctx context.Context, ev Event) error {
	if a, ok := ev.(*admittedEvent); ok {
		defer a.Release()
		return b.handle(ctx, a.Event)
	}
	release, ok := b.lockNavigation(ctx, ev)
	if !ok {
		return nil
	}
	defer release()
	return b.handle(ctx, ev)
}

// Admit takes the media lock for a navigation press before it is queued, so a
// press arriving while the previous page is in flight is refused at once.
// The returned event carries the lock to Handle.
func (b *Bot) Admit(ctx context.Context, ev Event) (Event, bool) {
	if _, nav := navigationCallback(ev); !nav {
		return ev, true
	}
	release, ok := b.lockNavigation(ctx, ev)
	if !ok {
		return nil, false
	}
	return &admittedEvent{Event: ev, release: release}, true
}

// admittedEvent is a navigation press holding its user's media lock.
type admittedEvent struct {
	Event
	release func()
}

// Release gives up the media lock. It is safe to call more than once.
func (a *admittedEvent) Release() { a.release() }

func navigationCallback(ev Event) (CallbackEvent, bool) {
	e, ok := ev.(CallbackEvent)
	if !ok {
		return CallbackEvent{}, false
	}
	cb, err := messaging.DecodeCallback(e.Data)
	if err != nil || (cb.Action != actionHotel && cb.Action != actionPhoto) {
		return CallbackEvent{}, false
	}
	return e, true
}

// lockNavigation takes the media lock for navigation presses. Other events get
// a no-op release. A refused press is answered with the busy notice.
func (b *Bot) lockNavigation(ctx context.Context, ev Event) (func(), bool) {
	e, nav := navigationCallback(ev)
	if !nav {
		return func() {}, true
	}
	release, ok := b.sessions.TryLockMedia(e.From.UserID)
	if ok {
		return release, true
	}
	b.logger.Debug("Dropping navigation while media is busy", "user_id", e.From.UserID)
	if err := b.answerCallback(ctx, e.ID, answer{text: msgMediaBusy}); err != nil {
		b.logger.Debug("Callback answer failed", "user_id", e.From.UserID, "error", err)
	}
	return nil, false
}

func (b *Bot) handle(ctx context.Context, ev Event) error {
	from := ev.Source()
	return b.sessions.Update(from.UserID, from.ChatID, from.Name, func(s *session.Session) error {
		b.logger.Debug("Handling event", "user_id", from.UserID, "kind", ev.Kind(), "state", s.State)
		switch e := ev.(type) {
		case TextEvent:
			return b.onText(ctx, s, e)
		case CallbackEvent:
			return b.onCallback(ctx, s, e)
		default:
			return fmt.Errorf("unsupported event %T", ev)
		}
	})
}

func (b *Bot) onText(ctx context.Context, s *session.Session, e TextEvent) error {
	if cmd, ok := e.Command(); ok {
		return b.onCommand(ctx, s, cmd)
	}
	text := strings.TrimSpace(e.Text)

	switch s.State {
	case session.StateCitySearch:
		return b.searchCity(ctx, s, text)
	case session.StateCityConfirm:
		return b.say(ctx, s, "Please choose the city from the list above, or type /search to start over.")
	case session.StateCheckIn:
		return b.typedCheckIn(ctx, s, text)
	case session.StateCheckOut:
		return b.typedCheckOut(ctx, s, text)
	case session.StatePriceRange:
		return b.setPriceRange(ctx, s, text)
	case session.StateRadius:
		return b.setRadius(ctx, s, text)
	case session.StateSortingCriteria:
		return b.say(ctx, s, "Please choose the sorting criteria with the buttons above.")
	case session.StateSearchHotels:
		return b.say(ctx, s, "The search is still running.")
	case session.StateDisplayHotels:
		return b.onControl(ctx, s, text)
	case session.StateHistoryDate:
		return b.typedHistoryDate(ctx, s, text)
	case session.StateHistory:
		return b.say(ctx, s, msgUseButtons)
	default:
		return b.say(ctx, s, "Type /help to see what I can do.")
	}
}

func (b *Bot) onCommand(ctx context.Context, s *session.Session, cmd string) error {
	switch cmd {
	case "start":
		b.retire(ctx, s)
		s.Clear()
		if _, err := b.gw.SendText(ctx, s.ChatID,
			fmt.Sprintf("Hi, %s! I can help you find a hotel in the city you need.", s.UserName),
			removeReplyMarkup()); err != nil {
			return err
		}
		return b.begin(ctx, s, "")
	case "help":
		return b.say(ctx, s, helpText)
	case "search":
		return b.begin(ctx, s, "")
	case "history":
		return b.startHistory(ctx, s)
	}
	if sortCmd, err := model.ParseSortCommand(cmd); err == nil {
		return b.begin(ctx, s, sortCmd)
	}
	return b.say(ctx, s, "Unknown command. Type /help to see what I can do.")
}

// answer is the reply to a callback query.
type answer struct {
	text  string
	alert bool
}

func notice(text string) answer {
	return answer{text: text, alert: true}
}

type callbackHandler func(ctx context.Context, s *session.Session, cb messaging.Callback) (answer, error)

func (b *Bot) onCallback(ctx context.Context, s *session.Session, e CallbackEvent) error {
	cb, err := messaging.DecodeCallback(e.Data)
	if err != nil {
		b.logger.Warn("Ignoring malformed callback", "user_id", s.UserID, "data", e.Data)
		return b.answerCallback(ctx, e.ID, notice(msgInactiveButton))
	}
	if cb.SessionID != s.ID {
		b.logger.Debug("Stale callback", "user_id", s.UserID, "action", cb.Action)
		return b.answerCallback(ctx, e.ID, notice(msgInactiveButton))
	}

	handlers := map[string]struct {
		handle callbackHandler
		state  session.State
	}{
		actionCity:        {b.chooseCity, session.StateCityConfirm},
		actionSort:        {b.chooseSort, session.StateSortingCriteria},
		actionHotel:       {b.stepHotel, session.StateDisplayHotels},
		actionPhoto:       {b.stepPhoto, session.StateDisplayHotels},
		actionOffer:       {b.acceptOffer, session.StateDisplayHotels},
		actionHistoryPage: {b.stepHistory, session.StateHistory},
	}

	var h callbackHandler
	if cb.Action == actionDate {
		h = b.chooseDate
	} else if entry, ok := handlers[cb.Action]; ok && s.State == entry.state {
		h = entry.handle
	}
	if h == nil {
		return b.answerCallback(ctx, e.ID, notice(msgInactiveButton))
	}

	ans, err := h(ctx, s, cb)
	if aerr := b.answerCallback(ctx, e.ID, ans); aerr != nil {
		b.logger.Debug("Callback answer failed", "user_id", s.UserID, "action", cb.Action, "error", aerr)
	}
	return err
}

func (b *Bot) answerCallback(ctx context.Context, id string, ans answer) error {
	if err := b.gw.AnswerCallback(ctx, id, ans.text, ans.alert); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func (b *Bot) say(ctx context.Context, s *session.Session, text string) error {
	_, err := b.gw.SendText(ctx, s.ChatID, text, nil)
	return err
}

// retire stops photo work and detaches the controls of the displayed results.
func (b *Bot) retire(ctx context.Context, s *session.Session) {
	b.cancelPhotos(s)
	for _, id := range []int{s.Messages.Hotel, s.Messages.Photo, s.Messages.History, s.Messages.Calendar} {
		if id == 0 {
			continue
		}
		if err := b.gw.RemoveControls(ctx, s.ChatID, id); err != nil {
			b.logger.Debug("Failed to remove controls", "user_id", s.UserID, "message_id", id, "error", err)
		}
	}
	s.Messages.Hotel = 0
	s.Messages.Photo = 0
	s.Messages.History = 0
	s.Messages.Calendar = 0
}

func (b *Bot) cancelPhotos(s *session.Session) {
	if b.enricher == nil {
		return
	}
	b.enricher.Cancel(s.UserID)
	if s.Photo == session.PhotoLoading {
		s.Photo = session.PhotoCancelled
	}
}

func (b *Bot) deleteMessages(ctx context.Context, s *session.Session, ids ...int) {
	var live []int
	for _, id := range ids {
		if id != 0 {
			live = append(live, id)
		}
	}
	if len(live) == 0 {
		return
	}
	if err := b.gw.DeleteMessages(ctx, s.ChatID, live...); err != nil {
		b.logger.Debug("Failed to delete messages", "user_id", s.UserID, "error", err)
	}
}
