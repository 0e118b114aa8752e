package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/hotel-scout/internal/messaging"
	"github.com/Veraticus/hotel-scout/internal/session"
)

const historyPrompt = "For which date should I show your searches? You can also type it as YYYY-MM-DD."

func (b *Bot) historyCalendar(s *session.Session) *messaging.Markup {
	first := b.today().AddDate(0, 0, -(calendarDays - 1))
	return dateKeyboard(s.ID, pickHistory, first, calendarDays, true)
}

func (b *Bot) startHistory(ctx context.Context, s *session.Session) error {
	b.retire(ctx, s)
	s.Clear()
	if err := s.Transition(session.StateHistoryDate); err != nil {
		return err
	}
	id, err := b.gw.SendText(ctx, s.ChatID, historyPrompt, b.historyCalendar(s))
	if err != nil {
		return err
	}
	s.Messages.History = id
	return nil
}

func (b *Bot) typedHistoryDate(ctx context.Context, s *session.Session, text string) error {
	day, err := b.parseTypedDate(text)
	if err != nil {
		return b.say(ctx, s, "Please choose a date above or type it as YYYY-MM-DD.")
	}
	if day.After(b.today()) {
		return b.say(ctx, s, "That date is in the future. Please choose another one.")
	}
	return b.showHistory(ctx, s, &day)
}

// showHistory loads the searches made on day, or all of them when day is nil.
func (b *Bot) showHistory(ctx context.Context, s *session.Session, day *time.Time) error {
	if b.history == nil {
		return b.say(ctx, s, "Search history is not available.")
	}
	records, err := b.history.ReadHistory(ctx, s.UserID, day)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Error("Failed to read history", "user_id", s.UserID, "error", err)
		return b.say(ctx, s, "I could not read your search history. Please try again later.")
	}
	if len(records) == 0 {
		id, err := b.gw.EditText(ctx, s.ChatID, s.Messages.History,
			fmt.Sprintf("No searches found for %s. %s", historyDayLabel(day), historyPrompt),
			b.historyCalendar(s))
		if err != nil {
			return err
		}
		s.Messages.History = id
		return nil
	}

	if err := s.Transition(session.StateHistory); err != nil {
		return err
	}
	s.History = session.HistoryView{Day: day, Records: records}
	return b.renderHistory(ctx, s)
}

func (b *Bot) renderHistory(ctx context.Context, s *session.Session) error {
	v := s.History
	id, err := b.gw.EditText(ctx, s.ChatID, s.Messages.History,
		historyPageText(v.Records, v.Page, v.Day),
		historyKeyboard(s.ID, historyPages(len(v.Records))))
	if err != nil {
		return err
	}
	s.Messages.History = id
	return nil
}

func (b *Bot) stepHistory(ctx context.Context, s *session.Session, cb messaging.Callback) (answer, error) {
	step, ok := parseStep(cb.Arg(0))
	if !ok || len(s.History.Records) == 0 {
		return notice(msgInactiveButton), nil
	}
	s.History.Page = session.Wrap(s.History.Page, step, historyPages(len(s.History.Records)))
	return answer{}, b.renderHistory(ctx, s)
}
