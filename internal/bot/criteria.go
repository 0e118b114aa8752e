package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/hotel-scout/internal/locale"
	"github.com/Veraticus/hotel-scout/internal/messaging"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/session"
)

// typedDateLayouts are the accepted formats for dates entered as text.
var typedDateLayouts = []string{model.DateLayout, "02.01.2006"}

var errBadDate = errors.New("unrecognized date")

func (b *Bot) today() time.Time {
	return model.Day(b.now())
}

func (b *Bot) parseTypedDate(text string) (time.Time, error) {
	loc := b.now().Location()
	for _, layout := range typedDateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(text), loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errBadDate, text)
}

// begin starts a new search. An empty sort leaves the choice for after the radius.
func (b *Bot) begin(ctx context.Context, s *session.Session, sortCmd model.SortCommand) error {
	b.retire(ctx, s)
	s.Begin(sortCmd)
	id, err := b.gw.SendText(ctx, s.ChatID,
		"In which city should I search? Enter the name in English.", removeReplyMarkup())
	if err != nil {
		return err
	}
	s.Messages.Prompt = id
	return nil
}

func (b *Bot) searchCity(ctx context.Context, s *session.Session, text string) error {
	if text == "" {
		return b.say(ctx, s, "Please enter a city name.")
	}
	cities, err := b.provider.FindCities(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Error("City lookup failed", "user_id", s.UserID, "keyword", text, "error", err)
		return b.say(ctx, s, "The city search is unavailable right now. Please try again later.")
	}
	if len(cities) == 0 {
		return b.say(ctx, s, fmt.Sprintf("I could not find a city called %q. Check the spelling and try again.", text))
	}

	if err := s.Transition(session.StateCityConfirm); err != nil {
		return err
	}
	s.Cities = cities
	id, err := b.gw.SendText(ctx, s.ChatID, "Please choose the city:", cityKeyboard(s.ID, cities))
	if err != nil {
		return err
	}
	s.Messages.Prompt = id
	return nil
}

func (b *Bot) chooseCity(ctx context.Context, s *session.Session, cb messaging.Callback) (answer, error) {
	i, err := strconv.Atoi(cb.Arg(0))
	if err != nil || i < 0 || i >= len(s.Cities) {
		return notice(msgInactiveButton), nil
	}
	city := s.Cities[i]
	s.Draft.City = city
	s.Draft.Currency = locale.CurrencyFor(city.CountryCode)
	s.Cities = nil

	if _, err := b.gw.EditText(ctx, s.ChatID, s.Messages.Prompt, "🌇 City: "+city.Label(), nil); err != nil {
		return answer{}, err
	}
	s.Messages.Prompt = 0

	if s.TakeReturnToDisplay() {
		return answer{}, b.startSearch(ctx, s)
	}
	if err := s.Transition(session.StateCheckIn); err != nil {
		return answer{}, err
	}
	return answer{}, b.showCalendar(ctx, s, pickCheckIn)
}

// showCalendar puts a date picker into the calendar slot.
func (b *Bot) showCalendar(ctx context.Context, s *session.Session, kind string) error {
	var (
		text  string
		first time.Time
	)
	switch kind {
	case pickCheckIn:
		text = "Choose the check-in date, or type it as YYYY-MM-DD:"
		first = b.today()
	case pickCheckOut:
		text = fmt.Sprintf("Check-in: %s. Choose the check-out date, or type it as YYYY-MM-DD:",
			s.Draft.Dates.CheckIn.Format(model.DateLayout))
		first = s.Draft.Dates.CheckIn.AddDate(0, 0, 1)
	default:
		return fmt.Errorf("unknown date picker %q", kind)
	}
	id, err := b.gw.EditText(ctx, s.ChatID, s.Messages.Calendar, text,
		dateKeyboard(s.ID, kind, first, calendarDays, false))
	if err != nil {
		return err
	}
	s.Messages.Calendar = id
	return nil
}

func (b *Bot) chooseDate(ctx context.Context, s *session.Session, cb messaging.Callback) (answer, error) {
	kind := cb.Arg(0)
	want := map[string]session.State{
		pickCheckIn:  session.StateCheckIn,
		pickCheckOut: session.StateCheckOut,
		pickHistory:  session.StateHistoryDate,
	}
	if state, ok := want[kind]; !ok || s.State != state {
		return notice(msgInactiveButton), nil
	}

	if kind == pickHistory && cb.Arg(1) == pickAllDates {
		return answer{}, b.showHistory(ctx, s, nil)
	}
	day, err := time.ParseInLocation(callbackDateLayout, cb.Arg(1), b.now().Location())
	if err != nil {
		return notice(msgInactiveButton), nil
	}

	switch kind {
	case pickCheckIn:
		return answer{}, b.setCheckIn(ctx, s, day)
	case pickCheckOut:
		return answer{}, b.setCheckOut(ctx, s, day)
	default:
		return answer{}, b.showHistory(ctx, s, &day)
	}
}

func (b *Bot) typedCheckIn(ctx context.Context, s *session.Session, text string) error {
	day, err := b.parseTypedDate(text)
	if err != nil {
		return b.say(ctx, s, "Please choose a date above or type it as YYYY-MM-DD.")
	}
	return b.setCheckIn(ctx, s, day)
}

func (b *Bot) typedCheckOut(ctx context.Context, s *session.Session, text string) error {
	day, err := b.parseTypedDate(text)
	if err != nil {
		return b.say(ctx, s, "Please choose a date above or type it as YYYY-MM-DD.")
	}
	return b.setCheckOut(ctx, s, day)
}

func (b *Bot) setCheckIn(ctx context.Context, s *session.Session, day time.Time) error {
	if day.Before(b.today()) {
		return b.say(ctx, s, "The check-in date cannot be in the past. Please choose another date.")
	}
	s.Draft.Dates.CheckIn = day
	if !s.Draft.Dates.CheckOut.After(day) {
		s.Draft.Dates.CheckOut = time.Time{}
	}
	if err := s.Transition(session.StateCheckOut); err != nil {
		return err
	}
	return b.showCalendar(ctx, s, pickCheckOut)
}

func (b *Bot) setCheckOut(ctx context.Context, s *session.Session, day time.Time) error {
	dates := model.DateRange{CheckIn: s.Draft.Dates.CheckIn, CheckOut: day}
	if err := dates.Validate(b.today()); err != nil {
		if errors.Is(err, model.ErrDateInPast) {
			if terr := s.Transition(session.StateCheckIn); terr != nil {
				return terr
			}
			if err := b.say(ctx, s, "The check-in date is already in the past. Please choose it again."); err != nil {
				return err
			}
			return b.showCalendar(ctx, s, pickCheckIn)
		}
		return b.say(ctx, s, "The check-out date must be after the check-in date. Please choose another date.")
	}
	s.Draft.Dates = dates

	if _, err := b.gw.EditText(ctx, s.ChatID, s.Messages.Calendar, datesText(dates), nil); err != nil {
		return err
	}
	s.Messages.Calendar = 0

	if s.TakeReturnToDisplay() {
		return b.startSearch(ctx, s)
	}
	if err := s.Transition(session.StatePriceRange); err != nil {
		return err
	}
	return b.say(ctx, s, pricePrompt(s.Draft.Currency))
}

func (b *Bot) setPriceRange(ctx context.Context, s *session.Session, text string) error {
	pr, err := model.ParsePriceRange(text)
	if err != nil {
		return b.say(ctx, s, "Wrong price range format, for example 100-200, -200, 100- or 150. Please try again.")
	}
	s.Draft.PriceRange = pr
	if err := b.say(ctx, s, fmt.Sprintf("💰 Price range: %s %s", pr, s.Draft.Currency.Code)); err != nil {
		return err
	}

	if s.TakeReturnToDisplay() {
		return b.startSearch(ctx, s)
	}
	if err := s.Transition(session.StateRadius); err != nil {
		return err
	}
	return b.say(ctx, s, radiusPrompt())
}

func (b *Bot) setRadius(ctx context.Context, s *session.Session, text string) error {
	radius, err := model.ParseRadius(text)
	if err != nil {
		return b.say(ctx, s, fmt.Sprintf("The radius must be a whole number from %d to %d. Please try again.",
			model.MinRadius, model.MaxRadius))
	}
	s.Draft.Radius = radius
	if err := b.say(ctx, s, fmt.Sprintf("🎯 Looking for hotels within %d km of the center of %s",
		radius, s.Draft.City.Name)); err != nil {
		return err
	}

	if s.TakeReturnToDisplay() || s.Draft.Sort != "" {
		return b.startSearch(ctx, s)
	}
	return b.askSort(ctx, s)
}

func (b *Bot) askSort(ctx context.Context, s *session.Session) error {
	if err := s.Transition(session.StateSortingCriteria); err != nil {
		return err
	}
	id, err := b.gw.SendText(ctx, s.ChatID, "How should I sort the hotels?", sortKeyboard(s.ID))
	if err != nil {
		return err
	}
	s.Messages.Prompt = id
	return nil
}

func (b *Bot) chooseSort(ctx context.Context, s *session.Session, cb messaging.Callback) (answer, error) {
	cmd, err := model.ParseSortCommand(cb.Arg(0))
	if err != nil {
		return notice(msgInactiveButton), nil
	}
	s.Draft.Sort = cmd
	s.TakeReturnToDisplay()

	b.deleteMessages(ctx, s, s.Messages.Prompt)
	s.Messages.Prompt = 0
	if err := b.say(ctx, s, "📊 Sorting: "+cmd.Description()); err != nil {
		return answer{}, err
	}
	return answer{}, b.startSearch(ctx, s)
}
