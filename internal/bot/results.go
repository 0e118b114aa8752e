package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/hotel-scout/internal/messaging"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/photos"
	"github.com/Veraticus/hotel-scout/internal/search"
	"github.com/Veraticus/hotel-scout/internal/session"
)

// startSearch finalizes the draft and runs the pipeline, reusing one message for progress.
// Whatever the outcome, the conversation ends in display_hotels with the reply controls shown.
func (b *Bot) startSearch(ctx context.Context, s *session.Session) error {
	b.retire(ctx, s)
	s.ResetResults()
	if err := s.Transition(session.StateSearchHotels); err != nil {
		return err
	}

	criteria, err := s.Finalize()
	if err != nil {
		b.logger.Warn("Search started with incomplete criteria", "user_id", s.UserID, "error", err)
		if terr := s.Transition(session.StateIdle); terr != nil {
			return terr
		}
		return b.say(ctx, s, fmt.Sprintf("Some search parameters are missing (%v). Please start again with /search.", err))
	}

	id, err := b.gw.SendText(ctx, s.ChatID, fmt.Sprintf("🔎 Searching hotels in %s...", criteria.City.Name), nil)
	if err != nil {
		return err
	}
	s.Messages.Progress = id

	rs, err := b.pipeline.Run(ctx, criteria, func(ctx context.Context, p search.Progress) {
		id, perr := b.gw.EditText(ctx, s.ChatID, s.Messages.Progress, progressText(p, criteria), nil)
		if perr != nil {
			b.logger.Debug("Failed to update progress", "user_id", s.UserID, "stage", p.Stage, "error", perr)
			return
		}
		s.Messages.Progress = id
	})

	b.deleteMessages(ctx, s, s.Messages.Progress)
	s.Messages.Progress = 0
	if terr := s.Transition(session.StateDisplayHotels); terr != nil {
		return terr
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return b.searchFailed(ctx, s, criteria, err)
	}

	s.Publish(rs, b.record(ctx, s, rs))
	if _, err := b.gw.SendText(ctx, s.ChatID, summaryText(rs), controlsMarkup()); err != nil {
		return err
	}
	return b.showHotel(ctx, s)
}

func (b *Bot) searchFailed(ctx context.Context, s *session.Session, c model.Criteria, err error) error {
	var text string
	switch {
	case errors.Is(err, search.ErrHotelNotFound):
		text = fmt.Sprintf("No hotels found within %d km of %s. Try a larger radius or another city.",
			c.Radius, c.City.Name)
	case errors.Is(err, search.ErrOffersNotFound):
		text = "None of the hotels has an available offer for these dates and prices. Try other dates or another price range."
	case search.IsServiceUnavailable(err):
		text = "The hotel service is unavailable right now. Please try again later with " + ctrlRepeat + "."
	default:
		b.logger.Error("Search failed", "user_id", s.UserID, "city", c.City.Code, "error", err)
		text = "Sorry, something went wrong. Please try again with " + ctrlRepeat + "."
	}
	_, serr := b.gw.SendText(ctx, s.ChatID, text, controlsMarkup())
	return serr
}

func (b *Bot) record(ctx context.Context, s *session.Session, rs *model.ResultSet) int64 {
	if b.history == nil {
		return 0
	}
	id, err := b.history.AppendSearch(ctx, model.User{ID: s.UserID, Name: s.UserName}, rs)
	if err != nil {
		b.logger.Warn("Failed to record search", "user_id", s.UserID, "error", err)
		return 0
	}
	return id
}

// showHotel renders the hotel under the cursor, then its photo slot.
func (b *Bot) showHotel(ctx context.Context, s *session.Session) error {
	h := s.CurrentHotel()
	if h == nil {
		return nil
	}
	n := s.Results.Len()
	id, err := b.gw.EditText(ctx, s.ChatID, s.Messages.Hotel,
		hotelText(h, s.Cursor.Hotel, n, s.Results.Criteria.Dates),
		hotelKeyboard(s.ID, s.Cursor.Hotel, n, h.Name))
	if err != nil {
		return fmt.Errorf("failed to show hotel %s: %w", h.ID, err)
	}
	s.Messages.Hotel = id
	return b.showPhoto(ctx, s)
}

// showPhoto fills the photo slot, starting enrichment when the hotel's photos are unresolved.
func (b *Bot) showPhoto(ctx context.Context, s *session.Session) error {
	h := s.CurrentHotel()
	if h == nil {
		return nil
	}
	if !h.PhotosResolved {
		if b.enricher == nil {
			return b.setPhotoSlot(ctx, s, b.placeholder(b.notFound, "No photos found for "+h.Name), nil)
		}
		s.Photo = session.PhotoLoading
		if err := b.setPhotoSlot(ctx, s, b.placeholder(b.searching, "Searching photos of "+h.Name+"..."), nil); err != nil {
			return err
		}
		b.enricher.Start(ctx, photos.Request{
			SessionID: s.ID,
			HotelID:   h.ID,
			HotelName: h.Name,
			City:      s.Results.Criteria.City.Name,
			UserID:    s.UserID,
			RequestID: s.RequestID,
		}, photoSink{bot: b})
		return nil
	}

	s.Photo = session.PhotoLoaded
	photo, ok := s.CurrentPhoto()
	if !ok {
		return b.setPhotoSlot(ctx, s, b.placeholder(b.notFound, "No photos found for "+h.Name), nil)
	}
	index := session.Wrap(s.Cursor.Photo, 0, len(h.Photos))
	return b.setPhotoSlot(ctx, s,
		messaging.Media{URL: photo.URL, Caption: photoCaption(h, index)},
		photoKeyboard(s.ID, len(h.Photos)))
}

func (b *Bot) placeholder(url, caption string) messaging.Media {
	return messaging.Media{URL: url, Caption: caption}
}

// setPhotoSlot edits the photo message. Media without a URL is shown as text.
func (b *Bot) setPhotoSlot(ctx context.Context, s *session.Session, media messaging.Media, markup *messaging.Markup) error {
	var (
		id  int
		err error
	)
	if media.URL == "" {
		id, err = b.gw.EditText(ctx, s.ChatID, s.Messages.Photo, media.Caption, markup)
	} else {
		id, err = b.gw.EditMedia(ctx, s.ChatID, s.Messages.Photo, media, markup)
	}
	if err != nil {
		return fmt.Errorf("failed to show photo: %w", err)
	}
	s.Messages.Photo = id
	return nil
}

func parseStep(arg string) (int, bool) {
	step, err := strconv.Atoi(arg)
	if err != nil || (step != 1 && step != -1) {
		return 0, false
	}
	return step, true
}

func (b *Bot) stepHotel(ctx context.Context, s *session.Session, cb messaging.Callback) (answer, error) {
	step, ok := parseStep(cb.Arg(0))
	if !ok || s.Results.Len() == 0 {
		return notice(msgInactiveButton), nil
	}
	b.cancelPhotos(s)
	s.AdvanceHotel(step)
	return answer{}, b.showHotel(ctx, s)
}

func (b *Bot) stepPhoto(ctx context.Context, s *session.Session, cb messaging.Callback) (answer, error) {
	step, ok := parseStep(cb.Arg(0))
	if !ok || s.Results.Len() == 0 {
		return notice(msgInactiveButton), nil
	}
	if h := s.CurrentHotel(); h == nil || !h.PhotosResolved {
		return answer{text: "The photos are still loading."}, nil
	}
	// With no photos the cursor stays put and the slot shows the placeholder.
	s.AdvancePhoto(step)
	return answer{}, b.showPhoto(ctx, s)
}

func (b *Bot) acceptOffer(ctx context.Context, s *session.Session, cb messaging.Callback) (answer, error) {
	i, err := strconv.Atoi(cb.Arg(0))
	if err != nil {
		return notice(msgInactiveButton), nil
	}
	h := s.Results.At(i)
	if h == nil || h.Offer == nil {
		return notice(msgInactiveButton), nil
	}

	offer, available, err := b.provider.Offer(ctx, h.Offer.ID)
	if err != nil {
		if ctx.Err() != nil {
			return answer{}, ctx.Err()
		}
		b.logger.Warn("Offer check failed", "user_id", s.UserID, "hotel_id", h.ID, "offer_id", h.Offer.ID, "error", err)
		return notice("I could not check this offer right now. Please try again later."), nil
	}
	if !available {
		return notice("This offer is no longer available. Please choose another hotel or repeat the search."), nil
	}

	text := fmt.Sprintf("The offer of %s for %s %s is available, but booking is not implemented yet.\n"+
		"Use /search or one of /lowprice, /bestdeal, /guest_rating to start a new search.",
		h.Name, offer.Price.Total.StringFixed(2), offer.Price.Currency)
	return answer{}, b.finish(ctx, s, text, true)
}

// onControl handles the reply keyboard under the results.
func (b *Bot) onControl(ctx context.Context, s *session.Session, text string) error {
	switch strings.TrimSpace(text) {
	case ctrlCity:
		if err := s.ModifyCriterion(session.StateCitySearch); err != nil {
			return err
		}
		return b.say(ctx, s, "In which city should I search? Enter the name in English.")
	case ctrlDates:
		if err := s.ModifyCriterion(session.StateCheckIn); err != nil {
			return err
		}
		return b.showCalendar(ctx, s, pickCheckIn)
	case ctrlPrice:
		if err := s.ModifyCriterion(session.StatePriceRange); err != nil {
			return err
		}
		return b.say(ctx, s, pricePrompt(s.Draft.Currency))
	case ctrlRadius:
		if err := s.ModifyCriterion(session.StateRadius); err != nil {
			return err
		}
		return b.say(ctx, s, radiusPrompt())
	case ctrlSort:
		if err := s.ModifyCriterion(session.StateSortingCriteria); err != nil {
			return err
		}
		id, err := b.gw.SendText(ctx, s.ChatID, "How should I sort the hotels?", sortKeyboard(s.ID))
		if err != nil {
			return err
		}
		s.Messages.Prompt = id
		return nil
	case ctrlRepeat:
		return b.startSearch(ctx, s)
	case ctrlComplete:
		return b.finish(ctx, s, "OK! The search is finished. Type /help to start again.", false)
	default:
		return b.say(ctx, s, "Please use the buttons below or a command from /help.")
	}
}

// finish ends the conversation and clears the session.
func (b *Bot) finish(ctx context.Context, s *session.Session, text string, deletePhoto bool) error {
	b.cancelPhotos(s)
	if deletePhoto {
		b.deleteMessages(ctx, s, s.Messages.Photo)
		s.Messages.Photo = 0
	}
	b.retire(ctx, s)
	s.Clear()
	_, err := b.gw.SendText(ctx, s.ChatID, text, removeReplyMarkup())
	return err
}
