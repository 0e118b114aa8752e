package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/hotel-scout/internal/common"
	"github.com/Veraticus/hotel-scout/internal/messaging"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/photos"
	"github.com/Veraticus/hotel-scout/internal/service"
	"github.com/Veraticus/hotel-scout/internal/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = Sender{UserID: 42, ChatID: 4200, Name: "Alice"}

func fixedNow() time.Time {
	return time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
}

// recordedMessage is the latest content of a chat message.
type recordedMessage struct {
	Markup  *messaging.Markup
	Text    string
	Media   messaging.Media
	ID      int
	Edits   int
	IsMedia bool
	Deleted bool
}

type callbackAnswer struct {
	ID    string
	Text  string
	Alert bool
}

// recordingGateway keeps every message in memory.
type recordingGateway struct {
	messages map[int]*recordedMessage
	order    []int
	markups  []*messaging.Markup
	answers  []callbackAnswer
	removed  []int
	nextID   int
	mu       sync.Mutex
}

var _ service.Gateway = (*recordingGateway)(nil)

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{messages: make(map[int]*recordedMessage), nextID: 100}
}

func (g *recordingGateway) put(messageID int, text string, media *messaging.Media, markup *messaging.Markup) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	msg, ok := g.messages[messageID]
	if messageID == 0 || !ok || msg.Deleted {
		g.nextID++
		msg = &recordedMessage{ID: g.nextID}
		g.messages[msg.ID] = msg
		g.order = append(g.order, msg.ID)
	} else {
		msg.Edits++
	}
	msg.Text = text
	msg.IsMedia = media != nil
	if media != nil {
		msg.Media = *media
		msg.Text = media.Caption
	}
	msg.Markup = markup
	if markup != nil {
		g.markups = append(g.markups, markup)
	}
	return msg.ID
}

func (g *recordingGateway) SendText(_ context.Context, _ int64, text string, markup *messaging.Markup) (int, error) {
	return g.put(0, text, nil, markup), nil
}

func (g *recordingGateway) EditText(_ context.Context, _ int64, messageID int, text string, markup *messaging.Markup) (int, error) {
	return g.put(messageID, text, nil, markup), nil
}

func (g *recordingGateway) SendMedia(_ context.Context, _ int64, media messaging.Media, markup *messaging.Markup) (int, error) {
	return g.put(0, "", &media, markup), nil
}

func (g *recordingGateway) EditMedia(_ context.Context, _ int64, messageID int, media messaging.Media, markup *messaging.Markup) (int, error) {
	return g.put(messageID, "", &media, markup), nil
}

func (g *recordingGateway) RemoveControls(_ context.Context, _ int64, messageID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removed = append(g.removed, messageID)
	if msg, ok := g.messages[messageID]; ok {
		msg.Markup = nil
	}
	return nil
}

func (g *recordingGateway) DeleteMessages(_ context.Context, _ int64, messageIDs ...int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range messageIDs {
		if msg, ok := g.messages[id]; ok {
			msg.Deleted = true
		}
	}
	return nil
}

func (g *recordingGateway) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answers = append(g.answers, callbackAnswer{ID: callbackID, Text: text, Alert: alert})
	return nil
}

// last returns the most recently created message.
func (g *recordingGateway) last() recordedMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.messages[g.order[len(g.order)-1]]
}

func (g *recordingGateway) message(id int) recordedMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.messages[id]
}

func (g *recordingGateway) lastAnswer() callbackAnswer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.answers[len(g.answers)-1]
}

// texts returns the text of every message in creation order.
func (g *recordingGateway) texts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.messages[id].Text)
	}
	return out
}

// callback finds the newest button for action whose arguments start with args.
func (g *recordingGateway) callback(t *testing.T, action string, args ...string) string {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.markups) - 1; i >= 0; i-- {
		for _, btn := range g.markups[i].Buttons() {
			cb, err := messaging.DecodeCallback(btn.Data)
			if err != nil || cb.Action != action || len(cb.Args) < len(args) {
				continue
			}
			match := true
			for j, a := range args {
				if cb.Args[j] != a {
					match = false
				}
			}
			if match {
				return btn.Data
			}
		}
	}
	t.Fatalf("no %s button with args %v", action, args)
	return ""
}

type fakeTravel struct {
	offerErr     error
	hotelsErr    error
	offersErr    error
	sentiments   map[string]int
	confirmed    *model.Offer
	query        service.OfferQuery
	cities       []model.City
	hotels       []model.Hotel
	offers       []model.HotelOffers
	hotelCalls   int
	offerCalls   int
	mu           sync.Mutex
	offerAvail   bool
	citiesCalled bool
}

func (f *fakeTravel) FindCities(_ context.Context, _ string) ([]model.City, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.citiesCalled = true
	return f.cities, nil
}

func (f *fakeTravel) HotelsInCity(_ context.Context, _ string, _ int) ([]model.Hotel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hotelCalls++
	return f.hotels, f.hotelsErr
}

func (f *fakeTravel) PricedOffers(_ context.Context, _ []string, q service.OfferQuery) ([]model.HotelOffers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offerCalls++
	f.query = q
	return f.offers, f.offersErr
}

func (f *fakeTravel) Sentiments(_ context.Context, ids []string) ([]model.Sentiment, error) {
	var out []model.Sentiment
	for _, id := range ids {
		if r, ok := f.sentiments[id]; ok {
			out = append(out, model.Sentiment{HotelID: id, OverallRating: r})
		}
	}
	return out, nil
}

func (f *fakeTravel) Offer(_ context.Context, offerID string) (*model.Offer, bool, error) {
	if f.offerErr != nil {
		return nil, false, f.offerErr
	}
	if !f.offerAvail {
		return nil, false, nil
	}
	for _, ho := range f.offers {
		for _, o := range ho.Offers {
			if o.ID == offerID {
				f.confirmed = &o
				return &o, true, nil
			}
		}
	}
	return nil, false, nil
}

func hotelStub(id string, distance float64) model.Hotel {
	return model.Hotel{
		ID:       id,
		Name:     "Hotel " + id,
		Rating:   4,
		Address:  model.Address{CountryCode: "FR", CityName: "PARIS", PostalCode: "75001", Lines: []string{"1 Rue " + id}},
		Distance: model.Distance{Value: distance, Unit: "KM"},
	}
}

func availableOffer(id, total string) model.HotelOffers {
	return model.HotelOffers{
		HotelID:   id,
		Available: true,
		Offers: []model.Offer{{
			ID:       "OF" + id,
			HotelID:  id,
			CheckIn:  "2026-10-20",
			CheckOut: "2026-10-23",
			Price:    model.Price{Currency: "EUR", Total: decimal.RequireFromString(total)},
		}},
	}
}

func parisTravel() *fakeTravel {
	return &fakeTravel{
		cities: []model.City{{Name: "Paris", Code: "PAR", CountryCode: "FR", CountryName: "France"}},
		hotels: []model.Hotel{
			hotelStub("H1", 0.5), hotelStub("H2", 1.0), hotelStub("H3", 2.5), hotelStub("H4", 3.0), hotelStub("H5", 1.5),
		},
		offers: []model.HotelOffers{
			availableOffer("H1", "320"),
			availableOffer("H3", "95.5"),
			{HotelID: "H4", Available: false},
			availableOffer("H5", "180"),
		},
		sentiments: map[string]int{"H1": 88, "H3": 71},
		offerAvail: true,
	}
}

type fakeHistory struct {
	day      *time.Time
	appended []*model.ResultSet
	records  []model.SearchRecord
	mu       sync.Mutex
}

func (f *fakeHistory) AppendSearch(_ context.Context, _ model.User, rs *model.ResultSet) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, rs)
	return int64(len(f.appended)), nil
}

func (f *fakeHistory) ReadHistory(_ context.Context, _ int64, day *time.Time) ([]model.SearchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.day = day
	return f.records, nil
}

type harness struct {
	t       *testing.T
	bot     *Bot
	gw      *recordingGateway
	travel  *fakeTravel
	history *fakeHistory
	calls   int
}

func newHarness(t *testing.T, travel *fakeTravel, enricher *photos.Enricher) *harness {
	t.Helper()
	gw := newRecordingGateway()
	history := &fakeHistory{}
	b, err := New(Config{
		Gateway:  gw,
		Provider: travel,
		History:  history,
		Enricher: enricher,
		Now:      fixedNow,
	})
	require.NoError(t, err)
	return &harness{t: t, bot: b, gw: gw, travel: travel, history: history}
}

func (h *harness) send(text string) {
	h.t.Helper()
	require.NoError(h.t, h.bot.Handle(context.Background(), TextEvent{From: alice, Text: text}))
}

func (h *harness) press(action string, args ...string) callbackAnswer {
	h.t.Helper()
	return h.pressData(h.gw.callback(h.t, action, args...))
}

func (h *harness) pressData(data string) callbackAnswer {
	h.t.Helper()
	h.calls++
	id := fmt.Sprintf("cb-%d", h.calls)
	require.NoError(h.t, h.bot.Handle(context.Background(), CallbackEvent{ID: id, From: alice, Data: data}))
	ans := h.gw.lastAnswer()
	require.Equal(h.t, id, ans.ID)
	return ans
}

func (h *harness) session() session.Session {
	h.t.Helper()
	var snapshot session.Session
	require.True(h.t, h.bot.Sessions().View(alice.UserID, func(s *session.Session) { snapshot = *s }))
	return snapshot
}

// searchParis drives a complete search up to the results view.
func (h *harness) searchParis(command string) {
	h.t.Helper()
	h.send(command)
	h.send("Paris")
	h.press(actionCity, "0")
	h.press(actionDate, pickCheckIn, "20261020")
	h.press(actionDate, pickCheckOut, "20261023")
	h.send("100-400")
	h.send("5")
}

func hotelOrder(rs *model.ResultSet) []string {
	return append([]string(nil), rs.Order...)
}

func TestBot_FullSearchByLowestPrice(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/lowprice")

	s := h.session()
	require.Equal(t, session.StateDisplayHotels, s.State)
	require.NotNil(t, s.Results)
	assert.Equal(t, []string{"H3", "H5", "H1"}, hotelOrder(s.Results))
	assert.Equal(t, model.Currency{Code: "EUR", Name: "Euro"}, s.Results.Criteria.Currency)
	assert.Equal(t, int64(1), s.RequestID)
	assert.Len(t, h.history.appended, 1)

	assert.Equal(t, "EUR", h.travel.query.Currency)
	assert.Equal(t, model.PriceRange("100-400"), h.travel.query.PriceRange)

	hotel := h.gw.message(s.Messages.Hotel)
	assert.Contains(t, hotel.Text, "Hotel H3")
	assert.Contains(t, hotel.Text, "Total: 95.50 EUR")
	assert.Contains(t, hotel.Text, "Per night: 31.83 EUR")
	assert.Contains(t, hotel.Text, "Guest rating: 71/100")
	assert.Contains(t, hotel.Text, "Hotel 1 of 3")

	photo := h.gw.message(s.Messages.Photo)
	assert.Contains(t, photo.Text, "No photos found")

	var summary string
	for _, text := range h.gw.texts() {
		if strings.HasPrefix(text, "Found 3 hotels") {
			summary = text
		}
	}
	assert.Contains(t, summary, "Paris, France")
	assert.Contains(t, summary, model.SortLowPrice.Description())
}

func TestBot_ProgressMessageRemovedAfterSearch(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/lowprice")

	for _, id := range h.gw.order {
		msg := h.gw.message(id)
		if strings.HasPrefix(msg.Text, "⭐ Guest ratings loaded") {
			assert.True(t, msg.Deleted)
			assert.Equal(t, 3, msg.Edits, "one edit per stage")
			return
		}
	}
	t.Fatal("progress message not found")
}

func TestBot_NavigationWrapsAndEditsInPlace(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/lowprice")
	hotelMsg := h.session().Messages.Hotel

	h.press(actionHotel, "-1")
	s := h.session()
	assert.Equal(t, 2, s.Cursor.Hotel)
	assert.Equal(t, hotelMsg, s.Messages.Hotel)
	assert.Contains(t, h.gw.message(hotelMsg).Text, "Hotel 3 of 3")
	assert.Contains(t, h.gw.message(hotelMsg).Text, "Hotel H1")

	h.press(actionHotel, "1")
	assert.Equal(t, 0, h.session().Cursor.Hotel)
	assert.Contains(t, h.gw.message(hotelMsg).Text, "Hotel H3")
}

func TestBot_SingleHotelHasNoPagination(t *testing.T) {
	travel := parisTravel()
	travel.offers = []model.HotelOffers{availableOffer("H2", "150")}
	h := newHarness(t, travel, nil)
	h.searchParis("/lowprice")

	s := h.session()
	markup := h.gw.message(s.Messages.Hotel).Markup
	require.NotNil(t, markup)
	require.Len(t, markup.Buttons(), 1)
	assert.Contains(t, markup.Buttons()[0].Text, "Hotel H2")
}

func TestBot_SearchWithoutPresetSortAsksForIt(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/search")
	assert.Equal(t, session.StateSortingCriteria, h.session().State)
	assert.Zero(t, h.travel.hotelCalls)

	h.press(actionSort, string(model.SortBestDeal))

	s := h.session()
	require.Equal(t, session.StateDisplayHotels, s.State)
	assert.Equal(t, []string{"H1", "H5", "H3"}, hotelOrder(s.Results))
}

func TestBot_GuestRatingPutsMissingSentimentLast(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/guest_rating")
	assert.Equal(t, []string{"H1", "H3", "H5"}, hotelOrder(h.session().Results))
}

func TestBot_InvalidInputIsRejectedWithoutLeavingState(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.send("/lowprice")
	h.send("Paris")
	h.press(actionCity, "0")

	h.send("2026-10-01")
	assert.Equal(t, session.StateCheckIn, h.session().State)
	assert.Contains(t, h.gw.last().Text, "cannot be in the past")

	h.send("20.10.2026")
	assert.Equal(t, session.StateCheckOut, h.session().State)

	h.send("2026-10-19")
	assert.Equal(t, session.StateCheckOut, h.session().State)
	assert.Contains(t, h.gw.last().Text, "must be after the check-in")

	h.send("2026-10-22")
	assert.Equal(t, session.StatePriceRange, h.session().State)

	for _, bad := range []string{"abc", "300-100", "200 300"} {
		h.send(bad)
		assert.Equal(t, session.StatePriceRange, h.session().State, bad)
		assert.Contains(t, h.gw.last().Text, "Wrong price range")
	}
	h.send("-300")
	assert.Equal(t, session.StateRadius, h.session().State)

	for _, bad := range []string{"0", "301", "abc"} {
		h.send(bad)
		assert.Equal(t, session.StateRadius, h.session().State, bad)
	}
	assert.Zero(t, h.travel.hotelCalls)
}

func TestBot_UnknownCityKeepsAsking(t *testing.T) {
	travel := parisTravel()
	travel.cities = nil
	h := newHarness(t, travel, nil)
	h.send("/bestdeal")
	h.send("Atlantis")

	assert.Equal(t, session.StateCitySearch, h.session().State)
	assert.Contains(t, h.gw.last().Text, "could not find a city")
}

func TestBot_ModifyCriterionReturnsToResults(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/lowprice")
	require.Equal(t, 1, h.travel.hotelCalls)

	h.send(ctrlPrice)
	s := h.session()
	assert.Equal(t, session.StatePriceRange, s.State)
	assert.True(t, s.ReturnToDisplay)

	h.send("50-100")
	s = h.session()
	assert.Equal(t, session.StateDisplayHotels, s.State)
	assert.False(t, s.ReturnToDisplay)
	assert.Equal(t, 2, h.travel.hotelCalls)
	assert.Equal(t, model.PriceRange("50-100"), h.travel.query.PriceRange)
	assert.Equal(t, 5, s.Criteria.Radius)
}

func TestBot_ModifySortReturnsToResults(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/lowprice")

	h.send(ctrlSort)
	assert.Equal(t, session.StateSortingCriteria, h.session().State)
	h.press(actionSort, string(model.SortGuestRating))

	s := h.session()
	assert.Equal(t, session.StateDisplayHotels, s.State)
	assert.False(t, s.ReturnToDisplay)
	assert.Equal(t, []string{"H1", "H3", "H5"}, hotelOrder(s.Results))
}

func TestBot_StaleCallbackIsRejected(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/lowprice")
	old := h.gw.callback(t, actionHotel, "1")

	h.send("/bestdeal")
	ans := h.pressData(old)

	assert.True(t, ans.Alert)
	assert.Equal(t, msgInactiveButton, ans.Text)
	assert.Equal(t, session.StateCitySearch, h.session().State)
}

func TestBot_CallbackInWrongStateIsRejected(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/lowprice")
	next := h.gw.callback(t, actionHotel, "1")

	h.send(ctrlRadius)
	ans := h.pressData(next)
	assert.Equal(t, msgInactiveButton, ans.Text)
	assert.Equal(t, 0, h.session().Cursor.Hotel)
}

func TestBot_HotelNotFoundKeepsControls(t *testing.T) {
	travel := parisTravel()
	travel.hotels = nil
	h := newHarness(t, travel, nil)
	h.searchParis("/lowprice")

	s := h.session()
	assert.Equal(t, session.StateDisplayHotels, s.State)
	assert.Nil(t, s.Results)
	assert.Zero(t, travel.offerCalls)
	assert.Empty(t, h.history.appended)

	last := h.gw.last()
	assert.Contains(t, last.Text, "No hotels found within 5 km of Paris")
	require.NotNil(t, last.Markup)
	assert.NotEmpty(t, last.Markup.Reply)

	// Repeat search stays available.
	travel.hotels = []model.Hotel{hotelStub("H1", 0.5)}
	h.send(ctrlRepeat)
	assert.Equal(t, []string{"H1"}, hotelOrder(h.session().Results))
}

func TestBot_ServiceUnavailable(t *testing.T) {
	travel := parisTravel()
	travel.hotelsErr = &common.RetryableError{Err: errors.New("connection reset"), Retry: true}
	h := newHarness(t, travel, nil)
	h.searchParis("/lowprice")

	assert.Equal(t, session.StateDisplayHotels, h.session().State)
	assert.Contains(t, h.gw.last().Text, "unavailable right now")
}

func TestBot_UnclassifiedSearchFailure(t *testing.T) {
	travel := parisTravel()
	travel.offersErr = errors.New("offer without hotel id")
	h := newHarness(t, travel, nil)
	h.searchParis("/lowprice")

	assert.Equal(t, session.StateDisplayHotels, h.session().State)
	last := h.gw.last()
	assert.Contains(t, last.Text, "something went wrong")
	assert.NotContains(t, last.Text, "unavailable")
	require.NotNil(t, last.Markup)
	assert.NotEmpty(t, last.Markup.Reply)
}

func TestBot_AcceptAvailableOfferFinishes(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/lowprice")
	photoMsg := h.session().Messages.Photo

	ans := h.press(actionOffer, "0")
	assert.False(t, ans.Alert)

	require.NotNil(t, h.travel.confirmed)
	assert.Equal(t, "OFH3", h.travel.confirmed.ID)
	assert.True(t, h.gw.message(photoMsg).Deleted)

	last := h.gw.last()
	assert.Contains(t, last.Text, "booking is not implemented")
	require.NotNil(t, last.Markup)
	assert.True(t, last.Markup.RemoveReply)

	s := h.session()
	assert.Equal(t, session.StateIdle, s.State)
	assert.Nil(t, s.Results)
}

func TestBot_AcceptGoneOfferAlerts(t *testing.T) {
	travel := parisTravel()
	travel.offerAvail = false
	h := newHarness(t, travel, nil)
	h.searchParis("/lowprice")

	ans := h.press(actionOffer, "0")
	assert.True(t, ans.Alert)
	assert.Contains(t, ans.Text, "no longer available")
	assert.Equal(t, session.StateDisplayHotels, h.session().State)
}

func TestBot_CompleteClearsSession(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.searchParis("/lowprice")
	hotelMsg := h.session().Messages.Hotel

	h.send(ctrlComplete)

	s := h.session()
	assert.Equal(t, session.StateIdle, s.State)
	assert.Nil(t, s.Results)
	assert.Nil(t, h.gw.message(hotelMsg).Markup)
	assert.True(t, h.gw.last().Markup.RemoveReply)
}

type fixedSearcher struct {
	photos map[string][]model.Photo
}

func (f fixedSearcher) Search(_ context.Context, hotelName, _ string) ([]model.Photo, error) {
	return f.photos[hotelName], nil
}

func TestBot_PhotosAreLoadedAndBrowsed(t *testing.T) {
	searcher := fixedSearcher{photos: map[string][]model.Photo{
		"Hotel H3": {{URL: "https://img.test/h3-1.jpg", Title: "Hotel H3 Paris"}, {URL: "https://img.test/h3-2.jpg", Title: "Hotel H3 Paris lobby"}},
	}}
	enricher := photos.NewEnricher(searcher, nil, nil)
	h := newHarness(t, parisTravel(), enricher)
	h.searchParis("/lowprice")
	enricher.Wait()

	s := h.session()
	assert.Equal(t, session.PhotoLoaded, s.Photo)
	photo := h.gw.message(s.Messages.Photo)
	require.True(t, photo.IsMedia)
	assert.Equal(t, "https://img.test/h3-1.jpg", photo.Media.URL)
	assert.Contains(t, photo.Text, "Photo 1 of 2")

	h.press(actionPhoto, "1")
	assert.Contains(t, h.gw.message(s.Messages.Photo).Text, "Photo 2 of 2")
	h.press(actionPhoto, "1")
	assert.Contains(t, h.gw.message(s.Messages.Photo).Text, "Photo 1 of 2")

	// The next hotel has no photos: the slot shows the placeholder.
	h.press(actionHotel, "1")
	enricher.Wait()
	assert.Contains(t, h.gw.message(h.session().Messages.Photo).Text, "No photos found for Hotel H5")
	ans := h.press(actionPhoto, "1")
	assert.Empty(t, ans.Text)
	assert.Equal(t, 0, h.session().Cursor.Photo)
}

// gatedSearcher blocks each search until the test releases that hotel.
type gatedSearcher struct {
	started chan string
	gates   map[string]chan []model.Photo
}

func (g *gatedSearcher) Search(ctx context.Context, hotelName, _ string) ([]model.Photo, error) {
	g.started <- hotelName
	select {
	case found := <-g.gates[hotelName]:
		return found, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestBot_NavigationCancelsInFlightPhotoTask(t *testing.T) {
	searcher := &gatedSearcher{
		started: make(chan string, 4),
		gates: map[string]chan []model.Photo{
			"Hotel H3": make(chan []model.Photo, 1),
			"Hotel H5": make(chan []model.Photo, 1),
		},
	}
	enricher := photos.NewEnricher(searcher, nil, nil)
	h := newHarness(t, parisTravel(), enricher)
	h.searchParis("/lowprice")
	require.Equal(t, "Hotel H3", <-searcher.started)
	assert.Equal(t, session.PhotoLoading, h.session().Photo)

	h.press(actionHotel, "1")
	require.Equal(t, "Hotel H5", <-searcher.started)

	searcher.gates["Hotel H3"] <- []model.Photo{{URL: "https://img.test/h3.jpg"}}
	searcher.gates["Hotel H5"] <- []model.Photo{{URL: "https://img.test/h5.jpg"}}
	enricher.Wait()

	s := h.session()
	assert.False(t, s.Results.Hotel("H3").PhotosResolved)
	assert.True(t, s.Results.Hotel("H5").PhotosResolved)
	assert.Equal(t, "https://img.test/h5.jpg", h.gw.message(s.Messages.Photo).Media.URL)
	for _, id := range h.gw.order {
		assert.NotEqual(t, "https://img.test/h3.jpg", h.gw.message(id).Media.URL)
	}
}

func TestBot_PhotosFromOldSessionAreDropped(t *testing.T) {
	searcher := &gatedSearcher{
		started: make(chan string, 4),
		gates:   map[string]chan []model.Photo{"Hotel H3": make(chan []model.Photo, 1)},
	}
	enricher := photos.NewEnricher(searcher, nil, nil)
	h := newHarness(t, parisTravel(), enricher)
	h.searchParis("/lowprice")
	require.Equal(t, "Hotel H3", <-searcher.started)

	h.send(ctrlComplete)
	searcher.gates["Hotel H3"] <- []model.Photo{{URL: "https://img.test/h3.jpg"}}
	enricher.Wait()

	for _, id := range h.gw.order {
		assert.NotEqual(t, "https://img.test/h3.jpg", h.gw.message(id).Media.URL)
	}
}

func historyRecord(id int64, city string) model.SearchRecord {
	return model.SearchRecord{
		ID:        id,
		CreatedAt: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
		Criteria: model.Criteria{
			City:       model.City{Name: city, CountryName: "France"},
			Currency:   model.Currency{Code: "EUR", Name: "Euro"},
			Dates:      model.DateRange{CheckIn: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), CheckOut: time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC)},
			PriceRange: "100-200",
			Radius:     5,
			Sort:       model.SortLowPrice,
		},
		Hotels: []model.HotelRecord{{Name: "Hotel " + city, Total: "150.00", Currency: "EUR"}},
	}
}

func TestBot_HistoryIsPaginated(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.history.records = []model.SearchRecord{
		historyRecord(4, "Paris"), historyRecord(3, "Lyon"), historyRecord(2, "Nice"), historyRecord(1, "Lille"),
	}

	h.send("/history")
	assert.Equal(t, session.StateHistoryDate, h.session().State)

	h.press(actionDate, pickHistory, pickAllDates)
	s := h.session()
	assert.Equal(t, session.StateHistory, s.State)
	assert.Nil(t, h.history.day)

	page := h.gw.message(s.Messages.History).Text
	assert.Contains(t, page, "Paris")
	assert.Contains(t, page, "Nice")
	assert.NotContains(t, page, "Lille")
	assert.Contains(t, page, "Page 1 of 2")
	assert.Contains(t, page, "Price range: 100-200 Euro")

	h.press(actionHistoryPage, "1")
	page = h.gw.message(s.Messages.History).Text
	assert.Contains(t, page, "Lille")
	assert.Contains(t, page, "Page 2 of 2")

	h.press(actionHistoryPage, "1")
	assert.Contains(t, h.gw.message(s.Messages.History).Text, "Page 1 of 2")
}

func TestBot_HistoryForDay(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.send("/history")
	h.press(actionDate, pickHistory, "20261016")

	require.NotNil(t, h.history.day)
	assert.Equal(t, "2026-10-16", h.history.day.Format(model.DateLayout))
	assert.Equal(t, session.StateHistoryDate, h.session().State)
	assert.Contains(t, h.gw.last().Text, "No searches found for 16 Oct 2026")

	h.send("2026-10-18")
	assert.Contains(t, h.gw.last().Text, "in the future")
}

func TestBot_UnknownCommand(t *testing.T) {
	h := newHarness(t, parisTravel(), nil)
	h.send("/book")
	assert.Contains(t, h.gw.last().Text, "Unknown command")
	h.send("/help")
	assert.Equal(t, helpText, h.gw.last().Text)
}

func TestNew_RequiresGatewayAndProvider(t *testing.T) {
	_, err := New(Config{Provider: parisTravel()})
	require.Error(t, err)
	_, err = New(Config{Gateway: newRecordingGateway()})
	require.Error(t, err)
}

func TestTextEvent_Command(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"/lowprice", "lowprice", true},
		{"/LowPrice@HotelScoutBot", "lowprice", true},
		{"/history now", "history", true},
		{"Paris", "", false},
		{"/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := TextEvent{Text: tt.text}.Command()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// holdingGateway blocks the first text edit after arm until the test releases it.
type holdingGateway struct {
	*recordingGateway
	entered chan struct{}
	hold    chan struct{}
	armed   bool
}

func (g *holdingGateway) arm() {
	g.mu.Lock()
	g.armed = true
	g.mu.Unlock()
}

func (g *holdingGateway) EditText(ctx context.Context, chatID int64, messageID int, text string, markup *messaging.Markup) (int, error) {
	g.mu.Lock()
	armed := g.armed
	g.armed = false
	g.mu.Unlock()
	if armed {
		g.entered <- struct{}{}
		<-g.hold
	}
	return g.recordingGateway.EditText(ctx, chatID, messageID, text, markup)
}

func newHoldingHarness(t *testing.T) (*harness, *holdingGateway) {
	t.Helper()
	gw := &holdingGateway{
		recordingGateway: newRecordingGateway(),
		entered:          make(chan struct{}, 1),
		hold:             make(chan struct{}),
	}
	travel := parisTravel()
	history := &fakeHistory{}
	b, err := New(Config{Gateway: gw, Provider: travel, History: history, Now: fixedNow})
	require.NoError(t, err)
	return &harness{t: t, bot: b, gw: gw.recordingGateway, travel: travel, history: history}, gw
}

func (g *recordingGateway) answerFor(id string) (callbackAnswer, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range g.answers {
		if a.ID == id {
			return a, true
		}
	}
	return callbackAnswer{}, false
}

func TestBot_NavigationDuringDisplayIsDropped(t *testing.T) {
	h, gw := newHoldingHarness(t)
	h.searchParis("/lowprice")
	next := h.gw.callback(t, actionHotel, "1")
	ctx := context.Background()

	gw.arm()
	done := make(chan error, 1)
	go func() {
		done <- h.bot.Handle(ctx, CallbackEvent{ID: "first", From: alice, Data: next})
	}()
	<-gw.entered

	require.NoError(t, h.bot.Handle(ctx, CallbackEvent{ID: "second", From: alice, Data: next}))
	busy, ok := h.gw.answerFor("second")
	require.True(t, ok, "the refused press is answered right away")
	assert.Equal(t, msgMediaBusy, busy.Text)
	assert.False(t, busy.Alert)

	close(gw.hold)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.session().Cursor.Hotel, "only the first press advances")
	first, ok := h.gw.answerFor("first")
	require.True(t, ok)
	assert.Empty(t, first.Text)

	h.pressData(next)
	assert.Equal(t, 2, h.session().Cursor.Hotel, "the lock is released after the page is shown")
}

func TestBot_DispatcherRefusesNavigationWhileBusy(t *testing.T) {
	h, gw := newHoldingHarness(t)
	h.searchParis("/lowprice")
	next := h.gw.callback(t, actionHotel, "1")

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(h.bot, time.Hour, nil)
	defer func() {
		cancel()
		d.Wait()
	}()

	gw.arm()
	require.NoError(t, d.Dispatch(ctx, CallbackEvent{ID: "first", From: alice, Data: next}))
	<-gw.entered

	require.NoError(t, d.Dispatch(ctx, CallbackEvent{ID: "second", From: alice, Data: next}))
	busy, ok := h.gw.answerFor("second")
	require.True(t, ok)
	assert.Equal(t, msgMediaBusy, busy.Text)

	close(gw.hold)
	require.Eventually(t, func() bool {
		_, answered := h.gw.answerFor("first")
		return answered
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.session().Cursor.Hotel)
}
