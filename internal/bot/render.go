package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/hotel-scout/internal/locale"
	"github.com/Veraticus/hotel-scout/internal/messaging"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/search"
)

// Callback actions.
const (
	actionCity        = "city"
	actionDate        = "date"
	actionSort        = "sort"
	actionHotel       = "hotel"
	actionPhoto       = "photo"
	actionOffer       = "offer"
	actionHistoryPage = "hpage"
)

// Date picker kinds carried in date callbacks.
const (
	pickCheckIn  = "in"
	pickCheckOut = "out"
	pickHistory  = "hist"
	pickAllDates = "all"

	callbackDateLayout = "20060102"
	calendarDays       = 14
	calendarRowSize    = 4
)

// Reply keyboard controls shown under search results.
const (
	ctrlCity     = "🌇 Choose city"
	ctrlDates    = "📅 Choose dates"
	ctrlPrice    = "💰 Set price range"
	ctrlRadius   = "🎯 Set search radius"
	ctrlSort     = "📊 Choose sorting criteria"
	ctrlRepeat   = "🔁 Repeat search"
	ctrlComplete = "❌ Complete"
)

const historyPageSize = 3

const helpText = `I find hotels with available offers in the city you choose.

/lowprice - cheapest hotels first
/bestdeal - hotels closest to the city center first
/guest_rating - hotels with the best guest rating first
/search - choose the sorting after entering the criteria
/history - your previous searches
/help - this message`

// CommandInfo describes a command for a transport's command menu.
type CommandInfo struct {
	Name        string
	Description string
}

// Commands lists the commands the bot understands, in menu order.
func Commands() []CommandInfo {
	return []CommandInfo{
		{Name: "lowprice", Description: "Cheapest hotels first"},
		{Name: "bestdeal", Description: "Hotels closest to the city center first"},
		{Name: "guest_rating", Description: "Best rated hotels first"},
		{Name: "search", Description: "Search and choose the sorting later"},
		{Name: "history", Description: "Your previous searches"},
		{Name: "help", Description: "What I can do"},
	}
}

func controlsMarkup() *messaging.Markup {
	return &messaging.Markup{Reply: [][]string{
		{ctrlCity, ctrlDates, ctrlPrice, ctrlRadius},
		{ctrlSort, ctrlRepeat, ctrlComplete},
	}}
}

func removeReplyMarkup() *messaging.Markup {
	return &messaging.Markup{RemoveReply: true}
}

func cityKeyboard(sessionID string, cities []model.City) *messaging.Markup {
	rows := make([][]messaging.Button, 0, len(cities))
	for i, c := range cities {
		rows = append(rows, []messaging.Button{{
			Text: c.Label(),
			Data: messaging.MustEncodeCallback(actionCity, sessionID, strconv.Itoa(i)),
		}})
	}
	return messaging.InlineRows(rows...)
}

// dateKeyboard lists days consecutive dates starting at first.
func dateKeyboard(sessionID, kind string, first time.Time, days int, withAll bool) *messaging.Markup {
	var rows [][]messaging.Button
	var row []messaging.Button
	for i := range days {
		day := first.AddDate(0, 0, i)
		row = append(row, messaging.Button{
			Text: day.Format("Mon 02 Jan"),
			Data: messaging.MustEncodeCallback(actionDate, sessionID, kind, day.Format(callbackDateLayout)),
		})
		if len(row) == calendarRowSize {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if withAll {
		rows = append(rows, []messaging.Button{{
			Text: "All dates",
			Data: messaging.MustEncodeCallback(actionDate, sessionID, kind, pickAllDates),
		}})
	}
	return messaging.InlineRows(rows...)
}

func sortKeyboard(sessionID string) *messaging.Markup {
	rows := make([][]messaging.Button, 0, len(model.SortCommands))
	for _, cmd := range model.SortCommands {
		rows = append(rows, []messaging.Button{{
			Text: cmd.Description(),
			Data: messaging.MustEncodeCallback(actionSort, sessionID, string(cmd)),
		}})
	}
	return messaging.InlineRows(rows...)
}

func stepButtons(action, sessionID, prev, next string) []messaging.Button {
	return []messaging.Button{
		{Text: prev, Data: messaging.MustEncodeCallback(action, sessionID, "-1")},
		{Text: next, Data: messaging.MustEncodeCallback(action, sessionID, "1")},
	}
}

func hotelKeyboard(sessionID string, index, count int, name string) *messaging.Markup {
	rows := [][]messaging.Button{{{
		Text: "Accept the offer of " + name,
		Data: messaging.MustEncodeCallback(actionOffer, sessionID, strconv.Itoa(index)),
	}}}
	if count > 1 {
		rows = append(rows, stepButtons(actionHotel, sessionID, "◀️ Previous hotel", "Next hotel ▶️"))
	}
	return messaging.InlineRows(rows...)
}

func photoKeyboard(sessionID string, count int) *messaging.Markup {
	if count < 2 {
		return nil
	}
	return messaging.InlineRows(stepButtons(actionPhoto, sessionID, "◀️ Previous photo", "Next photo ▶️"))
}

func historyKeyboard(sessionID string, pages int) *messaging.Markup {
	if pages < 2 {
		return nil
	}
	return messaging.InlineRows(stepButtons(actionHistoryPage, sessionID, "◀️ Newer", "Older ▶️"))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not specified"
	}
	return s
}

// offerNights counts nights from the offer's own dates, falling back to the criteria.
func offerNights(o *model.Offer, fallback model.DateRange) int {
	in, errIn := time.Parse(model.DateLayout, o.CheckIn)
	out, errOut := time.Parse(model.DateLayout, o.CheckOut)
	if errIn != nil || errOut != nil {
		return fallback.Nights()
	}
	return model.Nights(in, out)
}

func addressLine(a model.Address) string {
	parts := []string{locale.CountryName(a.CountryCode)}
	if a.CityName != "" {
		parts = append(parts, locale.TitleCity(a.CityName))
	}
	parts = append(parts, orNone(a.PostalCode))
	parts = append(parts, a.Lines...)
	return strings.Join(parts, ", ")
}

func hotelText(h *model.Hotel, index, count int, dates model.DateRange) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏨 %s\n", h.Name)
	if h.Rating > 0 {
		fmt.Fprintf(&b, "Stars: %s\n", strings.Repeat("⭐", h.Rating))
	} else {
		b.WriteString("Stars: not specified\n")
	}
	fmt.Fprintf(&b, "Address: %s\n", addressLine(h.Address))
	fmt.Fprintf(&b, "Coordinates: %.5f, %.5f\n", h.Geo.Latitude, h.Geo.Longitude)
	fmt.Fprintf(&b, "Distance to the center: %s %s\n",
		strconv.FormatFloat(h.Distance.Value, 'f', -1, 64), strings.ToLower(h.Distance.Unit))
	if h.Sentiment != nil {
		fmt.Fprintf(&b, "Guest rating: %d/100\n", h.Sentiment.OverallRating)
	} else {
		b.WriteString("Guest rating: no data\n")
	}
	if o := h.Offer; o != nil {
		nights := offerNights(o, dates)
		b.WriteString("\nOffer\n")
		fmt.Fprintf(&b, "  Room: %s\n", orNone(o.Description))
		fmt.Fprintf(&b, "  Board: %s\n", orNone(o.BoardType))
		fmt.Fprintf(&b, "  Check-in: %s\n", o.CheckIn)
		fmt.Fprintf(&b, "  Check-out: %s\n", o.CheckOut)
		fmt.Fprintf(&b, "  Total: %s %s\n", o.Price.Total.StringFixed(2), o.Price.Currency)
		fmt.Fprintf(&b, "  Per night: %s %s\n", o.Price.PerNight(nights).StringFixed(2), o.Price.Currency)
	}
	fmt.Fprintf(&b, "\nHotel %d of %d", index+1, count)
	return b.String()
}

func photoCaption(h *model.Hotel, index int) string {
	return fmt.Sprintf("%s\nPhoto %d of %d", h.Name, index+1, len(h.Photos))
}

func datesText(d model.DateRange) string {
	nights := d.Nights()
	unit := "nights"
	if nights == 1 {
		unit = "night"
	}
	return fmt.Sprintf("📅 Dates: %s to %s (%d %s)",
		d.CheckIn.Format(model.DateLayout), d.CheckOut.Format(model.DateLayout), nights, unit)
}

func pricePrompt(c model.Currency) string {
	return fmt.Sprintf("Enter the price range for the stay in %s (%s), for example 100-200, -200, 100- or 150:",
		c.Name, c.Code)
}

func radiusPrompt() string {
	return fmt.Sprintf("Within how many kilometers of the city center should I look? Enter a whole number from %d to %d:",
		model.MinRadius, model.MaxRadius)
}

func progressText(p search.Progress, c model.Criteria) string {
	switch p.Stage {
	case search.StageHotels:
		return fmt.Sprintf("🏨 Found %d hotels in %s, checking prices...", p.Count, c.City.Name)
	case search.StageOffers:
		return fmt.Sprintf("💰 %d hotels have available offers, loading guest ratings...", p.Count)
	case search.StageSentiments:
		return "⭐ Guest ratings loaded, sorting..."
	default:
		return "🔎 Searching..."
	}
}

func summaryText(rs *model.ResultSet) string {
	c := rs.Criteria
	return fmt.Sprintf("Found %d hotels in %s, %s. %s.",
		rs.Len(), c.City.Name, c.City.CountryName, c.Sort.Description())
}

func historyDayLabel(day *time.Time) string {
	if day == nil {
		return "all dates"
	}
	return day.Format("02 Jan 2006")
}

func historyRecordText(rec model.SearchRecord) string {
	c := rec.Criteria
	var b strings.Builder
	fmt.Fprintf(&b, "🔎 %s\n", rec.CreatedAt.Format("02 Jan 2006 15:04"))
	fmt.Fprintf(&b, "City: %s, %s\n", c.City.Name, orNone(c.City.CountryName))
	fmt.Fprintf(&b, "Check-in: %s, check-out: %s\n",
		c.Dates.CheckIn.Format(model.DateLayout), c.Dates.CheckOut.Format(model.DateLayout))
	if c.PriceRange != "" {
		fmt.Fprintf(&b, "Price range: %s %s\n", c.PriceRange, locale.CurrencyName(c.Currency.Code))
	}
	fmt.Fprintf(&b, "Radius: %d km\n", c.Radius)
	fmt.Fprintf(&b, "Command: /%s\n", c.Sort)
	if len(rec.Hotels) == 0 {
		b.WriteString("Hotels: none")
		return b.String()
	}
	b.WriteString("Hotels:")
	for i, h := range rec.Hotels {
		fmt.Fprintf(&b, "\n  %d. %s, %s %s", i+1, h.Name, h.Total, h.Currency)
	}
	return b.String()
}

func historyPages(n int) int {
	return (n + historyPageSize - 1) / historyPageSize
}

func historyPageText(records []model.SearchRecord, page int, day *time.Time) string {
	pages := historyPages(len(records))
	start := page * historyPageSize
	end := min(start+historyPageSize, len(records))

	parts := make([]string, 0, end-start+1)
	parts = append(parts, fmt.Sprintf("Searches for %s:", historyDayLabel(day)))
	for _, rec := range records[start:end] {
		parts = append(parts, historyRecordText(rec))
	}
	if pages > 1 {
		parts = append(parts, fmt.Sprintf("Page %d of %d", page+1, pages))
	}
	return strings.Join(parts, "\n\n")
}
