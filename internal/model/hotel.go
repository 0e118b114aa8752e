package model

import (
	"github.com/mmcloughlin/geohash"
	"github.com/shopspring/decimal"
)

// GeohashPrecision is the number of characters kept for stored hotel locations.
const GeohashPrecision = 7

// GeoCode is a WGS84 coordinate pair.
type GeoCode struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Address is a hotel's postal address.
type Address struct {
	CountryCode string   `json:"countryCode"`
	CityName    string   `json:"cityName,omitempty"`
	PostalCode  string   `json:"postalCode,omitempty"`
	Lines       []string `json:"lines,omitempty"`
}

// Distance is the distance from the city reference point.
type Distance struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Price is an offer's price; amounts stay decimal to avoid float drift in totals.
type Price struct {
	Currency string          `json:"currency"`
	Base     decimal.Decimal `json:"base"`
	Total    decimal.Decimal `json:"total"`
}

// PerNight divides the total by the number of nights, rounded to cents.
// It returns the total when nights is not positive.
func (p Price) PerNight(nights int) decimal.Decimal {
	if nights <= 0 {
		return p.Total.Round(2)
	}
	return p.Total.Div(decimal.NewFromInt(int64(nights))).Round(2)
}

// Offer is a priced room proposal for one hotel.
type Offer struct {
	ID          string `json:"id"`
	HotelID     string `json:"hotelId,omitempty"`
	CheckIn     string `json:"checkInDate"`
	CheckOut    string `json:"checkOutDate"`
	BoardType   string `json:"boardType,omitempty"`
	RoomType    string `json:"roomType,omitempty"`
	Description string `json:"description,omitempty"`
	Price       Price  `json:"price"`
}

// HotelOffers is the provider's availability answer for a single hotel.
// Batch is the index of the provider request that returned it.
type HotelOffers struct {
	HotelID   string  `json:"hotelId"`
	Offers    []Offer `json:"offers"`
	Batch     int     `json:"batch"`
	Available bool    `json:"available"`
}

// Sentiment is an aggregate guest-review score between 0 and 100.
type Sentiment struct {
	HotelID         string         `json:"hotelId"`
	OverallRating   int            `json:"overallRating"`
	NumberOfReviews int            `json:"numberOfReviews"`
	NumberOfRatings int            `json:"numberOfRatings"`
	Categories      map[string]int `json:"sentiments,omitempty"`
}

// Photo is an image found for a hotel.
type Photo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Hotel is a search candidate. Offer and Sentiment are filled in by later pipeline stages.
type Hotel struct {
	ID        string     `json:"hotelId"`
	Name      string     `json:"name"`
	ChainCode string     `json:"chainCode,omitempty"`
	IATACode  string     `json:"iataCode,omitempty"`
	Geo       GeoCode    `json:"geoCode"`
	Address   Address    `json:"address"`
	Rating    int        `json:"rating,omitempty"`
	Distance  Distance   `json:"distance"`
	Offer     *Offer     `json:"offer,omitempty"`
	Sentiment *Sentiment `json:"sentiment,omitempty"`
	Photos    []Photo    `json:"photos,omitempty"`

	// PhotosResolved is set once an enrichment attempt has finished, even with no photos.
	PhotosResolved bool `json:"photosResolved,omitempty"`
}

// Geohash encodes the hotel's coordinates.
func (h *Hotel) Geohash() string {
	return geohash.EncodeWithPrecision(h.Geo.Latitude, h.Geo.Longitude, GeohashPrecision)
}

// GuestRating returns the overall sentiment score, or 0 when no sentiment is known.
func (h *Hotel) GuestRating() int {
	if h.Sentiment == nil {
		return 0
	}
	return h.Sentiment.OverallRating
}
