// Package service defines the interfaces shared between application components.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/hotel-scout/internal/messaging"
	"github.com/Veraticus/hotel-scout/internal/model"
)

// OfferQuery narrows an offer search.
type OfferQuery struct {
	CheckIn    time.Time
	CheckOut   time.Time
	PriceRange model.PriceRange
	Currency   string
}

// CityFinder resolves free text to destination cities.
type CityFinder interface {
	FindCities(ctx context.Context, keyword string) ([]model.City, error)
}

// HotelProvider supplies the data the search pipeline composes.
type HotelProvider interface {
	HotelsInCity(ctx context.Context, cityCode string, radiusKm int) ([]model.Hotel, error)
	PricedOffers(ctx context.Context, hotelIDs []string, query OfferQuery) ([]model.HotelOffers, error)
	Sentiments(ctx context.Context, hotelIDs []string) ([]model.Sentiment, error)
}

// OfferConfirmer re-checks a single offer before the user accepts it.
type OfferConfirmer interface {
	Offer(ctx context.Context, offerID string) (*model.Offer, bool, error)
}

// TravelProvider is the full travel data provider surface.
type TravelProvider interface {
	CityFinder
	HotelProvider
	OfferConfirmer
}

// HistoryStore records and reads completed searches.
type HistoryStore interface {
	AppendSearch(ctx context.Context, user model.User, results *model.ResultSet) (int64, error)
	ReadHistory(ctx context.Context, userID int64, day *time.Time) ([]model.SearchRecord, error)
}

// PhotoStore persists photos found for a hotel of a stored search.
// SaveHotelPhotos reports false when photos were already stored.
type PhotoStore interface {
	SaveHotelPhotos(ctx context.Context, requestID int64, hotelID string, photos []model.Photo) (bool, error)
}

// CacheStore is the backing store for response caching.
type CacheStore interface {
	GetCached(ctx context.Context, endpoint, key string) ([]byte, bool, error)
	PutCached(ctx context.Context, endpoint, key string, value []byte, expiresAt time.Time) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// Gateway is the chat transport. Edit operations fall back to sending a new message
// when the target is missing or cannot be edited, and return the id now showing the content.
// A messageID of zero means there is nothing to edit yet.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string, markup *messaging.Markup) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, markup *messaging.Markup) (int, error)
	SendMedia(ctx context.Context, chatID int64, media messaging.Media, markup *messaging.Markup) (int, error)
	EditMedia(ctx context.Context, chatID int64, messageID int, media messaging.Media, markup *messaging.Markup) (int, error)
	RemoveControls(ctx context.Context, chatID int64, messageID int) error
	DeleteMessages(ctx context.Context, chatID int64, messageIDs ...int) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}
