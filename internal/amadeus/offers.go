package amadeus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/service"
	"github.com/shopspring/decimal"
)

// Provider batch limits for multi-hotel requests.
const (
	BatchLimitOffers     = 20
	BatchLimitSentiments = 3
)

const (
	hotelOffersPath = "/v3/shopping/hotel-offers"
	sentimentsPath  = "/v2/e-reputation/hotel-sentiments"
)

type offerDTO struct {
	ID           string `json:"id"`
	CheckInDate  string `json:"checkInDate"`
	CheckOutDate string `json:"checkOutDate"`
	BoardType    string `json:"boardType"`
	Room         struct {
		Type        string `json:"type"`
		Description struct {
			Text string `json:"text"`
		} `json:"description"`
	} `json:"room"`
	Price struct {
		Currency string `json:"currency"`
		Base     string `json:"base"`
		Total    string `json:"total"`
	} `json:"price"`
}

type hotelOffersDTO struct {
	Hotel struct {
		HotelID string `json:"hotelId"`
	} `json:"hotel"`
	Offers    []offerDTO `json:"offers"`
	Available bool       `json:"available"`
}

type offersResponse struct {
	Data []hotelOffersDTO `json:"data"`
}

type offerResponse struct {
	Data hotelOffersDTO `json:"data"`
}

type sentimentsResponse struct {
	Data     []model.Sentiment `json:"data"`
	Warnings []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Code   int    `json:"code"`
	} `json:"warnings"`
}

// chunk splits ids into consecutive batches of at most size, preserving order.
func chunk(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// PricedOffers searches offers for hotelIDs in batches of BatchLimitOffers and
// concatenates the answers in batch order. A batch with no rooms available is empty.
func (c *Client) PricedOffers(ctx context.Context, hotelIDs []string, query service.OfferQuery) ([]model.HotelOffers, error) {
	var results []model.HotelOffers
	for i, batch := range chunk(hotelIDs, BatchLimitOffers) {
		params := offerParams(batch, query)
		resp, err := fetch[offersResponse](ctx, c, c.offers, EndpointHotelOffers, hotelOffersPath, params)
		if err != nil {
			if hasCode(err, codeNoRoomsAvailable) {
				c.logger.Debug("No rooms available for batch", "batch", i, "hotels", len(batch))
				continue
			}
			return nil, fmt.Errorf("failed to fetch offers for batch %d: %w", i, err)
		}
		for _, d := range resp.Data {
			results = append(results, c.toHotelOffers(d, i))
		}
	}
	return results, nil
}

func offerParams(ids []string, query service.OfferQuery) map[string]string {
	params := map[string]string{
		"hotelIds":      strings.Join(ids, ","),
		"adults":        "1",
		"roomQuantity":  "1",
		"paymentPolicy": "NONE",
		"bestRateOnly":  "true",
		"includeClosed": "true",
	}
	if !query.CheckIn.IsZero() {
		params["checkInDate"] = query.CheckIn.Format(model.DateLayout)
	}
	if !query.CheckOut.IsZero() {
		params["checkOutDate"] = query.CheckOut.Format(model.DateLayout)
	}
	if query.PriceRange != "" {
		params["priceRange"] = query.PriceRange.String()
	}
	if query.Currency != "" {
		params["currency"] = query.Currency
	}
	return params
}

func (c *Client) toHotelOffers(d hotelOffersDTO, batch int) model.HotelOffers {
	ho := model.HotelOffers{
		HotelID:   d.Hotel.HotelID,
		Available: d.Available,
		Batch:     batch,
	}
	for _, o := range d.Offers {
		offer, err := toOffer(d.Hotel.HotelID, o)
		if err != nil {
			c.logger.Warn("Skipping offer with unreadable price", "hotel_id", d.Hotel.HotelID, "offer_id", o.ID, "error", err)
			continue
		}
		ho.Offers = append(ho.Offers, offer)
	}
	return ho
}

func toOffer(hotelID string, o offerDTO) (model.Offer, error) {
	total, err := decimal.NewFromString(o.Price.Total)
	if err != nil {
		return model.Offer{}, fmt.Errorf("invalid total %q: %w", o.Price.Total, err)
	}
	base := decimal.Zero
	if o.Price.Base != "" {
		if base, err = decimal.NewFromString(o.Price.Base); err != nil {
			return model.Offer{}, fmt.Errorf("invalid base %q: %w", o.Price.Base, err)
		}
	}
	return model.Offer{
		ID:          o.ID,
		HotelID:     hotelID,
		CheckIn:     o.CheckInDate,
		CheckOut:    o.CheckOutDate,
		BoardType:   o.BoardType,
		RoomType:    o.Room.Type,
		Description: o.Room.Description.Text,
		Price: model.Price{
			Currency: o.Price.Currency,
			Base:     base,
			Total:    total,
		},
	}, nil
}

// Sentiments fetches guest sentiment scores in batches of BatchLimitSentiments.
// Hotels the provider has no data for are simply absent from the result.
func (c *Client) Sentiments(ctx context.Context, hotelIDs []string) ([]model.Sentiment, error) {
	var results []model.Sentiment
	for i, batch := range chunk(hotelIDs, BatchLimitSentiments) {
		params := map[string]string{"hotelIds": strings.Join(batch, ",")}
		resp, err := fetch[sentimentsResponse](ctx, c, c.sentiments, EndpointSentiments, sentimentsPath, params)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch sentiments for batch %d: %w", i, err)
		}
		for _, w := range resp.Warnings {
			c.logger.Debug("Sentiment warning", "batch", i, "code", w.Code, "title", w.Title, "detail", w.Detail)
		}
		results = append(results, resp.Data...)
	}
	return results, nil
}

// Offer re-prices a single offer. It reports false when the offer is gone or no
// longer available.
func (c *Client) Offer(ctx context.Context, offerID string) (*model.Offer, bool, error) {
	path := hotelOffersPath + "/" + url.PathEscape(offerID)
	resp, err := fetch[offerResponse](ctx, c, nil, EndpointOffer, path, nil)
	if err != nil {
		if isOfferGone(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to confirm offer %s: %w", offerID, err)
	}
	if !resp.Data.Available || len(resp.Data.Offers) == 0 {
		return nil, false, nil
	}
	offer, err := toOffer(resp.Data.Hotel.HotelID, resp.Data.Offers[0])
	if err != nil {
		return nil, false, fmt.Errorf("failed to read offer %s: %w", offerID, err)
	}
	return &offer, true, nil
}

func isOfferGone(err error) bool {
	if hasCode(err, codeNoRoomsAvailable) || hasCode(err, codeOfferNotFound) {
		return true
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Status == http.StatusNotFound || pe.Status == http.StatusGone
}
