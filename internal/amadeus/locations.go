package amadeus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/hotel-scout/internal/locale"
	"github.com/Veraticus/hotel-scout/internal/model"
)

const (
	citiesPath       = "/v1/reference-data/locations/cities"
	hotelsByCityPath = "/v1/reference-data/locations/hotels/by-city"

	maxCities = 10

	// Star ratings requested for every city search.
	defaultRatings = "1,3,4,5"
)

type cityDTO struct {
	Name     string        `json:"name"`
	IATACode string        `json:"iataCode"`
	SubType  string        `json:"subType"`
	GeoCode  model.GeoCode `json:"geoCode"`
	Address  struct {
		CountryCode string `json:"countryCode"`
		StateCode   string `json:"stateCode"`
	} `json:"address"`
}

type citiesResponse struct {
	Data []cityDTO `json:"data"`
}

type hotelDTO struct {
	HotelID   string         `json:"hotelId"`
	Name      string         `json:"name"`
	ChainCode string         `json:"chainCode"`
	IATACode  string         `json:"iataCode"`
	Address   model.Address  `json:"address"`
	GeoCode   model.GeoCode  `json:"geoCode"`
	Distance  model.Distance `json:"distance"`
	Rating    int            `json:"rating"`
}

type hotelsResponse struct {
	Data []hotelDTO `json:"data"`
}

// FindCities searches cities by keyword. Records without an IATA code are skipped
// since hotel discovery needs one.
func (c *Client) FindCities(ctx context.Context, keyword string) ([]model.City, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	params := map[string]string{
		"keyword": keyword,
		"max":     strconv.Itoa(maxCities),
	}

	resp, err := fetch[citiesResponse](ctx, c, c.cities, EndpointCities, citiesPath, params)
	if err != nil {
		if hasCode(err, codeNothingFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find cities for %q: %w", keyword, err)
	}

	cities := make([]model.City, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.IATACode == "" {
			continue
		}
		cities = append(cities, model.City{
			Name:        locale.TitleCity(d.Name),
			Code:        d.IATACode,
			CountryCode: d.Address.CountryCode,
			CountryName: locale.CountryName(d.Address.CountryCode),
			StateCode:   d.Address.StateCode,
			Latitude:    d.GeoCode.Latitude,
			Longitude:   d.GeoCode.Longitude,
		})
	}
	return cities, nil
}

// HotelsInCity lists hotels within radiusKm of the city's reference point.
// A "nothing found" answer is an empty list, not an error.
func (c *Client) HotelsInCity(ctx context.Context, cityCode string, radiusKm int) ([]model.Hotel, error) {
	params := map[string]string{
		"cityCode":    cityCode,
		"radius":      strconv.Itoa(radiusKm),
		"radiusUnit":  "KM",
		"hotelSource": "ALL",
		"ratings":     defaultRatings,
	}

	resp, err := fetch[hotelsResponse](ctx, c, c.hotels, EndpointHotelsByCity, hotelsByCityPath, params)
	if err != nil {
		if hasCode(err, codeNothingFound) {
			c.logger.Debug("No hotels in city", "city", cityCode, "radius", radiusKm)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list hotels in %s: %w", cityCode, err)
	}

	hotels := make([]model.Hotel, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.HotelID == "" {
			continue
		}
		hotels = append(hotels, model.Hotel{
			ID:        d.HotelID,
			Name:      d.Name,
			ChainCode: d.ChainCode,
			IATACode:  d.IATACode,
			Geo:       d.GeoCode,
			Address:   d.Address,
			Rating:    d.Rating,
			Distance:  d.Distance,
		})
	}
	return hotels, nil
}
