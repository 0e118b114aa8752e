package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Veraticus/hotel-scout/internal/bot"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cityOnlyProvider answers city lookups; nothing else is reached in these tests.
type cityOnlyProvider struct{}

func (cityOnlyProvider) FindCities(_ context.Context, keyword string) ([]model.City, error) {
	if !strings.EqualFold(keyword, "paris") {
		return nil, nil
	}
	return []model.City{{Name: "Paris", Code: "PAR", CountryCode: "FR", CountryName: "France"}}, nil
}

func (cityOnlyProvider) HotelsInCity(context.Context, string, int) ([]model.Hotel, error) {
	return nil, nil
}

func (cityOnlyProvider) PricedOffers(context.Context, []string, service.OfferQuery) ([]model.HotelOffers, error) {
	return nil, nil
}

func (cityOnlyProvider) Sentiments(context.Context, []string) ([]model.Sentiment, error) {
	return nil, nil
}

func (cityOnlyProvider) Offer(context.Context, string) (*model.Offer, bool, error) {
	return nil, false, nil
}

func TestConsoleWithBot(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "help",
			input:    "/help\n",
			expected: []string{"/lowprice", "/guest_rating", "/history"},
		},
		{
			name:  "city then calendar",
			input: "/lowprice\nParis\n#1\n",
			expected: []string{
				"In which city should I search?",
				"Please choose the city:",
				"Choose the check-in date",
			},
		},
		{
			name:     "unknown city",
			input:    "/bestdeal\nAtlantis\n",
			expected: []string{`I could not find a city called "Atlantis"`},
		},
		{
			name:     "stale button",
			input:    "/lowprice\nParis\n/search\n#1\n",
			expected: []string{"This button is no longer active."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			console := NewConsole(strings.NewReader(tt.input), &out, testUser)
			b, err := bot.New(bot.Config{Gateway: console, Provider: cityOnlyProvider{}})
			require.NoError(t, err)

			require.NoError(t, console.Run(context.Background(), b))

			for _, want := range tt.expected {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}
