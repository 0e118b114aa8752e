package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountryName(t *testing.T) {
	assert.Equal(t, "France", CountryName("FR"))
	assert.Equal(t, "Japan", CountryName("jp"))
	assert.Equal(t, "??", CountryName("??"))
}

func TestCurrencyFor(t *testing.T) {
	tests := []struct {
		country string
		code    string
		name    string
	}{
		{"FR", "EUR", "Euro"},
		{"JP", "JPY", "Yen"},
		{"GB", "GBP", "Pound Sterling"},
		{"US", "USD", "US Dollar"},
		{"", FallbackCurrency, "US Dollar"},
	}
	for _, tt := range tests {
		t.Run(tt.country, func(t *testing.T) {
			c := CurrencyFor(tt.country)
			assert.Equal(t, tt.code, c.Code)
			assert.Equal(t, tt.name, c.Name)
		})
	}
}

func TestCurrencyName_UnknownCode(t *testing.T) {
	assert.Equal(t, "XYZ", CurrencyName("XYZ"))
}

func TestTitleCity(t *testing.T) {
	assert.Equal(t, "Paris", TitleCity("PARIS"))
	assert.Equal(t, "New York", TitleCity(" NEW YORK "))
}
