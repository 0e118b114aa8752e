// Package locale derives display names and currencies from provider country codes.
package locale

import (
	"strings"

	"github.com/Veraticus/hotel-scout/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// FallbackCurrency is used when a country has no known tender.
const FallbackCurrency = "USD"

var currencyNames = map[string]string{
	"AED": "UAE Dirham",
	"ARS": "Argentine Peso",
	"AUD": "Australian Dollar",
	"BRL": "Brazilian Real",
	"CAD": "Canadian Dollar",
	"CHF": "Swiss Franc",
	"CNY": "Yuan Renminbi",
	"CZK": "Czech Koruna",
	"DKK": "Danish Krone",
	"EGP": "Egyptian Pound",
	"EUR": "Euro",
	"GBP": "Pound Sterling",
	"GEL": "Lari",
	"HKD": "Hong Kong Dollar",
	"HUF": "Forint",
	"IDR": "Rupiah",
	"ILS": "New Israeli Sheqel",
	"INR": "Indian Rupee",
	"JPY": "Yen",
	"KRW": "Won",
	"KZT": "Tenge",
	"MXN": "Mexican Peso",
	"NOK": "Norwegian Krone",
	"NZD": "New Zealand Dollar",
	"PLN": "Zloty",
	"RUB": "Russian Ruble",
	"SEK": "Swedish Krona",
	"SGD": "Singapore Dollar",
	"THB": "Baht",
	"TRY": "Turkish Lira",
	"UAH": "Hryvnia",
	"USD": "US Dollar",
	"ZAR": "Rand",
}

// CountryName returns the English name of an ISO 3166 country code, or the code itself.
func CountryName(code string) string {
	region, err := language.ParseRegion(strings.TrimSpace(code))
	if err != nil {
		return code
	}
	if name := display.English.Regions().Name(region); name != "" {
		return name
	}
	return code
}

// CurrencyFor returns the currency currently tendered in a country.
func CurrencyFor(countryCode string) model.Currency {
	code := FallbackCurrency
	if region, err := language.ParseRegion(strings.TrimSpace(countryCode)); err == nil {
		if unit, ok := currency.FromRegion(region); ok {
			code = unit.String()
		}
	}
	return model.Currency{Code: code, Name: CurrencyName(code)}
}

// CurrencyName returns the display name of an ISO 4217 code, or the code itself.
func CurrencyName(code string) string {
	if name, ok := currencyNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// TitleCity converts provider upper-case city names to title case.
func TitleCity(name string) string {
	return cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(name)))
}
