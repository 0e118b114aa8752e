package photos

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

var blockedHosts = []string{
	"instagram",
	"facebook",
	"fbcdn.net",
	"tiktok",
	"pinterest",
	"pinimg.com",
	"lookaside",
	"x.com",
	"twitter",
	"googleusercontent.com",
	"gstatic.com",
	"bstatic.com",
}

// normalize lower-cases text and collapses everything but letters and digits to single spaces.
func normalize(text string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(text), " "))
}

func significantWords(text string) []string {
	var words []string
	for _, w := range strings.Fields(normalize(text)) {
		if len(w) >= 2 {
			words = append(words, w)
		}
	}
	return words
}

// Query builds the image search query, leaving the city out when the hotel name contains it.
func Query(hotelName, city string) string {
	hotel, c := normalize(hotelName), normalize(city)
	if c == "" || strings.Contains(hotel, c) {
		return hotel
	}
	return hotel + " " + c
}

// Relevant reports whether an image title names the hotel: every significant word
// of the hotel name must appear, and so must every city word the name lacks.
func Relevant(title, hotelName, city string) bool {
	titleWords := strings.Fields(normalize(title))
	if len(titleWords) == 0 {
		return false
	}

	hotelWords := significantWords(hotelName)
	for _, w := range hotelWords {
		if !slices.Contains(titleWords, w) {
			return false
		}
	}
	for _, w := range significantWords(city) {
		if slices.Contains(hotelWords, w) {
			continue
		}
		if !slices.Contains(titleWords, w) {
			return false
		}
	}
	return true
}

// blocked reports whether the image is hosted somewhere that serves login walls or thumbnails.
func blocked(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, b := range blockedHosts {
		if strings.Contains(b, ".") {
			if host == b || strings.HasSuffix(host, "."+b) {
				return true
			}
			continue
		}
		if strings.Contains(host, b) {
			return true
		}
	}
	return false
}
