package model

import "time"

// User is a chat user known to the history store.
type User struct {
	ID   int64
	Name string
}

// SearchRecord is one completed search as stored in history.
type SearchRecord struct {
	CreatedAt time.Time
	Hotels    []HotelRecord
	Criteria  Criteria
	ID        int64
	UserID    int64
}

// HotelRecord is a hotel that appeared in a stored search.
type HotelRecord struct {
	HotelID  string
	Name     string
	Geohash  string
	Currency string
	Total    string
	Photos   []Photo
	Geo      GeoCode
	Distance Distance
	Rating   int
}
