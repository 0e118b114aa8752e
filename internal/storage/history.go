package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/hotel-scout/internal/model"
)

// UpsertUser creates the user or refreshes their display name.
func (s *SQLiteStorage) UpsertUser(ctx context.Context, user model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUser(user); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertUserTx(ctx, tx, user, s.now().UTC())
	})
}

func upsertUserTx(ctx context.Context, tx *sql.Tx, user model.User, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		user.ID, user.Name, now)
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}
	return nil
}

// AppendSearch records a completed search and its ranked hotels, returning the record id.
func (s *SQLiteStorage) AppendSearch(ctx context.Context, user model.User, results *model.ResultSet) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateUser(user); err != nil {
		return 0, err
	}
	if err := validateResultSet(results); err != nil {
		return 0, err
	}

	now := s.now().UTC()
	c := results.Criteria
	var requestID int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertUserTx(ctx, tx, user, now); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO search_requests (
				user_id, sort_command, city_name, city_code, country_code, country_name,
				currency_code, currency_name, check_in, check_out, price_range, radius, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID, string(c.Sort), c.City.Name, c.City.Code, c.City.CountryCode, c.City.CountryName,
			c.Currency.Code, c.Currency.Name,
			c.Dates.CheckIn.Format(model.DateLayout), c.Dates.CheckOut.Format(model.DateLayout),
			string(c.PriceRange), c.Radius, now)
		if err != nil {
			return fmt.Errorf("failed to insert search request: %w", err)
		}
		if requestID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read search request id: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO search_hotels (
				request_id, position, hotel_id, name, latitude, longitude, geohash,
				distance, distance_unit, total, currency, guest_rating
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare hotel insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, h := range results.Ranked() {
			if _, err := stmt.ExecContext(ctx,
				requestID, i, h.ID, h.Name, h.Geo.Latitude, h.Geo.Longitude, h.Geohash(),
				h.Distance.Value, h.Distance.Unit,
				h.Offer.Price.Total.String(), h.Offer.Price.Currency, h.GuestRating(),
			); err != nil {
				return fmt.Errorf("failed to insert hotel %s: %w", h.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return requestID, nil
}

// ReadHistory returns a user's searches, newest first. A non-nil day limits results
// to searches made on that calendar day in the day's location.
func (s *SQLiteStorage) ReadHistory(ctx context.Context, userID int64, day *time.Time) ([]model.SearchRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateUser(model.User{ID: userID}); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, sort_command, city_name, city_code, country_code, country_name,
			currency_code, currency_name, check_in, check_out, price_range, radius, created_at
		FROM search_requests
		WHERE user_id = ?`
	args := []any{userID}
	if day != nil {
		start := model.Day(*day)
		query += ` AND created_at >= ? AND created_at < ?`
		args = append(args, start.UTC(), start.AddDate(0, 0, 1).UTC())
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.SearchRecord
	for rows.Next() {
		rec, err := scanSearchRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	for i := range records {
		hotels, err := s.searchHotels(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Hotels = hotels
	}
	return records, nil
}

func scanSearchRecord(rows *sql.Rows) (model.SearchRecord, error) {
	var (
		rec               model.SearchRecord
		sortCmd, priceRng string
		checkIn, checkOut string
	)
	c := &rec.Criteria
	if err := rows.Scan(
		&rec.ID, &rec.UserID, &sortCmd, &c.City.Name, &c.City.Code, &c.City.CountryCode, &c.City.CountryName,
		&c.Currency.Code, &c.Currency.Name, &checkIn, &checkOut, &priceRng, &c.Radius, &rec.CreatedAt,
	); err != nil {
		return rec, fmt.Errorf("failed to scan search request: %w", err)
	}

	var err error
	if c.Dates.CheckIn, err = time.Parse(model.DateLayout, checkIn); err != nil {
		return rec, fmt.Errorf("search %d has invalid check-in %q: %w", rec.ID, checkIn, err)
	}
	if c.Dates.CheckOut, err = time.Parse(model.DateLayout, checkOut); err != nil {
		return rec, fmt.Errorf("search %d has invalid check-out %q: %w", rec.ID, checkOut, err)
	}
	c.Sort = model.SortCommand(sortCmd)
	c.PriceRange = model.PriceRange(priceRng)
	return rec, nil
}

func (s *SQLiteStorage) searchHotels(ctx context.Context, requestID int64) ([]model.HotelRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hotel_id, name, latitude, longitude, geohash, distance, distance_unit,
			total, currency, guest_rating, photos
		FROM search_hotels
		WHERE request_id = ?
		ORDER BY position`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hotels for search %d: %w", requestID, err)
	}
	defer func() { _ = rows.Close() }()

	var hotels []model.HotelRecord
	for rows.Next() {
		var (
			h      model.HotelRecord
			photos string
		)
		if err := rows.Scan(&h.HotelID, &h.Name, &h.Geo.Latitude, &h.Geo.Longitude, &h.Geohash,
			&h.Distance.Value, &h.Distance.Unit, &h.Total, &h.Currency, &h.Rating, &photos); err != nil {
			return nil, fmt.Errorf("failed to scan hotel: %w", err)
		}
		if err := json.Unmarshal([]byte(photos), &h.Photos); err != nil {
			return nil, fmt.Errorf("hotel %s has invalid photos: %w", h.HotelID, err)
		}
		hotels = append(hotels, h)
	}
	return hotels, rows.Err()
}

// SaveHotelPhotos stores photos for a hotel of a recorded search. Photos are written once;
// later calls leave the stored list untouched and report false.
func (s *SQLiteStorage) SaveHotelPhotos(ctx context.Context, requestID int64, hotelID string, photos []model.Photo) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(hotelID, "hotelID"); err != nil {
		return false, err
	}
	if requestID <= 0 {
		return false, fmt.Errorf("%w: request id %d", ErrInvalidRequest, requestID)
	}
	if len(photos) == 0 {
		return false, nil
	}

	payload, err := json.Marshal(photos)
	if err != nil {
		return false, fmt.Errorf("failed to encode photos: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE search_hotels SET photos = ?
		WHERE request_id = ? AND hotel_id = ? AND photos = '[]'`,
		string(payload), requestID, hotelID)
	if err != nil {
		return false, fmt.Errorf("failed to save photos for %s: %w", hotelID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_hotels WHERE request_id = ? AND hotel_id = ?`,
		requestID, hotelID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check hotel %s: %w", hotelID, err)
	}
	if exists == 0 {
		return false, fmt.Errorf("%w: %s in search %d", ErrUnknownHotel, hotelID, requestID)
	}
	return false, nil
}

// HotelPhotos returns the photos stored for a hotel of a recorded search.
func (s *SQLiteStorage) HotelPhotos(ctx context.Context, requestID int64, hotelID string) ([]model.Photo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT photos FROM search_hotels WHERE request_id = ? AND hotel_id = ?`,
		requestID, hotelID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s in search %d", ErrUnknownHotel, hotelID, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read photos for %s: %w", hotelID, err)
	}
	var photos []model.Photo
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &photos); err != nil {
		return nil, fmt.Errorf("hotel %s has invalid photos: %w", hotelID, err)
	}
	return photos, nil
}
