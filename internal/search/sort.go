package search

import (
	"cmp"
	"slices"

	"github.com/Veraticus/hotel-scout/internal/model"
)

// Sort orders the result set in place by the given command. Ties keep their input order.
func Sort(rs *model.ResultSet, cmd model.SortCommand) {
	if rs == nil || len(rs.Order) < 2 {
		return
	}
	slices.SortStableFunc(rs.Order, func(a, b string) int {
		return compare(rs.Hotels[a], rs.Hotels[b], cmd)
	})
}

func compare(a, b *model.Hotel, cmd model.SortCommand) int {
	switch cmd {
	case model.SortLowPrice:
		// Hotels without an offer sort last.
		switch {
		case a.Offer == nil && b.Offer == nil:
			return 0
		case a.Offer == nil:
			return 1
		case b.Offer == nil:
			return -1
		}
		return a.Offer.Price.Total.Cmp(b.Offer.Price.Total)
	case model.SortBestDeal:
		return cmp.Compare(a.Distance.Value, b.Distance.Value)
	case model.SortGuestRating:
		return cmp.Compare(b.GuestRating(), a.GuestRating())
	}
	return 0
}
