package model

// ResultSet is the ranked outcome of one search. The order is fixed when the set is built.
type ResultSet struct {
	Criteria Criteria          `json:"criteria"`
	Order    []string          `json:"order"`
	Hotels   map[string]*Hotel `json:"hotels"`
}

// NewResultSet builds a result set from an ordered id list and its backing map.
func NewResultSet(criteria Criteria, order []string, hotels map[string]*Hotel) *ResultSet {
	return &ResultSet{Criteria: criteria, Order: order, Hotels: hotels}
}

// Len returns the number of hotels.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Order)
}

// At returns the hotel at position i, or nil when out of range.
func (r *ResultSet) At(i int) *Hotel {
	if r == nil || i < 0 || i >= len(r.Order) {
		return nil
	}
	return r.Hotels[r.Order[i]]
}

// Hotel looks a hotel up by provider id.
func (r *ResultSet) Hotel(id string) *Hotel {
	if r == nil {
		return nil
	}
	return r.Hotels[id]
}

// Ranked returns the hotels in result order.
func (r *ResultSet) Ranked() []*Hotel {
	hotels := make([]*Hotel, 0, r.Len())
	for i := 0; i < r.Len(); i++ {
		hotels = append(hotels, r.At(i))
	}
	return hotels
}
