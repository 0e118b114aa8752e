package session

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when a state change is not in the transition table.
var ErrIllegalTransition = errors.New("illegal state transition")

// State is a step of the conversation.
type State string

// Conversation states.
const (
	StateIdle            State = "idle"
	StateCitySearch      State = "city_search"
	StateCityConfirm     State = "city_confirm"
	StateCheckIn         State = "check_in"
	StateCheckOut        State = "check_out"
	StatePriceRange      State = "price_range"
	StateRadius          State = "radius"
	StateSortingCriteria State = "sorting_criteria"
	StateSearchHotels    State = "search_hotels"
	StateDisplayHotels   State = "display_hotels"
	StateHistoryDate     State = "date_search"
	StateHistory         State = "display_history"
)

// Entry commands may restart the conversation from any state.
var entryStates = map[State]bool{
	StateIdle:        true,
	StateCitySearch:  true,
	StateHistoryDate: true,
}

var transitions = map[State][]State{
	StateCitySearch:      {StateCityConfirm},
	StateCityConfirm:     {StateCheckIn, StateSearchHotels},
	StateCheckIn:         {StateCheckOut},
	StateCheckOut:        {StateCheckIn, StatePriceRange, StateSearchHotels},
	StatePriceRange:      {StateRadius, StateSearchHotels},
	StateRadius:          {StateSortingCriteria, StateSearchHotels},
	StateSortingCriteria: {StateSearchHotels},
	StateSearchHotels:    {StateDisplayHotels},
	StateDisplayHotels:   {StateCheckIn, StatePriceRange, StateRadius, StateSortingCriteria, StateSearchHotels},
	StateHistory:         {StateHistory},
	StateHistoryDate:     {StateHistory},
}

// CanTransition reports whether the conversation may move from one state to another.
// Re-entering the current state is always allowed.
func CanTransition(from, to State) bool {
	if from == to || entryStates[to] {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the session to the given state.
func (s *Session) Transition(to State) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.State, to)
	}
	s.State = to
	return nil
}

// PhotoState tracks photo enrichment for the displayed hotel.
type PhotoState int

// Photo enrichment states.
const (
	PhotoIdle PhotoState = iota
	PhotoLoading
	PhotoLoaded
	PhotoCancelled
)

func (p PhotoState) String() string {
	switch p {
	case PhotoIdle:
		return "idle"
	case PhotoLoading:
		return "loading"
	case PhotoLoaded:
		return "loaded"
	case PhotoCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("PhotoState(%d)", int(p))
	}
}
