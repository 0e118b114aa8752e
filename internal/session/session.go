// Package session holds per-user conversation state: criteria being collected,
// the last result set, and the pagination cursors over it.
package session

import (
	"time"

	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/google/uuid"
)

// Cursor is the position within a result set and the current hotel's photos.
type Cursor struct {
	Hotel int
	Photo int
}

// Messages are the chat message ids the conversation edits in place.
type Messages struct {
	Prompt   int
	Progress int
	Calendar int
	Hotel    int
	Photo    int
	History  int
}

// HistoryView is the history browsing position.
type HistoryView struct {
	Day     *time.Time
	Records []model.SearchRecord
	Page    int
}

// Session is one user's conversation.
type Session struct {
	UpdatedAt time.Time
	Results   *model.ResultSet
	Criteria  *model.Criteria
	ID        string
	UserName  string
	State     State
	Cities    []model.City
	History   HistoryView
	Draft     model.Criteria
	Messages  Messages
	Cursor    Cursor
	UserID    int64
	ChatID    int64
	RequestID int64
	Photo     PhotoState

	// ReturnToDisplay routes the next completed criterion change straight to a new search.
	ReturnToDisplay bool
}

// New creates an idle session with a fresh id.
func New(userID, chatID int64, userName string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		ChatID:   chatID,
		UserName: userName,
		State:    StateIdle,
	}
}

// Begin starts collecting criteria for a new search. The session id changes so
// controls from earlier searches go stale.
func (s *Session) Begin(sort model.SortCommand) {
	s.ID = uuid.NewString()
	s.Draft = model.Criteria{Sort: sort}
	s.Criteria = nil
	s.Cities = nil
	s.ReturnToDisplay = false
	s.ResetResults()
	s.State = StateCitySearch
}

// Clear drops all search state and returns the session to idle.
func (s *Session) Clear() {
	s.ID = uuid.NewString()
	s.Draft = model.Criteria{}
	s.Criteria = nil
	s.Cities = nil
	s.ReturnToDisplay = false
	s.History = HistoryView{}
	s.Messages = Messages{}
	s.ResetResults()
	s.State = StateIdle
}

// ResetResults drops the published result set and its cursors.
func (s *Session) ResetResults() {
	s.Results = nil
	s.RequestID = 0
	s.Cursor = Cursor{}
	s.Photo = PhotoIdle
}

// Finalize validates the draft and freezes it as the criteria of the next search.
func (s *Session) Finalize() (model.Criteria, error) {
	if err := s.Draft.Validate(); err != nil {
		return model.Criteria{}, err
	}
	c := s.Draft
	s.Criteria = &c
	return c, nil
}

// Publish installs a completed result set and rewinds the cursors.
func (s *Session) Publish(rs *model.ResultSet, requestID int64) {
	s.Results = rs
	s.RequestID = requestID
	s.Cursor = Cursor{}
	s.Photo = PhotoIdle
}

// ModifyCriterion re-enters a criterion state from the results view and arms
// the return-to-display shortcut.
func (s *Session) ModifyCriterion(state State) error {
	if err := s.Transition(state); err != nil {
		return err
	}
	s.ReturnToDisplay = true
	return nil
}

// TakeReturnToDisplay reports and clears the return-to-display shortcut.
func (s *Session) TakeReturnToDisplay() bool {
	r := s.ReturnToDisplay
	s.ReturnToDisplay = false
	return r
}

// CurrentHotel returns the hotel under the cursor, or nil without results.
func (s *Session) CurrentHotel() *model.Hotel {
	return s.Results.At(s.Cursor.Hotel)
}

// CurrentPhoto returns the photo under the cursor, or false when none is resolved.
func (s *Session) CurrentPhoto() (model.Photo, bool) {
	h := s.CurrentHotel()
	if h == nil || len(h.Photos) == 0 {
		return model.Photo{}, false
	}
	return h.Photos[Wrap(s.Cursor.Photo, 0, len(h.Photos))], true
}

// Wrap steps i by step modulo n. It returns 0 when n is not positive.
func Wrap(i, step, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i+step)%n + n) % n
}

// AdvanceHotel moves the hotel cursor and rewinds the photo cursor.
func (s *Session) AdvanceHotel(step int) *model.Hotel {
	s.Cursor.Hotel = Wrap(s.Cursor.Hotel, step, s.Results.Len())
	s.Cursor.Photo = 0
	s.Photo = PhotoIdle
	if h := s.CurrentHotel(); h != nil && h.PhotosResolved {
		s.Photo = PhotoLoaded
	}
	return s.CurrentHotel()
}

// AdvancePhoto moves the photo cursor. It reports false when the current hotel's
// photos are unresolved or empty, leaving the cursor unchanged.
func (s *Session) AdvancePhoto(step int) bool {
	h := s.CurrentHotel()
	if h == nil || !h.PhotosResolved || len(h.Photos) == 0 {
		return false
	}
	s.Cursor.Photo = Wrap(s.Cursor.Photo, step, len(h.Photos))
	return true
}
