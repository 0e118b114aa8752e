package bot

import (
	"context"
	"errors"

	"github.com/Veraticus/hotel-scout/internal/common"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/photos"
	"github.com/Veraticus/hotel-scout/internal/session"
)

// photoSink applies enrichment results to the session that started the task.
type photoSink struct {
	bot *Bot
}

var _ photos.Sink = photoSink{}

func (p photoSink) PhotosReady(ctx context.Context, task *photos.Task, found []model.Photo) {
	p.bot.applyPhotos(ctx, task, found, nil)
}

func (p photoSink) PhotosMissing(ctx context.Context, task *photos.Task, err error) {
	p.bot.applyPhotos(ctx, task, nil, err)
}

// applyPhotos stores the outcome on the hotel and refreshes the photo slot when
// that hotel is still displayed. It waits for any page in flight to finish. The
// cancellation check runs under the session lock, which is also held whenever a
// newer task is started.
func (b *Bot) applyPhotos(ctx context.Context, task *photos.Task, found []model.Photo, failure error) {
	release, err := b.sessions.LockMedia(ctx, task.UserID)
	if err != nil {
		return
	}
	defer release()

	err = b.sessions.UpdateIf(task.UserID, task.SessionID, func(s *session.Session) error {
		if task.Cancelled() {
			return nil
		}
		h := s.Results.Hotel(task.HotelID)
		if h == nil {
			return nil
		}
		// A failed search leaves the hotel unresolved so the next visit tries again.
		if failure == nil {
			h.Photos = found
			h.PhotosResolved = true
		}

		current := s.CurrentHotel()
		if s.State != session.StateDisplayHotels || current == nil || current.ID != task.HotelID {
			return nil
		}
		if len(h.Photos) > 0 {
			s.Cursor.Photo = 0
			return b.showPhoto(ctx, s)
		}
		s.Photo = session.PhotoIdle
		if h.PhotosResolved {
			s.Photo = session.PhotoLoaded
		}
		return b.setPhotoSlot(ctx, s, b.placeholder(b.notFound, "No photos found for "+h.Name), nil)
	})
	if err != nil && !errors.Is(err, common.ErrStaleSession) {
		b.logger.Warn("Failed to apply photos", "user_id", task.UserID, "hotel_id", task.HotelID, "error", err)
	}
}
