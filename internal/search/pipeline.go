// Package search composes provider calls into a ranked result set.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/hotel-scout/internal/metrics"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/Veraticus/hotel-scout/internal/service"
)

// Stage names a provider call of the pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageHotels     Stage = "hotels_in_city"
	StageOffers     Stage = "priced_offers"
	StageSentiments Stage = "sentiments"
)

// Progress reports a completed stage and how many hotels are still in play.
type Progress struct {
	Stage Stage
	Count int
}

// ProgressFunc receives progress synchronously; the next stage starts after it returns.
type ProgressFunc func(ctx context.Context, p Progress)

// Pipeline runs a search against a hotel provider.
type Pipeline struct {
	provider service.HotelProvider
	logger   *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(provider service.HotelProvider, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		provider: provider,
		logger:   logger.With("component", "search"),
	}
}

// Run searches hotels for criteria. Stages run strictly in order and the first
// failure aborts the run; a result set is returned only when every stage succeeds.
func (p *Pipeline) Run(ctx context.Context, criteria model.Criteria, progress ProgressFunc) (*model.ResultSet, error) {
	if progress == nil {
		progress = func(context.Context, Progress) {}
	}
	if err := criteria.Validate(); err != nil {
		metrics.PipelineRuns.WithLabelValues("invalid").Inc()
		return nil, err
	}

	rs, err := p.run(ctx, criteria, progress)
	metrics.PipelineRuns.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		p.logFailure(criteria, err)
		return nil, err
	}
	return rs, nil
}

func (p *Pipeline) run(ctx context.Context, criteria model.Criteria, progress ProgressFunc) (*model.ResultSet, error) {
	var hotels []model.Hotel
	err := p.stage(StageHotels, func() (err error) {
		hotels, err = p.provider.HotelsInCity(ctx, criteria.City.Code, criteria.Radius)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(hotels) == 0 {
		return nil, ErrHotelNotFound
	}
	progress(ctx, Progress{Stage: StageHotels, Count: len(hotels)})

	ids := make([]string, len(hotels))
	for i := range hotels {
		ids[i] = hotels[i].ID
	}

	var offers []model.HotelOffers
	err = p.stage(StageOffers, func() (err error) {
		offers, err = p.provider.PricedOffers(ctx, ids, service.OfferQuery{
			CheckIn:    criteria.Dates.CheckIn,
			CheckOut:   criteria.Dates.CheckOut,
			PriceRange: criteria.PriceRange,
			Currency:   criteria.Currency.Code,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	progress(ctx, Progress{Stage: StageOffers, Count: len(offers)})

	order, candidates := p.merge(hotels, offers)
	if len(order) == 0 {
		return nil, ErrOffersNotFound
	}

	var sentiments []model.Sentiment
	err = p.stage(StageSentiments, func() (err error) {
		sentiments, err = p.provider.Sentiments(ctx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range sentiments {
		if h, ok := candidates[sentiments[i].HotelID]; ok {
			h.Sentiment = &sentiments[i]
		}
	}
	progress(ctx, Progress{Stage: StageSentiments, Count: len(sentiments)})

	rs := model.NewResultSet(criteria, order, candidates)
	Sort(rs, criteria.Sort)
	return rs, nil
}

// stage times one provider call. Failures reported by the provider transport
// are wrapped as ServiceUnavailableError with the stage name; anything else is
// returned with the stage as context only.
func (p *Pipeline) stage(name Stage, call func() error) error {
	start := time.Now()
	err := call()
	metrics.PipelineStageDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if providerFailure(err) {
		return &ServiceUnavailableError{Stage: name, Err: err}
	}
	return fmt.Errorf("%s: %w", name, err)
}

// providerFailure reports whether err carries retry classification, which
// only the provider clients attach.
func providerFailure(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r)
}

// merge attaches the first offer of each available hotel to its stub. Offers for
// hotels outside the city list are dropped. The order follows the city list.
func (p *Pipeline) merge(hotels []model.Hotel, offers []model.HotelOffers) ([]string, map[string]*model.Hotel) {
	stubs := make(map[string]*model.Hotel, len(hotels))
	for i := range hotels {
		stubs[hotels[i].ID] = &hotels[i]
	}

	for _, ho := range offers {
		if !ho.Available || len(ho.Offers) == 0 {
			continue
		}
		h, ok := stubs[ho.HotelID]
		if !ok {
			p.logger.Warn("Dropping offer for hotel outside the city list", "hotel_id", ho.HotelID, "batch", ho.Batch)
			continue
		}
		if h.Offer != nil {
			continue
		}
		offer := ho.Offers[0]
		h.Offer = &offer
	}

	order := make([]string, 0, len(hotels))
	candidates := make(map[string]*model.Hotel)
	for i := range hotels {
		h := &hotels[i]
		if h.Offer == nil {
			continue
		}
		if _, dup := candidates[h.ID]; dup {
			continue
		}
		order = append(order, h.ID)
		candidates[h.ID] = h
	}
	return order, candidates
}

func (p *Pipeline) logFailure(criteria model.Criteria, err error) {
	attrs := []any{
		"city", criteria.City.Code,
		"check_in", criteria.Dates.CheckIn.Format(model.DateLayout),
		"check_out", criteria.Dates.CheckOut.Format(model.DateLayout),
		"price_range", criteria.PriceRange.String(),
		"currency", criteria.Currency.Code,
		"radius", criteria.Radius,
		"sort", criteria.Sort,
		"error", err,
	}
	var sue *ServiceUnavailableError
	switch {
	case errors.As(err, &sue):
		p.logger.Error("Search stage failed", append(attrs, "stage", sue.Stage)...)
	case errors.Is(err, ErrHotelNotFound), errors.Is(err, ErrOffersNotFound):
		p.logger.Info("Search found nothing", attrs...)
	default:
		p.logger.Error("Search failed", attrs...)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrHotelNotFound):
		return "hotels_not_found"
	case errors.Is(err, ErrOffersNotFound):
		return "offers_not_found"
	case IsServiceUnavailable(err):
		return "service_unavailable"
	default:
		return "error"
	}
}
