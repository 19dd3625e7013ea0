package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"app-clima/internal/modules/climate/power"
	"app-clima/internal/modules/climate/types"
)

// Fetcher performs one acquisition against the climate service.
type Fetcher interface {
	Fetch(ctx context.Context, q power.Query) (types.Table, error)
}

// Publisher announces acquisitions. Publishing is best effort.
type Publisher interface {
	PublishAcquisition(ctx context.Context, ev types.AcquisitionEvent) error
}

type Service struct {
	fetcher   Fetcher
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the acquisition path. A nil publisher disables events.
func NewService(fetcher Fetcher, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{fetcher: fetcher, publisher: publisher, logger: logger, now: time.Now}
}

// Acquire fetches the table for q and announces the outcome. Any error means
// no data; errors.Is(err, power.ErrNoData) separates a refused request from an
// unusable response.
func (s *Service) Acquire(ctx context.Context, q power.Query) (types.Table, error) {
	start := s.now()
	table, err := s.fetcher.Fetch(ctx, q)
	elapsed := s.now().Sub(start)

	ev := types.AcquisitionEvent{
		Latitude:   q.Latitude,
		Longitude:  q.Longitude,
		Start:      q.StartKey(),
		End:        q.EndKey(),
		Status:     types.AcquisitionOK,
		Rows:       table.Len(),
		DurationMS: elapsed.Milliseconds(),
		At:         start.UTC(),
	}

	switch {
	case err == nil:
		s.logger.Info("climate data acquired",
			"latitude", q.Latitude,
			"longitude", q.Longitude,
			"start", ev.Start,
			"end", ev.End,
			"rows", ev.Rows,
			"duration_ms", ev.DurationMS,
		)
	case errors.Is(err, context.Canceled):
		return types.Table{}, err
	default:
		ev.Status = types.AcquisitionFailed
		ev.Rows = 0
		ev.Error = err.Error()
		attrs := []any{
			"latitude", q.Latitude,
			"longitude", q.Longitude,
			"start", ev.Start,
			"end", ev.End,
			"error", err,
		}
		if errors.Is(err, power.ErrNoData) {
			s.logger.Warn("climate service returned no data", attrs...)
		} else {
			s.logger.Error("climate acquisition failed", attrs...)
		}
	}

	s.publish(ctx, ev)

	if err != nil {
		return types.Table{}, err
	}
	return table, nil
}

func (s *Service) publish(ctx context.Context, ev types.AcquisitionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAcquisition(ctx, ev); err != nil {
		s.logger.Warn("acquisition event not published", "error", err)
	}
}
