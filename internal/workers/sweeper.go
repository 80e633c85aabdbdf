package workers

import (
	"context"
	"log/slog"
	"time"

	"campusevents/internal/domain"
	"campusevents/internal/metrics"
)

// SweepResult counts the outcome of one sweeper tick.
type SweepResult struct {
	Started   int
	Completed int
	Failed    int
}

// Sweeper moves events through the time-based part of their lifecycle:
// published events whose start date has passed become in_progress and
// in-progress events whose end date has passed become completed.
type Sweeper struct {
	events   domain.EventRepository
	service  domain.EventService
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweeper returns a Sweeper that ticks every interval.
func NewSweeper(events domain.EventRepository, service domain.EventService, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		events:   events,
		service:  service,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res := s.Tick(ctx, s.now())
	if res.Started > 0 || res.Completed > 0 || res.Failed > 0 {
		s.logger.Info("lifecycle sweep", "started", res.Started, "completed", res.Completed, "failed", res.Failed)
	}
}

// Tick applies every transition due at now. An event that another process already
// moved is skipped; a failure on one event does not stop the others.
func (s *Sweeper) Tick(ctx context.Context, now time.Time) SweepResult {
	var res SweepResult

	due, err := s.events.ListDueToStart(ctx, now)
	if err != nil {
		s.logger.Error("failed to list events due to start", "error", err)
		metrics.SweepFailures.Inc()
		res.Failed++
	}
	for _, e := range due {
		switch s.advance(ctx, e, domain.EventStatusPublished, domain.EventStatusInProgress) {
		case advanced:
			res.Started++
		case advanceFailed:
			res.Failed++
		}
	}

	due, err = s.events.ListDueToComplete(ctx, now)
	if err != nil {
		s.logger.Error("failed to list events due to complete", "error", err)
		metrics.SweepFailures.Inc()
		res.Failed++
	}
	for _, e := range due {
		switch s.advance(ctx, e, domain.EventStatusInProgress, domain.EventStatusCompleted) {
		case advanced:
			res.Completed++
		case advanceFailed:
			res.Failed++
		}
	}
	return res
}

type advanceOutcome int

const (
	advanced advanceOutcome = iota
	advanceSkipped
	advanceFailed
)

func (s *Sweeper) advance(ctx context.Context, e *domain.Event, from, to domain.EventStatus) advanceOutcome {
	changed, err := s.service.AdvanceStatus(ctx, e.ID, from, to)
	if err != nil {
		s.logger.Error("failed to advance event status",
			"event_id", e.ID,
			"from", from,
			"to", to,
			"error", err,
		)
		metrics.SweepFailures.Inc()
		return advanceFailed
	}
	if !changed {
		return advanceSkipped
	}
	metrics.SweepTransitions.WithLabelValues(string(to)).Inc()
	return advanced
}
