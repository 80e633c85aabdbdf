package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campusevents/internal/domain"
)

type eventService struct {
	tx             domain.Transactor
	eventRepo      domain.EventRepository
	notifier       *Notifier
	contextTimeout time.Duration
}

func NewEventService(
	tx domain.Transactor,
	eventRepo domain.EventRepository,
	notifier *Notifier,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		tx:             tx,
		eventRepo:      eventRepo,
		notifier:       notifier,
		contextTimeout: timeout,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, event *domain.Event, principal domain.Principal) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if principal.UserID == "" || !principal.HasRole(domain.RoleOrganizer, domain.RoleAdmin) {
		return fmt.Errorf("%w: only organizers can create events", domain.ErrForbidden)
	}
	if event.Status == "" {
		event.Status = domain.EventStatusDraft
	}
	if event.Status != domain.EventStatusDraft && event.Status != domain.EventStatusPublished {
		return domain.NewValidationError("initial status must be draft or published", "status")
	}

	var missing []string
	if strings.TrimSpace(event.Title) == "" {
		missing = append(missing, "title")
	}
	if event.StartDate.IsZero() {
		missing = append(missing, "start_date")
	}
	if event.EndDate.IsZero() {
		missing = append(missing, "end_date")
	}
	if len(missing) > 0 {
		return domain.NewValidationError("missing required fields", missing...)
	}
	if event.Category != "" && !event.Category.Valid() {
		return domain.NewValidationError("unknown category", "category")
	}
	if err := domain.ValidateEventDates(event.StartDate, event.EndDate); err != nil {
		return err
	}
	now := time.Now()
	if !event.StartDate.After(now) {
		return domain.NewValidationError("start_date must be in the future", "start_date")
	}
	if event.MaxRegistrations != nil && *event.MaxRegistrations < 0 {
		return domain.NewValidationError("max_registrations must not be negative", "max_registrations")
	}
	if event.Status == domain.EventStatusPublished {
		if missing := event.MissingPublishFields(); len(missing) > 0 {
			return domain.NewValidationError("event is missing fields required for publishing", missing...)
		}
	}

	event.OrganizerID = principal.UserID
	event.CurrentRegistrations = 0
	event.CreatedAt = now
	event.UpdatedAt = now
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	if event.Status == domain.EventStatusPublished {
		s.notifier.EventPublished(event)
	}
	return nil
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

func (s *eventService) ListPublicEvents(ctx context.Context, params domain.PaginationParams) ([]*domain.Event, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	params = params.Normalize()
	events, total, err := s.eventRepo.ListPublic(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list public events: %w", err)
	}
	return events, total, nil
}

func (s *eventService) ListMyEvents(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	events, err := s.eventRepo.ListByOrganizerID(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *eventService) UpdateEvent(ctx context.Context, eventID string, update domain.EventUpdate, userID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var (
		updated   *domain.Event
		previous  domain.EventStatus
		attendees []*domain.Registration
		promoted  []*domain.Registration
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Stores) error {
		event, err := lockOwnedEvent(ctx, st, eventID, userID)
		if err != nil {
			return err
		}
		if event.Status == domain.EventStatusCompleted {
			return domain.NewValidationError("completed events cannot be modified")
		}
		previous = event.Status
		now := time.Now()

		next, err := applyEventUpdate(event, update, now)
		if err != nil {
			return err
		}
		if err := st.Events.Update(ctx, next); err != nil {
			return fmt.Errorf("update event: %w", err)
		}

		if next.Status == domain.EventStatusPublished && capacityRaised(event.MaxRegistrations, next.MaxRegistrations) {
			for {
				reg, err := promoteNext(ctx, st, next.ID, now)
				if err != nil {
					return err
				}
				if reg == nil {
					break
				}
				promoted = append(promoted, reg)
			}
		}

		// Reload so the returned counter reflects any promotions.
		updated, err = st.Events.GetByID(ctx, next.ID)
		if err != nil {
			return fmt.Errorf("reload event: %w", err)
		}
		attendees, err = listRegistered(ctx, st, next.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	switch {
	case updated.Status == domain.EventStatusCancelled && previous != domain.EventStatusCancelled:
		s.notifier.EventCancelled(updated, attendees)
	case updated.Status == domain.EventStatusPublished && previous == domain.EventStatusDraft:
		s.notifier.EventPublished(updated)
	default:
		s.notifier.EventUpdated(updated, attendees)
	}
	for _, reg := range promoted {
		s.notifier.Promoted(updated, reg)
	}
	return updated, nil
}

func (s *eventService) PublishEvent(ctx context.Context, eventID, userID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var event *domain.Event
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		event, err = lockOwnedEvent(ctx, st, eventID, userID)
		if err != nil {
			return err
		}
		if err := domain.ValidateTransition(event.Status, domain.EventStatusPublished); err != nil {
			return err
		}
		if missing := event.MissingPublishFields(); len(missing) > 0 {
			return domain.NewValidationError("event is missing fields required for publishing", missing...)
		}
		return transition(ctx, st, event, domain.EventStatusPublished)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.EventPublished(event)
	return event, nil
}

func (s *eventService) CancelEvent(ctx context.Context, eventID, userID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var (
		event     *domain.Event
		attendees []*domain.Registration
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		event, err = lockOwnedEvent(ctx, st, eventID, userID)
		if err != nil {
			return err
		}
		attendees, err = cancelLocked(ctx, st, event)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.EventCancelled(event, attendees)
	return event, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, eventID, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var (
		deleted   bool
		cancelled *domain.Event
		attendees []*domain.Registration
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Stores) error {
		event, err := lockOwnedEvent(ctx, st, eventID, userID)
		if err != nil {
			return err
		}
		count, err := st.Registrations.CountByEventID(ctx, eventID)
		if err != nil {
			return fmt.Errorf("count registrations: %w", err)
		}
		if count == 0 {
			if err := st.Events.Delete(ctx, eventID); err != nil {
				return fmt.Errorf("delete event: %w", err)
			}
			deleted = true
			return nil
		}
		if event.Status == domain.EventStatusCancelled {
			return nil
		}
		attendees, err = cancelLocked(ctx, st, event)
		if err != nil {
			return err
		}
		cancelled = event
		return nil
	})
	if err != nil {
		return false, err
	}

	if cancelled != nil {
		s.notifier.EventCancelled(cancelled, attendees)
	}
	return deleted, nil
}

func (s *eventService) AdvanceStatus(ctx context.Context, eventID string, from, to domain.EventStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := domain.ValidateTransition(from, to); err != nil {
		return false, err
	}
	changed, err := s.eventRepo.UpdateStatus(ctx, eventID, from, to)
	if err != nil {
		return false, fmt.Errorf("update event status: %w", err)
	}
	return changed, nil
}

func lockOwnedEvent(ctx context.Context, st domain.Stores, eventID, userID string) (*domain.Event, error) {
	event, err := lockEvent(ctx, st, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != userID {
		return nil, domain.ErrForbidden
	}
	return event, nil
}

func transition(ctx context.Context, st domain.Stores, event *domain.Event, to domain.EventStatus) error {
	changed, err := st.Events.UpdateStatus(ctx, event.ID, event.Status, to)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if !changed {
		return domain.NewValidationError("event status changed concurrently, expected " + string(event.Status))
	}
	event.Status = to
	event.UpdatedAt = time.Now()
	return nil
}

// cancelLocked moves a locked event to cancelled and returns its registered attendees.
// Registrations are kept as they are.
func cancelLocked(ctx context.Context, st domain.Stores, event *domain.Event) ([]*domain.Registration, error) {
	if err := domain.ValidateTransition(event.Status, domain.EventStatusCancelled); err != nil {
		return nil, err
	}
	if err := transition(ctx, st, event, domain.EventStatusCancelled); err != nil {
		return nil, err
	}
	return listRegistered(ctx, st, event.ID)
}

func listRegistered(ctx context.Context, st domain.Stores, eventID string) ([]*domain.Registration, error) {
	status := domain.RegistrationStatusRegistered
	regs, err := st.Registrations.ListByEventID(ctx, eventID, &status)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return regs, nil
}

// applyEventUpdate validates update against the current event and returns the resulting copy.
func applyEventUpdate(current *domain.Event, update domain.EventUpdate, now time.Time) (*domain.Event, error) {
	next := *current
	if update.Title != nil {
		next.Title = strings.TrimSpace(*update.Title)
		if next.Title == "" {
			return nil, domain.NewValidationError("title must not be empty", "title")
		}
	}
	if update.Description != nil {
		next.Description = *update.Description
	}
	if update.Category != nil {
		if !update.Category.Valid() {
			return nil, domain.NewValidationError("unknown category", "category")
		}
		next.Category = *update.Category
	}
	if update.Location != nil {
		next.Location = *update.Location
	}
	if update.IsPublic != nil {
		next.IsPublic = *update.IsPublic
	}

	if update.StartDate != nil {
		next.StartDate = *update.StartDate
	}
	if update.EndDate != nil {
		next.EndDate = *update.EndDate
	}
	if update.StartDate != nil || update.EndDate != nil {
		if err := domain.ValidateEventDates(next.StartDate, next.EndDate); err != nil {
			return nil, err
		}
	}
	if update.StartDate != nil && !update.StartDate.Equal(current.StartDate) && !update.StartDate.After(now) {
		return nil, domain.NewValidationError("start_date must be in the future", "start_date")
	}

	switch {
	case update.ClearMaxRegistrations:
		next.MaxRegistrations = nil
	case update.MaxRegistrations != nil:
		limit := *update.MaxRegistrations
		if limit < 0 {
			return nil, domain.NewValidationError("max_registrations must not be negative", "max_registrations")
		}
		if limit < current.CurrentRegistrations {
			return nil, domain.NewValidationError(
				fmt.Sprintf("max_registrations cannot be lower than the %d current registrations", current.CurrentRegistrations),
				"max_registrations")
		}
		next.MaxRegistrations = &limit
	}

	if update.Status != nil && *update.Status != current.Status {
		if err := domain.ValidateTransition(current.Status, *update.Status); err != nil {
			return nil, err
		}
		next.Status = *update.Status
		if current.Status == domain.EventStatusDraft && next.Status == domain.EventStatusPublished {
			if missing := next.MissingPublishFields(); len(missing) > 0 {
				return nil, domain.NewValidationError("event is missing fields required for publishing", missing...)
			}
		}
	}

	next.UpdatedAt = now
	return &next, nil
}

func capacityRaised(before, after *int) bool {
	if before == nil {
		return false
	}
	return after == nil || *after > *before
}
