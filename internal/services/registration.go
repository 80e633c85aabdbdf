package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campusevents/internal/domain"
)

type registrationService struct {
	tx               domain.Transactor
	eventRepo        domain.EventRepository
	registrationRepo domain.RegistrationRepository
	notifier         *Notifier
	contextTimeout   time.Duration
}

// NewRegistrationService returns the capacity and waitlist manager. Every mutating call runs in one
// transaction that locks the event row first.
func NewRegistrationService(
	tx domain.Transactor,
	eventRepo domain.EventRepository,
	registrationRepo domain.RegistrationRepository,
	notifier *Notifier,
	timeout time.Duration,
) domain.RegistrationService {
	return &registrationService{
		tx:               tx,
		eventRepo:        eventRepo,
		registrationRepo: registrationRepo,
		notifier:         notifier,
		contextTimeout:   timeout,
	}
}

func (s *registrationService) RegisterForEvent(ctx context.Context, userID, eventID string) (*domain.RegistrationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var (
		event  *domain.Event
		result *domain.RegistrationResult
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Stores) error {
		var err error
		event, err = lockEvent(ctx, st, eventID)
		if err != nil {
			return err
		}

		_, err = st.Registrations.GetActiveByEventAndUser(ctx, eventID, userID)
		if err == nil {
			return domain.ErrRegistrationExists
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get active registration: %w", err)
		}

		now := time.Now()
		if event.Status != domain.EventStatusPublished || event.HasEnded(now) {
			return domain.ErrRegistrationClosed
		}

		seated := false
		if event.HasCapacity() {
			seated, err = st.Events.IncrementRegistrations(ctx, eventID)
			if err != nil {
				return fmt.Errorf("increment registrations: %w", err)
			}
		}

		if seated {
			reg, err := claimRegistration(ctx, st, eventID, userID, domain.RegistrationStatusRegistered, nil, now)
			if err != nil {
				return err
			}
			result = &domain.RegistrationResult{Status: reg.Status, Registration: reg}
			return nil
		}

		last, err := st.Registrations.MaxWaitlistPosition(ctx, eventID)
		if err != nil {
			return fmt.Errorf("max waitlist position: %w", err)
		}
		position := last + 1
		reg, err := claimRegistration(ctx, st, eventID, userID, domain.RegistrationStatusWaitlisted, &position, now)
		if err != nil {
			return err
		}
		result = &domain.RegistrationResult{Status: reg.Status, Registration: reg, WaitlistPosition: &position}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status == domain.RegistrationStatusWaitlisted {
		s.notifier.Waitlisted(event, result.Registration, *result.WaitlistPosition)
	} else {
		s.notifier.RegistrationConfirmed(event, result.Registration)
	}
	return result, nil
}

func (s *registrationService) CancelRegistration(ctx context.Context, registrationID, userID string) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var (
		event    *domain.Event
		reg      *domain.Registration
		promoted *domain.Registration
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Stores) error {
		current, err := getRegistration(ctx, st, registrationID)
		if err != nil {
			return err
		}
		if current.UserID != userID {
			return domain.ErrForbidden
		}

		event, err = lockEvent(ctx, st, current.EventID)
		if err != nil {
			return err
		}
		// Re-read under the event lock; a concurrent promotion may have changed it.
		reg, err = getRegistration(ctx, st, registrationID)
		if err != nil {
			return err
		}

		switch reg.Status {
		case domain.RegistrationStatusCancelled:
			return domain.NewValidationError("registration is already cancelled")
		case domain.RegistrationStatusAttended, domain.RegistrationStatusNoShow:
			return domain.NewValidationError("attendance has already been recorded for this registration")
		}

		wasRegistered := reg.Status == domain.RegistrationStatusRegistered
		now := time.Now()
		reg.Status = domain.RegistrationStatusCancelled
		reg.CancelledAt = &now
		reg.WaitlistPosition = nil
		reg.UpdatedAt = now
		if err := st.Registrations.Update(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}

		if !wasRegistered {
			return recomputeWaitlist(ctx, st, event.ID)
		}

		if err := st.Events.DecrementRegistrations(ctx, event.ID); err != nil {
			return fmt.Errorf("decrement registrations: %w", err)
		}
		if event.Status == domain.EventStatusCancelled || event.Status == domain.EventStatusCompleted {
			return nil
		}
		promoted, err = promoteNext(ctx, st, event.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.RegistrationCancelled(event, reg)
	if promoted != nil {
		s.notifier.Promoted(event, promoted)
	}
	return reg, nil
}

func (s *registrationService) MarkAttendance(ctx context.Context, registrationID, organizerID string, attended bool) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var reg *domain.Registration
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st domain.Stores) error {
		current, err := getRegistration(ctx, st, registrationID)
		if err != nil {
			return err
		}
		event, err := lockEvent(ctx, st, current.EventID)
		if err != nil {
			return err
		}
		if event.OrganizerID != organizerID {
			return domain.ErrForbidden
		}
		now := time.Now()
		if event.EndDate.After(now) {
			return fmt.Errorf("%w: attendance can only be recorded after the event has ended", domain.ErrForbidden)
		}
		if event.Status == domain.EventStatusCancelled {
			return domain.NewValidationError("attendance cannot be recorded for a cancelled event")
		}

		reg, err = getRegistration(ctx, st, registrationID)
		if err != nil {
			return err
		}
		if reg.Status != domain.RegistrationStatusRegistered {
			return domain.NewValidationError("only registered attendees can be marked, registration is " + string(reg.Status))
		}

		if attended {
			reg.Status = domain.RegistrationStatusAttended
			reg.AttendedAt = &now
		} else {
			reg.Status = domain.RegistrationStatusNoShow
		}
		reg.UpdatedAt = now
		if err := st.Registrations.Update(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		if err := st.Events.DecrementRegistrations(ctx, event.ID); err != nil {
			return fmt.Errorf("decrement registrations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *registrationService) ListMyRegistrations(ctx context.Context, userID string) ([]*domain.RegistrationWithEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	regs, err := s.registrationRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	events := make(map[string]*domain.Event)
	out := make([]*domain.RegistrationWithEvent, 0, len(regs))
	for _, reg := range regs {
		event, ok := events[reg.EventID]
		if !ok {
			event, err = s.eventRepo.GetByID(ctx, reg.EventID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("get event: %w", err)
			}
			events[reg.EventID] = event
		}
		out = append(out, &domain.RegistrationWithEvent{Registration: reg, Event: event})
	}
	return out, nil
}

func (s *registrationService) ListEventRegistrations(ctx context.Context, eventID, organizerID string, status *domain.RegistrationStatus) ([]*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OrganizerID != organizerID {
		return nil, domain.ErrForbidden
	}
	if status != nil && *status == domain.RegistrationStatusWaitlisted {
		regs, err := s.registrationRepo.ListWaitlisted(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("list waitlist: %w", err)
		}
		return regs, nil
	}
	regs, err := s.registrationRepo.ListByEventID(ctx, eventID, status)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// lockEvent reads the event and holds its row lock for the rest of the transaction.
func lockEvent(ctx context.Context, st domain.Stores, eventID string) (*domain.Event, error) {
	event, err := st.Events.GetByIDForUpdate(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lock event: %w", err)
	}
	return event, nil
}

func getRegistration(ctx context.Context, st domain.Stores, id string) (*domain.Registration, error) {
	reg, err := st.Registrations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// claimRegistration reuses the user's latest cancelled record for the event, or creates a new one.
func claimRegistration(ctx context.Context, st domain.Stores, eventID, userID string, status domain.RegistrationStatus, position *int, now time.Time) (*domain.Registration, error) {
	prev, err := st.Registrations.GetLatestCancelledByEventAndUser(ctx, eventID, userID)
	switch {
	case err == nil:
		prev.Reactivate(status, now)
		prev.WaitlistPosition = position
		if err := st.Registrations.Update(ctx, prev); err != nil {
			if errors.Is(err, domain.ErrRegistrationExists) {
				return nil, err
			}
			return nil, fmt.Errorf("reactivate registration: %w", err)
		}
		return prev, nil
	case errors.Is(err, domain.ErrNotFound):
		reg := domain.NewRegistration(eventID, userID, status, now)
		reg.WaitlistPosition = position
		if err := st.Registrations.Create(ctx, reg); err != nil {
			if errors.Is(err, domain.ErrRegistrationExists) {
				return nil, err
			}
			return nil, fmt.Errorf("create registration: %w", err)
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("get cancelled registration: %w", err)
	}
}

// promoteNext moves the head of the waitlist into a registered seat. It returns nil when the
// waitlist is empty or no seat is free.
func promoteNext(ctx context.Context, st domain.Stores, eventID string, now time.Time) (*domain.Registration, error) {
	next, err := st.Registrations.FirstWaitlisted(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("first waitlisted: %w", err)
	}
	seated, err := st.Events.IncrementRegistrations(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("increment registrations: %w", err)
	}
	if !seated {
		return nil, nil
	}
	next.Status = domain.RegistrationStatusRegistered
	next.WaitlistPosition = nil
	next.UpdatedAt = now
	if err := st.Registrations.Update(ctx, next); err != nil {
		return nil, fmt.Errorf("promote registration: %w", err)
	}
	if err := recomputeWaitlist(ctx, st, eventID); err != nil {
		return nil, err
	}
	return next, nil
}

// recomputeWaitlist renumbers the event's waitlist 1..N by registration time, writing only changed rows.
func recomputeWaitlist(ctx context.Context, st domain.Stores, eventID string) error {
	waiting, err := st.Registrations.ListWaitlisted(ctx, eventID)
	if err != nil {
		return fmt.Errorf("list waitlist: %w", err)
	}
	for i, reg := range waiting {
		position := i + 1
		if reg.WaitlistPosition != nil && *reg.WaitlistPosition == position {
			continue
		}
		if err := st.Registrations.UpdateWaitlistPosition(ctx, reg.ID, position); err != nil {
			return fmt.Errorf("update waitlist position: %w", err)
		}
		reg.WaitlistPosition = &position
	}
	return nil
}
