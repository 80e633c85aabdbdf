package domain

import (
	"context"
	"time"
)

// RegistrationStatus is the state of a user's registration for an event.
type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusWaitlisted RegistrationStatus = "waitlisted"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
	RegistrationStatusAttended   RegistrationStatus = "attended"
	RegistrationStatusNoShow     RegistrationStatus = "no_show"
)

// Valid reports whether s is a known registration status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationStatusRegistered, RegistrationStatusWaitlisted, RegistrationStatusCancelled,
		RegistrationStatusAttended, RegistrationStatusNoShow:
		return true
	}
	return false
}

// IsActive reports whether the status holds a seat or a waitlist spot.
func (s RegistrationStatus) IsActive() bool {
	return s == RegistrationStatusRegistered || s == RegistrationStatusWaitlisted
}

// Registration represents one user's registration attempt for an event.
// swagger:model Registration
type Registration struct {
	ID               string             `json:"id"`
	EventID          string             `json:"event_id"`
	UserID           string             `json:"user_id"`
	Status           RegistrationStatus `json:"status"`
	RegisteredAt     time.Time          `json:"registered_at"`
	CancelledAt      *time.Time         `json:"cancelled_at"`
	AttendedAt       *time.Time         `json:"attended_at"`
	WaitlistPosition *int               `json:"waitlist_position"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// NewRegistration creates a Registration in the given status. ID is typically set by the repository on create.
func NewRegistration(eventID, userID string, status RegistrationStatus, now time.Time) *Registration {
	return &Registration{
		EventID:      eventID,
		UserID:       userID,
		Status:       status,
		RegisteredAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Reactivate resets a cancelled registration so it can be reused for a new attempt.
func (r *Registration) Reactivate(status RegistrationStatus, now time.Time) {
	r.Status = status
	r.RegisteredAt = now
	r.CancelledAt = nil
	r.AttendedAt = nil
	r.WaitlistPosition = nil
	r.UpdatedAt = now
}

// RegistrationResult is returned by RegisterForEvent. WaitlistPosition is set only when Status is waitlisted.
type RegistrationResult struct {
	Status           RegistrationStatus `json:"status"`
	Registration     *Registration      `json:"registration"`
	WaitlistPosition *int               `json:"waitlist_position,omitempty"`
}

// RegistrationWithEvent bundles a registration with its related event.
type RegistrationWithEvent struct {
	Registration *Registration `json:"registration"`
	Event        *Event        `json:"event"`
}

// RegistrationRepository defines storage operations for registrations.
type RegistrationRepository interface {
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	// GetActiveByEventAndUser returns the registered or waitlisted record for the pair, or ErrNotFound.
	GetActiveByEventAndUser(ctx context.Context, eventID, userID string) (*Registration, error)
	// GetLatestCancelledByEventAndUser returns the most recently updated cancelled record for the pair, or ErrNotFound.
	GetLatestCancelledByEventAndUser(ctx context.Context, eventID, userID string) (*Registration, error)
	// Update writes status, timestamps and waitlist position.
	Update(ctx context.Context, reg *Registration) error
	UpdateWaitlistPosition(ctx context.Context, id string, position int) error
	// FirstWaitlisted returns the waitlisted record with the lowest position (earliest registered_at on ties), or ErrNotFound.
	FirstWaitlisted(ctx context.Context, eventID string) (*Registration, error)
	// ListWaitlisted returns waitlisted records ordered by registered_at ascending.
	ListWaitlisted(ctx context.Context, eventID string) ([]*Registration, error)
	MaxWaitlistPosition(ctx context.Context, eventID string) (int, error)
	ListByEventID(ctx context.Context, eventID string, status *RegistrationStatus) ([]*Registration, error)
	ListByUserID(ctx context.Context, userID string) ([]*Registration, error)
	CountByEventID(ctx context.Context, eventID string) (int, error)
}

// RegistrationService is the capacity and waitlist manager.
type RegistrationService interface {
	RegisterForEvent(ctx context.Context, userID, eventID string) (*RegistrationResult, error)
	CancelRegistration(ctx context.Context, registrationID, userID string) (*Registration, error)
	MarkAttendance(ctx context.Context, registrationID, organizerID string, attended bool) (*Registration, error)
	ListMyRegistrations(ctx context.Context, userID string) ([]*RegistrationWithEvent, error)
	ListEventRegistrations(ctx context.Context, eventID, organizerID string, status *RegistrationStatus) ([]*Registration, error)
}

// Stores groups the repositories bound to one transaction.
type Stores struct {
	Events        EventRepository
	Registrations RegistrationRepository
}

// Transactor runs fn inside a single storage transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
