package domain

import (
	"context"
	"strings"
	"time"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusDraft      EventStatus = "draft"
	EventStatusPublished  EventStatus = "published"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCancelled  EventStatus = "cancelled"
	EventStatusCompleted  EventStatus = "completed"
)

// allowedTransitions is the lifecycle table. Terminal states map to an empty set.
var allowedTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:      {EventStatusPublished, EventStatusCancelled},
	EventStatusPublished:  {EventStatusInProgress, EventStatusCancelled},
	EventStatusInProgress: {EventStatusCompleted, EventStatusCancelled},
	EventStatusCancelled:  {},
	EventStatusCompleted:  {},
}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// AllowedTransitions returns the statuses reachable from s in one step.
func (s EventStatus) AllowedTransitions() []EventStatus {
	out := make([]EventStatus, len(allowedTransitions[s]))
	copy(out, allowedTransitions[s])
	return out
}

// CanTransitionTo reports whether moving from s to next is allowed by the lifecycle table.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s EventStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// ValidateTransition returns a ValidationError naming the allowed set when from -> to is illegal.
func ValidateTransition(from, to EventStatus) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	allowed := make([]string, 0, len(allowedTransitions[from]))
	for _, s := range allowedTransitions[from] {
		allowed = append(allowed, string(s))
	}
	if len(allowed) == 0 {
		return NewValidationError("cannot transition from " + string(from) + " to " + string(to) + "; " + string(from) + " is terminal")
	}
	return NewValidationError("cannot transition from "+string(from)+" to "+string(to)+"; allowed", allowed...)
}

// EventCategory classifies an event.
type EventCategory string

const (
	EventCategoryAcademic EventCategory = "academic"
	EventCategorySocial   EventCategory = "social"
	EventCategorySports   EventCategory = "sports"
	EventCategoryCultural EventCategory = "cultural"
	EventCategoryCareer   EventCategory = "career"
	EventCategoryWorkshop EventCategory = "workshop"
	EventCategoryOther    EventCategory = "other"
)

// Valid reports whether c is a known category.
func (c EventCategory) Valid() bool {
	switch c {
	case EventCategoryAcademic, EventCategorySocial, EventCategorySports, EventCategoryCultural,
		EventCategoryCareer, EventCategoryWorkshop, EventCategoryOther:
		return true
	}
	return false
}

// Location is where an event takes place. Virtual events carry a join link.
type Location struct {
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	IsVirtual   bool   `json:"is_virtual"`
	VirtualLink string `json:"virtual_link,omitempty"`
}

// MinSameDayDuration is the shortest allowed duration for an event that starts and ends on the same day.
const MinSameDayDuration = 30 * time.Minute

// Event represents a campus event.
// swagger:model Event
type Event struct {
	ID                   string        `json:"id"`
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	Category             EventCategory `json:"category"`
	StartDate            time.Time     `json:"start_date"`
	EndDate              time.Time     `json:"end_date"`
	Location             Location      `json:"location"`
	MaxRegistrations     *int          `json:"max_registrations"`
	CurrentRegistrations int           `json:"current_registrations"`
	Status               EventStatus   `json:"status"`
	OrganizerID          string        `json:"organizer_id"`
	IsPublic             bool          `json:"is_public"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// HasCapacity reports whether another registered attendee fits. A nil MaxRegistrations is unlimited.
func (e *Event) HasCapacity() bool {
	return e.MaxRegistrations == nil || e.CurrentRegistrations < *e.MaxRegistrations
}

// HasEnded reports whether the event's end date is before now.
func (e *Event) HasEnded(now time.Time) bool {
	return e.EndDate.Before(now)
}

// MissingPublishFields returns the fields that must be filled before the event can leave draft.
func (e *Event) MissingPublishFields() []string {
	var missing []string
	if strings.TrimSpace(e.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(e.Description) == "" {
		missing = append(missing, "description")
	}
	if e.StartDate.IsZero() {
		missing = append(missing, "start_date")
	}
	if e.EndDate.IsZero() {
		missing = append(missing, "end_date")
	}
	if strings.TrimSpace(e.Location.Name) == "" {
		missing = append(missing, "location.name")
	}
	if e.Category == "" {
		missing = append(missing, "category")
	}
	if e.Location.IsVirtual && strings.TrimSpace(e.Location.VirtualLink) == "" {
		missing = append(missing, "location.virtual_link")
	}
	return missing
}

// ValidateEventDates checks end > start and the same-day minimum duration.
func ValidateEventDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return nil
	}
	if !end.After(start) {
		return NewValidationError("end_date must be after start_date", "end_date")
	}
	endLocal := end.In(start.Location())
	sy, sm, sd := start.Date()
	ey, em, ed := endLocal.Date()
	if sy == ey && sm == em && sd == ed && end.Sub(start) < MinSameDayDuration {
		return NewValidationError("same-day events must last at least 30 minutes", "end_date")
	}
	return nil
}

// EventUpdate carries the organizer-editable fields. Nil fields are left unchanged.
// ClearMaxRegistrations switches the event to unlimited capacity.
type EventUpdate struct {
	Title                 *string
	Description           *string
	Category              *EventCategory
	StartDate             *time.Time
	EndDate               *time.Time
	Location              *Location
	MaxRegistrations      *int
	ClearMaxRegistrations bool
	IsPublic              *bool
	Status                *EventStatus
}

// EventRepository defines the interface for event storage.
// The registration counter is only changed through IncrementRegistrations and DecrementRegistrations.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	// GetByIDForUpdate reads the event and, inside a transaction, locks its row until commit.
	GetByIDForUpdate(ctx context.Context, id string) (*Event, error)
	// Update persists organizer-editable fields and status. It never touches current_registrations.
	Update(ctx context.Context, event *Event) error
	// UpdateStatus moves the event from one status to another. It reports false when the event was not in from.
	UpdateStatus(ctx context.Context, id string, from, to EventStatus) (bool, error)
	// IncrementRegistrations adds one registered attendee if capacity allows; it reports false when full.
	IncrementRegistrations(ctx context.Context, id string) (bool, error)
	DecrementRegistrations(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ListByOrganizerID(ctx context.Context, organizerID string) ([]*Event, error)
	ListPublic(ctx context.Context, params PaginationParams) ([]*Event, int, error)
	// ListDueToStart returns published events with start_date <= now, including ones that already ended.
	ListDueToStart(ctx context.Context, now time.Time) ([]*Event, error)
	// ListDueToComplete returns in-progress events with end_date < now.
	ListDueToComplete(ctx context.Context, now time.Time) ([]*Event, error)
}

// EventService defines the lifecycle operations organizers and the sweeper perform on events.
type EventService interface {
	CreateEvent(ctx context.Context, event *Event, principal Principal) error
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	ListPublicEvents(ctx context.Context, params PaginationParams) ([]*Event, int, error)
	ListMyEvents(ctx context.Context, organizerID string) ([]*Event, error)
	UpdateEvent(ctx context.Context, eventID string, update EventUpdate, userID string) (*Event, error)
	PublishEvent(ctx context.Context, eventID, userID string) (*Event, error)
	CancelEvent(ctx context.Context, eventID, userID string) (*Event, error)
	// DeleteEvent hard-deletes an event without registrations and soft-cancels one that has any.
	// deleted reports which path was taken.
	DeleteEvent(ctx context.Context, eventID, userID string) (deleted bool, err error)
	// AdvanceStatus performs a system (time-based) transition. changed is false when the event already moved.
	AdvanceStatus(ctx context.Context, eventID string, from, to EventStatus) (changed bool, err error)
}
