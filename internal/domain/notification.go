package domain

import (
	"context"
	"time"
)

// NoticeKind names a side effect fired after a lifecycle or registration change.
type NoticeKind string

const (
	NoticeRegistrationConfirmed  NoticeKind = "registration_confirmed"
	NoticeRegistrationWaitlisted NoticeKind = "registration_waitlisted"
	NoticeRegistrationPromoted   NoticeKind = "registration_promoted"
	NoticeRegistrationCancelled  NoticeKind = "registration_cancelled"
	NoticeEventPublished         NoticeKind = "event_published"
	NoticeEventUpdated           NoticeKind = "event_updated"
	NoticeEventCancelled         NoticeKind = "event_cancelled"
	NoticeOrganizerSummary       NoticeKind = "event_organizer_summary"
)

// NoticeData holds the resolved template variables of a notice.
type NoticeData struct {
	EventID          string
	EventTitle       string
	EventDate        time.Time
	Location         string
	ActionURL        string
	WaitlistPosition int
	AttendeeCount    int
	Action           string // organizer summary only: "published", "updated" or "cancelled"
}

// Notice is one best-effort message for one recipient.
type Notice struct {
	Kind        NoticeKind
	RecipientID string
	Email       bool
	InApp       bool
	Title       string
	Message     string
	Data        NoticeData
}

// Dispatcher accepts notices for asynchronous delivery. Dispatch never blocks on delivery
// and never reports delivery failures to the caller.
type Dispatcher interface {
	Dispatch(n Notice)
}

// NotificationStatus is the read state of an in-app notification.
type NotificationStatus string

const (
	NotificationStatusUnread   NotificationStatus = "unread"
	NotificationStatusRead     NotificationStatus = "read"
	NotificationStatusArchived NotificationStatus = "archived"
)

// Valid reports whether s is a known notification status.
func (s NotificationStatus) Valid() bool {
	return s == NotificationStatusUnread || s == NotificationStatusRead || s == NotificationStatusArchived
}

// Notification is a persisted in-app notification.
// swagger:model Notification
type Notification struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	EventID   *string            `json:"event_id"`
	Kind      NoticeKind         `json:"kind"`
	Title     string             `json:"title"`
	Message   string             `json:"message"`
	ActionURL string             `json:"action_url"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	ReadAt    *time.Time         `json:"read_at"`
}

// NotificationRepository defines storage for in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUserID(ctx context.Context, userID string, status *NotificationStatus, params PaginationParams) ([]*Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	// SetStatus changes the status of a notification owned by userID; ErrNotFound when there is none.
	SetStatus(ctx context.Context, id, userID string, status NotificationStatus, at time.Time) (*Notification, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
}

// NotificationService exposes a user's in-app notifications.
type NotificationService interface {
	List(ctx context.Context, userID string, status *NotificationStatus, params PaginationParams) ([]*Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) (*Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Archive(ctx context.Context, id, userID string) (*Notification, error)
}
