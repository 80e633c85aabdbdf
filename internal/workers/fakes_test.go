package workers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"campusevents/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

type fakeNotificationRepo struct {
	domain.NotificationRepository
	mu      sync.Mutex
	created []*domain.Notification
	err     error
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	n.ID = "n-" + n.UserID
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotificationRepo) all() []*domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.Notification(nil), f.created...)
}

type sentEmail struct {
	kind domain.NoticeKind
	data domain.NoticeEmailData
}

type fakeEmailService struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
	// hang makes SendNotice wait for ctx to end.
	hang bool
}

func (f *fakeEmailService) SendNotice(ctx context.Context, kind domain.NoticeKind, data *domain.NoticeEmailData) error {
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{kind: kind, data: *data})
	return nil
}

func (f *fakeEmailService) all() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

// lifecycleStore backs both the sweeper's event repository and event service.
type lifecycleStore struct {
	mu     sync.Mutex
	events map[string]*domain.Event
	// failIDs makes AdvanceStatus fail for these events.
	failIDs map[string]bool
}

func newLifecycleStore(events ...*domain.Event) *lifecycleStore {
	s := &lifecycleStore{events: map[string]*domain.Event{}, failIDs: map[string]bool{}}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *lifecycleStore) status(id string) domain.EventStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id].Status
}

type fakeEventRepo struct {
	domain.EventRepository
	store *lifecycleStore
}

func (r *fakeEventRepo) ListDueToStart(_ context.Context, now time.Time) ([]*domain.Event, error) {
	return r.filter(func(e *domain.Event) bool {
		return e.Status == domain.EventStatusPublished && !e.StartDate.After(now)
	}), nil
}

func (r *fakeEventRepo) ListDueToComplete(_ context.Context, now time.Time) ([]*domain.Event, error) {
	return r.filter(func(e *domain.Event) bool {
		return e.Status == domain.EventStatusInProgress && e.EndDate.Before(now)
	}), nil
}

func (r *fakeEventRepo) filter(keep func(*domain.Event) bool) []*domain.Event {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.Event
	for _, e := range r.store.events {
		if keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

type fakeEventService struct {
	domain.EventService
	store *lifecycleStore
}

func (s *fakeEventService) AdvanceStatus(_ context.Context, eventID string, from, to domain.EventStatus) (bool, error) {
	if err := domain.ValidateTransition(from, to); err != nil {
		return false, err
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if s.store.failIDs[eventID] {
		return false, errBoom
	}
	e, ok := s.store.events[eventID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if e.Status != from {
		return false, nil
	}
	e.Status = to
	return true, nil
}
