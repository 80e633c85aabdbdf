package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"campusevents/internal/domain"

	"github.com/google/uuid"
)

// memStore is an in-memory event and registration store. Transactions are serialized
// and roll back by restoring a snapshot.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	events map[string]*domain.Event
	regs   map[string]*domain.Registration

	// failUpdateAfter, when > 0, makes the n-th registration Update return errBoom.
	failUpdateAfter int
	updates         int
}

func newMemStore() *memStore {
	return &memStore{
		events: make(map[string]*domain.Event),
		regs:   make(map[string]*domain.Registration),
	}
}

func (s *memStore) eventRepo() *fakeEventRepo { return &fakeEventRepo{s: s} }

func (s *memStore) registrationRepo() *fakeRegistrationRepo { return &fakeRegistrationRepo{s: s} }

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, stores domain.Stores) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	events, regs := s.snapshot()
	s.mu.Unlock()

	if err := fn(ctx, domain.Stores{Events: s.eventRepo(), Registrations: s.registrationRepo()}); err != nil {
		s.mu.Lock()
		s.events, s.regs = events, regs
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) snapshot() (map[string]*domain.Event, map[string]*domain.Registration) {
	events := make(map[string]*domain.Event, len(s.events))
	for id, e := range s.events {
		events[id] = copyEvent(e)
	}
	regs := make(map[string]*domain.Registration, len(s.regs))
	for id, r := range s.regs {
		regs[id] = copyRegistration(r)
	}
	return events, regs
}

// addEvent stores e as-is, bypassing validation, and returns its id.
func (s *memStore) addEvent(e *domain.Event) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.events[e.ID] = copyEvent(e)
	return e.ID
}

func (s *memStore) event(id string) *domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[id]; ok {
		return copyEvent(e)
	}
	return nil
}

func (s *memStore) registration(id string) *domain.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.regs[id]; ok {
		return copyRegistration(r)
	}
	return nil
}

func (s *memStore) registrationsFor(eventID string) []*domain.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Registration
	for _, r := range s.regs {
		if r.EventID == eventID {
			out = append(out, copyRegistration(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out
}

func copyEvent(e *domain.Event) *domain.Event {
	c := *e
	if e.MaxRegistrations != nil {
		v := *e.MaxRegistrations
		c.MaxRegistrations = &v
	}
	return &c
}

func copyRegistration(r *domain.Registration) *domain.Registration {
	c := *r
	if r.WaitlistPosition != nil {
		v := *r.WaitlistPosition
		c.WaitlistPosition = &v
	}
	if r.CancelledAt != nil {
		v := *r.CancelledAt
		c.CancelledAt = &v
	}
	if r.AttendedAt != nil {
		v := *r.AttendedAt
		c.AttendedAt = &v
	}
	return &c
}

type fakeEventRepo struct {
	s *memStore
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e.ID = uuid.NewString()
	f.s.events[e.ID] = copyEvent(e)
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if e, ok := f.s.events[id]; ok {
		return copyEvent(e), nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeEventRepo) Update(ctx context.Context, e *domain.Event) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	stored, ok := f.s.events[e.ID]
	if !ok {
		return domain.ErrNotFound
	}
	c := copyEvent(e)
	c.CurrentRegistrations = stored.CurrentRegistrations
	f.s.events[e.ID] = c
	return nil
}

func (f *fakeEventRepo) UpdateStatus(ctx context.Context, id string, from, to domain.EventStatus) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e, ok := f.s.events[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	return true, nil
}

func (f *fakeEventRepo) IncrementRegistrations(ctx context.Context, id string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e, ok := f.s.events[id]
	if !ok || !e.HasCapacity() {
		return false, nil
	}
	e.CurrentRegistrations++
	return true, nil
}

func (f *fakeEventRepo) DecrementRegistrations(ctx context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e, ok := f.s.events[id]
	if !ok || e.CurrentRegistrations == 0 {
		return domain.ErrNotFound
	}
	e.CurrentRegistrations--
	return nil
}

func (f *fakeEventRepo) Delete(ctx context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.events[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.s.events, id)
	return nil
}

func (f *fakeEventRepo) ListByOrganizerID(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	return f.filter(func(e *domain.Event) bool { return e.OrganizerID == organizerID }), nil
}

func (f *fakeEventRepo) ListPublic(ctx context.Context, params domain.PaginationParams) ([]*domain.Event, int, error) {
	all := f.filter(func(e *domain.Event) bool {
		return e.IsPublic && (e.Status == domain.EventStatusPublished || e.Status == domain.EventStatusInProgress)
	})
	start := params.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + params.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (f *fakeEventRepo) ListDueToStart(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	return f.filter(func(e *domain.Event) bool {
		return e.Status == domain.EventStatusPublished && !e.StartDate.After(now) && e.EndDate.After(now)
	}), nil
}

func (f *fakeEventRepo) ListDueToComplete(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	return f.filter(func(e *domain.Event) bool {
		return e.Status == domain.EventStatusInProgress && e.EndDate.Before(now)
	}), nil
}

func (f *fakeEventRepo) filter(keep func(e *domain.Event) bool) []*domain.Event {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make([]*domain.Event, 0)
	for _, e := range f.s.events {
		if keep(e) {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

type fakeRegistrationRepo struct {
	s *memStore
}

func (f *fakeRegistrationRepo) hasOtherActive(r *domain.Registration) bool {
	for _, other := range f.s.regs {
		if other.ID != r.ID && other.EventID == r.EventID && other.UserID == r.UserID && other.Status.IsActive() {
			return true
		}
	}
	return false
}

func (f *fakeRegistrationRepo) Create(ctx context.Context, r *domain.Registration) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if r.Status.IsActive() && f.hasOtherActive(r) {
		return domain.ErrRegistrationExists
	}
	r.ID = uuid.NewString()
	f.s.regs[r.ID] = copyRegistration(r)
	return nil
}

func (f *fakeRegistrationRepo) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if r, ok := f.s.regs[id]; ok {
		return copyRegistration(r), nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRegistrationRepo) GetActiveByEventAndUser(ctx context.Context, eventID, userID string) (*domain.Registration, error) {
	list := f.filter(func(r *domain.Registration) bool {
		return r.EventID == eventID && r.UserID == userID && r.Status.IsActive()
	})
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	return list[0], nil
}

func (f *fakeRegistrationRepo) GetLatestCancelledByEventAndUser(ctx context.Context, eventID, userID string) (*domain.Registration, error) {
	list := f.filter(func(r *domain.Registration) bool {
		return r.EventID == eventID && r.UserID == userID && r.Status == domain.RegistrationStatusCancelled
	})
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list[0], nil
}

func (f *fakeRegistrationRepo) Update(ctx context.Context, r *domain.Registration) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.updates++
	if f.s.failUpdateAfter > 0 && f.s.updates >= f.s.failUpdateAfter {
		return errBoom
	}
	if _, ok := f.s.regs[r.ID]; !ok {
		return domain.ErrNotFound
	}
	if r.Status.IsActive() && f.hasOtherActive(r) {
		return domain.ErrRegistrationExists
	}
	f.s.regs[r.ID] = copyRegistration(r)
	return nil
}

func (f *fakeRegistrationRepo) UpdateWaitlistPosition(ctx context.Context, id string, position int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.regs[id]
	if !ok || r.Status != domain.RegistrationStatusWaitlisted {
		return domain.ErrNotFound
	}
	r.WaitlistPosition = &position
	return nil
}

func (f *fakeRegistrationRepo) FirstWaitlisted(ctx context.Context, eventID string) (*domain.Registration, error) {
	list := f.filter(func(r *domain.Registration) bool {
		return r.EventID == eventID && r.Status == domain.RegistrationStatusWaitlisted
	})
	if len(list) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.SliceStable(list, func(i, j int) bool {
		pi, pj := list[i].WaitlistPosition, list[j].WaitlistPosition
		if pi != nil && pj != nil && *pi != *pj {
			return *pi < *pj
		}
		return list[i].RegisteredAt.Before(list[j].RegisteredAt)
	})
	return list[0], nil
}

func (f *fakeRegistrationRepo) ListWaitlisted(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	return f.filter(func(r *domain.Registration) bool {
		return r.EventID == eventID && r.Status == domain.RegistrationStatusWaitlisted
	}), nil
}

func (f *fakeRegistrationRepo) MaxWaitlistPosition(ctx context.Context, eventID string) (int, error) {
	highest := 0
	for _, r := range f.filter(func(r *domain.Registration) bool {
		return r.EventID == eventID && r.Status == domain.RegistrationStatusWaitlisted
	}) {
		if r.WaitlistPosition != nil && *r.WaitlistPosition > highest {
			highest = *r.WaitlistPosition
		}
	}
	return highest, nil
}

func (f *fakeRegistrationRepo) ListByEventID(ctx context.Context, eventID string, status *domain.RegistrationStatus) ([]*domain.Registration, error) {
	return f.filter(func(r *domain.Registration) bool {
		return r.EventID == eventID && (status == nil || r.Status == *status)
	}), nil
}

func (f *fakeRegistrationRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.Registration, error) {
	return f.filter(func(r *domain.Registration) bool { return r.UserID == userID }), nil
}

func (f *fakeRegistrationRepo) CountByEventID(ctx context.Context, eventID string) (int, error) {
	return len(f.filter(func(r *domain.Registration) bool { return r.EventID == eventID })), nil
}

// filter returns copies ordered by registered_at, then id.
func (f *fakeRegistrationRepo) filter(keep func(r *domain.Registration) bool) []*domain.Registration {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make([]*domain.Registration, 0)
	for _, r := range f.s.regs {
		if keep(r) {
			out = append(out, copyRegistration(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// fakeDispatcher records notices.
type fakeDispatcher struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (d *fakeDispatcher) Dispatch(n domain.Notice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, n)
}

func (d *fakeDispatcher) kinds() []domain.NoticeKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.NoticeKind, 0, len(d.notices))
	for _, n := range d.notices {
		out = append(out, n.Kind)
	}
	return out
}

func (d *fakeDispatcher) forRecipient(userID string) []domain.Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.Notice
	for _, n := range d.notices {
		if n.RecipientID == userID {
			out = append(out, n)
		}
	}
	return out
}
