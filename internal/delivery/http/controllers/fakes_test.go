package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"campusevents/internal/delivery/http/helpers"
	"campusevents/internal/delivery/http/middleware"
	"campusevents/internal/domain"

	"github.com/stretchr/testify/require"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	testEventID = "7b0d4c1e-3f5a-4e8b-9c2d-1a2b3c4d5e6f"
	testRegID   = "0f1e2d3c-4b5a-4968-8776-5a4b3c2d1e0f"
	testNotifID = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
)

var (
	organizerPrincipal = domain.Principal{UserID: "user-org", Roles: []string{domain.RoleOrganizer}}
	studentPrincipal   = domain.Principal{UserID: "user-stu", Roles: []string{domain.RoleStudent}}
)

// newRequest builds a request with an optional JSON body, path values and principal.
func newRequest(method, target, body string, principal *domain.Principal, pathValues map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	if principal != nil {
		req = req.WithContext(middleware.SetPrincipal(req.Context(), *principal))
	}
	return req
}

// decodeEnvelope decodes the response envelope and, when dest is not nil, its data.
func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, dest any) helpers.APIResponse {
	t.Helper()
	var envelope helpers.APIResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope), "response must be valid JSON envelope")
	if dest != nil {
		require.True(t, envelope.Success, "expected success envelope, got %+v", envelope)
		raw, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, dest))
	}
	return envelope
}

// fakeEventService implements domain.EventService for handler tests.
type fakeEventService struct {
	err error

	event  *domain.Event
	events []*domain.Event
	total  int
	delete bool

	lastCreate    *domain.Event
	lastPrincipal domain.Principal
	lastEventID   string
	lastUserID    string
	lastUpdate    domain.EventUpdate
	lastParams    domain.PaginationParams
}

func (f *fakeEventService) CreateEvent(_ context.Context, event *domain.Event, principal domain.Principal) error {
	f.lastCreate = event
	f.lastPrincipal = principal
	if f.err != nil {
		return f.err
	}
	event.ID = testEventID
	event.OrganizerID = principal.UserID
	if event.Status == "" {
		event.Status = domain.EventStatusDraft
	}
	return nil
}

func (f *fakeEventService) GetEvent(_ context.Context, eventID string) (*domain.Event, error) {
	f.lastEventID = eventID
	return f.event, f.err
}

func (f *fakeEventService) ListPublicEvents(_ context.Context, params domain.PaginationParams) ([]*domain.Event, int, error) {
	f.lastParams = params
	return f.events, f.total, f.err
}

func (f *fakeEventService) ListMyEvents(_ context.Context, organizerID string) ([]*domain.Event, error) {
	f.lastUserID = organizerID
	return f.events, f.err
}

func (f *fakeEventService) UpdateEvent(_ context.Context, eventID string, update domain.EventUpdate, userID string) (*domain.Event, error) {
	f.lastEventID, f.lastUpdate, f.lastUserID = eventID, update, userID
	return f.event, f.err
}

func (f *fakeEventService) PublishEvent(_ context.Context, eventID, userID string) (*domain.Event, error) {
	f.lastEventID, f.lastUserID = eventID, userID
	return f.event, f.err
}

func (f *fakeEventService) CancelEvent(_ context.Context, eventID, userID string) (*domain.Event, error) {
	f.lastEventID, f.lastUserID = eventID, userID
	return f.event, f.err
}

func (f *fakeEventService) DeleteEvent(_ context.Context, eventID, userID string) (bool, error) {
	f.lastEventID, f.lastUserID = eventID, userID
	return f.delete, f.err
}

func (f *fakeEventService) AdvanceStatus(context.Context, string, domain.EventStatus, domain.EventStatus) (bool, error) {
	return false, f.err
}

// fakeRegistrationService implements domain.RegistrationService for handler tests.
type fakeRegistrationService struct {
	err error

	result *domain.RegistrationResult
	reg    *domain.Registration
	regs   []*domain.Registration
	mine   []*domain.RegistrationWithEvent

	lastUserID   string
	lastEventID  string
	lastRegID    string
	lastAttended bool
	lastStatus   *domain.RegistrationStatus
}

func (f *fakeRegistrationService) RegisterForEvent(_ context.Context, userID, eventID string) (*domain.RegistrationResult, error) {
	f.lastUserID, f.lastEventID = userID, eventID
	return f.result, f.err
}

func (f *fakeRegistrationService) CancelRegistration(_ context.Context, registrationID, userID string) (*domain.Registration, error) {
	f.lastRegID, f.lastUserID = registrationID, userID
	return f.reg, f.err
}

func (f *fakeRegistrationService) MarkAttendance(_ context.Context, registrationID, organizerID string, attended bool) (*domain.Registration, error) {
	f.lastRegID, f.lastUserID, f.lastAttended = registrationID, organizerID, attended
	return f.reg, f.err
}

func (f *fakeRegistrationService) ListMyRegistrations(_ context.Context, userID string) ([]*domain.RegistrationWithEvent, error) {
	f.lastUserID = userID
	return f.mine, f.err
}

func (f *fakeRegistrationService) ListEventRegistrations(_ context.Context, eventID, organizerID string, status *domain.RegistrationStatus) ([]*domain.Registration, error) {
	f.lastEventID, f.lastUserID, f.lastStatus = eventID, organizerID, status
	return f.regs, f.err
}

// fakeNotificationService implements domain.NotificationService for handler tests.
type fakeNotificationService struct {
	err error

	items        []*domain.Notification
	total        int
	count        int
	notification *domain.Notification

	lastUserID string
	lastID     string
	lastStatus *domain.NotificationStatus
	lastParams domain.PaginationParams
	lastCall   string
}

func (f *fakeNotificationService) List(_ context.Context, userID string, status *domain.NotificationStatus, params domain.PaginationParams) ([]*domain.Notification, int, error) {
	f.lastUserID, f.lastStatus, f.lastParams = userID, status, params
	if status != nil && !status.Valid() {
		return nil, 0, domain.NewValidationError("unknown notification status", "status")
	}
	return f.items, f.total, f.err
}

func (f *fakeNotificationService) UnreadCount(_ context.Context, userID string) (int, error) {
	f.lastUserID = userID
	return f.count, f.err
}

func (f *fakeNotificationService) MarkRead(_ context.Context, id, userID string) (*domain.Notification, error) {
	f.lastID, f.lastUserID, f.lastCall = id, userID, "read"
	return f.notification, f.err
}

func (f *fakeNotificationService) MarkAllRead(_ context.Context, userID string) (int, error) {
	f.lastUserID = userID
	return f.count, f.err
}

func (f *fakeNotificationService) Archive(_ context.Context, id, userID string) (*domain.Notification, error) {
	f.lastID, f.lastUserID, f.lastCall = id, userID, "archive"
	return f.notification, f.err
}
