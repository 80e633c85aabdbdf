package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"campusevents/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestDispatcher(queueSize int, notifications *fakeNotificationRepo, email *fakeEmailService) *Dispatcher {
	users := &fakeUserRepo{users: map[string]*domain.User{
		"user-1": {ID: "user-1", Email: "ada@campus.edu", Name: "Ada", LastName: "Lovelace"},
		"user-2": {ID: "user-2"},
	}}
	return NewDispatcher(DispatcherConfig{Workers: 2, QueueSize: queueSize, Timeout: time.Second}, users, notifications, email, testLogger)
}

func runDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestDispatcher_DeliversInAppAndEmail(t *testing.T) {
	notifications := &fakeNotificationRepo{}
	email := &fakeEmailService{}
	d := newTestDispatcher(8, notifications, email)
	runDispatcher(t, d)

	d.Dispatch(domain.Notice{
		Kind:        domain.NoticeRegistrationPromoted,
		RecipientID: "user-1",
		Email:       true,
		InApp:       true,
		Title:       "You're in",
		Message:     "A spot opened up",
		Data:        domain.NoticeData{EventID: "ev-1", EventTitle: "Hackathon", ActionURL: "https://x/events/ev-1"},
	})

	require.Eventually(t, func() bool {
		return len(notifications.all()) == 1 && len(email.all()) == 1
	}, time.Second, 10*time.Millisecond)

	n := notifications.all()[0]
	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, domain.NoticeRegistrationPromoted, n.Kind)
	assert.Equal(t, domain.NotificationStatusUnread, n.Status)
	require.NotNil(t, n.EventID)
	assert.Equal(t, "ev-1", *n.EventID)
	assert.Equal(t, "https://x/events/ev-1", n.ActionURL)

	sent := email.all()[0]
	assert.Equal(t, domain.NoticeRegistrationPromoted, sent.kind)
	assert.Equal(t, "ada@campus.edu", sent.data.Email)
	assert.Equal(t, "Ada Lovelace", sent.data.RecipientName)
	assert.Equal(t, "Hackathon", sent.data.EventTitle)
}

func TestDispatcher_FailuresDoNotStopDelivery(t *testing.T) {
	notifications := &fakeNotificationRepo{}
	email := &fakeEmailService{}
	d := newTestDispatcher(8, notifications, email)
	runDispatcher(t, d)

	// unknown recipient: email fails, in-app still stored
	d.Dispatch(domain.Notice{Kind: domain.NoticeEventCancelled, RecipientID: "ghost", Email: true, InApp: true})
	// recipient without an address: skipped
	d.Dispatch(domain.Notice{Kind: domain.NoticeEventCancelled, RecipientID: "user-2", Email: true})
	d.Dispatch(domain.Notice{Kind: domain.NoticeEventCancelled, RecipientID: "user-1", Email: true})

	require.Eventually(t, func() bool {
		return len(notifications.all()) == 1 && len(email.all()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "ghost", notifications.all()[0].UserID)
	assert.Nil(t, notifications.all()[0].EventID)
	assert.Equal(t, "ada@campus.edu", email.all()[0].data.Email)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	notifications := &fakeNotificationRepo{}
	d := newTestDispatcher(1, notifications, &fakeEmailService{})

	done := make(chan struct{})
	go func() {
		d.Dispatch(domain.Notice{Kind: domain.NoticeEventUpdated, RecipientID: "user-1", InApp: true})
		d.Dispatch(domain.Notice{Kind: domain.NoticeEventUpdated, RecipientID: "user-2", InApp: true})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	assert.Len(t, d.queue, 1)

	runDispatcher(t, d)
	require.Eventually(t, func() bool { return len(notifications.all()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "user-1", notifications.all()[0].UserID)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	d := newTestDispatcher(1, &fakeNotificationRepo{}, &fakeEmailService{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- d.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDispatcher_RunDeliversQueuedNoticesOnShutdown(t *testing.T) {
	notifications := &fakeNotificationRepo{}
	email := &fakeEmailService{}
	d := newTestDispatcher(8, notifications, email)
	for i := 0; i < 3; i++ {
		d.Dispatch(domain.Notice{Kind: domain.NoticeEventCancelled, RecipientID: "user-1", Email: true, InApp: true})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Empty(t, d.queue)
	assert.Len(t, notifications.all(), 3)
	assert.Len(t, email.all(), 3)
}

func TestDispatcher_DrainDropsWhatDoesNotFitTheDeadline(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*domain.User{
		"user-1": {ID: "user-1", Email: "ada@campus.edu"},
	}}
	d := NewDispatcher(DispatcherConfig{QueueSize: 4, Timeout: time.Second, DrainTimeout: 20 * time.Millisecond},
		users, &fakeNotificationRepo{}, &fakeEmailService{hang: true}, testLogger)
	for i := 0; i < 3; i++ {
		d.Dispatch(domain.Notice{Kind: domain.NoticeEventUpdated, RecipientID: "user-1", Email: true})
	}

	attempted, dropped := d.drain(context.Background())
	assert.Equal(t, 1, attempted)
	assert.Equal(t, 2, dropped)
	assert.Empty(t, d.queue)
}
