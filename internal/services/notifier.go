package services

import (
	"fmt"
	"strings"

	"campusevents/internal/domain"
)

const noticeDateLayout = "Mon, Jan 2 2006 at 15:04 MST"

// Notifier turns lifecycle and registration outcomes into notices for the dispatcher.
// A nil dispatcher makes every method a no-op.
type Notifier struct {
	dispatcher domain.Dispatcher
	appBaseURL string
}

// NewNotifier returns a Notifier whose action links point at appBaseURL/events/{id}.
func NewNotifier(dispatcher domain.Dispatcher, appBaseURL string) *Notifier {
	return &Notifier{dispatcher: dispatcher, appBaseURL: strings.TrimSuffix(appBaseURL, "/")}
}

func (n *Notifier) eventData(e *domain.Event) domain.NoticeData {
	var base string
	if n != nil {
		base = n.appBaseURL
	}
	location := e.Location.Name
	if e.Location.IsVirtual {
		location = "Online"
		if e.Location.Name != "" {
			location = e.Location.Name + " (online)"
		}
	}
	return domain.NoticeData{
		EventID:    e.ID,
		EventTitle: e.Title,
		EventDate:  e.StartDate,
		Location:   location,
		ActionURL:  base + "/events/" + e.ID,
	}
}

func (n *Notifier) send(notice domain.Notice) {
	if n == nil || n.dispatcher == nil || notice.RecipientID == "" {
		return
	}
	n.dispatcher.Dispatch(notice)
}

// RegistrationConfirmed tells the user they hold a seat.
func (n *Notifier) RegistrationConfirmed(e *domain.Event, reg *domain.Registration) {
	n.send(domain.Notice{
		Kind:        domain.NoticeRegistrationConfirmed,
		RecipientID: reg.UserID,
		Email:       true,
		InApp:       true,
		Title:       "Registration confirmed",
		Message:     fmt.Sprintf("You are registered for %s on %s.", e.Title, e.StartDate.Format(noticeDateLayout)),
		Data:        n.eventData(e),
	})
}

// Waitlisted tells the user the event is full and where they stand in line.
func (n *Notifier) Waitlisted(e *domain.Event, reg *domain.Registration, position int) {
	data := n.eventData(e)
	data.WaitlistPosition = position
	n.send(domain.Notice{
		Kind:        domain.NoticeRegistrationWaitlisted,
		RecipientID: reg.UserID,
		Email:       true,
		InApp:       true,
		Title:       "You are on the waitlist",
		Message:     fmt.Sprintf("%s is full. You are number %d on the waitlist.", e.Title, position),
		Data:        data,
	})
}

// Promoted tells a waitlisted user a seat opened up for them.
func (n *Notifier) Promoted(e *domain.Event, reg *domain.Registration) {
	n.send(domain.Notice{
		Kind:        domain.NoticeRegistrationPromoted,
		RecipientID: reg.UserID,
		Email:       true,
		InApp:       true,
		Title:       "A spot opened up",
		Message:     fmt.Sprintf("You have been moved from the waitlist and are now registered for %s.", e.Title),
		Data:        n.eventData(e),
	})
}

// RegistrationCancelled confirms a user's own cancellation.
func (n *Notifier) RegistrationCancelled(e *domain.Event, reg *domain.Registration) {
	n.send(domain.Notice{
		Kind:        domain.NoticeRegistrationCancelled,
		RecipientID: reg.UserID,
		Email:       true,
		InApp:       true,
		Title:       "Registration cancelled",
		Message:     fmt.Sprintf("Your registration for %s has been cancelled.", e.Title),
		Data:        n.eventData(e),
	})
}

// EventPublished confirms to the organizer that the event is live.
func (n *Notifier) EventPublished(e *domain.Event) {
	data := n.eventData(e)
	data.Action = "published"
	n.send(domain.Notice{
		Kind:        domain.NoticeEventPublished,
		RecipientID: e.OrganizerID,
		Email:       true,
		InApp:       true,
		Title:       "Event published",
		Message:     fmt.Sprintf("%s is now open for registration.", e.Title),
		Data:        data,
	})
}

// EventUpdated informs every registered attendee and sends the organizer a summary.
func (n *Notifier) EventUpdated(e *domain.Event, attendees []*domain.Registration) {
	for _, reg := range attendees {
		n.send(domain.Notice{
			Kind:        domain.NoticeEventUpdated,
			RecipientID: reg.UserID,
			Email:       true,
			InApp:       true,
			Title:       "Event updated",
			Message:     fmt.Sprintf("%s has been updated. It now starts %s.", e.Title, e.StartDate.Format(noticeDateLayout)),
			Data:        n.eventData(e),
		})
	}
	n.organizerSummary(e, "updated", len(attendees))
}

// EventCancelled informs every registered attendee and sends the organizer a summary.
func (n *Notifier) EventCancelled(e *domain.Event, attendees []*domain.Registration) {
	for _, reg := range attendees {
		n.send(domain.Notice{
			Kind:        domain.NoticeEventCancelled,
			RecipientID: reg.UserID,
			Email:       true,
			InApp:       true,
			Title:       "Event cancelled",
			Message:     fmt.Sprintf("%s has been cancelled by the organizer.", e.Title),
			Data:        n.eventData(e),
		})
	}
	n.organizerSummary(e, "cancelled", len(attendees))
}

func (n *Notifier) organizerSummary(e *domain.Event, action string, attendees int) {
	data := n.eventData(e)
	data.Action = action
	data.AttendeeCount = attendees
	n.send(domain.Notice{
		Kind:        domain.NoticeOrganizerSummary,
		RecipientID: e.OrganizerID,
		Email:       true,
		InApp:       true,
		Title:       "Event " + action,
		Message:     fmt.Sprintf("%s was %s. %d registered attendees were notified.", e.Title, action, attendees),
		Data:        data,
	})
}
