package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"campusevents/internal/delivery/http/controllers"
	"campusevents/internal/delivery/http/middleware"
)

// Controllers groups the handlers mounted by NewRouter.
type Controllers struct {
	Event        *controllers.EventController
	Registration *controllers.RegistrationController
	Notification *controllers.NotificationController
	Health       *controllers.HealthController
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(c Controllers, auth *middleware.Auth) *http.ServeMux {
	mux := http.NewServeMux()

	// Events
	mux.HandleFunc("GET /events", c.Event.ListPublicEvents)
	mux.HandleFunc("GET /events/{eventID}", auth.Optional(c.Event.GetEvent))
	mux.HandleFunc("POST /events", auth.Require(c.Event.CreateEvent))
	mux.HandleFunc("PATCH /events/{eventID}", auth.Require(c.Event.UpdateEvent))
	mux.HandleFunc("DELETE /events/{eventID}", auth.Require(c.Event.DeleteEvent))
	mux.HandleFunc("POST /events/{eventID}/publish", auth.Require(c.Event.PublishEvent))
	mux.HandleFunc("POST /events/{eventID}/cancel", auth.Require(c.Event.CancelEvent))
	mux.HandleFunc("GET /me/events", auth.Require(c.Event.ListMyEvents))

	// Registrations
	mux.HandleFunc("POST /events/{eventID}/register", auth.Require(c.Registration.Register))
	mux.HandleFunc("GET /events/{eventID}/registrations", auth.Require(c.Registration.ListEventRegistrations))
	mux.HandleFunc("DELETE /registrations/{registrationID}", auth.Require(c.Registration.CancelRegistration))
	mux.HandleFunc("POST /registrations/{registrationID}/attendance", auth.Require(c.Registration.MarkAttendance))
	mux.HandleFunc("GET /me/registrations", auth.Require(c.Registration.ListMyRegistrations))

	// Notifications
	mux.HandleFunc("GET /me/notifications", auth.Require(c.Notification.List))
	mux.HandleFunc("GET /me/notifications/unread-count", auth.Require(c.Notification.UnreadCount))
	mux.HandleFunc("POST /me/notifications/read-all", auth.Require(c.Notification.MarkAllRead))
	mux.HandleFunc("POST /me/notifications/{notificationID}/read", auth.Require(c.Notification.MarkRead))
	mux.HandleFunc("POST /me/notifications/{notificationID}/archive", auth.Require(c.Notification.Archive))

	// Ops
	mux.HandleFunc("GET /health", c.Health.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
