package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"campusevents/internal/delivery/http/helpers"
	"campusevents/internal/delivery/http/middleware"
	"campusevents/internal/domain"
)

// LocationRequest is the location part of event request bodies.
type LocationRequest struct {
	Name        string `json:"name" validate:"max=200"`
	Address     string `json:"address" validate:"max=500"`
	IsVirtual   bool   `json:"is_virtual"`
	VirtualLink string `json:"virtual_link" validate:"omitempty,url"`
}

func (l LocationRequest) toDomain() domain.Location {
	return domain.Location{Name: l.Name, Address: l.Address, IsVirtual: l.IsVirtual, VirtualLink: l.VirtualLink}
}

// CreateEventRequest is the request body for POST /events.
type CreateEventRequest struct {
	Title            string          `json:"title" validate:"required,max=200"`
	Description      string          `json:"description" validate:"max=5000"`
	Category         string          `json:"category" validate:"omitempty,oneof=academic social sports cultural career workshop other"`
	StartDate        *time.Time      `json:"start_date" validate:"required"`
	EndDate          *time.Time      `json:"end_date" validate:"required"`
	Location         LocationRequest `json:"location"`
	MaxRegistrations *int            `json:"max_registrations" validate:"omitempty,min=0"`
	IsPublic         *bool           `json:"is_public"`
	Status           string          `json:"status" validate:"omitempty,oneof=draft published"`
}

func (c CreateEventRequest) toDomain() *domain.Event {
	event := &domain.Event{
		Title:            c.Title,
		Description:      c.Description,
		Category:         domain.EventCategory(c.Category),
		StartDate:        *c.StartDate,
		EndDate:          *c.EndDate,
		Location:         c.Location.toDomain(),
		MaxRegistrations: c.MaxRegistrations,
		IsPublic:         true,
		Status:           domain.EventStatus(c.Status),
	}
	if c.IsPublic != nil {
		event.IsPublic = *c.IsPublic
	}
	return event
}

// UpdateEventRequest is the request body for PATCH /events/{eventID}. Omitted fields are unchanged.
type UpdateEventRequest struct {
	Title                 *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Description           *string          `json:"description" validate:"omitempty,max=5000"`
	Category              *string          `json:"category" validate:"omitempty,oneof=academic social sports cultural career workshop other"`
	StartDate             *time.Time       `json:"start_date"`
	EndDate               *time.Time       `json:"end_date"`
	Location              *LocationRequest `json:"location"`
	MaxRegistrations      *int             `json:"max_registrations" validate:"omitempty,min=0"`
	ClearMaxRegistrations bool             `json:"clear_max_registrations"`
	IsPublic              *bool            `json:"is_public"`
	Status                *string          `json:"status" validate:"omitempty,oneof=draft published in_progress completed cancelled"`
}

// Validate implements helpers.Validator.
func (u UpdateEventRequest) Validate() []string {
	var errs []string
	if u.ClearMaxRegistrations && u.MaxRegistrations != nil {
		errs = append(errs, "max_registrations and clear_max_registrations are mutually exclusive")
	}
	return errs
}

func (u UpdateEventRequest) toDomain() domain.EventUpdate {
	update := domain.EventUpdate{
		Title:                 u.Title,
		Description:           u.Description,
		StartDate:             u.StartDate,
		EndDate:               u.EndDate,
		MaxRegistrations:      u.MaxRegistrations,
		ClearMaxRegistrations: u.ClearMaxRegistrations,
		IsPublic:              u.IsPublic,
	}
	if u.Category != nil {
		c := domain.EventCategory(*u.Category)
		update.Category = &c
	}
	if u.Location != nil {
		l := u.Location.toDomain()
		update.Location = &l
	}
	if u.Status != nil {
		s := domain.EventStatus(*u.Status)
		update.Status = &s
	}
	return update
}

// EventSuccessResponse is the success envelope for endpoints returning one event.
type EventSuccessResponse struct {
	Success bool          `json:"success"`
	Data    *domain.Event `json:"data"`
}

// EventListSuccessResponse is the success envelope for paginated event lists.
type EventListSuccessResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items      []*domain.Event        `json:"items"`
		Pagination helpers.PaginationMeta `json:"pagination"`
	} `json:"data"`
}

// DeleteEventResponse reports whether the event was removed or, because it has registrations, cancelled.
type DeleteEventResponse struct {
	Deleted   bool `json:"deleted"`
	Cancelled bool `json:"cancelled"`
}

type EventController struct {
	Logger  *slog.Logger
	Service domain.EventService
}

func NewEventController(logger *slog.Logger, svc domain.EventService) *EventController {
	return &EventController{Logger: logger, Service: svc}
}

// CreateEvent godoc
// @Summary Create an event
// @Description Create an event as draft (default) or published. Only organizers and admins may create events; the caller becomes the organizer.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body CreateEventRequest true "Event data"
// @Success 201 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "code: bad_request or validation_error"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "code: forbidden"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	event := req.toDomain()
	if err := c.Service.CreateEvent(r.Context(), event, principal); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, event)
}

// GetEvent godoc
// @Summary Get an event
// @Description Returns one event. Draft events are only visible to their organizer.
// @Tags events
// @Produce json
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "code: bad_request"
// @Failure 404 {object} helpers.APIResponse "code: not_found"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /events/{eventID} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	event, err := c.Service.GetEvent(r.Context(), eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if event.Status == domain.EventStatusDraft {
		principal, _ := middleware.PrincipalFromContext(r.Context())
		if principal.UserID != event.OrganizerID {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// ListPublicEvents godoc
// @Summary List public events
// @Description Public events that are published or in progress, soonest first.
// @Tags events
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.EventListSuccessResponse
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /events [get]
func (c *EventController) ListPublicEvents(w http.ResponseWriter, r *http.Request) {
	params := helpers.ParsePagination(r)
	events, total, err := c.Service.ListPublicEvents(r.Context(), params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, helpers.NewListResponse(events, params, total))
}

// ListMyEvents godoc
// @Summary List my events
// @Description Events organized by the authenticated user, in every status.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data is an array of events"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /me/events [get]
func (c *EventController) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	events, err := c.Service.ListMyEvents(r.Context(), principal.UserID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, events)
}

// UpdateEvent godoc
// @Summary Update an event
// @Description Partially update an event. Only the organizer may update it. Raising capacity promotes waitlisted users; registered attendees are notified.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param event body UpdateEventRequest true "Fields to change"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "code: bad_request or validation_error"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "code: forbidden"
// @Failure 404 {object} helpers.APIResponse "code: not_found"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /events/{eventID} [patch]
func (c *EventController) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	var req UpdateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	event, err := c.Service.UpdateEvent(r.Context(), eventID, req.toDomain(), principal.UserID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// PublishEvent godoc
// @Summary Publish an event
// @Description Move a draft event to published once title, description, dates, location and category are set.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "code: validation_error (fields lists what is missing)"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "code: forbidden"
// @Failure 404 {object} helpers.APIResponse "code: not_found"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /events/{eventID}/publish [post]
func (c *EventController) PublishEvent(w http.ResponseWriter, r *http.Request) {
	c.changeStatus(w, r, c.Service.PublishEvent)
}

// CancelEvent godoc
// @Summary Cancel an event
// @Description Cancel a draft, published or in-progress event and notify registered attendees.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "code: validation_error"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "code: forbidden"
// @Failure 404 {object} helpers.APIResponse "code: not_found"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /events/{eventID}/cancel [post]
func (c *EventController) CancelEvent(w http.ResponseWriter, r *http.Request) {
	c.changeStatus(w, r, c.Service.CancelEvent)
}

func (c *EventController) changeStatus(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, eventID, userID string) (*domain.Event, error)) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	event, err := fn(r.Context(), eventID, principal.UserID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Remove an event without registrations. An event that has registrations is cancelled instead.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data: {deleted, cancelled}"
// @Failure 400 {object} helpers.APIResponse "code: bad_request"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "code: forbidden"
// @Failure 404 {object} helpers.APIResponse "code: not_found"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /events/{eventID} [delete]
func (c *EventController) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := helpers.PathUUID(w, r, "eventID")
	if !ok {
		return
	}
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	deleted, err := c.Service.DeleteEvent(r.Context(), eventID, principal.UserID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, DeleteEventResponse{Deleted: deleted, Cancelled: !deleted})
}
