package controllers

import (
	"context"
	"log/slog"
	"net/http"

	"campusevents/internal/delivery/http/helpers"
	"campusevents/internal/delivery/http/middleware"
	"campusevents/internal/domain"
)

// UnreadCountResponse is the data payload of GET /me/notifications/unread-count.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse is the data payload of POST /me/notifications/read-all.
type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}

type NotificationController struct {
	Logger  *slog.Logger
	Service domain.NotificationService
}

func NewNotificationController(logger *slog.Logger, svc domain.NotificationService) *NotificationController {
	return &NotificationController{Logger: logger, Service: svc}
}

// List godoc
// @Summary List my notifications
// @Description In-app notifications of the authenticated user, newest first. Archived ones are hidden unless status=archived.
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param status query string false "unread, read or archived"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data: {items, pagination}"
// @Failure 400 {object} helpers.APIResponse "code: validation_error"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /me/notifications [get]
func (c *NotificationController) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	var status *domain.NotificationStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.NotificationStatus(s)
		status = &st
	}
	params := helpers.ParsePagination(r)
	items, total, err := c.Service.List(r.Context(), principal.UserID, status, params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if items == nil {
		items = []*domain.Notification{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, helpers.NewListResponse(items, params, total))
}

// UnreadCount godoc
// @Summary Count unread notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data: {unread}"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /me/notifications/unread-count [get]
func (c *NotificationController) UnreadCount(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	n, err := c.Service.UnreadCount(r.Context(), principal.UserID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, UnreadCountResponse{Unread: n})
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param notificationID path string true "Notification ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data is the notification"
// @Failure 400 {object} helpers.APIResponse "code: bad_request"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "code: not_found"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /me/notifications/{notificationID}/read [post]
func (c *NotificationController) MarkRead(w http.ResponseWriter, r *http.Request) {
	c.setStatus(w, r, c.Service.MarkRead)
}

// Archive godoc
// @Summary Archive a notification
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param notificationID path string true "Notification ID (UUID)"
// @Success 200 {object} helpers.APIResponse "data is the notification"
// @Failure 400 {object} helpers.APIResponse "code: bad_request"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "code: not_found"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /me/notifications/{notificationID}/archive [post]
func (c *NotificationController) Archive(w http.ResponseWriter, r *http.Request) {
	c.setStatus(w, r, c.Service.Archive)
}

func (c *NotificationController) setStatus(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, userID string) (*domain.Notification, error)) {
	id, ok := helpers.PathUUID(w, r, "notificationID")
	if !ok {
		return
	}
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	n, err := fn(r.Context(), id, principal.UserID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, n)
}

// MarkAllRead godoc
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data: {updated}"
// @Failure 401 {object} helpers.APIResponse "code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "code: internal_error"
// @Router /me/notifications/read-all [post]
func (c *NotificationController) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	n, err := c.Service.MarkAllRead(r.Context(), principal.UserID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, MarkAllReadResponse{Updated: n})
}
