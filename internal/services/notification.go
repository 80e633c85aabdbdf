package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campusevents/internal/domain"
)

type notificationService struct {
	notificationRepo domain.NotificationRepository
	contextTimeout   time.Duration
}

func NewNotificationService(notificationRepo domain.NotificationRepository, timeout time.Duration) domain.NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		contextTimeout:   timeout,
	}
}

func (s *notificationService) List(ctx context.Context, userID string, status *domain.NotificationStatus, params domain.PaginationParams) ([]*domain.Notification, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if status != nil && !status.Valid() {
		return nil, 0, domain.NewValidationError("unknown notification status", "status")
	}
	params = params.Normalize()
	list, total, err := s.notificationRepo.ListByUserID(ctx, userID, status, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return list, total, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	n, err := s.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) (*domain.Notification, error) {
	return s.setStatus(ctx, id, userID, domain.NotificationStatusRead)
}

func (s *notificationService) Archive(ctx context.Context, id, userID string) (*domain.Notification, error) {
	return s.setStatus(ctx, id, userID, domain.NotificationStatusArchived)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	n, err := s.notificationRepo.MarkAllRead(ctx, userID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

func (s *notificationService) setStatus(ctx context.Context, id, userID string, status domain.NotificationStatus) (*domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	n, err := s.notificationRepo.SetStatus(ctx, id, userID, status, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("set notification status: %w", err)
	}
	return n, nil
}
