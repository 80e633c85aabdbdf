package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"campusevents/internal/domain"
	"campusevents/internal/metrics"
)

// DispatcherConfig sizes the notice queue and worker pool.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// RatePerSecond caps outgoing emails across all workers. Zero or less disables the cap.
	RatePerSecond float64
	// Timeout bounds the delivery of a single notice.
	Timeout time.Duration
	// DrainTimeout bounds delivery of notices still queued when Run is stopped.
	DrainTimeout time.Duration
}

// Dispatcher delivers notices in the background. It implements domain.Dispatcher.
type Dispatcher struct {
	cfg           DispatcherConfig
	queue         chan domain.Notice
	users         domain.UserRepository
	notifications domain.NotificationRepository
	email         domain.EmailService
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// NewDispatcher returns a Dispatcher. Nothing is delivered until Run is called.
func NewDispatcher(cfg DispatcherConfig, users domain.UserRepository, notifications domain.NotificationRepository, email domain.EmailService, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Dispatcher{
		cfg:           cfg,
		queue:         make(chan domain.Notice, cfg.QueueSize),
		users:         users,
		notifications: notifications,
		email:         email,
		limiter:       rate.NewLimiter(limit, 1),
		logger:        logger,
	}
}

// Dispatch enqueues n without blocking. When the queue is full the notice is dropped.
func (d *Dispatcher) Dispatch(n domain.Notice) {
	select {
	case d.queue <- n:
		metrics.NoticesDispatched.WithLabelValues(string(n.Kind)).Inc()
	default:
		metrics.NoticesDropped.Inc()
		d.logger.Warn("notice queue full, dropping notice",
			"kind", n.Kind,
			"recipient_id", n.RecipientID,
			"event_id", n.Data.EventID,
		)
	}
}

// Run starts the worker pool and blocks until ctx is cancelled and every worker has returned.
// Notices still queued at that point are delivered within DrainTimeout; the rest are dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()
	d.drain(ctx)
	return nil
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			// an accepted notice finishes even if shutdown starts mid-delivery
			d.deliver(context.WithoutCancel(ctx), n)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) (attempted, dropped int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.DrainTimeout)
	defer cancel()
	for {
		select {
		case n := <-d.queue:
			if ctx.Err() != nil {
				dropped++
				metrics.NoticesDropped.Inc()
				continue
			}
			d.deliver(ctx, n)
			attempted++
		default:
			if dropped > 0 {
				d.logger.Warn("dropped queued notices on shutdown", "attempted", attempted, "dropped", dropped)
			} else if attempted > 0 {
				d.logger.Info("drained queued notices on shutdown", "attempted", attempted)
			}
			return attempted, dropped
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notice) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if n.InApp {
		if err := d.storeNotification(ctx, n); err != nil {
			metrics.NoticesFailed.WithLabelValues("in_app").Inc()
			d.logger.Error("failed to store notification", "kind", n.Kind, "recipient_id", n.RecipientID, "error", err)
		}
	}
	if n.Email {
		if err := d.sendEmail(ctx, n); err != nil {
			metrics.NoticesFailed.WithLabelValues("email").Inc()
			d.logger.Error("failed to send notice email", "kind", n.Kind, "recipient_id", n.RecipientID, "error", err)
		}
	}
}

func (d *Dispatcher) storeNotification(ctx context.Context, n domain.Notice) error {
	notification := &domain.Notification{
		UserID:    n.RecipientID,
		Kind:      n.Kind,
		Title:     n.Title,
		Message:   n.Message,
		ActionURL: n.Data.ActionURL,
		Status:    domain.NotificationStatusUnread,
		CreatedAt: time.Now(),
	}
	if n.Data.EventID != "" {
		eventID := n.Data.EventID
		notification.EventID = &eventID
	}
	if err := d.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, n domain.Notice) error {
	user, err := d.users.GetByID(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}
	if user.Email == "" {
		d.logger.Warn("recipient has no email address, skipping", "kind", n.Kind, "recipient_id", n.RecipientID)
		return nil
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}
	err = d.email.SendNotice(ctx, n.Kind, &domain.NoticeEmailData{
		Email:         user.Email,
		RecipientName: user.DisplayName(),
		Title:         n.Title,
		Message:       n.Message,
		NoticeData:    n.Data,
	})
	if err != nil {
		return err
	}
	metrics.EmailsSent.Inc()
	return nil
}
