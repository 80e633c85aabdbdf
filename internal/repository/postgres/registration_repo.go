package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"campusevents/internal/domain"
)

const registrationColumns = `id, event_id, user_id, status, registered_at, cancelled_at, attended_at, waitlist_position, created_at, updated_at`

type registrationRepository struct {
	DB DBTX
}

func NewRegistrationRepository(db DBTX) domain.RegistrationRepository {
	return &registrationRepository{
		DB: db,
	}
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var cancelledAt, attendedAt sql.NullTime
	var position sql.NullInt64
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.RegisteredAt,
		&cancelledAt, &attendedAt, &position, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		reg.CancelledAt = &t
	}
	if attendedAt.Valid {
		t := attendedAt.Time
		reg.AttendedAt = &t
	}
	if position.Valid {
		p := int(position.Int64)
		reg.WaitlistPosition = &p
	}
	return reg, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (event_id, user_id, status, registered_at, waitlist_position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		reg.EventID, reg.UserID, reg.Status, reg.RegisteredAt, nullInt(reg.WaitlistPosition), reg.CreatedAt, reg.UpdatedAt,
	).Scan(&reg.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRegistrationExists
		}
		return err
	}
	return nil
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *registrationRepository) GetActiveByEventAndUser(ctx context.Context, eventID, userID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND user_id = $2 AND status IN ('registered', 'waitlisted')
		LIMIT 1`
	return r.getOne(ctx, query, eventID, userID)
}

func (r *registrationRepository) GetLatestCancelledByEventAndUser(ctx context.Context, eventID, userID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND user_id = $2 AND status = 'cancelled'
		ORDER BY updated_at DESC
		LIMIT 1`
	return r.getOne(ctx, query, eventID, userID)
}

func (r *registrationRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Registration, error) {
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) Update(ctx context.Context, reg *domain.Registration) error {
	query := `
		UPDATE registrations
		SET status = $1, registered_at = $2, cancelled_at = $3, attended_at = $4, waitlist_position = $5, updated_at = $6
		WHERE id = $7
	`
	result, err := r.DB.ExecContext(ctx, query,
		reg.Status, reg.RegisteredAt, nullTime(reg.CancelledAt), nullTime(reg.AttendedAt),
		nullInt(reg.WaitlistPosition), reg.UpdatedAt, reg.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRegistrationExists
		}
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *registrationRepository) UpdateWaitlistPosition(ctx context.Context, id string, position int) error {
	query := `UPDATE registrations SET waitlist_position = $1, updated_at = NOW() WHERE id = $2 AND status = 'waitlisted'`
	result, err := r.DB.ExecContext(ctx, query, position, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *registrationRepository) FirstWaitlisted(ctx context.Context, eventID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND status = 'waitlisted'
		ORDER BY waitlist_position ASC NULLS LAST, registered_at ASC
		LIMIT 1`
	return r.getOne(ctx, query, eventID)
}

func (r *registrationRepository) ListWaitlisted(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND status = 'waitlisted'
		ORDER BY registered_at ASC, id ASC`
	return r.list(ctx, query, eventID)
}

func (r *registrationRepository) MaxWaitlistPosition(ctx context.Context, eventID string) (int, error) {
	query := `SELECT COALESCE(MAX(waitlist_position), 0) FROM registrations WHERE event_id = $1 AND status = 'waitlisted'`
	var max int
	if err := r.DB.QueryRowContext(ctx, query, eventID).Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

func (r *registrationRepository) ListByEventID(ctx context.Context, eventID string, status *domain.RegistrationStatus) ([]*domain.Registration, error) {
	if status != nil {
		query := `SELECT ` + registrationColumns + `
			FROM registrations
			WHERE event_id = $1 AND status = $2
			ORDER BY registered_at ASC`
		return r.list(ctx, query, eventID, *status)
	}
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1
		ORDER BY registered_at ASC`
	return r.list(ctx, query, eventID)
}

func (r *registrationRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE user_id = $1
		ORDER BY registered_at DESC`
	return r.list(ctx, query, userID)
}

func (r *registrationRepository) CountByEventID(ctx context.Context, eventID string) (int, error) {
	query := `SELECT COUNT(*) FROM registrations WHERE event_id = $1`
	var n int
	if err := r.DB.QueryRowContext(ctx, query, eventID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *registrationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Registration, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]*domain.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}
