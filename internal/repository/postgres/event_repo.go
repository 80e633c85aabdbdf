package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"campusevents/internal/domain"
)

const eventColumns = `id, title, description, category, start_date, end_date,
	location_name, location_address, location_is_virtual, location_virtual_link,
	max_registrations, current_registrations, status, organizer_id, is_public, created_at, updated_at`

type eventRepository struct {
	DB DBTX
}

func NewEventRepository(db DBTX) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	var addrNull, linkNull sql.NullString
	var maxNull sql.NullInt64
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Category, &e.StartDate, &e.EndDate,
		&e.Location.Name, &addrNull, &e.Location.IsVirtual, &linkNull,
		&maxNull, &e.CurrentRegistrations, &e.Status, &e.OrganizerID, &e.IsPublic, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Location.Address = addrNull.String
	e.Location.VirtualLink = linkNull.String
	if maxNull.Valid {
		v := int(maxNull.Int64)
		e.MaxRegistrations = &v
	}
	return e, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `
		INSERT INTO events (title, description, category, start_date, end_date,
			location_name, location_address, location_is_virtual, location_virtual_link,
			max_registrations, current_registrations, status, organizer_id, is_public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13, $14, $15)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		e.Title, e.Description, e.Category, e.StartDate, e.EndDate,
		e.Location.Name, nullString(e.Location.Address), e.Location.IsVirtual, nullString(e.Location.VirtualLink),
		nullInt(e.MaxRegistrations), e.Status, e.OrganizerID, e.IsPublic, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

func (r *eventRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	return r.getOne(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
}

func (r *eventRepository) getOne(ctx context.Context, query, id string) (*domain.Event, error) {
	e, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *eventRepository) Update(ctx context.Context, e *domain.Event) error {
	query := `
		UPDATE events SET
			title = $1, description = $2, category = $3, start_date = $4, end_date = $5,
			location_name = $6, location_address = $7, location_is_virtual = $8, location_virtual_link = $9,
			max_registrations = $10, status = $11, is_public = $12, updated_at = $13
		WHERE id = $14
	`
	result, err := r.DB.ExecContext(ctx, query,
		e.Title, e.Description, e.Category, e.StartDate, e.EndDate,
		e.Location.Name, nullString(e.Location.Address), e.Location.IsVirtual, nullString(e.Location.VirtualLink),
		nullInt(e.MaxRegistrations), e.Status, e.IsPublic, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) UpdateStatus(ctx context.Context, id string, from, to domain.EventStatus) (bool, error) {
	query := `UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	result, err := r.DB.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *eventRepository) IncrementRegistrations(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE events SET current_registrations = current_registrations + 1, updated_at = NOW()
		WHERE id = $1 AND (max_registrations IS NULL OR current_registrations < max_registrations)
	`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *eventRepository) DecrementRegistrations(ctx context.Context, id string) error {
	query := `
		UPDATE events SET current_registrations = current_registrations - 1, updated_at = NOW()
		WHERE id = $1 AND current_registrations > 0
	`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM events WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *eventRepository) ListByOrganizerID(ctx context.Context, organizerID string) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE organizer_id = $1 ORDER BY start_date DESC`
	return r.list(ctx, query, organizerID)
}

func (r *eventRepository) ListPublic(ctx context.Context, params domain.PaginationParams) ([]*domain.Event, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM events WHERE is_public = TRUE AND status IN ('published', 'in_progress')`
	if err := r.DB.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE is_public = TRUE AND status IN ('published', 'in_progress')
		ORDER BY start_date ASC
		LIMIT $1 OFFSET $2`
	events, err := r.list(ctx, query, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *eventRepository) ListDueToStart(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE status = 'published' AND start_date <= $1
		ORDER BY start_date ASC`
	return r.list(ctx, query, now)
}

func (r *eventRepository) ListDueToComplete(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE status = 'in_progress' AND end_date < $1
		ORDER BY end_date ASC`
	return r.list(ctx, query, now)
}

func (r *eventRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]*domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
