package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/booking-concierge/internal/schedule"
)

var appointmentsTracer = otel.Tracer("booking.internal.appointments")

// ErrSlotTaken is returned by Insert when another active appointment already
// holds the slot. The store's unique index is the source of truth.
var ErrSlotTaken = errors.New("appointments: slot already taken")

const (
	activeSlotIndex   = "appointments_active_slot_idx"
	uniqueViolation   = "23505"
	appointmentFields = `id, tenant_id, customer_address, customer_name,
		to_char(appointment_date, 'YYYY-MM-DD'), to_char(appointment_time, 'HH24:MI'),
		service, status, notes, archived, created_at`

	// Text columns are NOT NULL with an empty default, so empty strings are
	// bound as-is.
	insertAppointment = `
		INSERT INTO appointments (id, tenant_id, customer_address, customer_name,
			appointment_date, appointment_time, service, status, notes)
		VALUES ($1, $2, $3, $4, $5::date, $6::time, $7, $8, $9)
		RETURNING created_at`
)

// Querier is the subset of pgxpool.Pool used by the repository.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and writes appointments in Postgres.
type Repository struct {
	db Querier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(db Querier) *Repository {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: db}
}

// ListActiveOn returns the pending and confirmed appointments of a tenant on
// date, ordered by time.
func (r *Repository) ListActiveOn(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.list_active")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.tenant_id", tenantID.String()),
		attribute.String("booking.date", schedule.FormatDate(date)),
	)

	query := `SELECT ` + appointmentFields + `
		FROM appointments
		WHERE tenant_id = $1 AND appointment_date = $2::date AND status IN ('pending', 'confirmed')
		ORDER BY appointment_time`
	out, err := r.list(ctx, query, tenantID, schedule.FormatDate(date))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// ListOn returns every appointment of a tenant on date regardless of status.
func (r *Repository) ListOn(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]Appointment, error) {
	query := `SELECT ` + appointmentFields + `
		FROM appointments
		WHERE tenant_id = $1 AND appointment_date = $2::date
		ORDER BY appointment_time, created_at`
	return r.list(ctx, query, tenantID, schedule.FormatDate(date))
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: query: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate: %w", err)
	}
	return out, nil
}

// Insert writes a pending appointment. A unique violation on the active slot
// index is reported as ErrSlotTaken.
func (r *Repository) Insert(ctx context.Context, in NewAppointment) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.insert")
	defer span.End()

	appt := Appointment{
		ID:              uuid.New(),
		TenantID:        in.TenantID,
		CustomerAddress: in.CustomerAddress,
		CustomerName:    in.CustomerName,
		Date:            in.Date,
		Time:            in.Time,
		Service:         in.Service,
		Status:          StatusPending,
		Notes:           in.Notes,
	}
	span.SetAttributes(
		attribute.String("booking.tenant_id", appt.TenantID.String()),
		attribute.String("booking.slot", appt.Slot()),
	)

	err := r.db.QueryRow(ctx, insertAppointment,
		appt.ID, appt.TenantID, appt.CustomerAddress, appt.CustomerName,
		schedule.FormatDate(appt.Date), appt.Time.String(), appt.Service, string(appt.Status), appt.Notes,
	).Scan(&appt.CreatedAt)
	if err != nil {
		span.RecordError(err)
		if isSlotViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return &appt, nil
}

func isSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return pgErr.ConstraintName == "" || pgErr.ConstraintName == activeSlotIndex
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var (
		a           Appointment
		date, clock string
		status      string
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.CustomerAddress, &a.CustomerName,
		&date, &clock, &a.Service, &status, &a.Notes, &a.Archived, &a.CreatedAt); err != nil {
		return Appointment{}, fmt.Errorf("appointments: scan: %w", err)
	}
	d, err := schedule.ParseDate(date)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: scan date: %w", err)
	}
	t, err := schedule.ParseTimeOfDay(clock)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: scan time: %w", err)
	}
	a.Date, a.Time, a.Status = d, t, Status(status)
	return a, nil
}
