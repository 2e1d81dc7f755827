// Package appointments persists bookings and enforces one active appointment
// per tenant slot.
package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/booking-concierge/internal/schedule"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Active reports whether the status occupies its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Appointment is a booked slot.
type Appointment struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	CustomerAddress string
	CustomerName    string
	Date            time.Time // midnight UTC of the calendar date
	Time            schedule.TimeOfDay
	Service         string
	Status          Status
	Notes           string
	Archived        bool
	CreatedAt       time.Time
}

// Slot returns the slot key of the appointment.
func (a Appointment) Slot() string {
	return schedule.FormatDate(a.Date) + " " + a.Time.String()
}

// NewAppointment carries the fields written on commit. Status is always pending.
type NewAppointment struct {
	TenantID        uuid.UUID
	CustomerAddress string
	CustomerName    string
	Date            time.Time
	Time            schedule.TimeOfDay
	Service         string
	Notes           string
}
