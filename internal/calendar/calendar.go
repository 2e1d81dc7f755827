// Package calendar computes free and occupied slots for a tenant day.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/booking-concierge/internal/appointments"
	"github.com/wolfman30/booking-concierge/internal/schedule"
	"github.com/wolfman30/booking-concierge/internal/tenant"
)

// MaxSuggestions caps alternative slots offered in a reply.
const MaxSuggestions = 5

// BookingSource loads the active appointments of a tenant day.
type BookingSource interface {
	ListActiveOn(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]appointments.Appointment, error)
}

// Calendar reads tenant days from the appointment store.
type Calendar struct {
	bookings BookingSource
}

// New creates a Calendar.
func New(bookings BookingSource) *Calendar {
	if bookings == nil {
		panic("calendar: booking source required")
	}
	return &Calendar{bookings: bookings}
}

// LoadBookings returns the pending and confirmed appointments of a tenant on
// date, ordered by time.
func (c *Calendar) LoadBookings(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]appointments.Appointment, error) {
	booked, err := c.bookings.ListActiveOn(ctx, tenantID, date)
	if err != nil {
		return nil, fmt.Errorf("calendar: load bookings: %w", err)
	}
	return booked, nil
}

// Day loads the opening window and bookings of a tenant for date. Closed days
// skip the store.
func (c *Calendar) Day(ctx context.Context, profile *tenant.Profile, date time.Time) (Day, error) {
	day := Day{Date: date, Window: profile.Hours.ForDay(date.Weekday())}
	if day.Window.Closed {
		return day, nil
	}
	booked, err := c.LoadBookings(ctx, profile.ID, date)
	if err != nil {
		return Day{}, err
	}
	day.Booked = booked
	return day, nil
}

// Day is one tenant calendar day.
type Day struct {
	Date   time.Time
	Window tenant.DaySchedule
	Booked []appointments.Appointment
}

// Slots enumerates every slot start in the opening window. A slot fits only
// when it ends at or before closing time.
func (d Day) Slots() []schedule.TimeOfDay {
	if d.Window.Closed {
		return nil
	}
	var out []schedule.TimeOfDay
	for t := d.Window.Open; t.Add(schedule.SlotStep) <= d.Window.Close; t = t.Add(schedule.SlotStep) {
		out = append(out, t)
	}
	return out
}

// Bookable reports whether t is a slot inside the opening window.
func (d Day) Bookable(t schedule.TimeOfDay) bool {
	if d.Window.Closed || !t.Aligned() {
		return false
	}
	return t >= d.Window.Open && t.Add(schedule.SlotStep) <= d.Window.Close
}

// Occupied reports whether an active booking already holds t.
func (d Day) Occupied(t schedule.TimeOfDay) bool {
	for _, b := range d.Booked {
		if b.Time == t && b.Status.Active() {
			return true
		}
	}
	return false
}

// FreeSlots is the full ordered list of unoccupied slots.
func (d Day) FreeSlots() []schedule.TimeOfDay {
	var out []schedule.TimeOfDay
	for _, t := range d.Slots() {
		if !d.Occupied(t) {
			out = append(out, t)
		}
	}
	return out
}

// Suggestions returns at most MaxSuggestions free slots starting at or after
// notBefore.
func (d Day) Suggestions(notBefore schedule.TimeOfDay) []schedule.TimeOfDay {
	var out []schedule.TimeOfDay
	for _, t := range d.FreeSlots() {
		if t < notBefore {
			continue
		}
		out = append(out, t)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}
