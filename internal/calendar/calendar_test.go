package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-concierge/internal/appointments"
	"github.com/wolfman30/booking-concierge/internal/schedule"
	"github.com/wolfman30/booking-concierge/internal/tenant"
)

type stubBookings struct {
	booked []appointments.Appointment
	err    error
	calls  int
}

func (s *stubBookings) ListActiveOn(context.Context, uuid.UUID, time.Time) ([]appointments.Appointment, error) {
	s.calls++
	return s.booked, s.err
}

func booking(clock string) appointments.Appointment {
	return appointments.Appointment{Time: schedule.MustParseTimeOfDay(clock), Status: appointments.StatusPending}
}

func times(in []schedule.TimeOfDay) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		out = append(out, t.String())
	}
	return out
}

// 2025-06-10 is a Tuesday.
var tuesday = schedule.MustParseDate("2025-06-10")

func TestDefaultWindowSlots(t *testing.T) {
	day := Day{Date: tuesday, Window: tenant.WeeklyHours(nil).ForDay(tuesday.Weekday())}
	slots := day.Slots()
	require.Len(t, slots, 18)
	assert.Equal(t, "09:00", slots[0].String())
	assert.Equal(t, "17:30", slots[len(slots)-1].String())
}

func TestConflictSuggestionsExcludeBookedSlots(t *testing.T) {
	profile := &tenant.Profile{ID: uuid.New(), Hours: tenant.WeeklyHours{
		"tuesday": {IsOpen: true, Open: "09:00", Close: "18:00"},
	}}
	source := &stubBookings{booked: []appointments.Appointment{booking("14:00"), booking("14:30")}}

	day, err := New(source).Day(context.Background(), profile, tuesday)
	require.NoError(t, err)

	requested := schedule.MustParseTimeOfDay("14:00")
	assert.True(t, day.Occupied(requested))

	suggestions := day.Suggestions(requested)
	assert.Equal(t, []string{"15:00", "15:30", "16:00", "16:30", "17:00"}, times(suggestions))
	assert.NotContains(t, times(day.FreeSlots()), "14:00")
	assert.Len(t, day.FreeSlots(), 16, "full list stays available for conflict checks")
}

func TestSuggestionsFromStartOfDay(t *testing.T) {
	day := Day{
		Date:   tuesday,
		Window: tenant.DaySchedule{Open: schedule.MustParseTimeOfDay("09:00"), Close: schedule.MustParseTimeOfDay("18:00")},
		Booked: []appointments.Appointment{booking("09:30")},
	}
	assert.Equal(t, []string{"09:00", "10:00", "10:30", "11:00", "11:30"}, times(day.Suggestions(0)))
}

func TestCancelledBookingDoesNotOccupy(t *testing.T) {
	cancelled := booking("10:00")
	cancelled.Status = appointments.StatusCancelled
	day := Day{Window: tenant.DaySchedule{Open: schedule.MustParseTimeOfDay("09:00"), Close: schedule.MustParseTimeOfDay("12:00")}, Booked: []appointments.Appointment{cancelled}}
	assert.False(t, day.Occupied(schedule.MustParseTimeOfDay("10:00")))
}

func TestClosedDayHasNoSlotsAndSkipsStore(t *testing.T) {
	profile := &tenant.Profile{ID: uuid.New(), Hours: tenant.WeeklyHours{
		"mardi": {IsOpen: false},
	}}
	source := &stubBookings{}

	day, err := New(source).Day(context.Background(), profile, tuesday)
	require.NoError(t, err)
	assert.Empty(t, day.Slots())
	assert.Empty(t, day.Suggestions(0))
	assert.False(t, day.Bookable(schedule.MustParseTimeOfDay("10:00")))
	assert.Zero(t, source.calls)
}

func TestUnreadableHoursFailClosed(t *testing.T) {
	profile := &tenant.Profile{ID: uuid.New(), Hours: tenant.WeeklyHours{
		"dinsdag": {IsOpen: true, Open: "09:00", Close: "18:00"},
	}}
	day, err := New(&stubBookings{}).Day(context.Background(), profile, tuesday)
	require.NoError(t, err)
	assert.True(t, day.Window.Closed)
	assert.Empty(t, day.FreeSlots())
}

func TestBookable(t *testing.T) {
	day := Day{Window: tenant.DaySchedule{Open: schedule.MustParseTimeOfDay("09:00"), Close: schedule.MustParseTimeOfDay("12:00")}}
	assert.True(t, day.Bookable(schedule.MustParseTimeOfDay("09:00")))
	assert.True(t, day.Bookable(schedule.MustParseTimeOfDay("11:30")))
	assert.False(t, day.Bookable(schedule.MustParseTimeOfDay("12:00")))
	assert.False(t, day.Bookable(schedule.MustParseTimeOfDay("08:30")))
	assert.False(t, day.Bookable(schedule.MustParseTimeOfDay("10:15")))
}

func TestLoadBookingsWrapsErrors(t *testing.T) {
	boom := errors.New("timeout")
	_, err := New(&stubBookings{err: boom}).LoadBookings(context.Background(), uuid.New(), tuesday)
	assert.ErrorIs(t, err, boom)
}
