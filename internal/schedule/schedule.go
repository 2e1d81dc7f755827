// Package schedule holds the calendar primitives shared by the booking
// pipeline: calendar dates, times of day and the slot grid.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// SlotStep is the granularity of bookable slots.
const SlotStep = 30 * time.Minute

// ErrInvalidTime is returned when a time of day cannot be parsed.
var ErrInvalidTime = errors.New("schedule: invalid time of day")

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String renders the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Add shifts the time by d, truncated to whole minutes.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

// Aligned reports whether t falls on the slot grid.
func (t TimeOfDay) Aligned() bool {
	return int(t)%int(SlotStep/time.Minute) == 0
}

// Ceil rounds t up to the next slot boundary.
func (t TimeOfDay) Ceil() TimeOfDay {
	step := TimeOfDay(SlotStep / time.Minute)
	if r := t % step; r != 0 {
		return t + step - r
	}
	return t
}

// ClockOf returns the wall-clock time of instant in loc.
func ClockOf(instant time.Time, loc *time.Location) TimeOfDay {
	if loc != nil {
		instant = instant.In(loc)
	}
	return NewTimeOfDay(instant.Hour(), instant.Minute())
}

// On returns the instant at t on the given date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

var clockRe = regexp.MustCompile(`^(\d{1,2})\s*(?:[:h.]\s*(\d{2}))?\s*(h|am|pm|a\.m\.|p\.m\.)?$`)

// ParseTimeOfDay accepts 24h and 12h clock spellings: "14:00", "14h", "14h30",
// "14.30", "2pm", "2:30 pm". A bare hour ("9") is read as 24h.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, ErrInvalidTime
	}
	if len(s) == 8 && s[2] == ':' && s[5] == ':' {
		s = s[:5] // "14:00:00" from Postgres
	}
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "pm", "p.m.":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
		}
		if hour != 12 {
			hour += 12
		}
	case "am", "a.m.":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
		}
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	return NewTimeOfDay(hour, minute), nil
}

// MustParseTimeOfDay is ParseTimeOfDay for constants and tests.
func MustParseTimeOfDay(raw string) TimeOfDay {
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses an ISO calendar date into midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid date %q: %w", raw, err)
	}
	return d, nil
}

// MustParseDate is ParseDate for constants and tests.
func MustParseDate(raw string) time.Time {
	d, err := ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf truncates an instant to its calendar date (midnight UTC), as seen in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date in DateLayout.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "dimanche": time.Sunday, "domingo": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "lundi": time.Monday, "lunes": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday, "mardi": time.Tuesday, "martes": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "mercredi": time.Wednesday, "miercoles": time.Wednesday, "miércoles": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday, "jeudi": time.Thursday, "jueves": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "vendredi": time.Friday, "viernes": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "samedi": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday,
}

// ParseWeekday maps a localized weekday name to time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	return day, ok
}
