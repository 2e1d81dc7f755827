// Package tenant exposes the read-only business profile of a tenant: routing
// key, weekly hours, prices and catalog.
package tenant

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/booking-concierge/internal/schedule"
)

// Default operating window used when a tenant has no hours for a weekday.
var (
	DefaultOpen  = schedule.NewTimeOfDay(9, 0)
	DefaultClose = schedule.NewTimeOfDay(18, 0)
)

// PriceList maps a service name to its displayed price. Stored values may be
// JSON strings or numbers; both render as text.
type PriceList map[string]string

func (l *PriceList) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(PriceList, len(raw))
	for name, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case len(v) == 0 || bytes.Equal(v, []byte("null")):
			continue
		case v[0] == '"':
			var text string
			if err := json.Unmarshal(v, &text); err != nil {
				return err
			}
			out[name] = text
		default:
			out[name] = string(v)
		}
	}
	*l = out
	return nil
}

// DayHours is one entry of the weekly hours template.
type DayHours struct {
	IsOpen bool   `json:"is_open"`
	Open   string `json:"open"`  // "09:00"
	Close  string `json:"close"` // "18:00"
}

// WeeklyHours maps weekday names to hours. Keys may be in English, French or
// Spanish ("monday", "lundi", "lunes"), any case.
type WeeklyHours map[string]DayHours

// DaySchedule is the resolved opening window for one weekday.
type DaySchedule struct {
	Closed bool
	Open   schedule.TimeOfDay
	Close  schedule.TimeOfDay
}

// Profile is the tenant data consumed by the pipeline.
type Profile struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Sector         string            `json:"sector"`
	Address        string            `json:"address"`
	Phone          string            `json:"phone"`
	RoutingKey     string            `json:"routing_key"`
	Timezone       string            `json:"timezone"`
	Hours          WeeklyHours       `json:"hours"`
	Prices         PriceList         `json:"prices"`
	Catalog        string            `json:"catalog"`
	PaymentMethods []string          `json:"payment_methods"`
}

// Location returns the tenant's timezone, UTC when unset or unknown.
func (p *Profile) Location() *time.Location {
	if p == nil || strings.TrimSpace(p.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ForDay resolves the opening window for a weekday.
//
// No template at all yields the default window. A template entry for the day
// wins. When the day is missing and the template contains keys that are not
// recognizable weekday names, the day is treated as closed: the tenant's
// hours exist but cannot be read, so nothing is bookable.
func (w WeeklyHours) ForDay(day time.Weekday) DaySchedule {
	if len(w) == 0 {
		return DaySchedule{Open: DefaultOpen, Close: DefaultClose}
	}
	unreadable := false
	for name, hours := range w {
		wd, ok := schedule.ParseWeekday(name)
		if !ok {
			unreadable = true
			continue
		}
		if wd != day {
			continue
		}
		return hours.schedule()
	}
	if unreadable {
		return DaySchedule{Closed: true}
	}
	return DaySchedule{Open: DefaultOpen, Close: DefaultClose}
}

func (h DayHours) schedule() DaySchedule {
	if !h.IsOpen {
		return DaySchedule{Closed: true}
	}
	open, err := schedule.ParseTimeOfDay(h.Open)
	if err != nil {
		return DaySchedule{Closed: true}
	}
	closeAt, err := schedule.ParseTimeOfDay(h.Close)
	if err != nil || closeAt <= open {
		return DaySchedule{Closed: true}
	}
	return DaySchedule{Open: open, Close: closeAt}
}

var routingDigitsRe = regexp.MustCompile(`\d+`)

// NormalizeRoutingKey reduces a channel address to the form stored on the
// tenant: digits only for phone-like keys ("whatsapp:+33 6 12" -> "33612"),
// lowercase otherwise.
func NormalizeRoutingKey(raw string) string {
	key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "whatsapp:")
	if looksLikePhone(key) {
		return strings.Join(routingDigitsRe.FindAllString(key, -1), "")
	}
	return key
}

func looksLikePhone(raw string) bool {
	if raw == "" {
		return false
	}
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return true
}
