// Package reply builds the reply-generation prompt and the final customer
// text for a booking outcome.
package reply

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/booking-concierge/internal/booking"
	"github.com/wolfman30/booking-concierge/internal/extraction"
	"github.com/wolfman30/booking-concierge/internal/schedule"
	"github.com/wolfman30/booking-concierge/internal/tenant"
)

type sectorFrame struct {
	keywords []string
	framing  string
}

var sectorFrames = []sectorFrame{
	{[]string{"hair", "coiff", "salon", "barber", "barbier"}, "You are the front desk of a hair salon. Be warm and stylish, and help customers pick the right service."},
	{[]string{"beauty", "beauté", "esthéti", "spa", "nail", "ongle", "massage"}, "You are the front desk of a beauty and wellness business. Be calm and reassuring."},
	{[]string{"restaurant", "café", "bistro", "brasserie"}, "You take table reservations for a restaurant. Be friendly and efficient. Treat the service as the number of guests or occasion when given."},
	{[]string{"clinic", "clinique", "médical", "medical", "dentist", "dentiste", "kiné", "physio"}, "You are the reception of a health practice. Be professional and discreet, and never give medical advice."},
	{[]string{"garage", "auto", "mécani", "mechanic"}, "You are the service desk of a car garage. Be clear and practical about services and prices."},
}

const defaultFraming = "You are the front desk of a small local business. Be friendly, helpful and brief."

const styleRules = `Style rules (always apply):
- Reply in the same language the customer writes in.
- Keep the reply under 60 words, like a chat message. No markdown.
- Never ask again for information the customer already gave in this conversation.
- Never say an appointment is booked or confirmed unless the booking status below says it was committed.
- Only quote prices, hours and services listed in the business information.`

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// BuildContext assembles the system instruction for reply generation.
func BuildContext(profile *tenant.Profile, out booking.Outcome) string {
	var b strings.Builder
	b.WriteString(framingFor(profile.Sector))
	b.WriteString("\n\n")

	b.WriteString("Business information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", profile.Name)
	if profile.Address != "" {
		fmt.Fprintf(&b, "- Address: %s\n", profile.Address)
	}
	if profile.Phone != "" {
		fmt.Fprintf(&b, "- Phone: %s\n", profile.Phone)
	}
	b.WriteString("- Opening hours:\n")
	for _, day := range weekOrder {
		window := profile.Hours.ForDay(day)
		if window.Closed {
			fmt.Fprintf(&b, "  %s: closed\n", day)
			continue
		}
		fmt.Fprintf(&b, "  %s: %s-%s\n", day, window.Open, window.Close)
	}
	if len(profile.Prices) > 0 {
		b.WriteString("- Prices:\n")
		names := make([]string, 0, len(profile.Prices))
		for name := range profile.Prices {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %s\n", name, profile.Prices[name])
		}
	}
	if len(profile.PaymentMethods) > 0 {
		fmt.Fprintf(&b, "- Accepted payment: %s\n", strings.Join(profile.PaymentMethods, ", "))
	}
	if strings.TrimSpace(profile.Catalog) != "" {
		b.WriteString("\nCatalog:\n")
		b.WriteString(profile.Catalog)
		b.WriteString("\n")
	}

	if guidance := Guidance(out); guidance != "" {
		b.WriteString("\nBooking status:\n")
		b.WriteString(guidance)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styleRules)
	return b.String()
}

func framingFor(sector string) string {
	s := strings.ToLower(sector)
	if s == "" {
		return defaultFraming
	}
	for _, f := range sectorFrames {
		for _, kw := range f.keywords {
			if strings.Contains(s, kw) {
				return f.framing
			}
		}
	}
	return defaultFraming
}

// Guidance is the outcome-specific instruction. NoIntent has none.
func Guidance(out booking.Outcome) string {
	req := out.Request
	switch out.State {
	case booking.StateCommitted:
		return fmt.Sprintf("The appointment was just committed for %s. Confirm it enthusiastically, mentioning the date, time and service.", slotText(req))
	case booking.StateConflict:
		return conflictGuidance(out)
	case booking.StateIntentDetected:
		names := make([]string, 0, len(req.MissingInfo))
		for _, f := range req.MissingInfo {
			names = append(names, string(f))
		}
		return fmt.Sprintf("The customer wants to book. Ask concisely only for: %s. Do not repeat what is already known (%s).",
			strings.Join(names, ", "), knownText(req))
	case booking.StateFailed:
		return "The booking could not be saved because of a technical problem. Apologise, say nothing was booked, and invite the customer to try again shortly."
	}
	return ""
}

func conflictGuidance(out booking.Outcome) string {
	var reason string
	switch out.Reason {
	case booking.ReasonClosed:
		reason = "The business is closed that day"
	case booking.ReasonOutsideHours:
		reason = "That time is outside opening hours"
	case booking.ReasonPast:
		reason = "That time has already passed"
	case booking.ReasonLateConflict:
		reason = "Another customer booked that slot a moment ago"
	default:
		reason = "That slot is already taken"
	}
	msg := fmt.Sprintf("%s: %s. Politely say it is not available and nothing was booked.", reason, slotText(out.Request))
	if len(out.Alternatives) == 0 {
		return msg + " Ask the customer for another day."
	}
	return msg + " Offer these free times on the same day: " + joinTimes(out.Alternatives) + "."
}

func slotText(req extraction.Result) string {
	var parts []string
	if req.Date != nil {
		parts = append(parts, req.Date.Format("Monday 2 January 2006")+" ("+schedule.FormatDate(*req.Date)+")")
	}
	if req.Time != nil {
		parts = append(parts, "at "+req.Time.String())
	}
	if req.Service != "" {
		parts = append(parts, "for "+req.Service)
	}
	return strings.Join(parts, " ")
}

func knownText(req extraction.Result) string {
	var known []string
	if req.Date != nil {
		known = append(known, "date "+schedule.FormatDate(*req.Date))
	}
	if req.Time != nil {
		known = append(known, "time "+req.Time.String())
	}
	if req.Service != "" {
		known = append(known, "service "+req.Service)
	}
	if req.Name != "" {
		known = append(known, "name "+req.Name)
	}
	if len(known) == 0 {
		return "nothing yet"
	}
	return strings.Join(known, ", ")
}

func joinTimes(ts []schedule.TimeOfDay) string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.String())
	}
	return strings.Join(out, ", ")
}
