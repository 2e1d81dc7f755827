package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/booking-concierge/internal/schedule"
)

// ErrInvalidResult is returned when model output does not match the schema.
var ErrInvalidResult = errors.New("extraction: invalid result")

// Field names a booking field the customer may still have to provide.
type Field string

const (
	FieldDate    Field = "date"
	FieldTime    Field = "time"
	FieldService Field = "service"
	FieldName    Field = "name"
)

var fieldOrder = []Field{FieldDate, FieldTime, FieldService, FieldName}

// ParseField validates a missing-field name.
func ParseField(raw string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range fieldOrder {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// Result is the booking information inferred from one conversation turn.
type Result struct {
	HasAppointment bool
	ReadyToCreate  bool
	Date           *time.Time
	Time           *schedule.TimeOfDay
	Service        string
	Name           string
	MissingInfo    []Field
	Confidence     float64
}

// NoIntent is the fail-soft result.
func NoIntent() Result {
	return Result{}
}

// Missing reports whether f is listed in MissingInfo.
func (r Result) Missing(f Field) bool {
	for _, m := range r.MissingInfo {
		if m == f {
			return true
		}
	}
	return false
}

// Has reports whether f carries a value.
func (r Result) Has(f Field) bool {
	switch f {
	case FieldDate:
		return r.Date != nil
	case FieldTime:
		return r.Time != nil
	case FieldService:
		return r.Service != ""
	case FieldName:
		return r.Name != ""
	}
	return false
}

// Normalize recomputes readiness and the missing list from the fields
// present. Date and time are always required; service and name stay listed
// only when the model asked for them and they are still absent.
func (r Result) Normalize() Result {
	if !r.HasAppointment {
		r.ReadyToCreate = false
		r.MissingInfo = nil
		return r
	}
	asked := make(map[Field]bool, len(r.MissingInfo))
	for _, f := range r.MissingInfo {
		asked[f] = true
	}
	asked[FieldDate], asked[FieldTime] = true, true

	missing := make([]Field, 0, len(fieldOrder))
	for _, f := range fieldOrder {
		if asked[f] && !r.Has(f) {
			missing = append(missing, f)
		}
	}
	r.MissingInfo = missing
	r.ReadyToCreate = r.Date != nil && r.Time != nil
	return r
}

// wireResult is the JSON object the model must return.
type wireResult struct {
	HasAppointment *bool    `json:"hasAppointment"`
	ReadyToCreate  *bool    `json:"readyToCreate"`
	Date           *string  `json:"date"`
	Time           *string  `json:"time"`
	Service        *string  `json:"service"`
	Name           *string  `json:"name"`
	MissingInfo    []string `json:"missingInfo"`
	Confidence     *float64 `json:"confidence"`
}

// Parse decodes and validates raw model output. Markdown fences and prose
// around the object are tolerated. Dates are resolved against today; times off
// the slot grid are dropped as if missing.
func Parse(raw string, today time.Time) (Result, error) {
	body := extractJSONObject(stripCodeFence(raw))
	if body == "" {
		return NoIntent(), fmt.Errorf("%w: no json object", ErrInvalidResult)
	}

	var w wireResult
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return NoIntent(), fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if w.HasAppointment == nil {
		return NoIntent(), fmt.Errorf("%w: hasAppointment missing", ErrInvalidResult)
	}
	if w.Confidence == nil || *w.Confidence < 0 || *w.Confidence > 1 {
		return NoIntent(), fmt.Errorf("%w: confidence out of range", ErrInvalidResult)
	}

	res := Result{
		HasAppointment: *w.HasAppointment,
		Service:        text(w.Service),
		Name:           text(w.Name),
		Confidence:     *w.Confidence,
	}
	for _, m := range w.MissingInfo {
		f, ok := ParseField(m)
		if !ok {
			return NoIntent(), fmt.Errorf("%w: unknown missingInfo value %q", ErrInvalidResult, m)
		}
		res.MissingInfo = append(res.MissingInfo, f)
	}
	if d := text(w.Date); d != "" {
		if resolved, ok := ResolveDate(d, today); ok {
			res.Date = &resolved
		}
	}
	if t := text(w.Time); t != "" {
		if clock, err := schedule.ParseTimeOfDay(t); err == nil && clock.Aligned() {
			res.Time = &clock
		}
	}
	return res.Normalize(), nil
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if strings.EqualFold(v, "null") {
		return ""
	}
	return v
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.Contains(text[:nl], "{") {
		text = text[nl+1:] // drop the language tag line
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
