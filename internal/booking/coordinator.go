// Package booking turns an inferred booking request into a committed
// appointment or a conflict with alternatives.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/booking-concierge/internal/appointments"
	"github.com/wolfman30/booking-concierge/internal/calendar"
	"github.com/wolfman30/booking-concierge/internal/extraction"
	"github.com/wolfman30/booking-concierge/internal/nlu"
	"github.com/wolfman30/booking-concierge/internal/schedule"
	"github.com/wolfman30/booking-concierge/internal/tenant"
	"github.com/wolfman30/booking-concierge/pkg/logging"
)

var bookingTracer = otel.Tracer("booking.internal.booking")

// State is the outcome of one message turn.
type State string

const (
	StateNoIntent       State = "no_intent"
	StateIntentDetected State = "intent_detected"
	StateCommitted      State = "committed"
	StateConflict       State = "conflict"
	// StateFailed means a store call failed; nothing was booked.
	StateFailed State = "failed"
)

// ConflictReason says why a ready request was not committed.
type ConflictReason string

const (
	ReasonOccupied     ConflictReason = "occupied"
	ReasonLateConflict ConflictReason = "late_conflict"
	ReasonClosed       ConflictReason = "closed"
	ReasonOutsideHours ConflictReason = "outside_hours"
	ReasonPast         ConflictReason = "past"
)

// Outcome is what the coordinator decided for a message.
type Outcome struct {
	State        State
	Reason       ConflictReason
	Request      extraction.Result
	Appointment  *appointments.Appointment
	Alternatives []schedule.TimeOfDay
	Err          error
}

// Extractor infers booking fields from a transcript.
type Extractor interface {
	Extract(ctx context.Context, history []nlu.Message, today time.Time) extraction.Result
}

// DayLoader loads a tenant calendar day.
type DayLoader interface {
	Day(ctx context.Context, profile *tenant.Profile, date time.Time) (calendar.Day, error)
}

// AppointmentWriter commits appointments.
type AppointmentWriter interface {
	Insert(ctx context.Context, in appointments.NewAppointment) (*appointments.Appointment, error)
}

// Request is one customer turn to coordinate.
type Request struct {
	Tenant         *tenant.Profile
	ConversationID uuid.UUID
	Customer       string
	History        []nlu.Message
	Now            time.Time
}

// Coordinator runs extraction, the slot check and the commit.
type Coordinator struct {
	extractor Extractor
	calendar  DayLoader
	writer    AppointmentWriter
	drafts    DraftStore
	logger    *logging.Logger

	storeTimeout time.Duration
}

// DefaultStoreTimeout bounds each calendar read and appointment insert.
const DefaultStoreTimeout = 5 * time.Second

// NewCoordinator wires the coordinator. drafts may be nil.
func NewCoordinator(extractor Extractor, cal DayLoader, writer AppointmentWriter, drafts DraftStore, logger *logging.Logger) *Coordinator {
	if extractor == nil || cal == nil || writer == nil {
		panic("booking: extractor, calendar and writer are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{extractor: extractor, calendar: cal, writer: writer, drafts: drafts, logger: logger, storeTimeout: DefaultStoreTimeout}
}

// WithStoreTimeout overrides DefaultStoreTimeout. Non-positive values are ignored.
func (c *Coordinator) WithStoreTimeout(d time.Duration) *Coordinator {
	if d > 0 {
		c.storeTimeout = d
	}
	return c
}

func (c *Coordinator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.storeTimeout)
}

func (c *Coordinator) day(ctx context.Context, profile *tenant.Profile, date time.Time) (calendar.Day, error) {
	ctx, cancel := c.storeContext(ctx)
	defer cancel()
	return c.calendar.Day(ctx, profile, date)
}

func (c *Coordinator) insert(ctx context.Context, in appointments.NewAppointment) (*appointments.Appointment, error) {
	ctx, cancel := c.storeContext(ctx)
	defer cancel()
	return c.writer.Insert(ctx, in)
}

// Handle decides the booking outcome for the latest customer message.
func (c *Coordinator) Handle(ctx context.Context, req Request) Outcome {
	ctx, span := bookingTracer.Start(ctx, "booking.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.tenant_id", req.Tenant.ID.String()),
		attribute.String("booking.conversation_id", req.ConversationID.String()),
	)

	out := c.decide(ctx, req)
	span.SetAttributes(attribute.String("booking.state", string(out.State)))
	if out.Err != nil {
		span.RecordError(out.Err)
	}
	c.remember(ctx, req.ConversationID, out)
	return out
}

func (c *Coordinator) decide(ctx context.Context, req Request) Outcome {
	loc := req.Tenant.Location()
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	today := schedule.DateOf(now, loc)

	res := c.extractor.Extract(ctx, req.History, today)
	if !res.HasAppointment {
		return Outcome{State: StateNoIntent, Request: res}
	}
	res = c.loadDraft(ctx, req.ConversationID).Apply(res)
	if !res.ReadyToCreate {
		return Outcome{State: StateIntentDetected, Request: res}
	}

	date, clock := *res.Date, *res.Time
	logger := c.logger.With("tenant_id", req.Tenant.ID, "conversation_id", req.ConversationID, "slot", schedule.FormatDate(date)+" "+clock.String())

	if date.Before(today) {
		return Outcome{State: StateConflict, Reason: ReasonPast, Request: res}
	}

	day, err := c.day(ctx, req.Tenant, date)
	if err != nil {
		logger.Error("failed to load calendar day", "error", err)
		return Outcome{State: StateFailed, Request: res, Err: err}
	}

	var earliest schedule.TimeOfDay
	if date.Equal(today) {
		earliest = schedule.ClockOf(now, loc).Ceil()
	}

	switch {
	case day.Window.Closed:
		return Outcome{State: StateConflict, Reason: ReasonClosed, Request: res}
	case date.Equal(today) && clock < earliest:
		return Outcome{State: StateConflict, Reason: ReasonPast, Request: res, Alternatives: day.Suggestions(earliest)}
	case !day.Bookable(clock):
		return Outcome{State: StateConflict, Reason: ReasonOutsideHours, Request: res, Alternatives: day.Suggestions(earliest)}
	case day.Occupied(clock):
		return Outcome{State: StateConflict, Reason: ReasonOccupied, Request: res, Alternatives: alternatives(day, clock, earliest)}
	}

	appt, err := c.insert(ctx, appointments.NewAppointment{
		TenantID:        req.Tenant.ID,
		CustomerAddress: req.Customer,
		CustomerName:    res.Name,
		Date:            date,
		Time:            clock,
		Service:         res.Service,
	})
	switch {
	case errors.Is(err, appointments.ErrSlotTaken):
		logger.Warn("slot taken concurrently")
		return Outcome{State: StateConflict, Reason: ReasonLateConflict, Request: res, Alternatives: c.lateAlternatives(ctx, req.Tenant, day, clock, earliest)}
	case err != nil:
		logger.Error("failed to commit appointment", "error", err)
		return Outcome{State: StateFailed, Request: res, Err: err}
	}
	logger.Info("appointment committed", "appointment_id", appt.ID)
	return Outcome{State: StateCommitted, Request: res, Appointment: appt}
}

// alternatives prefers free slots after the requested time, then the earliest
// free slots of the day.
func alternatives(day calendar.Day, requested, earliest schedule.TimeOfDay) []schedule.TimeOfDay {
	from := requested
	if from < earliest {
		from = earliest
	}
	if alts := day.Suggestions(from); len(alts) > 0 {
		return alts
	}
	return day.Suggestions(earliest)
}

// lateAlternatives reloads the day so the slot that was just taken, and any
// others, are excluded.
func (c *Coordinator) lateAlternatives(ctx context.Context, profile *tenant.Profile, day calendar.Day, requested, earliest schedule.TimeOfDay) []schedule.TimeOfDay {
	fresh, err := c.day(ctx, profile, day.Date)
	if err != nil {
		c.logger.Warn("failed to reload calendar after late conflict", "tenant_id", profile.ID, "error", err)
		fresh = day
	}
	fresh.Booked = append(fresh.Booked, appointments.Appointment{Time: requested, Status: appointments.StatusPending})
	return alternatives(fresh, requested, earliest)
}

func (c *Coordinator) loadDraft(ctx context.Context, conversationID uuid.UUID) Draft {
	if c.drafts == nil {
		return Draft{}
	}
	d, err := c.drafts.Load(ctx, conversationID)
	if err != nil {
		c.logger.Warn("failed to load booking draft", "conversation_id", conversationID, "error", err)
		return Draft{}
	}
	return d
}

// remember keeps the known fields for the next turn. A commit starts over; a
// conflict forgets only the rejected time.
func (c *Coordinator) remember(ctx context.Context, conversationID uuid.UUID, out Outcome) {
	if c.drafts == nil || out.State == StateNoIntent {
		return
	}
	var err error
	switch out.State {
	case StateCommitted:
		err = c.drafts.Clear(ctx, conversationID)
	case StateConflict:
		d := DraftFrom(out.Request)
		d.Time = ""
		if out.Reason == ReasonClosed || (out.Reason == ReasonPast && len(out.Alternatives) == 0) {
			d.Date = ""
		}
		err = c.drafts.Save(ctx, conversationID, d)
	default:
		err = c.drafts.Save(ctx, conversationID, DraftFrom(out.Request))
	}
	if err != nil {
		c.logger.Warn("failed to update booking draft", "conversation_id", conversationID, "error", err)
	}
}
