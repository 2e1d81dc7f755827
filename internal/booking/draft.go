package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-concierge/internal/extraction"
	"github.com/wolfman30/booking-concierge/internal/schedule"
)

const draftTTL = 24 * time.Hour

// Draft holds the booking fields a customer has supplied so far.
type Draft struct {
	Date    string `json:"date,omitempty"`
	Time    string `json:"time,omitempty"`
	Service string `json:"service,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Empty reports whether nothing is known yet.
func (d Draft) Empty() bool {
	return d == Draft{}
}

// Apply fills fields the latest extraction left out with earlier values.
// Values present in res always win.
func (d Draft) Apply(res extraction.Result) extraction.Result {
	if res.Date == nil && d.Date != "" {
		if date, err := schedule.ParseDate(d.Date); err == nil {
			res.Date = &date
		}
	}
	if res.Time == nil && d.Time != "" {
		if clock, err := schedule.ParseTimeOfDay(d.Time); err == nil {
			res.Time = &clock
		}
	}
	if res.Service == "" {
		res.Service = d.Service
	}
	if res.Name == "" {
		res.Name = d.Name
	}
	return res.Normalize()
}

// DraftFrom captures the fields known in res.
func DraftFrom(res extraction.Result) Draft {
	d := Draft{Service: res.Service, Name: res.Name}
	if res.Date != nil {
		d.Date = schedule.FormatDate(*res.Date)
	}
	if res.Time != nil {
		d.Time = res.Time.String()
	}
	return d
}

// DraftStore keeps booking drafts per conversation.
type DraftStore interface {
	Load(ctx context.Context, conversationID uuid.UUID) (Draft, error)
	Save(ctx context.Context, conversationID uuid.UUID, d Draft) error
	Clear(ctx context.Context, conversationID uuid.UUID) error
}

// RedisDraftStore implements DraftStore with expiring Redis keys.
type RedisDraftStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisDraftStore(client *redis.Client) *RedisDraftStore {
	if client == nil {
		panic("booking: redis client required")
	}
	return &RedisDraftStore{redis: client, ttl: draftTTL}
}

func draftKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("booking:draft:%s", conversationID)
}

func (s *RedisDraftStore) Load(ctx context.Context, conversationID uuid.UUID) (Draft, error) {
	data, err := s.redis.Get(ctx, draftKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Draft{}, nil
		}
		return Draft{}, fmt.Errorf("booking: load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("booking: decode draft: %w", err)
	}
	return d, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, conversationID uuid.UUID, d Draft) error {
	if d.Empty() {
		return s.Clear(ctx, conversationID)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("booking: encode draft: %w", err)
	}
	if err := s.redis.Set(ctx, draftKey(conversationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("booking: save draft: %w", err)
	}
	return nil
}

func (s *RedisDraftStore) Clear(ctx context.Context, conversationID uuid.UUID) error {
	if err := s.redis.Del(ctx, draftKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("booking: clear draft: %w", err)
	}
	return nil
}
