package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tenantTracer = otel.Tracer("booking.internal.tenant")

// ErrNotFound is returned when no tenant matches a routing key or id.
var ErrNotFound = errors.New("tenant: not found")

// Directory resolves tenant profiles.
type Directory interface {
	ByRoutingKey(ctx context.Context, routingKey string) (*Profile, error)
	ByID(ctx context.Context, id uuid.UUID) (*Profile, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads tenant profiles from Postgres.
type Repository struct {
	pool rowQuerier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool rowQuerier) *Repository {
	if pool == nil {
		panic("tenant: pgx pool required")
	}
	return &Repository{pool: pool}
}

const selectProfile = `
	SELECT id, name, COALESCE(sector, ''), COALESCE(address, ''), COALESCE(phone, ''),
		routing_key, COALESCE(timezone, 'UTC'), COALESCE(business_hours, '{}'::jsonb),
		COALESCE(prices, '{}'::jsonb), COALESCE(catalog, ''), COALESCE(payment_methods, '{}'::text[])
	FROM tenants
`

// ByRoutingKey returns the tenant owning the channel routing key.
func (r *Repository) ByRoutingKey(ctx context.Context, routingKey string) (*Profile, error) {
	ctx, span := tenantTracer.Start(ctx, "tenant.by_routing_key")
	defer span.End()

	key := NormalizeRoutingKey(routingKey)
	span.SetAttributes(attribute.String("booking.routing_key", key))
	if key == "" {
		return nil, ErrNotFound
	}
	profile, err := scanProfile(r.pool.QueryRow(ctx, selectProfile+` WHERE routing_key = $1`, key))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return profile, nil
}

// ByID returns the tenant with the given id.
func (r *Repository) ByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	ctx, span := tenantTracer.Start(ctx, "tenant.by_id")
	defer span.End()

	profile, err := scanProfile(r.pool.QueryRow(ctx, selectProfile+` WHERE id = $1`, id))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p      Profile
		hours  []byte
		prices []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Sector, &p.Address, &p.Phone,
		&p.RoutingKey, &p.Timezone, &hours, &prices, &p.Catalog, &p.PaymentMethods)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tenant: load profile: %w", err)
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &p.Hours); err != nil {
			return nil, fmt.Errorf("tenant: decode business hours: %w", err)
		}
	}
	if len(prices) > 0 {
		if err := json.Unmarshal(prices, &p.Prices); err != nil {
			return nil, fmt.Errorf("tenant: decode prices: %w", err)
		}
	}
	return &p, nil
}
