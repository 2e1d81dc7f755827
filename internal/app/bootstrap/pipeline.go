package bootstrap

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/booking-concierge/internal/appointments"
	"github.com/wolfman30/booking-concierge/internal/booking"
	"github.com/wolfman30/booking-concierge/internal/calendar"
	appconfig "github.com/wolfman30/booking-concierge/internal/config"
	"github.com/wolfman30/booking-concierge/internal/conversation"
	"github.com/wolfman30/booking-concierge/internal/events"
	"github.com/wolfman30/booking-concierge/internal/extraction"
	"github.com/wolfman30/booking-concierge/internal/nlu"
	"github.com/wolfman30/booking-concierge/internal/observability/metrics"
	"github.com/wolfman30/booking-concierge/internal/pipeline"
	"github.com/wolfman30/booking-concierge/internal/reply"
	"github.com/wolfman30/booking-concierge/internal/tenant"
	"github.com/wolfman30/booking-concierge/pkg/logging"
)

// Pipeline groups the wired services cmd/api needs.
type Pipeline struct {
	Processor    *pipeline.Processor
	Tenants      *tenant.CachedDirectory
	Appointments *appointments.Repository
	Events       *events.ProcessedStore
}

// BuildPipeline wires stores, the booking coordinator and the reply composer.
// redisClient may be nil.
func BuildPipeline(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, client nlu.Client, m *metrics.PipelineMetrics, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}

	tenants := tenant.NewCachedDirectory(tenant.NewRepository(pool), redisClient, cfg.TenantCacheTTL, logger)
	appts := appointments.NewRepository(pool)
	processed := events.NewProcessedStore(pool)

	var drafts booking.DraftStore
	if redisClient != nil {
		drafts = booking.NewRedisDraftStore(redisClient)
	}

	// Primary and fallback each carry NLUTimeout; the call budget covers both.
	callBudget := 2 * cfg.NLUTimeout
	extractor := extraction.NewExtractor(client, callBudget, m, logger.With("component", "extraction"))
	coordinator := booking.NewCoordinator(extractor, calendar.New(appts), appts, drafts, logger.With("component", "booking")).
		WithStoreTimeout(cfg.StoreTimeout)
	composer := reply.NewComposer(client, callBudget, m, logger.With("component", "reply"))

	processor := pipeline.NewProcessor(
		tenants,
		processed,
		conversation.NewStore(pool),
		coordinator,
		composer,
		m,
		pipeline.Config{StoreTimeout: cfg.StoreTimeout, HistoryLimit: cfg.HistoryLimit},
		logger.With("component", "pipeline"),
	)
	return &Pipeline{Processor: processor, Tenants: tenants, Appointments: appts, Events: processed}
}
